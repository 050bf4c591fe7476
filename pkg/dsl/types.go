package dsl

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

// Guard decides whether a candidate transition is enabled. It receives a read-only
// view of the context store.
type Guard[C any] func(ctx C, ev domain.Event) bool

// Operation is the asynchronous work of an invoked actor. The snapshot is a clone of the
// context store taken when the actor started. A nil error resolves "<actor>.done" with the
// returned value as data; anything else rejects with "<actor>.error".
type Operation[C any] func(ctx context.Context, snapshot C, ev domain.Event) (any, error)

// ActionKind enumerates the primitive actions.
type ActionKind int

const (
	// ActionAssign mutates the context store.
	ActionAssign ActionKind = iota
	// ActionRaise queues an internal event, processed before the current send returns.
	ActionRaise
)

func (k ActionKind) String() string {
	switch k {
	case ActionAssign:
		return "assign"
	case ActionRaise:
		return "raise"
	default:
		return "unknown"
	}
}

// Action is a synchronous effect executed during a microstep.
type Action[C any] struct {
	Kind ActionKind
	Name string

	assign func(*C, domain.Event)
	raise  func(C, domain.Event) domain.Event
}

// Assign builds an action that mutates the context store in place.
func Assign[C any](fn func(c *C, ev domain.Event)) Action[C] {
	return Action[C]{Kind: ActionAssign, Name: "assign", assign: fn}
}

// Raise builds an action that queues a fixed internal event.
func Raise[C any](ev domain.Event) Action[C] {
	return Action[C]{
		Kind:  ActionRaise,
		Name:  "raise " + string(ev.EventType()),
		raise: func(C, domain.Event) domain.Event { return ev },
	}
}

// RaiseFunc builds an action that computes the internal event from the context store and
// the triggering event. Returning nil raises nothing.
func RaiseFunc[C any](name string, fn func(c C, ev domain.Event) domain.Event) Action[C] {
	return Action[C]{Kind: ActionRaise, Name: name, raise: fn}
}

// Named returns a copy of the action with a descriptive name, used in logs and Describe.
func (a Action[C]) Named(name string) Action[C] {
	a.Name = name
	return a
}

// Apply executes an assign action against the store. It is a no-op for other kinds.
func (a Action[C]) Apply(c *C, ev domain.Event) {
	if a.Kind == ActionAssign && a.assign != nil {
		a.assign(c, ev)
	}
}

// Event returns the internal event a raise action produces, or nil.
func (a Action[C]) Event(c C, ev domain.Event) domain.Event {
	if a.Kind != ActionRaise || a.raise == nil {
		return nil
	}
	return a.raise(c, ev)
}

// Transition is a candidate reaction of a node to an event.
type Transition[C any] struct {
	// Target is the raw target expression. Empty means targetless.
	Target string
	// Guard is optional. A nil guard is always enabled.
	Guard Guard[C]
	// Actions run in declared order, after exits and before entries.
	Actions []Action[C]
	// External forces the source to be exited and re-entered even when the target is
	// the source itself or one of its descendants.
	External bool

	source *StateNode[C]
	target *StateNode[C]
}

// To declares a transition towards target.
func To[C any](target string, actions ...Action[C]) Transition[C] {
	return Transition[C]{Target: target, Actions: actions}
}

// Stay declares a targetless transition: the actions run and the configuration is kept.
func Stay[C any](actions ...Action[C]) Transition[C] {
	return Transition[C]{Actions: actions}
}

// If attaches a guard.
func (t Transition[C]) If(g Guard[C]) Transition[C] {
	t.Guard = g
	return t
}

// Reenter marks the transition as external.
func (t Transition[C]) Reenter() Transition[C] {
	t.External = true
	return t
}

// Enabled reports whether the guard passes.
func (t *Transition[C]) Enabled(c C, ev domain.Event) bool {
	return t.Guard == nil || t.Guard(c, ev)
}

// Source returns the node declaring the transition.
func (t *Transition[C]) Source() *StateNode[C] { return t.source }

// TargetNode returns the resolved target, or nil for targetless transitions.
func (t *Transition[C]) TargetNode() *StateNode[C] { return t.target }

// Targetless reports whether the transition keeps the configuration.
func (t *Transition[C]) Targetless() bool { return t.target == nil }

// Invocation binds an asynchronous operation to a state. The operation starts when the
// state is entered and is cancelled when it is exited.
type Invocation[C any] struct {
	// ActorID names the actor; outcomes are delivered as "<ActorID>.done" and "<ActorID>.error".
	ActorID string
	Start   Operation[C]

	// OnDone and OnError are shorthands for On(DoneType(ActorID)) and On(ErrorType(ActorID)).
	OnDone  []Transition[C]
	OnError []Transition[C]
}
