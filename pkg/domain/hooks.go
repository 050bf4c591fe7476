package domain

import (
	"context"
	"time"
)

// HookType defines the category of a lifecycle notification.
type HookType string

const (
	HookStateEnter  HookType = "state_enter"
	HookStateExit   HookType = "state_exit"
	HookTransition  HookType = "transition"
	HookActorStart  HookType = "actor_start"
	HookActorSettle HookType = "actor_settle"
)

// HookBase contains common fields for all lifecycle notifications.
type HookBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      HookType  `json:"type"`
	Machine   string    `json:"machine"`
}

// StateEvent represents entry into or exit from a state node.
type StateEvent struct {
	HookBase
	StateID string    `json:"state_id"`
	Path    string    `json:"path"`
	Kind    StateKind `json:"kind"`
	Trigger EventType `json:"trigger,omitempty"`
}

// TransitionEvent represents a transition taken in a microstep.
type TransitionEvent struct {
	HookBase
	Source   string    `json:"source"`
	Target   string    `json:"target,omitempty"` // Empty for targetless transitions
	Trigger  EventType `json:"trigger"`
	External bool      `json:"external,omitempty"`
}

// ActorEvent represents the start or the settlement of an invoked actor.
type ActorEvent struct {
	HookBase
	Actor      string        `json:"actor"`
	Owner      string        `json:"owner"`
	Generation uint64        `json:"generation"`
	Duration   time.Duration `json:"duration,omitempty"`
	Err        error         `json:"-"`
	Discarded  bool          `json:"discarded,omitempty"` // Owner exited before settlement
}

// LifecycleHooks defines callbacks for interpreter observability.
// Hooks run inside the interpreter's turn and must not call Send.
type LifecycleHooks struct {
	OnStateEnter  func(context.Context, *StateEvent)
	OnStateExit   func(context.Context, *StateEvent)
	OnTransition  func(context.Context, *TransitionEvent)
	OnActorStart  func(context.Context, *ActorEvent)
	OnActorSettle func(context.Context, *ActorEvent)
}

// CombineHooks fans every callback out to each of the given hook sets, in order.
func CombineHooks(hooks ...LifecycleHooks) LifecycleHooks {
	var out LifecycleHooks
	for _, h := range hooks {
		out.OnStateEnter = chain(out.OnStateEnter, h.OnStateEnter)
		out.OnStateExit = chain(out.OnStateExit, h.OnStateExit)
		out.OnTransition = chain(out.OnTransition, h.OnTransition)
		out.OnActorStart = chain(out.OnActorStart, h.OnActorStart)
		out.OnActorSettle = chain(out.OnActorSettle, h.OnActorSettle)
	}
	return out
}

func chain[E any](a, b func(context.Context, *E)) func(context.Context, *E) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *E) {
		a(ctx, e)
		b(ctx, e)
	}
}
