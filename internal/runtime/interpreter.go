package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
)

// InitEvent is the event passed to entry actions and invocations of the initial
// configuration.
const InitEvent = domain.Signal("arbor.init")

// Interpreter runs one instance of a Definition. Sends and actor outcomes are processed
// one at a time; each of them runs to completion, internal cascade included, before the
// resulting snapshot is published.
type Interpreter[C any] struct {
	def           *dsl.Definition[C]
	logger        *slog.Logger
	hooks         domain.LifecycleHooks
	executor      Executor
	maxMicrosteps int

	// mu serialises turns. Everything below it is only touched while holding it.
	mu      sync.Mutex
	status  domain.Status
	store   C
	active  nodeSet[C]
	pending map[*dsl.StateNode[C]]domain.Event
	actors  *actorRegistry
	ctx     context.Context
	cancel  context.CancelFunc

	snapshot atomic.Pointer[domain.Snapshot[C]]

	subsMu  sync.Mutex
	subs    map[int]func(domain.Snapshot[C])
	nextSub int
}

// New creates an idle interpreter. Call Start to enter the initial configuration.
func New[C any](def *dsl.Definition[C], opts ...Option) *Interpreter[C] {
	cfg := newConfig(opts)
	it := &Interpreter[C]{
		def:           def,
		logger:        cfg.logger,
		hooks:         cfg.hooks,
		executor:      cfg.executor,
		maxMicrosteps: cfg.maxMicrosteps,
		status:        domain.StatusIdle,
		store:         def.NewContext(),
		active:        make(nodeSet[C]),
		pending:       make(map[*dsl.StateNode[C]]domain.Event),
		actors:        newActorRegistry(),
		subs:          make(map[int]func(domain.Snapshot[C])),
	}
	it.publish()
	return it
}

// Definition returns the chart the interpreter runs.
func (it *Interpreter[C]) Definition() *dsl.Definition[C] {
	return it.def
}

// Start enters the initial configuration and starts its actors. Actors run under a
// context derived from ctx.
func (it *Interpreter[C]) Start(ctx context.Context) error {
	starts, err := it.enter(ctx)
	if err != nil {
		return err
	}
	it.logger.Debug("interpreter started", "machine", it.def.ID())
	it.submit(starts)
	return nil
}

func (it *Interpreter[C]) enter(ctx context.Context) ([]actorStart, error) {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.status != domain.StatusIdle {
		return nil, fmt.Errorf("start %s: %w", it.def.ID(), domain.ErrNotRunning)
	}
	it.ctx, it.cancel = context.WithCancel(ctx)
	it.status = domain.StatusRunning

	initial := make(nodeSet[C])
	addDefaultEntry(initial, it.def.Root())
	it.macrostep(it.enterInitial(initial)...)
	return it.settleTurn(), nil
}

// enterInitial enters the default configuration and returns the events raised by entry
// actions.
func (it *Interpreter[C]) enterInitial(initial nodeSet[C]) []domain.Event {
	var raised []domain.Event
	for _, n := range initial.documentOrder() {
		it.active.add(n)
		for _, a := range n.Entry {
			switch a.Kind {
			case dsl.ActionAssign:
				a.Apply(&it.store, InitEvent)
			case dsl.ActionRaise:
				if e := a.Event(it.store, InitEvent); e != nil {
					raised = append(raised, e)
				}
			}
		}
		if n.Invocation != nil {
			it.pending[n] = InitEvent
		}
		it.emitState(it.hooks.OnStateEnter, domain.HookStateEnter, n, InitEvent)
	}
	return raised
}

// Send processes an external event. It returns once the event and every internal event
// it raised have been handled and the new snapshot is published. Events sent before
// Start or after Stop are dropped.
func (it *Interpreter[C]) Send(ev domain.Event) {
	starts, ok := it.receive(ev)
	if !ok {
		it.logger.Warn("event dropped", "machine", it.def.ID(), "event", ev.EventType(), "status", it.Status())
		return
	}
	it.submit(starts)
}

func (it *Interpreter[C]) receive(ev domain.Event) ([]actorStart, bool) {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.status != domain.StatusRunning {
		return nil, false
	}
	it.logger.Debug("event received", "machine", it.def.ID(), "event", ev.EventType())
	it.turn(ev)
	return it.settleTurn(), true
}

// turn runs the macrostep for ev. A panic raised by a guard or an action abandons the
// turn: the configuration, context and pending invocations it started from are restored.
// Actors cancelled by the abandoned exits are started again.
func (it *Interpreter[C]) turn(ev domain.Event) {
	active := maps.Clone(it.active)
	store := it.def.Clone(it.store)
	pending := maps.Clone(it.pending)

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		it.logger.Error("event handler panicked, turn abandoned", "machine", it.def.ID(), "event", ev.EventType(), "panic", r)
		it.active = active
		it.store = store
		it.pending = pending
		for n := range active {
			if n.Invocation == nil || it.actors.running(n.Path) {
				continue
			}
			if _, queued := it.pending[n]; !queued {
				it.pending[n] = ev
			}
		}
	}()

	it.macrostep(ev)
}

// Snapshot returns the view published by the last completed turn. Each call returns
// an independent copy.
func (it *Interpreter[C]) Snapshot() domain.Snapshot[C] {
	snap := *it.snapshot.Load()
	snap.Tags = snap.Tags.Clone()
	snap.Value = slices.Clone(snap.Value)
	snap.Context = it.def.Clone(snap.Context)
	return snap
}

// Status returns the lifecycle stage.
func (it *Interpreter[C]) Status() domain.Status {
	return it.Snapshot().Status
}

// Subscribe registers fn to be called with every published snapshot. fn runs inside the
// interpreter's turn and must not call Send synchronously.
func (it *Interpreter[C]) Subscribe(fn func(domain.Snapshot[C])) (unsubscribe func()) {
	it.subsMu.Lock()
	id := it.nextSub
	it.nextSub++
	it.subs[id] = fn
	it.subsMu.Unlock()

	return func() {
		it.subsMu.Lock()
		delete(it.subs, id)
		it.subsMu.Unlock()
	}
}

// WaitFor blocks until a published snapshot satisfies pred or ctx is done.
func (it *Interpreter[C]) WaitFor(ctx context.Context, pred func(domain.Snapshot[C]) bool) (domain.Snapshot[C], error) {
	matched := make(chan domain.Snapshot[C], 1)
	unsubscribe := it.Subscribe(func(s domain.Snapshot[C]) {
		if pred(s) {
			select {
			case matched <- s:
			default:
			}
		}
	})
	defer unsubscribe()

	if s := it.Snapshot(); pred(s) {
		return s, nil
	}
	select {
	case s := <-matched:
		return s, nil
	case <-ctx.Done():
		return it.Snapshot(), ctx.Err()
	}
}

// Stop cancels every running actor and stops accepting events. The configuration and
// context of the last snapshot are kept.
func (it *Interpreter[C]) Stop() {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.status != domain.StatusRunning {
		it.status = domain.StatusStopped
		it.publish()
		return
	}
	for _, ref := range it.actors.cancelAll() {
		it.logger.Debug("actor cancelled", "machine", it.def.ID(), "actor", ref.id, "owner", ref.owner)
	}
	clear(it.pending)
	it.status = domain.StatusStopped
	it.cancel()
	it.publish()
	it.logger.Debug("interpreter stopped", "machine", it.def.ID())
}

// settleTurn registers the invocations of the states still active, then publishes the
// snapshot. The returned tasks must be submitted once the turn lock is released.
func (it *Interpreter[C]) settleTurn() []actorStart {
	var starts []actorStart
	for _, n := range sortedKeys(it.pending) {
		ev := it.pending[n]
		delete(it.pending, n)
		if !it.active.has(n) {
			continue
		}
		starts = append(starts, it.startActor(n, ev))
	}

	if bad := checkConfiguration(it.def.Root(), it.active); bad != nil {
		it.logger.Error("inconsistent configuration", "machine", it.def.ID(), "node", bad.Name())
	}
	it.publish()
	return starts
}

func sortedKeys[C any](m map[*dsl.StateNode[C]]domain.Event) []*dsl.StateNode[C] {
	set := make(nodeSet[C], len(m))
	for n := range m {
		set.add(n)
	}
	return set.documentOrder()
}

// actorStart is a registered actor waiting to be handed to the executor.
type actorStart struct {
	ref  *actorRef
	task func()
}

// startActor registers an actor for the invoking state n and returns the task that
// runs its operation on a clone of the settled context.
func (it *Interpreter[C]) startActor(n *dsl.StateNode[C], ev domain.Event) actorStart {
	inv := n.Invocation
	ref, actx := it.actors.register(it.ctx, n.Path, inv.ActorID)
	snapshot := it.def.Clone(it.store)

	it.logger.Debug("actor started", "machine", it.def.ID(), "actor", ref.id, "owner", ref.owner, "generation", ref.generation)
	it.emitActor(it.hooks.OnActorStart, domain.HookActorStart, ref, nil, false)

	return actorStart{ref: ref, task: func() {
		data, err := runOperation(actx, inv.Start, snapshot, ev)
		it.deliver(ref, data, err)
	}}
}

func runOperation[C any](ctx context.Context, op dsl.Operation[C], snapshot C, ev domain.Event) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("operation panicked: %v", r)
		}
	}()
	return op(ctx, snapshot, ev)
}

// deliver turns an actor outcome into a done or error event, unless the registration
// was superseded or cancelled in the meantime.
func (it *Interpreter[C]) deliver(ref *actorRef, data any, err error) {
	starts, ok := it.settle(ref, data, err)
	if !ok {
		it.logger.Debug("stale actor outcome discarded", "machine", it.def.ID(), "actor", ref.id, "owner", ref.owner, "generation", ref.generation)
		return
	}
	it.submit(starts)
}

func (it *Interpreter[C]) settle(ref *actorRef, data any, err error) ([]actorStart, bool) {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.status != domain.StatusRunning || !it.actors.current(ref) {
		it.emitActor(it.hooks.OnActorSettle, domain.HookActorSettle, ref, err, true)
		return nil, false
	}
	it.actors.settle(ref)
	it.emitActor(it.hooks.OnActorSettle, domain.HookActorSettle, ref, err, false)

	var ev domain.Event
	if err != nil {
		err = domain.NewOperationError(ref.id, err)
		it.logger.Debug("actor failed", "machine", it.def.ID(), "actor", ref.id, "error", err)
		ev = domain.ErrorEvent{Actor: ref.id, Err: err}
	} else {
		it.logger.Debug("actor done", "machine", it.def.ID(), "actor", ref.id)
		ev = domain.DoneEvent{Actor: ref.id, Data: data}
	}
	it.turn(ev)
	return it.settleTurn(), true
}

// submit hands actor tasks to the executor. A rejected task fails its actor.
func (it *Interpreter[C]) submit(starts []actorStart) {
	for _, s := range starts {
		if err := it.executor.Go(s.task); err != nil {
			it.logger.Error("executor rejected actor", "machine", it.def.ID(), "actor", s.ref.id, "error", err)
			it.deliver(s.ref, nil, fmt.Errorf("schedule actor: %w", err))
		}
	}
}

// publish stores a fresh snapshot and notifies subscribers.
func (it *Interpreter[C]) publish() {
	tags := make(domain.TagSet)
	var leaves, names []string
	for n := range it.active {
		for _, t := range n.Tags {
			tags[t] = struct{}{}
		}
		if n.IsAtomic() {
			leaves = append(leaves, n.Name())
		}
		names = append(names, n.Path, n.ID)
	}

	snap := domain.NewSnapshot(tags, it.def.Clone(it.store), leaves, names, it.status)
	it.snapshot.Store(&snap)
	snap = it.Snapshot()

	it.subsMu.Lock()
	subs := make([]func(domain.Snapshot[C]), 0, len(it.subs))
	for _, fn := range it.subs {
		subs = append(subs, fn)
	}
	it.subsMu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

// activeLeaves returns the active atomic nodes in document order.
func (it *Interpreter[C]) activeLeaves() []*dsl.StateNode[C] {
	leaves := make(nodeSet[C])
	for n := range it.active {
		if n.IsAtomic() {
			leaves.add(n)
		}
	}
	return leaves.documentOrder()
}

// RunningActors returns the number of live actor registrations.
func (it *Interpreter[C]) RunningActors() int {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.actors.size()
}

func (it *Interpreter[C]) emitState(hook func(context.Context, *domain.StateEvent), typ domain.HookType, n *dsl.StateNode[C], ev domain.Event) {
	if hook == nil {
		return
	}
	hook(it.ctx, &domain.StateEvent{
		HookBase: domain.HookBase{Timestamp: time.Now(), Type: typ, Machine: it.def.ID()},
		StateID:  n.ID,
		Path:     n.Path,
		Kind:     n.Kind,
		Trigger:  ev.EventType(),
	})
}

func (it *Interpreter[C]) emitTransition(t *dsl.Transition[C], ev domain.Event) {
	target := ""
	if tn := t.TargetNode(); tn != nil {
		target = tn.Name()
	}
	it.logger.Debug("transition", "machine", it.def.ID(), "event", ev.EventType(), "source", t.Source().Name(), "target", target)

	if it.hooks.OnTransition == nil {
		return
	}
	it.hooks.OnTransition(it.ctx, &domain.TransitionEvent{
		HookBase: domain.HookBase{Timestamp: time.Now(), Type: domain.HookTransition, Machine: it.def.ID()},
		Source:   t.Source().Name(),
		Target:   target,
		Trigger:  ev.EventType(),
		External: t.External,
	})
}

func (it *Interpreter[C]) emitActor(hook func(context.Context, *domain.ActorEvent), typ domain.HookType, ref *actorRef, err error, discarded bool) {
	if hook == nil {
		return
	}
	e := &domain.ActorEvent{
		HookBase:   domain.HookBase{Timestamp: time.Now(), Type: typ, Machine: it.def.ID()},
		Actor:      ref.id,
		Owner:      ref.owner,
		Generation: ref.generation,
		Err:        err,
		Discarded:  discarded,
	}
	if typ == domain.HookActorSettle {
		e.Duration = time.Since(ref.started)
	}
	hook(it.ctx, e)
}
