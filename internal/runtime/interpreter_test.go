package runtime_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpreter_InitialConfiguration(t *testing.T) {
	b := dsl.New[journal]("app")
	root := b.Root().Parallel()
	list := root.State("list").Initial("idle")
	list.State("idle").Tags("listIdle").Entry(note("enter list.idle"))
	list.State("busy")
	details := root.State("details").Initial("closed")
	details.Entry(note("enter details"))
	details.State("closed").Tags("sidebarClosed").Entry(note("enter details.closed"))
	details.State("open")

	it := runtime.New(build(t, b), runtime.WithLogger(nil))

	// 1. Before Start: idle, empty
	snap := it.Snapshot()
	assert.Equal(t, domain.StatusIdle, snap.Status)
	assert.Empty(t, snap.Value)

	// 2. Start enters every region, ancestors first
	require.NoError(t, it.Start(context.Background()))
	defer it.Stop()

	snap = it.Snapshot()
	assert.Equal(t, domain.StatusRunning, snap.Status)
	assert.Equal(t, []string{"details.closed", "list.idle"}, snap.Value)
	assert.True(t, snap.Matches("app"))
	assert.True(t, snap.Matches("details"))
	assert.True(t, snap.HasTag("sidebarClosed"))
	assert.True(t, snap.HasTag("listIdle"))
	assert.Equal(t, []string{"enter list.idle", "enter details", "enter details.closed"}, snap.Context.Log)

	// 3. Start is not reentrant
	assert.ErrorIs(t, it.Start(context.Background()), domain.ErrNotRunning)
}

func TestInterpreter_SnapshotIsIdempotent(t *testing.T) {
	b := dsl.New[journal]("m").Context(journal{Log: []string{"seed"}})
	b.Root().Initial("a").State("a").Tags("x")
	it := start(t, build(t, b))

	s1 := it.Snapshot()
	s2 := it.Snapshot()
	assert.Equal(t, s1.Value, s2.Value)
	assert.True(t, s1.Tags.Equal(s2.Tags))
	assert.Equal(t, s1.Context, s2.Context)

	// Mutating a snapshot does not leak into the interpreter
	s1.Context.Log[0] = "mutated"
	assert.Equal(t, "seed", it.Snapshot().Context.Log[0])

	// Nor into another snapshot's configuration
	s1.Value[0] = "mutated"
	assert.Equal(t, []string{"a"}, s2.Value)
	assert.Equal(t, []string{"a"}, it.Snapshot().Value)
	assert.True(t, it.Snapshot().Matches("a"))
}

func TestInterpreter_PanickingActionAbandonsTurn(t *testing.T) {
	b := dsl.New[journal]("m")
	r := b.Root().Initial("a")
	r.State("a").
		Exit(note("exit a")).
		On("BOOM", to("b", dsl.Assign(func(*journal, domain.Event) { panic("boom") }))).
		On("OK", to("c"))
	r.State("b")
	r.State("c")
	it := start(t, build(t, b))

	// 1. The panic does not escape and the turn leaves no trace
	assert.NotPanics(t, func() { it.Send(domain.Signal("BOOM")) })
	snap := it.Snapshot()
	assert.Equal(t, []string{"a"}, snap.Value)
	assert.Empty(t, snap.Context.Log)
	assert.Equal(t, domain.StatusRunning, snap.Status)

	// 2. The next event is processed normally
	it.Send(domain.Signal("OK"))
	snap = it.Snapshot()
	assert.Equal(t, []string{"c"}, snap.Value)
	assert.Equal(t, []string{"exit a"}, snap.Context.Log)

	// 3. Stop does not block on the turn lock
	stopped := make(chan struct{})
	go func() {
		it.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked after a panicking turn")
	}
}

func TestInterpreter_PanickingTurnRestartsCancelledActor(t *testing.T) {
	exec := runtime.NewManualExecutor()
	b := dsl.New[journal]("m")
	r := b.Root().Initial("loading")
	r.State("loading").
		On("GUARD", to("idle").If(func(journal, domain.Event) bool { panic("guard") })).
		On("BOOM", to("idle", dsl.Assign(func(*journal, domain.Event) { panic("boom") }))).
		Invoke(dsl.Invocation[journal]{
			ActorID: "fetch",
			Start:   echo,
			OnDone:  []dsl.Transition[journal]{to("ready")},
		})
	r.State("idle")
	r.State("ready").Tags("ready")
	it := start(t, build(t, b), runtime.WithExecutor(exec))
	require.Equal(t, 1, exec.Pending())

	// 1. A panicking guard aborts before anything is exited
	assert.NotPanics(t, func() { it.Send(domain.Signal("GUARD")) })
	assert.Equal(t, []string{"loading"}, it.Snapshot().Value)
	assert.Equal(t, 1, exec.Pending())

	// 2. A panicking action runs after the exit cancelled the actor: it is started again
	assert.NotPanics(t, func() { it.Send(domain.Signal("BOOM")) })
	assert.Equal(t, []string{"loading"}, it.Snapshot().Value)
	assert.Equal(t, 1, it.RunningActors())
	assert.Equal(t, 2, exec.Pending())

	// 3. The cancelled generation is discarded, the new one completes
	exec.RunAll()
	assert.True(t, it.Snapshot().HasTag("ready"))
}

func TestInterpreter_SendBeforeStartAndAfterStop(t *testing.T) {
	b := dsl.New[journal]("m")
	r := b.Root().Initial("a")
	r.State("a").On("GO", to("b"))
	r.State("b")
	def := build(t, b)

	it := runtime.New(def)
	it.Send(domain.Signal("GO"))
	assert.Empty(t, it.Snapshot().Value, "dropped before start")

	require.NoError(t, it.Start(context.Background()))
	it.Stop()
	assert.Equal(t, domain.StatusStopped, it.Status())

	it.Send(domain.Signal("GO"))
	snap := it.Snapshot()
	assert.Equal(t, []string{"a"}, snap.Value, "dropped after stop")
	assert.Equal(t, domain.StatusStopped, snap.Status)
}

func TestInterpreter_UnknownEventIsIgnored(t *testing.T) {
	b := dsl.New[journal]("m")
	b.Root().Initial("a").State("a").Tags("t")
	it := start(t, build(t, b))

	before := it.Snapshot()
	it.Send(domain.Signal("NOPE"))
	after := it.Snapshot()

	assert.Equal(t, before.Value, after.Value)
	assert.True(t, before.Tags.Equal(after.Tags))
}

func TestInterpreter_Subscribe(t *testing.T) {
	b := dsl.New[journal]("m")
	r := b.Root().Initial("a")
	r.State("a").On("GO", to("b"))
	r.State("b").On("GO", to("a"))
	it := start(t, build(t, b))

	var seen [][]string
	unsubscribe := it.Subscribe(func(s domain.Snapshot[journal]) {
		seen = append(seen, s.Value)
	})

	it.Send(domain.Signal("GO"))
	it.Send(domain.Signal("GO"))
	unsubscribe()
	it.Send(domain.Signal("GO"))

	assert.Equal(t, [][]string{{"b"}, {"a"}}, seen)
}

func TestInterpreter_WaitFor(t *testing.T) {
	b := dsl.New[journal]("m")
	r := b.Root().Initial("loading")
	r.State("loading").Invoke(dsl.Invocation[journal]{
		ActorID: "fetch",
		Start: func(ctx context.Context, _ journal, _ domain.Event) (any, error) {
			select {
			case <-time.After(10 * time.Millisecond):
				return "payload", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
		OnDone: []dsl.Transition[journal]{to("ready", dsl.Assign(func(j *journal, ev domain.Event) {
			j.Data = ev.(domain.DoneEvent).Data
		}))},
	})
	r.State("ready").Tags("ready")

	exec := runtime.NewPoolExecutor(2)
	defer exec.StopAndWait()
	it := start(t, build(t, b), runtime.WithExecutor(exec))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	snap, err := it.WaitFor(ctx, func(s domain.Snapshot[journal]) bool { return s.HasTag("ready") })
	require.NoError(t, err)
	assert.Equal(t, "payload", snap.Context.Data)
	assert.Equal(t, 0, it.RunningActors())
}

func TestInterpreter_WaitForTimeout(t *testing.T) {
	b := dsl.New[journal]("m")
	b.Root().Initial("a").State("a")
	it := start(t, build(t, b))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := it.WaitFor(ctx, func(s domain.Snapshot[journal]) bool { return s.Matches("b") })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInterpreter_LifecycleHooks(t *testing.T) {
	b := dsl.New[journal]("m")
	r := b.Root().Initial("a")
	r.State("a").Initial("a1").State("a1").On("GO", to("#b.b1"))
	r.State("b").Initial("b1").State("b1")

	var events []string
	hooks := domain.LifecycleHooks{
		OnStateEnter: func(_ context.Context, e *domain.StateEvent) { events = append(events, "enter "+e.Path) },
		OnStateExit:  func(_ context.Context, e *domain.StateEvent) { events = append(events, "exit "+e.Path) },
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			events = append(events, "transition "+e.Source+" -> "+e.Target+" on "+string(e.Trigger))
		},
	}
	it := start(t, build(t, b), runtime.WithLifecycleHooks(hooks))
	events = nil

	it.Send(domain.Signal("GO"))

	assert.Equal(t, []string{
		"exit a.a1",
		"exit a",
		"transition a.a1 -> b.b1 on GO",
		"enter b",
		"enter b.b1",
	}, events)
}
