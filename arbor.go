package arbor

import (
	"context"
	"log/slog"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/pkg/backlog"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
)

// Executor runs actor operations. See NewPoolExecutor and NewManualExecutor.
type Executor = runtime.Executor

// ManualExecutor queues actor operations until the caller runs them.
type ManualExecutor = runtime.ManualExecutor

// PoolExecutor runs actor operations on a bounded worker pool.
type PoolExecutor = runtime.PoolExecutor

// NewManualExecutor creates an executor for step-by-step settlement.
func NewManualExecutor() *ManualExecutor {
	return runtime.NewManualExecutor()
}

// NewPoolExecutor creates a worker pool executor with the given concurrency limit.
func NewPoolExecutor(maxConcurrency int) *PoolExecutor {
	return runtime.NewPoolExecutor(maxConcurrency)
}

type settings struct {
	name          string
	logger        *slog.Logger
	hooks         domain.LifecycleHooks
	executor      Executor
	maxMicrosteps int
	policy        backlog.Policy
}

// Option defines a functional option for configuring a Service.
type Option func(*settings)

// WithName labels the instance, e.g. with a session id. The name is added to every log line.
func WithName(name string) Option {
	return func(s *settings) {
		s.name = name
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks. Repeated use combines the hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(s *settings) {
		s.hooks = domain.CombineHooks(s.hooks, hooks)
	}
}

// WithExecutor sets where actor operations run.
func WithExecutor(exec Executor) Option {
	return func(s *settings) {
		s.executor = exec
	}
}

// WithMaxMicrosteps bounds the internal event cascade of a single send.
func WithMaxMicrosteps(n int) Option {
	return func(s *settings) {
		s.maxMicrosteps = n
	}
}

func newSettings(opts []Option) settings {
	s := settings{}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	if s.name != "" {
		s.logger = s.logger.With("session", s.name)
	}
	return s
}

func (s settings) runtimeOptions() []runtime.Option {
	opts := []runtime.Option{
		runtime.WithLogger(s.logger),
		runtime.WithLifecycleHooks(s.hooks),
		runtime.WithMaxMicrosteps(s.maxMicrosteps),
	}
	if s.executor != nil {
		opts = append(opts, runtime.WithExecutor(s.executor))
	}
	return opts
}

// Service is the high-level entry point for running a statechart.
// It wraps the internal interpreter and provides a simplified API for consumers.
type Service[C any] struct {
	it   *runtime.Interpreter[C]
	name string
}

// New creates an idle service for the definition. Call Start before sending events.
func New[C any](def *dsl.Definition[C], opts ...Option) *Service[C] {
	s := newSettings(opts)
	return &Service[C]{
		it:   runtime.New(def, s.runtimeOptions()...),
		name: s.name,
	}
}

// Name returns the label given with WithName.
func (s *Service[C]) Name() string {
	return s.name
}

// Start enters the initial configuration. Actors run under a context derived from ctx.
func (s *Service[C]) Start(ctx context.Context) error {
	return s.it.Start(ctx)
}

// Send delivers an event. Every state change it causes, internal events included, is
// visible in the snapshot once Send returns. Actor outcomes arrive later.
func (s *Service[C]) Send(ev domain.Event) {
	s.it.Send(ev)
}

// Snapshot returns the current tags, context and active states.
func (s *Service[C]) Snapshot() domain.Snapshot[C] {
	return s.it.Snapshot()
}

// Subscribe calls fn with every new snapshot until the returned function is called.
// fn must not call Send synchronously.
func (s *Service[C]) Subscribe(fn func(domain.Snapshot[C])) func() {
	return s.it.Subscribe(fn)
}

// WaitFor blocks until a snapshot satisfies pred or ctx is done.
func (s *Service[C]) WaitFor(ctx context.Context, pred func(domain.Snapshot[C]) bool) (domain.Snapshot[C], error) {
	return s.it.WaitFor(ctx, pred)
}

// Stop cancels every running actor. Later events are dropped.
func (s *Service[C]) Stop() {
	s.it.Stop()
}

// Definition returns the chart the service runs.
func (s *Service[C]) Definition() *dsl.Definition[C] {
	return s.it.Definition()
}
