package runtime

import (
	"log/slog"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
)

// DefaultMaxMicrosteps bounds the internal event cascade of a single send.
const DefaultMaxMicrosteps = 10000

type config struct {
	logger        *slog.Logger
	hooks         domain.LifecycleHooks
	executor      Executor
	maxMicrosteps int
}

// Option configures an Interpreter.
type Option func(*config)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *config) {
		c.hooks = hooks
	}
}

// WithExecutor sets where actor operations run. Defaults to a shared worker pool.
func WithExecutor(exec Executor) Option {
	return func(c *config) {
		c.executor = exec
	}
}

// WithMaxMicrosteps bounds the number of microsteps a single send may trigger.
func WithMaxMicrosteps(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxMicrosteps = n
		}
	}
}

func newConfig(opts []Option) config {
	c := config{maxMicrosteps: DefaultMaxMicrosteps}
	for _, opt := range opts {
		opt(&c)
	}
	if c.logger == nil {
		c.logger = logging.NewNop()
	}
	if c.executor == nil {
		c.executor = DefaultExecutor()
	}
	return c
}
