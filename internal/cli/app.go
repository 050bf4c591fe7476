// Package cli wires configuration, backends and sessions for the arbor commands.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/config"
	"github.com/aretw0/arbor/internal/logging"
	arborhttp "github.com/aretw0/arbor/pkg/adapters/http"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/adapters/redis"
	"github.com/aretw0/arbor/pkg/backlog"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
	"github.com/aretw0/arbor/pkg/observability"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App holds everything a command needs: the backend, the shared executor, metrics and
// the session manager.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Backend  ports.TicketBackend
	Registry *prometheus.Registry
	Metrics  *observability.Metrics
	Sessions *session.Manager
	Chart    *dsl.Definition[backlog.Context]

	executor *arbor.PoolExecutor
	closers  []func() error
}

// NewApp builds the application for cfg. Call Close when done.
func NewApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	policy, err := cfg.BacklogPolicy()
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}

	app.Backend, err = app.newBackend(ctx)
	if err != nil {
		return nil, err
	}

	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.Metrics, err = observability.NewMetrics(app.Registry)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	app.Chart, err = backlog.NewDefinition(app.Backend, backlog.WithPolicy(policy), backlog.WithLogger(logger))
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	app.executor = arbor.NewPoolExecutor(cfg.Runtime.Workers)
	hooks := domain.CombineHooks(app.Metrics.Hooks(), observability.LogHooks(logger))

	app.Sessions = session.NewManager(func(id string) (*arbor.Backlog, error) {
		return arbor.NewBacklog(app.Backend,
			arbor.WithName(id),
			arbor.WithLogger(logger),
			arbor.WithPolicy(policy),
			arbor.WithExecutor(app.executor),
			arbor.WithLifecycleHooks(hooks),
			arbor.WithMaxMicrosteps(cfg.Runtime.MaxMicrosteps),
		)
	},
		session.WithLogger(logger),
		session.WithMaxSessions(cfg.Server.MaxSessions),
	)

	return app, nil
}

func (a *App) newBackend(ctx context.Context) (ports.TicketBackend, error) {
	cfg := a.Config.Backend
	switch cfg.Kind {
	case config.BackendMemory:
		a.Logger.Info("Using in-memory ticket backend", "latency", cfg.Latency)
		return memory.NewStore(memory.WithLatency(cfg.Latency)), nil

	case config.BackendRedis:
		store := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, redis.WithPrefix(cfg.Redis.Prefix))
		a.closers = append(a.closers, store.Close)
		if cfg.Redis.Seed {
			seeded, err := store.SeedIfEmpty(ctx)
			if err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("failed to seed redis backlog: %w", err)
			}
			if seeded {
				a.Logger.Info("Seeded sample tickets", "addr", cfg.Redis.Addr)
			}
		}
		a.Logger.Info("Using redis ticket backend", "addr", cfg.Redis.Addr, "prefix", cfg.Redis.Prefix)
		return store, nil

	case config.BackendHTTP:
		a.Logger.Info("Using remote ticket API", "url", cfg.URL)
		return arborhttp.NewClient(cfg.URL), nil

	default:
		return nil, fmt.Errorf("unknown backend kind %q", cfg.Kind)
	}
}

// Close stops every session, drains the executor and releases the backend.
func (a *App) Close() error {
	if a.Sessions != nil {
		a.Sessions.CloseAll()
	}
	if a.executor != nil {
		a.executor.StopAndWait()
	}
	var firstErr error
	for _, c := range a.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
