package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/arbor/pkg/domain"
)

// LogHooks logs every lifecycle notification at debug level, and actor failures at warn.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateEnter: func(ctx context.Context, e *domain.StateEvent) {
			logger.DebugContext(ctx, "State entered", "machine", e.Machine, "state", statePath(e), "trigger", e.Trigger)
		},
		OnStateExit: func(ctx context.Context, e *domain.StateEvent) {
			logger.DebugContext(ctx, "State exited", "machine", e.Machine, "state", statePath(e), "trigger", e.Trigger)
		},
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.DebugContext(ctx, "Transition",
				"machine", e.Machine,
				"event", e.Trigger,
				"source", e.Source,
				"target", e.Target,
			)
		},
		OnActorStart: func(ctx context.Context, e *domain.ActorEvent) {
			logger.DebugContext(ctx, "Actor started",
				"machine", e.Machine,
				"actor", e.Actor,
				"owner", e.Owner,
				"generation", e.Generation,
			)
		},
		OnActorSettle: func(ctx context.Context, e *domain.ActorEvent) {
			attrs := []any{
				"machine", e.Machine,
				"actor", e.Actor,
				"owner", e.Owner,
				"generation", e.Generation,
				"outcome", Outcome(e),
				"duration", e.Duration,
			}
			if e.Err != nil && !e.Discarded {
				logger.WarnContext(ctx, "Actor failed", append(attrs, "err", e.Err)...)
				return
			}
			logger.DebugContext(ctx, "Actor settled", attrs...)
		},
	}
}
