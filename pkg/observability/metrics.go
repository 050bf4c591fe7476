package observability

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "arbor"

// Actor outcomes used as the "outcome" label.
const (
	OutcomeDone      = "done"
	OutcomeError     = "error"
	OutcomeDiscarded = "discarded"
)

// Metrics holds the collectors fed by Hooks.
type Metrics struct {
	Transitions   *prometheus.CounterVec
	StateEntries  *prometheus.CounterVec
	ActorsStarted *prometheus.CounterVec
	ActorsSettled *prometheus.CounterVec
	ActorDuration *prometheus.HistogramVec
	ActorsRunning *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Transitions taken, by machine and triggering event.",
		}, []string{"machine", "event"}),
		StateEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_entries_total",
			Help:      "State node entries, by machine and state path.",
		}, []string{"machine", "state"}),
		ActorsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actors_started_total",
			Help:      "Invoked actors started.",
		}, []string{"machine", "actor"}),
		ActorsSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actors_settled_total",
			Help:      "Invoked actors settled, by outcome.",
		}, []string{"machine", "actor", "outcome"}),
		ActorDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "actor_duration_seconds",
			Help:      "Time from actor start to settlement.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"machine", "actor"}),
		ActorsRunning: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "actors_running",
			Help:      "Actors started and not yet settled.",
		}, []string{"machine", "actor"}),
	}

	collectors := []prometheus.Collector{
		m.Transitions, m.StateEntries, m.ActorsStarted,
		m.ActorsSettled, m.ActorDuration, m.ActorsRunning,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks that update the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateEnter: func(_ context.Context, e *domain.StateEvent) {
			m.StateEntries.WithLabelValues(e.Machine, statePath(e)).Inc()
		},
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			m.Transitions.WithLabelValues(e.Machine, string(e.Trigger)).Inc()
		},
		OnActorStart: func(_ context.Context, e *domain.ActorEvent) {
			m.ActorsStarted.WithLabelValues(e.Machine, e.Actor).Inc()
			m.ActorsRunning.WithLabelValues(e.Machine, e.Actor).Inc()
		},
		OnActorSettle: func(_ context.Context, e *domain.ActorEvent) {
			m.ActorsSettled.WithLabelValues(e.Machine, e.Actor, Outcome(e)).Inc()
			m.ActorsRunning.WithLabelValues(e.Machine, e.Actor).Dec()
			m.ActorDuration.WithLabelValues(e.Machine, e.Actor).Observe(e.Duration.Seconds())
		},
	}
}

// Outcome classifies a settled actor.
func Outcome(e *domain.ActorEvent) string {
	switch {
	case e.Discarded:
		return OutcomeDiscarded
	case e.Err != nil:
		return OutcomeError
	default:
		return OutcomeDone
	}
}

func statePath(e *domain.StateEvent) string {
	if e.Path == "" {
		return e.StateID
	}
	return e.Path
}
