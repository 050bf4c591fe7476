package arbor

import (
	"context"
	"fmt"

	"github.com/aretw0/arbor/pkg/backlog"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
	"github.com/aretw0/arbor/pkg/ports"
)

// BacklogSnapshot is the view of a backlog instance.
type BacklogSnapshot = domain.Snapshot[backlog.Context]

// WithPolicy resolves the close and update failure behaviours of NewBacklog.
func WithPolicy(p backlog.Policy) Option {
	return func(s *settings) {
		s.policy = p
	}
}

// Backlog is a running ticket backlog coordinator. Unlike Service, it only accepts the
// events of package backlog.
type Backlog struct {
	svc *Service[backlog.Context]
}

// NewBacklog builds the backlog chart for the backend and wraps it in an idle service.
func NewBacklog(backend ports.TicketBackend, opts ...Option) (*Backlog, error) {
	s := newSettings(opts)

	def, err := backlog.NewDefinition(backend,
		backlog.WithPolicy(s.policy),
		backlog.WithLogger(s.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build backlog definition: %w", err)
	}

	return &Backlog{svc: New(def, opts...)}, nil
}

// Name returns the label given with WithName.
func (b *Backlog) Name() string { return b.svc.Name() }

// Start enters the initial configuration: list idle, sidebar closed.
func (b *Backlog) Start(ctx context.Context) error { return b.svc.Start(ctx) }

// Send delivers a view event.
func (b *Backlog) Send(ev backlog.Event) { b.svc.Send(ev) }

// SendRaw parses and delivers an event received as a type and a loosely typed payload.
func (b *Backlog) SendRaw(typ string, payload map[string]any) error {
	ev, err := backlog.ParseEvent(typ, payload)
	if err != nil {
		return err
	}
	b.Send(ev)
	return nil
}

// Snapshot returns the current tags and context.
func (b *Backlog) Snapshot() BacklogSnapshot { return b.svc.Snapshot() }

// Subscribe calls fn with every new snapshot until the returned function is called.
func (b *Backlog) Subscribe(fn func(BacklogSnapshot)) func() { return b.svc.Subscribe(fn) }

// WaitFor blocks until a snapshot satisfies pred or ctx is done.
func (b *Backlog) WaitFor(ctx context.Context, pred func(BacklogSnapshot) bool) (BacklogSnapshot, error) {
	return b.svc.WaitFor(ctx, pred)
}

// WaitForTag blocks until the tag is present.
func (b *Backlog) WaitForTag(ctx context.Context, tag domain.Tag) (BacklogSnapshot, error) {
	return b.svc.WaitFor(ctx, func(s BacklogSnapshot) bool { return s.HasTag(tag) })
}

// Stop cancels in-flight backend calls. Later events are dropped.
func (b *Backlog) Stop() { b.svc.Stop() }

// Definition returns the backlog chart.
func (b *Backlog) Definition() *dsl.Definition[backlog.Context] { return b.svc.Definition() }
