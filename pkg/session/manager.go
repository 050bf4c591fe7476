package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/google/uuid"
)

// ErrTooManySessions is returned by Create when the session limit is reached.
var ErrTooManySessions = errors.New("too many sessions")

// Factory builds an idle backlog for a new session id.
type Factory func(id string) (*arbor.Backlog, error)

// Session is a running backlog and its bookkeeping.
type Session struct {
	*arbor.Backlog
	ID        string
	CreatedAt time.Time
}

// Info describes a session without exposing the instance.
type Info struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Tags      []string  `json:"tags"`
}

// Manager owns the live sessions. Safe for concurrent use.
type Manager struct {
	factory Factory

	mu       sync.Mutex
	sessions map[string]*Session

	maxSessions int
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures the Manager.
type Option func(*Manager)

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithMaxSessions caps the number of live sessions. Zero means unlimited.
func WithMaxSessions(n int) Option {
	return func(m *Manager) {
		m.maxSessions = n
	}
}

// WithClock overrides the time source used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a manager that builds sessions with factory.
func NewManager(factory Factory, opts ...Option) *Manager {
	m := &Manager{
		factory:  factory,
		sessions: make(map[string]*Session),
		logger:   logging.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create builds and starts a new session. The session outlives ctx (typically a request
// context); only its values are inherited. Close ends it.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	id := uuid.NewString()

	m.mu.Lock()
	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: limit=%d", ErrTooManySessions, m.maxSessions)
	}
	// Reserve the slot so concurrent creates respect the limit.
	m.sessions[id] = nil
	m.mu.Unlock()

	s, err := m.start(ctx, id)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		delete(m.sessions, id)
		return nil, err
	}
	m.sessions[id] = s

	m.logger.Info("Session created", "session_id", id)
	return s, nil
}

func (m *Manager) start(ctx context.Context, id string) (*Session, error) {
	b, err := m.factory(id)
	if err != nil {
		return nil, fmt.Errorf("failed to build session: %w", err)
	}
	if err := b.Start(context.WithoutCancel(ctx)); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	return &Session{Backlog: b, ID: id, CreatedAt: m.now()}, nil
}

// Get returns a live session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.sessions[id]
	if s == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return s, nil
}

// List describes the live sessions, oldest first.
func (m *Manager) List() []Info {
	m.mu.Lock()
	live := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if s != nil {
			live = append(live, s)
		}
	}
	m.mu.Unlock()

	slices.SortFunc(live, func(a, b *Session) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		return 1
	})

	out := make([]Info, len(live))
	for i, s := range live {
		tags := s.Snapshot().Tags.Sorted()
		names := make([]string, len(tags))
		for j, t := range tags {
			names[j] = string(t)
		}
		out[i] = Info{ID: s.ID, CreatedAt: s.CreatedAt, Tags: names}
	}
	return out
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sessions {
		if s != nil {
			n++
		}
	}
	return n
}

// Close stops and forgets a session.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s := m.sessions[id]
	if s == nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	delete(m.sessions, id)
	m.mu.Unlock()

	s.Stop()
	m.logger.Info("Session closed", "session_id", id)
	return nil
}

// CloseAll stops every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	live := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		if s != nil {
			live = append(live, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range live {
		s.Stop()
	}
	if len(live) > 0 {
		m.logger.Info("Sessions closed", "count", len(live))
	}
}
