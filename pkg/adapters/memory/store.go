package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
)

// Operation names a TicketBackend call, used to inject failures.
type Operation string

const (
	OpList   Operation = "list"
	OpGet    Operation = "get"
	OpUpdate Operation = "update"
)

// Store implements ports.TicketBackend in memory.
// Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	tickets  map[string]domain.Ticket
	latency  time.Duration
	failures map[Operation][]error
}

// Option configures a Store.
type Option func(*Store)

// WithTickets replaces the seed tickets.
func WithTickets(tickets ...domain.Ticket) Option {
	return func(s *Store) {
		s.tickets = make(map[string]domain.Ticket, len(tickets))
		for _, t := range tickets {
			s.tickets[t.ID] = t
		}
	}
}

// WithLatency delays every call, honouring context cancellation while waiting.
func WithLatency(d time.Duration) Option {
	return func(s *Store) {
		s.latency = d
	}
}

// NewStore creates a store seeded with domain.SampleTickets.
func NewStore(opts ...Option) *Store {
	s := &Store{failures: make(map[Operation][]error)}
	WithTickets(domain.SampleTickets()...)(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FailNext makes the next call of op return err. Calls queue up in order.
func (s *Store) FailNext(op Operation, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], err)
}

// wait simulates the call latency, then pops an injected failure.
func (s *Store) wait(ctx context.Context, op Operation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.latency > 0 {
		timer := time.NewTimer(s.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if queue := s.failures[op]; len(queue) > 0 {
		s.failures[op] = queue[1:]
		return queue[0]
	}
	return nil
}

// ListTickets returns summaries ordered by id.
func (s *Store) ListTickets(ctx context.Context) ([]domain.Ticket, error) {
	if err := s.wait(ctx, OpList); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		out = append(out, t.Summary())
	}
	slices.SortFunc(out, func(a, b domain.Ticket) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

// GetTicket returns the full ticket.
func (s *Store) GetTicket(ctx context.Context, id string) (domain.Ticket, error) {
	if err := s.wait(ctx, OpGet); err != nil {
		return domain.Ticket{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tickets[id]
	if !ok {
		return domain.Ticket{}, domain.ErrTicketNotFound
	}
	return t, nil
}

// UpdateTitle replaces the title of an existing ticket.
func (s *Store) UpdateTitle(ctx context.Context, id, title string) (domain.Ticket, error) {
	if err := s.wait(ctx, OpUpdate); err != nil {
		return domain.Ticket{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[id]
	if !ok {
		return domain.Ticket{}, domain.ErrTicketNotFound
	}
	t.Title = title
	s.tickets[id] = t
	return t, nil
}
