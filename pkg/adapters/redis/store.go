package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key the store writes.
const DefaultPrefix = "arbor:"

// updateLockTTL bounds how long a crashed writer can block a ticket.
const updateLockTTL = 5 * time.Second

// Store implements ports.TicketBackend using Redis.
//
// Each ticket is a hash at <prefix>ticket:<id>; the ids are members of the sorted set
// <prefix>tickets, all with score 0 so ZRANGE returns them in lexicographic order.
// Title updates are serialized per ticket through a Locker.
type Store struct {
	client backend.UniversalClient
	prefix string
	locker *Locker
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client backend.UniversalClient, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
	}

	for _, opt := range opts {
		opt(store)
	}
	store.locker = NewLocker(client, store.prefix)

	return store
}

func (s *Store) key(id string) string {
	return s.prefix + "ticket:" + id
}

func (s *Store) indexKey() string {
	return s.prefix + "tickets"
}

// Seed writes tickets, replacing existing ones with the same id.
func (s *Store) Seed(ctx context.Context, tickets ...domain.Ticket) error {
	pipe := s.client.TxPipeline()
	for _, t := range tickets {
		pipe.HSet(ctx, s.key(t.ID), "id", t.ID, "title", t.Title, "description", t.Description)
		pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: 0, Member: t.ID})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to seed tickets: %w", err)
	}
	return nil
}

// SeedIfEmpty seeds domain.SampleTickets when the index holds no tickets.
// It reports whether anything was written.
func (s *Store) SeedIfEmpty(ctx context.Context) (bool, error) {
	n, err := s.client.ZCard(ctx, s.indexKey()).Result()
	if err != nil {
		return false, fmt.Errorf("failed to count tickets: %w", err)
	}
	if n > 0 {
		return false, nil
	}
	return true, s.Seed(ctx, domain.SampleTickets()...)
}

// ListTickets returns summaries ordered by id.
func (s *Store) ListTickets(ctx context.Context) ([]domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}

	pipe := s.client.Pipeline()
	cmds := make([]*backend.SliceCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HMGet(ctx, s.key(id), "id", "title")
	}
	if len(ids) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("failed to read tickets: %w", err)
		}
	}

	out := make([]domain.Ticket, 0, len(ids))
	for _, cmd := range cmds {
		var t domain.Ticket
		if err := cmd.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to decode ticket: %w", err)
		}
		// Index entries whose hash vanished are skipped.
		if t.ID == "" {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// GetTicket returns the full ticket.
func (s *Store) GetTicket(ctx context.Context, id string) (domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return domain.Ticket{}, err
	}
	return s.load(ctx, id)
}

func (s *Store) load(ctx context.Context, id string) (domain.Ticket, error) {
	res := s.client.HGetAll(ctx, s.key(id))
	fields, err := res.Result()
	if err != nil {
		return domain.Ticket{}, fmt.Errorf("failed to get ticket: %w", err)
	}
	if len(fields) == 0 {
		return domain.Ticket{}, domain.ErrTicketNotFound
	}

	var t domain.Ticket
	if err := res.Scan(&t); err != nil {
		return domain.Ticket{}, fmt.Errorf("failed to decode ticket: %w", err)
	}
	return t, nil
}

// UpdateTitle replaces the title of an existing ticket under a per-ticket lock.
func (s *Store) UpdateTitle(ctx context.Context, id, title string) (_ domain.Ticket, err error) {
	if err := ctx.Err(); err != nil {
		return domain.Ticket{}, err
	}

	unlock, err := s.locker.Lock(ctx, "ticket:"+id, updateLockTTL)
	if err != nil {
		return domain.Ticket{}, err
	}
	defer func() {
		// Unlock must run even if ctx was cancelled mid-update.
		if uerr := unlock(context.WithoutCancel(ctx)); uerr != nil && err == nil {
			err = fmt.Errorf("failed to release ticket lock: %w", uerr)
		}
	}()

	t, err := s.load(ctx, id)
	if err != nil {
		return domain.Ticket{}, err
	}

	if err := s.client.HSet(ctx, s.key(id), "title", title).Err(); err != nil {
		return domain.Ticket{}, fmt.Errorf("failed to update ticket: %w", err)
	}
	t.Title = title
	return t, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
