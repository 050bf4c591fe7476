package ports

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

// TicketBackend is the collaborator the backlog machine invokes. Calls may be slow and
// must honour ctx cancellation; the machine cancels calls whose result is no longer wanted.
type TicketBackend interface {
	// ListTickets returns ticket summaries (no description), ordered by id.
	ListTickets(ctx context.Context) ([]domain.Ticket, error)

	// GetTicket returns the full ticket.
	// Returns domain.ErrTicketNotFound if the id is unknown.
	GetTicket(ctx context.Context, id string) (domain.Ticket, error)

	// UpdateTitle replaces the title and returns the updated ticket.
	// Returns domain.ErrTicketNotFound if the id is unknown.
	UpdateTitle(ctx context.Context, id, title string) (domain.Ticket, error)
}
