package backlog

import (
	"encoding/json"
	"slices"

	"github.com/aretw0/arbor/pkg/domain"
)

// Tags surfaced for rendering decisions.
const (
	TagListLoading    domain.Tag = "listLoading"
	TagListReady      domain.Tag = "listReady"
	TagListError      domain.Tag = "listError"
	TagDetailsLoading domain.Tag = "detailsLoading"
	TagDetailsReady   domain.Tag = "detailsReady"
	TagDetailsError   domain.Tag = "detailsError"
	TagSidebarClosed  domain.Tag = "sidebarClosed"
	TagTitleUpdating  domain.Tag = "titleUpdating"
	TagUpdateError    domain.Tag = "updateError"
)

// TitleUpdate is the title change in flight.
type TitleUpdate struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Context is the store shared by every region of the backlog machine.
type Context struct {
	Tickets          []domain.Ticket
	SelectedTicketID string
	SelectedTicket   *domain.Ticket
	PendingUpdate    *TitleUpdate

	// Err is the latest list or details failure. It is replaced, never accumulated.
	Err error
	// UpdateErr is the latest title update failure.
	UpdateErr error
}

// Clone implements dsl.Cloner.
func (c Context) Clone() Context {
	c.Tickets = slices.Clone(c.Tickets)
	if c.SelectedTicket != nil {
		t := *c.SelectedTicket
		c.SelectedTicket = &t
	}
	if c.PendingUpdate != nil {
		u := *c.PendingUpdate
		c.PendingUpdate = &u
	}
	return c
}

// Ticket returns the list entry with the given id.
func (c Context) Ticket(id string) (domain.Ticket, bool) {
	for _, t := range c.Tickets {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Ticket{}, false
}

type contextJSON struct {
	Tickets          []domain.Ticket `json:"tickets"`
	SelectedTicketID string          `json:"selectedTicketId,omitempty"`
	SelectedTicket   *domain.Ticket  `json:"selectedTicket,omitempty"`
	PendingUpdate    *TitleUpdate    `json:"pendingUpdate,omitempty"`
	Error            string          `json:"error,omitempty"`
	UpdateError      string          `json:"updateError,omitempty"`
}

// MarshalJSON renders errors as their messages.
func (c Context) MarshalJSON() ([]byte, error) {
	out := contextJSON{
		Tickets:          c.Tickets,
		SelectedTicketID: c.SelectedTicketID,
		SelectedTicket:   c.SelectedTicket,
		PendingUpdate:    c.PendingUpdate,
	}
	if out.Tickets == nil {
		out.Tickets = []domain.Ticket{}
	}
	if c.Err != nil {
		out.Error = c.Err.Error()
	}
	if c.UpdateErr != nil {
		out.UpdateError = c.UpdateErr.Error()
	}
	return json.Marshal(out)
}
