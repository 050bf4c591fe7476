package ports

import (
	"context"
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunTicketBackendContract runs a suite of tests to verify that a TicketBackend
// implementation adheres to the interface contract. The backend must be seeded with
// domain.SampleTickets() and is modified by the suite.
func RunTicketBackendContract(t *testing.T, backend TicketBackend) {
	ctx := context.Background()
	samples := domain.SampleTickets()

	t.Run("List Summaries", func(t *testing.T) {
		tickets, err := backend.ListTickets(ctx)
		require.NoError(t, err, "ListTickets should not return error")
		require.Len(t, tickets, len(samples))

		for i, want := range samples {
			assert.Equal(t, want.ID, tickets[i].ID, "tickets are ordered by id")
			assert.Equal(t, want.Title, tickets[i].Title)
			assert.Empty(t, tickets[i].Description, "list responses carry no description")
		}
	})

	t.Run("Get Details", func(t *testing.T) {
		ticket, err := backend.GetTicket(ctx, samples[0].ID)
		require.NoError(t, err)
		assert.Equal(t, samples[0], ticket)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := backend.GetTicket(ctx, "non-existent")
		assert.ErrorIs(t, err, domain.ErrTicketNotFound)
	})

	t.Run("Update Title", func(t *testing.T) {
		id := samples[1].ID

		// 1. Update
		updated, err := backend.UpdateTitle(ctx, id, "Renamed")
		require.NoError(t, err, "UpdateTitle should not return error")
		assert.Equal(t, id, updated.ID)
		assert.Equal(t, "Renamed", updated.Title)
		assert.Equal(t, samples[1].Description, updated.Description, "description is kept")

		// 2. Visible in details and list
		ticket, err := backend.GetTicket(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", ticket.Title)

		tickets, err := backend.ListTickets(ctx)
		require.NoError(t, err)
		assert.Contains(t, tickets, domain.Ticket{ID: id, Title: "Renamed"})
	})

	t.Run("Update Non-Existent", func(t *testing.T) {
		_, err := backend.UpdateTitle(ctx, "non-existent", "x")
		assert.ErrorIs(t, err, domain.ErrTicketNotFound)

		tickets, err := backend.ListTickets(ctx)
		require.NoError(t, err)
		assert.Len(t, tickets, len(samples), "failed update does not create tickets")
	})

	t.Run("Cancelled Context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := backend.ListTickets(cctx)
		assert.ErrorIs(t, err, context.Canceled)

		_, err = backend.GetTicket(cctx, samples[0].ID)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
