package tui_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/aretw0/arbor/pkg/backlog"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(c backlog.Context, tags ...domain.Tag) domain.Snapshot[backlog.Context] {
	return domain.NewSnapshot(domain.NewTagSet(tags...), c, nil, nil, domain.StatusRunning)
}

func TestSnapshotMarkdown_ListStates(t *testing.T) {
	md := tui.SnapshotMarkdown(snapshot(backlog.Context{}, backlog.TagSidebarClosed))
	assert.Contains(t, md, "Not loaded")
	assert.NotContains(t, md, "## Details")

	md = tui.SnapshotMarkdown(snapshot(backlog.Context{}, backlog.TagListLoading, backlog.TagSidebarClosed))
	assert.Contains(t, md, "Loading...")

	md = tui.SnapshotMarkdown(snapshot(backlog.Context{Err: errors.New("boom")}, backlog.TagListError, backlog.TagSidebarClosed))
	assert.Contains(t, md, "**Error:** boom")

	c := backlog.Context{Tickets: domain.SampleTickets(), SelectedTicketID: "id2"}
	md = tui.SnapshotMarkdown(snapshot(c, backlog.TagListReady, backlog.TagDetailsLoading))
	assert.Contains(t, md, "- `id1` Ticket 1\n")
	assert.Contains(t, md, "- `id2` Ticket 2 **(selected)**")
	assert.Contains(t, md, "_Loading `id2`..._")
}

func TestSnapshotMarkdown_Details(t *testing.T) {
	ticket := domain.SampleTickets()[0]
	c := backlog.Context{
		Tickets:          domain.SampleTickets(),
		SelectedTicketID: ticket.ID,
		SelectedTicket:   &ticket,
		PendingUpdate:    &backlog.TitleUpdate{ID: ticket.ID, Title: "Renamed"},
		UpdateErr:        errors.New("conflict"),
	}

	md := tui.SnapshotMarkdown(snapshot(c, backlog.TagListReady, backlog.TagDetailsReady, backlog.TagTitleUpdating))
	assert.Contains(t, md, "### Ticket 1")
	assert.Contains(t, md, "Ticket 1 description...")
	assert.Contains(t, md, `Saving title "Renamed"`)
	assert.NotContains(t, md, "Update failed")

	md = tui.SnapshotMarkdown(snapshot(c, backlog.TagListReady, backlog.TagDetailsReady, backlog.TagUpdateError))
	assert.Contains(t, md, "**Update failed:** conflict")
}

func TestPlainAndBanner(t *testing.T) {
	out, err := tui.Plain("# title")
	require.NoError(t, err)
	assert.Equal(t, "# title", out)

	var buf bytes.Buffer
	tui.PrintBanner(&buf, "1.2.3")
	assert.Contains(t, buf.String(), "backlog coordinator 1.2.3")
}
