package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/backlog"
)

// SnapshotMarkdown renders a backlog snapshot the way a view would: the list region,
// then the details sidebar, each driven only by tags and context.
func SnapshotMarkdown(snap arbor.BacklogSnapshot) string {
	var sb strings.Builder
	c := snap.Context

	sb.WriteString("## Tickets\n\n")
	switch {
	case snap.HasTag(backlog.TagListLoading):
		sb.WriteString("_Loading..._\n\n")
	case snap.HasTag(backlog.TagListError):
		fmt.Fprintf(&sb, "**Error:** %s\n\n", errText(c.Err))
	case snap.HasTag(backlog.TagListReady):
		if len(c.Tickets) == 0 {
			sb.WriteString("_No tickets._\n\n")
		}
		for _, t := range c.Tickets {
			marker := ""
			if t.ID == c.SelectedTicketID {
				marker = " **(selected)**"
			}
			fmt.Fprintf(&sb, "- `%s` %s%s\n", t.ID, t.Title, marker)
		}
		sb.WriteString("\n")
	default:
		sb.WriteString("_Not loaded. Type `load`._\n\n")
	}

	if snap.HasTag(backlog.TagSidebarClosed) {
		return sb.String()
	}

	sb.WriteString("## Details\n\n")
	switch {
	case snap.HasTag(backlog.TagDetailsLoading):
		fmt.Fprintf(&sb, "_Loading `%s`..._\n\n", c.SelectedTicketID)
	case snap.HasTag(backlog.TagDetailsError):
		fmt.Fprintf(&sb, "**Error:** %s\n\n", errText(c.Err))
	case snap.HasTag(backlog.TagDetailsReady) && c.SelectedTicket != nil:
		fmt.Fprintf(&sb, "### %s\n\n%s\n\n", c.SelectedTicket.Title, c.SelectedTicket.Description)
	}

	if snap.HasTag(backlog.TagTitleUpdating) && c.PendingUpdate != nil {
		fmt.Fprintf(&sb, "_Saving title %q..._\n\n", c.PendingUpdate.Title)
	}
	if snap.HasTag(backlog.TagUpdateError) {
		fmt.Fprintf(&sb, "**Update failed:** %s\n\n", errText(c.UpdateErr))
	}
	return sb.String()
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
