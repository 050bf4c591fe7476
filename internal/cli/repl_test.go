package cli_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/backlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is written by notification callbacks and read by the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func startBacklog(t *testing.T, store *memory.Store) *arbor.Backlog {
	t.Helper()
	b, err := arbor.NewBacklog(store, arbor.WithExecutor(arbor.NewPoolExecutor(4)))
	require.NoError(t, err)
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(b.Stop)
	return b
}

func runScript(t *testing.T, b *arbor.Backlog, script string, opts ...cli.REPLOption) string {
	t.Helper()
	out := &syncBuffer{}
	repl := cli.NewREPL(b, strings.NewReader(script), out, opts...)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, repl.Run(ctx))
	return out.String()
}

func TestREPL_LoadSelectShow(t *testing.T) {
	store := memory.NewStore()
	b := startBacklog(t, store)

	out := runScript(t, b, strings.Join([]string{
		"load",
		"wait listReady 2s",
		"select id2",
		"wait detailsReady 2s",
		"show",
		"tags",
		"quit",
		"load", // never reached
	}, "\n"))

	assert.Contains(t, out, "ok listReady")
	assert.Contains(t, out, "ok detailsReady")
	assert.Contains(t, out, "### Ticket 2")
	assert.Contains(t, out, "- `id2` Ticket 2 **(selected)**")
	assert.Contains(t, out, "detailsReady listReady\n")
	assert.Contains(t, out, "+listLoading")

	snap := b.Snapshot()
	assert.True(t, snap.HasTag(backlog.TagDetailsReady))
	assert.Equal(t, "id2", snap.Context.SelectedTicketID)
}

func TestREPL_RenameSanitizesTitle(t *testing.T) {
	store := memory.NewStore()
	b := startBacklog(t, store)

	runScript(t, b, "load\nwait listReady 2s\nrename id1   Fresh\tname  \n", cli.WithNotifications(false))

	require.Eventually(t, func() bool {
		ticket, err := store.GetTicket(context.Background(), "id1")
		return err == nil && ticket.Title == "Fresh name"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestREPL_FailureAndRetry(t *testing.T) {
	store := memory.NewStore()
	store.FailNext(memory.OpList, errors.New("backend down"))
	b := startBacklog(t, store)

	out := runScript(t, b, strings.Join([]string{
		"load",
		"wait listError 2s",
		"show",
		"retry list",
		"wait listReady 2s",
	}, "\n"), cli.WithNotifications(false))

	assert.Contains(t, out, "**Error:**")
	assert.Contains(t, out, "backend down")
	assert.Contains(t, out, "ok listReady")
}

func TestREPL_SendRawEvents(t *testing.T) {
	store := memory.NewStore()
	b := startBacklog(t, store)

	out := runScript(t, b, strings.Join([]string{
		`send LOAD_LIST`,
		`wait listReady 2s`,
		`send select_ticket {"id": "id3"}`,
		`wait detailsReady 2s`,
		`send NOPE`,
		`send SELECT_TICKET {"id": `,
		`send SELECT_TICKET {"id": "id1", "extra": 1}`,
	}, "\n"), cli.WithNotifications(false))

	assert.Contains(t, out, "ok detailsReady")
	assert.Contains(t, out, `error: unknown event: "NOPE"`)
	assert.Contains(t, out, "error: invalid request: payload")
	assert.Equal(t, 3, strings.Count(out, "error:"))
	assert.Equal(t, "id3", b.Snapshot().Context.SelectedTicketID)
}

func TestREPL_UsageAndUnknown(t *testing.T) {
	b := startBacklog(t, memory.NewStore())

	out := runScript(t, b, strings.Join([]string{
		"",
		"select",
		"retry everything",
		"frobnicate",
		"wait",
		"wait listReady soon",
		"wait listReady 20ms",
		"help",
		"state",
	}, "\n"), cli.WithNotifications(false))

	assert.Contains(t, out, "usage: select <id>")
	assert.Contains(t, out, `unknown retry target "everything"`)
	assert.Contains(t, out, `unknown command "frobnicate"`)
	assert.Contains(t, out, "usage: wait <tag> [timeout]")
	assert.Contains(t, out, "invalid timeout")
	assert.Contains(t, out, "context deadline exceeded")
	assert.Contains(t, out, "rename <id> <title...>")
	assert.Contains(t, out, "core.listLoader.idle")
	assert.Contains(t, out, "(running)")
}

func TestREPL_Chart(t *testing.T) {
	b := startBacklog(t, memory.NewStore())

	out := runScript(t, b, "chart\nchart mermaid\n", cli.WithNotifications(false))

	assert.Contains(t, out, "backlog (parallel)")
	assert.Contains(t, out, "invoke loadList")
	assert.Contains(t, out, "stateDiagram-v2")
	assert.Contains(t, out, "classDef active")
}

func TestREPL_ContextCancel(t *testing.T) {
	b := startBacklog(t, memory.NewStore())

	// 1. A reader that never produces input
	r, w := io.Pipe()
	defer w.Close()

	repl := cli.NewREPL(b, r, &syncBuffer{}, cli.WithPrompt("> "))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- repl.Run(ctx) }()

	// 2. Cancellation ends the loop without an error
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("REPL did not stop on cancellation")
	}
}
