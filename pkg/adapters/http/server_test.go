package http_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/arbor"
	arborhttp "github.com/aretw0/arbor/pkg/adapters/http"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/backlog"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/observability"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/session"
	"github.com/neilotoole/slogt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	handler  http.Handler
	store    *memory.Store
	sessions *session.Manager
	exec     *arbor.ManualExecutor
}

func newFixture(t *testing.T, opts ...arborhttp.Option) *fixture {
	t.Helper()
	f := &fixture{
		store: memory.NewStore(),
		exec:  arbor.NewManualExecutor(),
	}
	f.sessions = session.NewManager(func(id string) (*arbor.Backlog, error) {
		return arbor.NewBacklog(f.store, arbor.WithName(id), arbor.WithExecutor(f.exec))
	})
	t.Cleanup(f.sessions.CloseAll)

	opts = append([]arborhttp.Option{
		arborhttp.WithSessions(f.sessions),
		arborhttp.WithLogger(slogt.New(t)),
	}, opts...)
	f.handler = arborhttp.NewHandler(f.store, opts...)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

// sessionView decodes only what the tests look at.
type sessionView struct {
	ID       string `json:"id"`
	Snapshot struct {
		Tags    []string `json:"tags"`
		Status  string   `json:"status"`
		Context struct {
			Tickets          []domain.Ticket `json:"tickets"`
			SelectedTicketID string          `json:"selectedTicketId"`
			SelectedTicket   *domain.Ticket  `json:"selectedTicket"`
			Error            string          `json:"error"`
		} `json:"context"`
	} `json:"snapshot"`
}

func decodeSession(t *testing.T, w *httptest.ResponseRecorder) sessionView {
	t.Helper()
	var v sessionView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestClient_Contract(t *testing.T) {
	srv := httptest.NewServer(arborhttp.NewHandler(memory.NewStore()))
	defer srv.Close()

	ports.RunTicketBackendContract(t, arborhttp.NewClient(srv.URL))
}

func TestTickets_Errors(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/tickets/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "ticket not found")

	w = f.do(t, http.MethodPatch, "/tickets/id1", arborhttp.UpdateTitleRequest{Title: " \n "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPatch, "/tickets/id1", arborhttp.UpdateTitleRequest{Title: "  Tidy\ttitle "})
	require.Equal(t, http.StatusOK, w.Code)
	var ticket domain.Ticket
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ticket))
	assert.Equal(t, "Tidy title", ticket.Title)
}

func TestSessions_Flow(t *testing.T) {
	f := newFixture(t)

	// 1. Create
	w := f.do(t, http.MethodPost, "/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeSession(t, w)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, []string{"sidebarClosed"}, created.Snapshot.Tags)
	assert.Equal(t, "running", created.Snapshot.Status)
	base := "/sessions/" + created.ID

	// 2. Load the list
	w = f.do(t, http.MethodPost, base+"/events", arborhttp.EventRequest{Type: "LOAD_LIST"})
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, decodeSession(t, w).Snapshot.Tags, "listLoading")

	f.exec.RunAll()

	w = f.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeSession(t, w)
	assert.Contains(t, got.Snapshot.Tags, "listReady")
	assert.Len(t, got.Snapshot.Context.Tickets, 3)

	// 3. Select a ticket
	w = f.do(t, http.MethodPost, base+"/events", arborhttp.EventRequest{
		Type:    "SELECT_TICKET",
		Payload: map[string]any{"id": "id2"},
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	f.exec.RunAll()

	got = decodeSession(t, f.do(t, http.MethodGet, base, nil))
	assert.Contains(t, got.Snapshot.Tags, "detailsReady")
	require.NotNil(t, got.Snapshot.Context.SelectedTicket)
	assert.Equal(t, "Ticket 2 description...", got.Snapshot.Context.SelectedTicket.Description)

	// 4. List sessions
	w = f.do(t, http.MethodGet, "/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var infos []session.Info
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, created.ID, infos[0].ID)

	// 5. Close
	w = f.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = f.do(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessions_EventErrors(t *testing.T) {
	f := newFixture(t)
	created := decodeSession(t, f.do(t, http.MethodPost, "/sessions", nil))
	base := "/sessions/" + created.ID

	tests := []struct {
		name string
		body any
		code int
	}{
		{"Unknown Type", arborhttp.EventRequest{Type: "EXPLODE"}, http.StatusBadRequest},
		{"Internal Type", arborhttp.EventRequest{Type: "internal.START_LOADING_LIST"}, http.StatusBadRequest},
		{"Unknown Field", arborhttp.EventRequest{Type: "SELECT_TICKET", Payload: map[string]any{"uid": "x"}}, http.StatusBadRequest},
		{"Malformed Body", "not an object", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, base+"/events", tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}

	w := f.do(t, http.MethodPost, "/sessions/missing/events", arborhttp.EventRequest{Type: "LOAD_LIST"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessions_UpdateTitleIsSanitized(t *testing.T) {
	f := newFixture(t)
	created := decodeSession(t, f.do(t, http.MethodPost, "/sessions", nil))
	base := "/sessions/" + created.ID

	f.do(t, http.MethodPost, base+"/events", arborhttp.EventRequest{Type: "LOAD_LIST"})
	f.exec.RunAll()

	w := f.do(t, http.MethodPost, base+"/events", arborhttp.EventRequest{
		Type:    "UPDATE_TITLE",
		Payload: map[string]any{"id": "id1", "title": "\x1b[31m Renamed\n"},
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	f.exec.RunAll()

	ticket, err := f.store.GetTicket(context.Background(), "id1")
	require.NoError(t, err)
	assert.Equal(t, "[31m Renamed", ticket.Title)
}

func TestSessions_Stream(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	sess, err := f.sessions.Create(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sessions/"+sess.ID+"/stream?watch=tags", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	next := func() arborhttp.StreamUpdate {
		t.Helper()
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if data, ok := strings.CutPrefix(line, "data: "); ok {
				var u struct {
					Diff domain.SnapshotDiff `json:"diff"`
				}
				require.NoError(t, json.Unmarshal([]byte(data), &u))
				return arborhttp.StreamUpdate{Diff: &u.Diff}
			}
		}
	}

	// 1. Initial snapshot
	first := next()
	assert.Equal(t, []domain.Tag{backlog.TagSidebarClosed}, first.Diff.AddedTags)

	// 2. A tag change is streamed
	sess.Send(backlog.LoadList{})
	update := next()
	assert.Equal(t, []domain.Tag{backlog.TagListLoading}, update.Diff.AddedTags)

	f.exec.RunAll()
	update = next()
	assert.Equal(t, []domain.Tag{backlog.TagListReady}, update.Diff.AddedTags)
	assert.Equal(t, []domain.Tag{backlog.TagListLoading}, update.Diff.RemovedTags)
}

func TestMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewMetrics(reg)
	require.NoError(t, err)
	metrics.Transitions.WithLabelValues("backlog", "LOAD_LIST").Inc()

	f := newFixture(t, arborhttp.WithMetrics(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	w := f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `arbor_transitions_total{event="LOAD_LIST",machine="backlog"} 1`)
}

func TestHealthAndInfo(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = f.do(t, http.MethodGet, "/info", nil)
	assert.Contains(t, w.Body.String(), arbor.Version)
}
