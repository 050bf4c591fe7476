package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/go-chi/chi/v5"
)

// streamBuffer is the number of pending updates a slow client may lag behind.
const streamBuffer = 16

// StreamUpdate is one SSE message: the diff from the previous snapshot and the new one.
type StreamUpdate struct {
	Diff     *domain.SnapshotDiff  `json:"diff"`
	Snapshot arbor.BacklogSnapshot `json:"snapshot"`
}

// StreamSession handles the GET /sessions/{id}/stream request (SSE).
// The first message carries the current snapshot; later ones are sent on every change
// that touches a watched field (tags, value, status, context; all when unset).
func (s *Server) StreamSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, "StreamSession", err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("StreamSession: Streaming not supported")
		return
	}

	watch := parseWatch(r.URL.Query().Get("watch"))

	updates := make(chan arbor.BacklogSnapshot, streamBuffer)
	unsubscribe := sess.Subscribe(func(snap arbor.BacklogSnapshot) {
		select {
		case updates <- snap:
		default:
			// Drop message if channel is full (slow client)
			s.logger.Warn("SSE: Client buffer full, dropping update", "session_id", sess.ID)
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	s.logger.Info("SSE: Subscribing to session updates", "session_id", sess.ID)

	prev := sess.Snapshot()
	if err := writeUpdate(w, StreamUpdate{Diff: domain.Diff(nil, prev), Snapshot: prev}); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE: Client disconnected", "session_id", sess.ID)
			return
		case next := <-updates:
			diff := domain.Diff(&prev, next)
			prev = next
			if diff.IsEmpty() || !watch.matches(diff) {
				continue
			}
			if err := writeUpdate(w, StreamUpdate{Diff: diff, Snapshot: next}); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeUpdate(w http.ResponseWriter, u StreamUpdate) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

type watchList map[string]bool

func parseWatch(raw string) watchList {
	if raw == "" {
		return nil
	}
	out := make(watchList)
	for _, field := range strings.Split(raw, ",") {
		out[strings.TrimSpace(field)] = true
	}
	return out
}

func (wl watchList) matches(d *domain.SnapshotDiff) bool {
	if len(wl) == 0 {
		return true
	}
	return (wl["tags"] && (len(d.AddedTags) > 0 || len(d.RemovedTags) > 0)) ||
		(wl["value"] && d.Value != nil) ||
		(wl["status"] && d.Status != nil) ||
		(wl["context"] && d.ContextChanged)
}
