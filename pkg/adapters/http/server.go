package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/sanitize"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/session"
	"github.com/go-chi/chi/v5"
)

// Server exposes a ticket backend and, optionally, live backlog sessions over HTTP.
//
//	GET    /health
//	GET    /info
//	GET    /tickets
//	GET    /tickets/{id}
//	PATCH  /tickets/{id}            {"title": "..."}
//	POST   /sessions
//	GET    /sessions
//	GET    /sessions/{id}
//	POST   /sessions/{id}/events    {"type": "SELECT_TICKET", "payload": {"id": "id1"}}
//	GET    /sessions/{id}/stream    (SSE, ?watch=tags,value,status,context)
//	DELETE /sessions/{id}
//	GET    /metrics                 (when WithMetrics is given)
type Server struct {
	backend  ports.TicketBackend
	sessions *session.Manager
	metrics  http.Handler
	logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithSessions mounts the session routes.
func WithSessions(m *session.Manager) Option {
	return func(s *Server) {
		s.sessions = m
	}
}

// WithMetrics mounts h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger configures a logger for request failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates the HTTP handler for backend.
func NewHandler(backend ports.TicketBackend, opts ...Option) http.Handler {
	s := &Server{
		backend: backend,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)

	r.Route("/tickets", func(r chi.Router) {
		r.Get("/", s.ListTickets)
		r.Get("/{id}", s.GetTicket)
		r.Patch("/{id}", s.UpdateTicket)
	})

	if s.sessions != nil {
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.CreateSession)
			r.Get("/", s.ListSessions)
			r.Get("/{id}", s.GetSession)
			r.Post("/{id}/events", s.SendEvent)
			r.Get("/{id}/stream", s.StreamSession)
			r.Delete("/{id}", s.CloseSession)
		})
	}

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// UpdateTitleRequest is the body of PATCH /tickets/{id}.
type UpdateTitleRequest struct {
	Title string `json:"title"`
}

// EventRequest is the body of POST /sessions/{id}/events.
type EventRequest struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// SessionResponse describes a session and its current snapshot.
type SessionResponse struct {
	ID       string                `json:"id"`
	Snapshot arbor.BacklogSnapshot `json:"snapshot"`
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "arbor-http",
		"version": strings.TrimSpace(arbor.Version),
	})
}

// ListTickets handles the GET /tickets request.
func (s *Server) ListTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := s.backend.ListTickets(r.Context())
	if err != nil {
		s.writeError(w, r, "ListTickets", err)
		return
	}
	s.writeJSON(w, http.StatusOK, tickets)
}

// GetTicket handles the GET /tickets/{id} request.
func (s *Server) GetTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := s.backend.GetTicket(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, "GetTicket", err)
		return
	}
	s.writeJSON(w, http.StatusOK, ticket)
}

// UpdateTicket handles the PATCH /tickets/{id} request.
func (s *Server) UpdateTicket(w http.ResponseWriter, r *http.Request) {
	var body UpdateTitleRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, r, "UpdateTicket", fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return
	}

	title, err := sanitize.Title(body.Title)
	if err != nil {
		s.writeError(w, r, "UpdateTicket", err)
		return
	}
	if title == "" {
		s.writeError(w, r, "UpdateTicket", fmt.Errorf("%w: empty title", domain.ErrInvalidRequest))
		return
	}

	ticket, err := s.backend.UpdateTitle(r.Context(), chi.URLParam(r, "id"), title)
	if err != nil {
		s.writeError(w, r, "UpdateTicket", err)
		return
	}
	s.writeJSON(w, http.StatusOK, ticket)
}

// CreateSession handles the POST /sessions request.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Create(r.Context())
	if err != nil {
		s.writeError(w, r, "CreateSession", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, SessionResponse{ID: sess.ID, Snapshot: sess.Snapshot()})
}

// ListSessions handles the GET /sessions request.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.sessions.List())
}

// GetSession handles the GET /sessions/{id} request.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, "GetSession", err)
		return
	}
	s.writeJSON(w, http.StatusOK, SessionResponse{ID: sess.ID, Snapshot: sess.Snapshot()})
}

// SendEvent handles the POST /sessions/{id}/events request. The response carries the
// snapshot once the synchronous part of the send has settled; backend results arrive
// later and are observable through GET or the stream.
func (s *Server) SendEvent(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, "SendEvent", err)
		return
	}

	var body EventRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, r, "SendEvent", fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return
	}

	payload, err := sanitize.Payload(body.Payload)
	if err != nil {
		s.writeError(w, r, "SendEvent", err)
		return
	}
	if err := sess.SendRaw(body.Type, payload); err != nil {
		s.writeError(w, r, "SendEvent", err)
		return
	}

	s.logger.Debug("SendEvent: delivered", "session_id", sess.ID, "type", body.Type)
	s.writeJSON(w, http.StatusAccepted, SessionResponse{ID: sess.ID, Snapshot: sess.Snapshot()})
}

// CloseSession handles the DELETE /sessions/{id} request.
func (s *Server) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Close(chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, "CloseSession", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", "error", err, "path", r.URL.Path)
	} else {
		s.logger.Warn(op+" rejected", "error", err, "path", r.URL.Path)
	}
	s.writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrTicketNotFound), errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrUnknownEvent),
		errors.Is(err, sanitize.ErrInputTooLarge),
		errors.Is(err, sanitize.ErrInvalidUTF8):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrTooManySessions):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrNotRunning):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
