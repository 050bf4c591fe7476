package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/presentation/graph"
	"github.com/aretw0/arbor/internal/sanitize"
	"github.com/aretw0/arbor/pkg/backlog"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
	"github.com/aretw0/arbor/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Resource URIs.
const (
	ChartURI        = "arbor://chart"
	ChartMermaidURI = "arbor://chart/mermaid"
)

// defaultWaitTimeout bounds get_snapshot when wait_for_tag is set without a timeout.
const defaultWaitTimeout = 10 * time.Second

// SnapshotResponse is the structured result of every session tool.
type SnapshotResponse struct {
	SessionID string                `json:"session_id" jsonschema_description:"The session the snapshot belongs to"`
	Snapshot  arbor.BacklogSnapshot `json:"snapshot" jsonschema_description:"Tags, context, active states and status"`
}

// SendEventArgs are the arguments of send_event.
type SendEventArgs struct {
	SessionID string         `json:"session_id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// GetSnapshotArgs are the arguments of get_snapshot.
type GetSnapshotArgs struct {
	SessionID  string `json:"session_id"`
	WaitForTag string `json:"wait_for_tag,omitempty"`
	TimeoutMs  int    `json:"timeout_ms,omitempty"`
}

// Server exposes backlog sessions as an MCP server.
type Server struct {
	sessions  *session.Manager
	chart     *dsl.Definition[backlog.Context]
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance. chart is served as a resource.
func NewServer(sessions *session.Manager, chart *dsl.Definition[backlog.Context], opts ...Option) *Server {
	s := &Server{
		sessions:  sessions,
		chart:     chart,
		mcpServer: server.NewMCPServer("arbor-mcp", strings.TrimSpace(arbor.Version)),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server, e.g. for in-process transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, stopping MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func eventTypeNames() string {
	types := backlog.EventTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

func (s *Server) registerTools() {
	// TOOL: create_session
	s.mcpServer.AddTool(mcp.NewTool("create_session",
		mcp.WithDescription("Start a new backlog session: list idle, details sidebar closed."),
		mcp.WithOutputSchema[SnapshotResponse](),
	), mcp.NewStructuredToolHandler(s.handleCreateSession))

	// TOOL: send_event
	s.mcpServer.AddTool(mcp.NewTool("send_event",
		mcp.WithDescription("Send a view event to a backlog session and return the resulting snapshot. "+
			"Backend calls complete asynchronously; poll get_snapshot (optionally with wait_for_tag) for their outcome."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID from create_session")),
		mcp.WithString("type", mcp.Required(), mcp.Description("Event type, one of: "+eventTypeNames())),
		mcp.WithObject("payload", mcp.Description(`Event fields, e.g. {"id": "id1"} for SELECT_TICKET or {"id": "id1", "title": "New"} for UPDATE_TITLE`)),
		mcp.WithOutputSchema[SnapshotResponse](),
	), mcp.NewStructuredToolHandler(s.handleSendEvent))

	// TOOL: get_snapshot
	s.mcpServer.AddTool(mcp.NewTool("get_snapshot",
		mcp.WithDescription("Read the current snapshot of a backlog session, optionally waiting for a tag such as listReady."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID from create_session")),
		mcp.WithString("wait_for_tag", mcp.Description("Block until this tag is active")),
		mcp.WithNumber("timeout_ms", mcp.Description("Maximum wait in milliseconds (default 10000)")),
		mcp.WithOutputSchema[SnapshotResponse](),
	), mcp.NewStructuredToolHandler(s.handleGetSnapshot))

	// TOOL: close_session
	s.mcpServer.AddTool(mcp.NewTool("close_session",
		mcp.WithDescription("Stop a backlog session, cancelling any backend call in flight."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID from create_session")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := request.GetString("session_id", "")
		if err := s.sessions.Close(id); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("closed " + id), nil
	})
}

func (s *Server) handleCreateSession(ctx context.Context, _ mcp.CallToolRequest, _ struct{}) (SnapshotResponse, error) {
	sess, err := s.sessions.Create(ctx)
	if err != nil {
		return SnapshotResponse{}, err
	}
	return SnapshotResponse{SessionID: sess.ID, Snapshot: sess.Snapshot()}, nil
}

func (s *Server) handleSendEvent(ctx context.Context, _ mcp.CallToolRequest, args SendEventArgs) (SnapshotResponse, error) {
	sess, err := s.sessions.Get(args.SessionID)
	if err != nil {
		return SnapshotResponse{}, err
	}

	payload, err := sanitize.Payload(args.Payload)
	if err != nil {
		s.logger.Warn("MCP send_event: Input rejected", "error", err)
		return SnapshotResponse{}, fmt.Errorf("input rejected: %w", err)
	}
	if err := sess.SendRaw(args.Type, payload); err != nil {
		return SnapshotResponse{}, err
	}
	return SnapshotResponse{SessionID: sess.ID, Snapshot: sess.Snapshot()}, nil
}

func (s *Server) handleGetSnapshot(ctx context.Context, _ mcp.CallToolRequest, args GetSnapshotArgs) (SnapshotResponse, error) {
	sess, err := s.sessions.Get(args.SessionID)
	if err != nil {
		return SnapshotResponse{}, err
	}
	if args.WaitForTag == "" {
		return SnapshotResponse{SessionID: sess.ID, Snapshot: sess.Snapshot()}, nil
	}

	timeout := defaultWaitTimeout
	if args.TimeoutMs > 0 {
		timeout = time.Duration(args.TimeoutMs) * time.Millisecond
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	snap, err := sess.WaitForTag(waitCtx, domain.Tag(args.WaitForTag))
	if err != nil {
		return SnapshotResponse{}, fmt.Errorf("waiting for tag %q: %w", args.WaitForTag, err)
	}
	return SnapshotResponse{SessionID: sess.ID, Snapshot: snap}, nil
}

func (s *Server) registerResources() {
	// EXPOSE: arbor://chart
	s.mcpServer.AddResource(mcp.NewResource(ChartURI, "Backlog Chart",
		mcp.WithResourceDescription("The backlog statechart as an indented tree of states and transitions"),
		mcp.WithMIMEType("text/plain"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      ChartURI,
				MIMEType: "text/plain",
				Text:     s.chart.Describe(),
			},
		}, nil
	})

	// EXPOSE: arbor://chart/mermaid
	s.mcpServer.AddResource(mcp.NewResource(ChartMermaidURI, "Backlog Chart (Mermaid)",
		mcp.WithResourceDescription("The backlog statechart as a Mermaid state diagram"),
		mcp.WithMIMEType("text/vnd.mermaid"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      ChartMermaidURI,
				MIMEType: "text/vnd.mermaid",
				Text:     graph.GenerateMermaid(s.chart, nil),
			},
		}, nil
	})
}
