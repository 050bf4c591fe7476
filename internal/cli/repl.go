package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/presentation/graph"
	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/aretw0/arbor/internal/sanitize"
	"github.com/aretw0/arbor/pkg/backlog"
	"github.com/aretw0/arbor/pkg/domain"
)

// DefaultWaitTimeout bounds the wait command when no timeout is given.
const DefaultWaitTimeout = 10 * time.Second

const replHelp = `Commands:
  load                    LOAD_LIST
  select <id>             SELECT_TICKET
  close                   CLOSE_DETAILS
  rename <id> <title...>  UPDATE_TITLE
  retry list|details      RETRY_LOAD_LIST / RETRY_LOAD_DETAILS
  send <TYPE> [json]      any event with a JSON payload
  show                    render the current view
  tags                    active tags
  state                   active leaf states
  chart [mermaid]         the chart definition
  wait <tag> [timeout]    block until the tag is active
  help                    this text
  quit                    leave
`

// REPL drives one backlog instance from line-oriented commands.
type REPL struct {
	backlog     *arbor.Backlog
	in          io.Reader
	out         *lockedWriter
	render      tui.Renderer
	logger      *slog.Logger
	waitTimeout time.Duration
	notify      bool
	prompt      string
}

// REPLOption configures a REPL.
type REPLOption func(*REPL)

// WithRenderer renders the show command's markdown, e.g. with tui.NewRenderer.
func WithRenderer(r tui.Renderer) REPLOption {
	return func(repl *REPL) {
		repl.render = r
	}
}

// WithREPLLogger configures a logger.
func WithREPLLogger(logger *slog.Logger) REPLOption {
	return func(repl *REPL) {
		repl.logger = logger
	}
}

// WithWaitTimeout changes the default timeout of the wait command.
func WithWaitTimeout(d time.Duration) REPLOption {
	return func(repl *REPL) {
		repl.waitTimeout = d
	}
}

// WithNotifications prints a line whenever the active tags change.
func WithNotifications(on bool) REPLOption {
	return func(repl *REPL) {
		repl.notify = on
	}
}

// WithPrompt sets the prompt printed before each command. Empty disables it.
func WithPrompt(p string) REPLOption {
	return func(repl *REPL) {
		repl.prompt = p
	}
}

// NewREPL creates a REPL over a started backlog.
func NewREPL(b *arbor.Backlog, in io.Reader, out io.Writer, opts ...REPLOption) *REPL {
	r := &REPL{
		backlog:     b,
		in:          in,
		out:         &lockedWriter{w: out},
		render:      tui.Plain,
		logger:      logging.NewNop(),
		waitTimeout: DefaultWaitTimeout,
		notify:      true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run reads commands until quit, end of input or ctx cancellation.
func (r *REPL) Run(ctx context.Context) error {
	if r.notify {
		defer r.watchTags()()
	}

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(r.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		r.printPrompt()
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			quit, err := r.Exec(ctx, line)
			if err != nil {
				r.out.Printf("error: %v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

func (r *REPL) printPrompt() {
	if r.prompt != "" {
		r.out.Printf("%s", r.prompt)
	}
}

// watchTags prints tag changes as they happen, including those caused by actor
// settlement between commands. It returns the unsubscribe function.
func (r *REPL) watchTags() func() {
	var mu sync.Mutex
	prev := r.backlog.Snapshot()
	return r.backlog.Subscribe(func(next arbor.BacklogSnapshot) {
		mu.Lock()
		diff := domain.Diff(&prev, next)
		prev = next
		mu.Unlock()
		if len(diff.AddedTags) == 0 && len(diff.RemovedTags) == 0 {
			return
		}
		var parts []string
		for _, t := range diff.AddedTags {
			parts = append(parts, "+"+string(t))
		}
		for _, t := range diff.RemovedTags {
			parts = append(parts, "-"+string(t))
		}
		r.out.Printf("~ %s\n", strings.Join(parts, " "))
	})
}

// Exec runs one command line. It reports whether the REPL should stop.
func (r *REPL) Exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	r.logger.Debug("REPL command", "cmd", cmd, "args", len(args))

	switch cmd {
	case "quit", "exit":
		return true, nil
	case "help", "?":
		r.out.Printf("%s", replHelp)
	case "load":
		r.backlog.Send(backlog.LoadList{})
	case "select":
		if len(args) != 1 {
			return false, errors.New("usage: select <id>")
		}
		r.backlog.Send(backlog.SelectTicket{ID: args[0]})
	case "close":
		r.backlog.Send(backlog.CloseDetails{})
	case "rename":
		if len(args) < 2 {
			return false, errors.New("usage: rename <id> <title...>")
		}
		title, err := sanitize.Title(strings.Join(args[1:], " "))
		if err != nil {
			return false, err
		}
		r.backlog.Send(backlog.UpdateTitle{ID: args[0], Title: title})
	case "retry":
		if len(args) != 1 {
			return false, errors.New("usage: retry list|details")
		}
		switch args[0] {
		case "list":
			r.backlog.Send(backlog.RetryLoadList{})
		case "details":
			r.backlog.Send(backlog.RetryLoadDetails{})
		default:
			return false, fmt.Errorf("unknown retry target %q", args[0])
		}
	case "send":
		return false, r.send(line, args)
	case "show":
		return false, r.show()
	case "tags":
		r.out.Printf("%s\n", joinTags(r.backlog.Snapshot().Tags.Sorted()))
	case "state":
		snap := r.backlog.Snapshot()
		r.out.Printf("%s (%s)\n", strings.Join(snap.Value, ", "), snap.Status)
	case "chart":
		if len(args) > 0 && args[0] == "mermaid" {
			overlay := &graph.Overlay{Active: r.backlog.Snapshot().Value}
			r.out.Printf("%s", graph.GenerateMermaid(r.backlog.Definition(), overlay))
		} else {
			r.out.Printf("%s", r.backlog.Definition().Describe())
		}
	case "wait":
		return false, r.wait(ctx, args)
	default:
		return false, fmt.Errorf("unknown command %q (type help)", cmd)
	}
	return false, nil
}

func (r *REPL) send(line string, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: send <TYPE> [json]")
	}
	// The payload is everything after the type, so JSON may contain spaces.
	rest := strings.TrimSpace(line)
	rest = strings.TrimSpace(rest[strings.IndexFunc(rest, unicode.IsSpace):])
	rest = strings.TrimPrefix(rest, args[0])
	var payload map[string]any
	if raw := strings.TrimSpace(rest); raw != "" {
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return fmt.Errorf("%w: payload: %v", domain.ErrInvalidRequest, err)
		}
	}
	payload, err := sanitize.Payload(payload)
	if err != nil {
		return err
	}
	return r.backlog.SendRaw(strings.ToUpper(args[0]), payload)
}

func (r *REPL) show() error {
	out, err := r.render(tui.SnapshotMarkdown(r.backlog.Snapshot()))
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	r.out.Printf("%s", out)
	return nil
}

func (r *REPL) wait(ctx context.Context, args []string) error {
	if len(args) == 0 || len(args) > 2 {
		return errors.New("usage: wait <tag> [timeout]")
	}
	timeout := r.waitTimeout
	if len(args) == 2 {
		d, err := time.ParseDuration(args[1])
		if err != nil {
			return fmt.Errorf("invalid timeout: %w", err)
		}
		timeout = d
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	snap, err := r.backlog.WaitForTag(waitCtx, domain.Tag(args[0]))
	if err != nil {
		return fmt.Errorf("waiting for %s: %w", args[0], err)
	}
	r.out.Printf("ok %s: %s\n", args[0], joinTags(snap.Tags.Sorted()))
	return nil
}

func joinTags(tags []domain.Tag) string {
	s := make([]string, len(tags))
	for i, t := range tags {
		s[i] = string(t)
	}
	return strings.Join(s, " ")
}

// lockedWriter serialises command output with asynchronous notifications.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, format, args...)
}
