package backlog

import (
	"context"
	"log/slog"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
	"github.com/aretw0/arbor/pkg/ports"
)

// MachineID names the backlog chart and its root node.
const MachineID = "backlog"

// Actor ids. Failures are wrapped in a domain.OperationError whose Op is the actor id.
const (
	ActorLoadList    = "loadList"
	ActorLoadDetails = "loadDetails"
	ActorUpdateTitle = "updateTitle"
)

type (
	action     = dsl.Action[Context]
	transition = dsl.Transition[Context]
)

var (
	to     = dsl.To[Context]
	stay   = dsl.Stay[Context]
	assign = dsl.Assign[Context]
)

func raise(ev internal) action {
	return dsl.Raise[Context](ev)
}

type options struct {
	policy Policy
	logger *slog.Logger
}

// Option configures the backlog definition.
type Option func(*options)

// WithPolicy resolves the close and update failure behaviours.
func WithPolicy(p Policy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithLogger sets the logger used by actions that only log.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// NewDefinition builds the backlog chart bound to a ticket backend.
func NewDefinition(backend ports.TicketBackend, opts ...Option) (*dsl.Definition[Context], error) {
	o := options{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	b := dsl.New[Context](MachineID)
	root := b.Root().Parallel()

	core := root.State("core").Parallel()
	buildListLoader(core.State("listLoader"), backend)
	buildDetailLoader(core.State("detailLoader"), backend)
	buildTitleUpdater(core.State("titleUpdater"), backend, o)

	view := root.State("view").Parallel()
	buildListView(view.State("list"))
	buildDetailsView(view.State("details"), o.policy)

	return b.Build()
}

// buildListLoader invokes ListTickets each time the list view starts loading.
func buildListLoader(n *dsl.NodeBuilder[Context], backend ports.TicketBackend) {
	n.Initial("idle").
		On(startLoadingList.EventType(), to(".loading"))

	n.State("idle")
	n.State("loading").Invoke(dsl.Invocation[Context]{
		ActorID: ActorLoadList,
		Start: func(ctx context.Context, _ Context, _ domain.Event) (any, error) {
			return backend.ListTickets(ctx)
		},
		OnDone: []transition{to("idle",
			assign(func(c *Context, ev domain.Event) {
				if done, ok := ev.(domain.DoneEvent); ok {
					c.Tickets, _ = done.Data.([]domain.Ticket)
				}
			}),
			raise(listLoadSuccess),
		)},
		OnError: []transition{to("idle",
			assign(setErr),
			raise(listLoadError),
		)},
	})
}

// buildDetailLoader invokes GetTicket for the selected ticket. Restarting it while a call
// is in flight supersedes that call.
func buildDetailLoader(n *dsl.NodeBuilder[Context], backend ports.TicketBackend) {
	n.Initial("idle").
		On(startLoadingDetails.EventType(), to(".loading")).
		On(stopLoadingDetails.EventType(), to(".idle"))

	n.State("idle")
	n.State("loading").Invoke(dsl.Invocation[Context]{
		ActorID: ActorLoadDetails,
		Start: func(ctx context.Context, c Context, _ domain.Event) (any, error) {
			if c.SelectedTicketID == "" {
				return nil, domain.ErrInvalidRequest
			}
			return backend.GetTicket(ctx, c.SelectedTicketID)
		},
		OnDone: []transition{to("idle",
			assign(func(c *Context, ev domain.Event) {
				done, _ := ev.(domain.DoneEvent)
				if t, ok := done.Data.(domain.Ticket); ok {
					c.SelectedTicket = &t
				}
			}),
			raise(detailsLoadSuccess),
		)},
		OnError: []transition{to("idle",
			assign(setErr),
			raise(detailsLoadError),
		)},
	})
}

// buildTitleUpdater invokes UpdateTitle. A new request while one is in flight restarts
// the call with the latest title.
func buildTitleUpdater(n *dsl.NodeBuilder[Context], backend ports.TicketBackend, o options) {
	fail := updateFailure(o)

	n.Initial("idle").On(EventUpdateTitle,
		to(fail.target, fail.actions...).If(func(_ Context, ev domain.Event) bool {
			u, ok := ev.(UpdateTitle)
			return !ok || u.ID == "" || u.Title == ""
		}),
		to(".updating", assign(func(c *Context, ev domain.Event) {
			u, _ := ev.(UpdateTitle)
			c.PendingUpdate = &TitleUpdate{ID: u.ID, Title: u.Title}
		})),
	)

	n.State("idle")
	n.State("failed").Tags(TagUpdateError)
	n.State("updating").
		Tags(TagTitleUpdating).
		Invoke(dsl.Invocation[Context]{
			ActorID: ActorUpdateTitle,
			Start: func(ctx context.Context, c Context, _ domain.Event) (any, error) {
				if c.PendingUpdate == nil {
					return nil, domain.ErrInvalidRequest
				}
				return backend.UpdateTitle(ctx, c.PendingUpdate.ID, c.PendingUpdate.Title)
			},
			OnDone: []transition{to("idle", assign(applyTitle))},
			OnError: []transition{
				to(fail.target[1:], fail.actions...),
			},
		})
}

type failure struct {
	target  string
	actions []action
}

// updateFailure resolves where a failed update goes, relative to the updater region.
func updateFailure(o options) failure {
	clearPending := assign(func(c *Context, _ domain.Event) { c.PendingUpdate = nil })

	switch o.policy.UpdateError {
	case UpdateErrorToDetails:
		return failure{
			target: ".idle",
			actions: []action{
				clearPending,
				dsl.RaiseFunc("raise "+string(eventUpdateRejected), func(_ Context, ev domain.Event) domain.Event {
					return updateRejected{Err: updateErr(ev)}
				}),
			},
		}
	case UpdateErrorIgnore:
		logger := o.logger
		return failure{
			target: ".idle",
			actions: []action{
				clearPending,
				assign(func(_ *Context, ev domain.Event) {
					logger.Warn("title update failed", "error", updateErr(ev))
				}).Named("log"),
			},
		}
	default:
		return failure{
			target: ".failed",
			actions: []action{
				clearPending,
				assign(func(c *Context, ev domain.Event) { c.UpdateErr = updateErr(ev) }),
			},
		}
	}
}

// updateErr extracts the failure of an update from either an actor error or a rejected
// request.
func updateErr(ev domain.Event) error {
	if e, ok := ev.(domain.ErrorEvent); ok {
		return e.Err
	}
	return domain.NewOperationError(ActorUpdateTitle, domain.ErrInvalidRequest)
}

func applyTitle(c *Context, ev domain.Event) {
	done, _ := ev.(domain.DoneEvent)
	t, ok := done.Data.(domain.Ticket)
	if !ok {
		return
	}
	for i := range c.Tickets {
		if c.Tickets[i].ID == t.ID {
			c.Tickets[i].Title = t.Title
		}
	}
	if c.SelectedTicket != nil && c.SelectedTicket.ID == t.ID {
		c.SelectedTicket.Title = t.Title
	}
	c.PendingUpdate = nil
	c.UpdateErr = nil
}

func setErr(c *Context, ev domain.Event) {
	if e, ok := ev.(domain.ErrorEvent); ok {
		c.Err = e.Err
	}
}

// buildListView carries the list tags.
func buildListView(n *dsl.NodeBuilder[Context]) {
	n.Initial("idle")

	n.State("idle").
		On(EventLoadList, to("loading"))

	n.State("loading").
		Tags(TagListLoading).
		Entry(raise(startLoadingList)).
		On(listLoadSuccess.EventType(), to("ready")).
		On(listLoadError.EventType(), to("error"))

	n.State("ready").
		Tags(TagListReady).
		On(EventLoadList, to("loading"))

	n.State("error").
		Tags(TagListError).
		On(EventRetryLoadList, to("loading")).
		On(EventLoadList, to("loading"))
}

// buildDetailsView carries the details tags and the selection.
func buildDetailsView(n *dsl.NodeBuilder[Context], policy Policy) {
	invalidSelection := assign(func(c *Context, _ domain.Event) {
		c.Err = domain.NewOperationError(ActorLoadDetails, domain.ErrInvalidRequest)
	})

	n.Initial("closed").
		On(EventSelectTicket,
			to(".error",
				assign(func(c *Context, _ domain.Event) {
					c.SelectedTicketID = ""
					c.SelectedTicket = nil
				}),
				invalidSelection,
				raise(stopLoadingDetails),
			).If(func(_ Context, ev domain.Event) bool {
				sel, _ := ev.(SelectTicket)
				return sel.ID == ""
			}),
			to(".loading", assign(func(c *Context, ev domain.Event) {
				sel, _ := ev.(SelectTicket)
				id := sel.ID
				if c.SelectedTicketID != id || c.SelectedTicket == nil || c.SelectedTicket.ID != id {
					c.SelectedTicket = nil
				}
				c.SelectedTicketID = id
			})),
		).
		On(EventCloseDetails, to(".closed", closeSelection(policy), raise(stopLoadingDetails))).
		On(detailsLoadError.EventType(), to(".error"))

	n.State("closed").Tags(TagSidebarClosed)

	n.State("loading").
		Tags(TagDetailsLoading).
		Entry(raise(startLoadingDetails)).
		On(detailsLoadSuccess.EventType(), to("ready"))

	// A rejected update only surfaces on a settled sidebar; while closed or loading
	// another ticket it is dropped.
	n.State("ready").
		Tags(TagDetailsReady).
		On(eventUpdateRejected, to("error", assign(func(c *Context, ev domain.Event) {
			if r, ok := ev.(updateRejected); ok {
				c.Err = r.Err
			}
		})))

	n.State("error").
		Tags(TagDetailsError).
		On(EventRetryLoadDetails,
			stay(invalidSelection).If(func(c Context, _ domain.Event) bool { return c.SelectedTicketID == "" }),
			to("loading"),
		)
}

func closeSelection(policy Policy) action {
	if policy.Close == RetainSelection {
		return assign(func(*Context, domain.Event) {}).Named("retain selection")
	}
	return assign(func(c *Context, _ domain.Event) {
		c.SelectedTicketID = ""
		c.SelectedTicket = nil
	}).Named("clear selection")
}
