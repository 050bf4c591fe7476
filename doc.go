/*
Package arbor is a hierarchical, parallel statechart interpreter with a ready-made ticket
backlog coordinator built on top of it.

# Concept

A chart (see package dsl) is a tree of compound, parallel and atomic states. The
interpreter keeps the active configuration, runs run-to-completion macrosteps for every
event it receives and starts asynchronous actors (backend calls) when their owning state
is entered. An actor's result comes back as a done or error event; if its owner was left
in the meantime, the result is discarded.

Views never inspect state paths. They send events and render from the tags and context
of a Snapshot.

# Backlog

NewBacklog wires the backlog chart to a ports.TicketBackend. Two parallel regions
cooperate through internal events: "core" owns the list loader, the details loader and
the title updater actors, while "view" carries the list and details tags.

	b, err := arbor.NewBacklog(memory.NewStore())
	if err != nil {
		log.Fatal(err)
	}
	if err := b.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer b.Stop()

	b.Send(backlog.LoadList{})
	snap, err := b.WaitForTag(ctx, backlog.TagListReady)

# Generic charts

New runs any dsl.Definition:

	svc := arbor.New(def, arbor.WithLogger(logger))

# Executors

Actors run on an Executor. The default is a process-wide bounded pool; NewPoolExecutor
creates a dedicated one and NewManualExecutor queues actors until the caller runs them,
which makes settlement order explicit in tests.

# Observability

WithLifecycleHooks receives state entries and exits, transitions and actor starts and
settlements. Package observability turns them into Prometheus metrics and slog records.
*/
package arbor
