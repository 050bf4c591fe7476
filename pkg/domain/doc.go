/*
Package domain contains the core domain models of the arbor statechart engine.

It defines the vocabulary shared by the definition builder, the interpreter and every
adapter: state kinds, events, tags, snapshots, lifecycle hooks and the error taxonomy.
The package is kept pure and free of I/O, following Hexagonal Architecture principles.

# Key Entities

  - Event: anything with an EventType. DoneEvent and ErrorEvent are synthesized by the
    interpreter when an invoked actor settles.
  - Tag / TagSet: opaque labels attached to state nodes, surfaced to the view layer.
  - Snapshot: the immutable {tags, context, value} view published after every settled send.
  - LifecycleHooks: observability callbacks (state entry/exit, transitions, actors).
  - Ticket: the record exchanged with the backlog collaborators.
*/
package domain
