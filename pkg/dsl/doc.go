/*
Package dsl provides a fluent Go DSL for declaring hierarchical and parallel statecharts.

A chart is a tree of state nodes. Atomic nodes have no children, compound nodes have
exactly one active child (starting at their initial child) and parallel nodes keep every
child region active at once. Nodes carry tags, entry and exit actions, guarded transitions
keyed by event type and at most one invoked asynchronous operation.

Example usage:

	type Counter struct{ N int }

	b := dsl.New[Counter]("counter")
	root := b.Root().Initial("idle")

	root.State("idle").
		Tags("idle").
		On("START", dsl.To[Counter]("running"))

	root.State("running").
		Tags("busy").
		Entry(dsl.Assign(func(c *Counter, _ domain.Event) { c.N++ })).
		On("STOP", dsl.To[Counter]("idle"))

	def, err := b.Build()
	// ... pass def to arbor.New(def, ...)

Transition targets use the following syntax:

	""            targetless: actions only, no state change
	".child.leaf" descendant of the source node
	"sibling"     relative to the source node's parent
	"#id"         absolute, by node id

The resulting Definition is immutable and can be shared by any number of interpreters.
*/
package dsl
