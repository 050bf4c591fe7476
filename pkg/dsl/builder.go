package dsl

import (
	"github.com/aretw0/arbor/pkg/domain"
)

// Builder manages the chart construction.
type Builder[C any] struct {
	id      string
	root    *NodeBuilder[C]
	initial C
	clone   func(C) C
}

// New creates a new chart builder. The id names the machine and its root node.
func New[C any](id string) *Builder[C] {
	b := &Builder[C]{id: id}
	b.root = &NodeBuilder[C]{builder: b}
	return b
}

// Root returns the builder of the root node.
func (b *Builder[C]) Root() *NodeBuilder[C] {
	return b.root
}

// Context sets the initial value of the context store. Each interpreter starts from a
// clone of it.
func (b *Builder[C]) Context(initial C) *Builder[C] {
	b.initial = initial
	return b
}

// WithClone sets the function used to copy the context store for snapshots and actors.
// Without it, a Clone() C method is used when C has one, and a plain value copy otherwise.
func (b *Builder[C]) WithClone(fn func(C) C) *Builder[C] {
	b.clone = fn
	return b
}

type eventBinding[C any] struct {
	event       domain.EventType
	transitions []Transition[C]
}

// NodeBuilder provides a fluent API for configuring a state node.
type NodeBuilder[C any] struct {
	builder  *Builder[C]
	key      string
	id       string
	parallel bool
	initial  string
	tags     []domain.Tag
	entry    []Action[C]
	exit     []Action[C]
	on       []eventBinding[C]
	invoke   *Invocation[C]
	children []*NodeBuilder[C]
}

// State returns the child with the given key, creating it on first use.
func (n *NodeBuilder[C]) State(key string) *NodeBuilder[C] {
	if c := n.child(key); c != nil {
		return c
	}
	child := &NodeBuilder[C]{builder: n.builder, key: key}
	n.children = append(n.children, child)
	return child
}

func (n *NodeBuilder[C]) child(key string) *NodeBuilder[C] {
	for _, c := range n.children {
		if c.key == key {
			return c
		}
	}
	return nil
}

// Initial marks the node as compound and names its initial child.
func (n *NodeBuilder[C]) Initial(key string) *NodeBuilder[C] {
	n.initial = key
	return n
}

// Parallel marks the node as parallel: every child is an orthogonal region.
func (n *NodeBuilder[C]) Parallel() *NodeBuilder[C] {
	n.parallel = true
	return n
}

// ID overrides the default id (the dotted path), making the node addressable as "#id".
func (n *NodeBuilder[C]) ID(id string) *NodeBuilder[C] {
	n.id = id
	return n
}

// Tags attaches labels that are active while the node is active.
func (n *NodeBuilder[C]) Tags(tags ...domain.Tag) *NodeBuilder[C] {
	n.tags = append(n.tags, tags...)
	return n
}

// Entry appends actions run when the node is entered.
func (n *NodeBuilder[C]) Entry(actions ...Action[C]) *NodeBuilder[C] {
	n.entry = append(n.entry, actions...)
	return n
}

// Exit appends actions run when the node is exited.
func (n *NodeBuilder[C]) Exit(actions ...Action[C]) *NodeBuilder[C] {
	n.exit = append(n.exit, actions...)
	return n
}

// On appends candidate transitions for an event type. Candidates are tried in order and
// the first enabled one is taken.
func (n *NodeBuilder[C]) On(event domain.EventType, transitions ...Transition[C]) *NodeBuilder[C] {
	for i := range n.on {
		if n.on[i].event == event {
			n.on[i].transitions = append(n.on[i].transitions, transitions...)
			return n
		}
	}
	n.on = append(n.on, eventBinding[C]{event: event, transitions: transitions})
	return n
}

// Invoke binds an asynchronous operation to the node.
func (n *NodeBuilder[C]) Invoke(inv Invocation[C]) *NodeBuilder[C] {
	n.invoke = &inv
	return n
}
