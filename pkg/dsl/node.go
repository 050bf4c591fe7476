package dsl

import (
	"github.com/aretw0/arbor/pkg/domain"
)

// StateNode is a resolved node of a Definition. Nodes are shared between interpreters
// and must be treated as read-only.
type StateNode[C any] struct {
	ID   string
	Key  string
	Path string // Dotted path from the root; empty for the root itself
	Kind domain.StateKind

	Parent   *StateNode[C]
	Children []*StateNode[C]
	Initial  *StateNode[C] // Compound nodes only

	Tags       []domain.Tag
	Entry      []Action[C]
	Exit       []Action[C]
	Invocation *Invocation[C]

	// Depth is 0 for the root. Order is the position in document (pre-)order.
	Depth int
	Order int

	on     map[domain.EventType][]*Transition[C]
	events []domain.EventType
}

// Transitions returns the ordered candidates for the event type.
func (n *StateNode[C]) Transitions(t domain.EventType) []*Transition[C] {
	return n.on[t]
}

// Events returns the event types the node reacts to, in declaration order.
func (n *StateNode[C]) Events() []domain.EventType {
	return n.events
}

// IsAtomic reports whether the node is a leaf.
func (n *StateNode[C]) IsAtomic() bool {
	return n.Kind == domain.KindAtomic
}

// IsAncestorOf reports whether n is a strict ancestor of other.
func (n *StateNode[C]) IsAncestorOf(other *StateNode[C]) bool {
	for p := other.Parent; p != nil; p = p.Parent {
		if p == n {
			return true
		}
	}
	return false
}

// Ancestors returns the strict ancestors of n, nearest first.
func (n *StateNode[C]) Ancestors() []*StateNode[C] {
	var out []*StateNode[C]
	for p := n.Parent; p != nil; p = p.Parent {
		out = append(out, p)
	}
	return out
}

// Name returns the path, or the id for the root.
func (n *StateNode[C]) Name() string {
	if n.Path == "" {
		return n.ID
	}
	return n.Path
}

// Child returns the direct child with the given key.
func (n *StateNode[C]) Child(key string) *StateNode[C] {
	for _, c := range n.Children {
		if c.Key == key {
			return c
		}
	}
	return nil
}
