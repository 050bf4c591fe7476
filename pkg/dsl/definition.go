package dsl

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
)

// Cloner is implemented by context types that know how to deep-copy themselves.
type Cloner[C any] interface {
	Clone() C
}

// Definition is an immutable, validated chart.
type Definition[C any] struct {
	id      string
	root    *StateNode[C]
	nodes   []*StateNode[C]
	byID    map[string]*StateNode[C]
	byPath  map[string]*StateNode[C]
	initial C
	clone   func(C) C
}

// Build validates the chart and resolves every transition target.
// Errors are *domain.DefinitionError.
func (b *Builder[C]) Build() (*Definition[C], error) {
	if b.id == "" {
		return nil, &domain.DefinitionError{Reason: "machine id is empty"}
	}

	d := &Definition[C]{
		id:      b.id,
		byID:    make(map[string]*StateNode[C]),
		byPath:  make(map[string]*StateNode[C]),
		initial: b.initial,
		clone:   b.clone,
	}

	root, err := d.materialize(b.root, nil)
	if err != nil {
		return nil, err
	}
	d.root = root

	for _, n := range d.nodes {
		nb := b.lookupBuilder(n)
		if nb == nil {
			return nil, &domain.DefinitionError{Node: n.Name(), Reason: "state changed while building"}
		}
		if err := d.resolve(n, nb); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// lookupBuilder walks the builder tree along the node's path without creating nodes.
// It returns nil when the path is not in the tree.
func (b *Builder[C]) lookupBuilder(n *StateNode[C]) *NodeBuilder[C] {
	nb := b.root
	if n.Path == "" {
		return nb
	}
	for _, key := range strings.Split(n.Path, ".") {
		if nb = nb.child(key); nb == nil {
			return nil
		}
	}
	return nb
}

// materialize creates the node tree in document order and checks its shape.
func (d *Definition[C]) materialize(nb *NodeBuilder[C], parent *StateNode[C]) (*StateNode[C], error) {
	n := &StateNode[C]{
		Key:    nb.key,
		Parent: parent,
		Tags:   slices.Clone(nb.tags),
		Entry:  slices.Clone(nb.entry),
		Exit:   slices.Clone(nb.exit),
		Order:  len(d.nodes),
	}

	if parent == nil {
		n.Key = d.id
		n.ID = d.id
	} else {
		if nb.key == "" || strings.ContainsAny(nb.key, ".#") {
			return nil, &domain.DefinitionError{Node: parent.Name(), Reason: fmt.Sprintf("invalid state key %q", nb.key)}
		}
		n.Depth = parent.Depth + 1
		n.Path = nb.key
		if parent.Path != "" {
			n.Path = parent.Path + "." + nb.key
		}
		n.ID = n.Path
	}
	if nb.id != "" {
		n.ID = nb.id
	}

	if _, dup := d.byID[n.ID]; dup {
		return nil, &domain.DefinitionError{Node: n.Name(), Reason: fmt.Sprintf("duplicate id %q", n.ID)}
	}
	d.byID[n.ID] = n
	d.byPath[n.Path] = n
	d.nodes = append(d.nodes, n)

	switch {
	case nb.parallel:
		n.Kind = domain.KindParallel
		if len(nb.children) == 0 {
			return nil, &domain.DefinitionError{Node: n.Name(), Reason: "parallel node has no regions"}
		}
		if nb.initial != "" {
			return nil, &domain.DefinitionError{Node: n.Name(), Reason: "parallel node cannot declare an initial child"}
		}
	case len(nb.children) > 0:
		n.Kind = domain.KindCompound
		if nb.initial == "" {
			return nil, &domain.DefinitionError{Node: n.Name(), Reason: "compound node has no initial child"}
		}
	default:
		n.Kind = domain.KindAtomic
		if nb.initial != "" {
			return nil, &domain.DefinitionError{Node: n.Name(), Reason: fmt.Sprintf("initial child %q does not exist", nb.initial)}
		}
	}

	for _, cb := range nb.children {
		child, err := d.materialize(cb, n)
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, child)
	}

	if n.Kind == domain.KindCompound {
		n.Initial = n.Child(nb.initial)
		if n.Initial == nil {
			return nil, &domain.DefinitionError{Node: n.Name(), Reason: fmt.Sprintf("initial child %q does not exist", nb.initial)}
		}
	}
	return n, nil
}

// resolve binds transitions and the invocation of a node.
func (d *Definition[C]) resolve(n *StateNode[C], nb *NodeBuilder[C]) error {
	n.on = make(map[domain.EventType][]*Transition[C])

	bind := func(event domain.EventType, ts []Transition[C]) error {
		if event == "" {
			return &domain.DefinitionError{Node: n.Name(), Reason: "transition with empty event type"}
		}
		if _, seen := n.on[event]; !seen {
			n.events = append(n.events, event)
		}
		for _, t := range ts {
			t.source = n
			t.Actions = slices.Clone(t.Actions)
			if t.Target != "" {
				target, err := d.resolveTarget(n, t.Target)
				if err != nil {
					return err
				}
				t.target = target
			}
			n.on[event] = append(n.on[event], &t)
		}
		return nil
	}

	for _, binding := range nb.on {
		if err := bind(binding.event, binding.transitions); err != nil {
			return err
		}
	}

	if nb.invoke != nil {
		inv := *nb.invoke
		if inv.ActorID == "" {
			return &domain.DefinitionError{Node: n.Name(), Reason: "invocation has no actor id"}
		}
		if inv.Start == nil {
			return &domain.DefinitionError{Node: n.Name(), Reason: fmt.Sprintf("invocation %q has no operation", inv.ActorID)}
		}
		if len(inv.OnDone) > 0 {
			if err := bind(domain.DoneType(inv.ActorID), inv.OnDone); err != nil {
				return err
			}
		}
		if len(inv.OnError) > 0 {
			if err := bind(domain.ErrorType(inv.ActorID), inv.OnError); err != nil {
				return err
			}
		}
		n.Invocation = &inv
	}
	return nil
}

func (d *Definition[C]) resolveTarget(source *StateNode[C], expr string) (*StateNode[C], error) {
	fail := func(reason string) error {
		return &domain.DefinitionError{Node: source.Name(), Reason: fmt.Sprintf("target %q %s", expr, reason)}
	}

	switch {
	case strings.HasPrefix(expr, "#"):
		target, ok := d.byID[expr[1:]]
		if !ok {
			return nil, fail("does not match any id")
		}
		return target, nil
	case strings.HasPrefix(expr, "."):
		target := descend(source, expr[1:])
		if target == nil {
			return nil, fail("is not a descendant")
		}
		return target, nil
	default:
		if source.Parent == nil {
			return nil, fail("has no sibling scope on the root")
		}
		target := descend(source.Parent, expr)
		if target == nil {
			return nil, fail("does not resolve")
		}
		return target, nil
	}
}

func descend[C any](from *StateNode[C], rel string) *StateNode[C] {
	n := from
	for _, key := range strings.Split(rel, ".") {
		if n = n.Child(key); n == nil {
			return nil
		}
	}
	return n
}

// ID returns the machine id.
func (d *Definition[C]) ID() string { return d.id }

// Root returns the root node.
func (d *Definition[C]) Root() *StateNode[C] { return d.root }

// Nodes returns every node in document order.
func (d *Definition[C]) Nodes() []*StateNode[C] { return slices.Clone(d.nodes) }

// Lookup finds a node by id or by path.
func (d *Definition[C]) Lookup(idOrPath string) (*StateNode[C], bool) {
	if n, ok := d.byID[idOrPath]; ok {
		return n, true
	}
	n, ok := d.byPath[idOrPath]
	return n, ok
}

// NewContext returns a fresh copy of the initial context store.
func (d *Definition[C]) NewContext() C {
	return d.Clone(d.initial)
}

// Clone copies a context store value.
func (d *Definition[C]) Clone(c C) C {
	if d.clone != nil {
		return d.clone(c)
	}
	if cl, ok := any(c).(Cloner[C]); ok {
		return cl.Clone()
	}
	return c
}

// Events returns every event type some node reacts to, sorted.
func (d *Definition[C]) Events() []domain.EventType {
	seen := make(map[domain.EventType]struct{})
	var out []domain.EventType
	for _, n := range d.nodes {
		for _, e := range n.events {
			if _, ok := seen[e]; !ok {
				seen[e] = struct{}{}
				out = append(out, e)
			}
		}
	}
	slices.Sort(out)
	return out
}

// Describe renders the chart as an indented tree.
func (d *Definition[C]) Describe() string {
	var sb strings.Builder
	var walk func(n *StateNode[C], indent string)
	walk = func(n *StateNode[C], indent string) {
		sb.WriteString(indent)
		sb.WriteString(n.Key)
		sb.WriteString(" (")
		sb.WriteString(n.Kind.String())
		if n.Initial != nil {
			sb.WriteString(", initial: " + n.Initial.Key)
		}
		sb.WriteString(")")
		if n.ID != n.Path && n.Parent != nil {
			sb.WriteString(" #" + n.ID)
		}
		if len(n.Tags) > 0 {
			tags := make([]string, len(n.Tags))
			for i, t := range n.Tags {
				tags[i] = string(t)
			}
			sb.WriteString(" [" + strings.Join(tags, ", ") + "]")
		}
		sb.WriteString("\n")

		if n.Invocation != nil {
			fmt.Fprintf(&sb, "%s  invoke %s\n", indent, n.Invocation.ActorID)
		}
		for _, e := range n.events {
			for _, t := range n.on[e] {
				target := "(stay)"
				if t.target != nil {
					target = t.target.Name()
				}
				line := fmt.Sprintf("%s  on %s -> %s", indent, e, target)
				if t.Guard != nil {
					line += " [guarded]"
				}
				if t.External {
					line += " [reenter]"
				}
				sb.WriteString(line + "\n")
			}
		}
		for _, c := range n.Children {
			walk(c, indent+"  ")
		}
	}
	walk(d.root, "")
	return sb.String()
}
