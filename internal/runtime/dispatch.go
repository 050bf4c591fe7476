package runtime

import (
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
)

// plan is a selected transition with its precomputed exit scope.
type plan[C any] struct {
	t *dsl.Transition[C]
	// domain is the node whose active descendants are replaced. It is nil when the
	// whole machine is re-entered.
	domain *dsl.StateNode[C]
	// exitRoots are the subtrees (inclusive) left by the transition.
	exitRoots []*dsl.StateNode[C]
	// exits is the set of active nodes the transition leaves.
	exits nodeSet[C]
	// actionsOnly marks targetless transitions and internal transitions to the source or
	// one of its ancestors.
	actionsOnly bool
}

// selectTransitions applies closest-wins per active leaf and removes conflicts.
// Guards read the current context store.
func (it *Interpreter[C]) selectTransitions(ev domain.Event) []*plan[C] {
	var selected []*plan[C]
	seen := make(map[*dsl.Transition[C]]struct{})

	for _, leaf := range it.activeLeaves() {
		for n := leaf; n != nil; n = n.Parent {
			t := it.firstEnabled(n, ev)
			if t == nil {
				continue
			}
			if _, dup := seen[t]; !dup {
				seen[t] = struct{}{}
				selected = append(selected, it.planFor(t))
			}
			break
		}
	}
	return removeConflicts(selected)
}

func (it *Interpreter[C]) firstEnabled(n *dsl.StateNode[C], ev domain.Event) *dsl.Transition[C] {
	for _, t := range n.Transitions(ev.EventType()) {
		if t.Enabled(it.store, ev) {
			return t
		}
	}
	return nil
}

// planFor computes the transition domain and the exit set of t against the current
// configuration.
func (it *Interpreter[C]) planFor(t *dsl.Transition[C]) *plan[C] {
	p := &plan[C]{t: t, exits: make(nodeSet[C])}
	src, tgt := t.Source(), t.TargetNode()

	switch {
	case tgt == nil:
		p.actionsOnly = true
		return p
	case !t.External && (tgt == src || tgt.IsAncestorOf(src)):
		p.actionsOnly = true
		return p
	case !t.External && src.IsAncestorOf(tgt):
		p.domain = src
		if src.Kind == domain.KindParallel {
			// Only the region holding the target is replaced.
			p.exitRoots = []*dsl.StateNode[C]{regionOf(src, tgt)}
		} else {
			p.exitRoots = src.Children
		}
	default:
		p.domain = commonAncestor(src, tgt, t.External)
		if p.domain == nil {
			p.exitRoots = []*dsl.StateNode[C]{it.def.Root()}
		} else {
			p.exitRoots = p.domain.Children
		}
	}

	for n := range it.active {
		for _, root := range p.exitRoots {
			if inSubtree(root, n) {
				p.exits.add(n)
				break
			}
		}
	}
	return p
}

// regionOf returns the child of ancestor on the path to n.
func regionOf[C any](ancestor, n *dsl.StateNode[C]) *dsl.StateNode[C] {
	for c := n; c != nil; c = c.Parent {
		if c.Parent == ancestor {
			return c
		}
	}
	return nil
}

// commonAncestor returns the nearest node that is a strict ancestor of both src and tgt.
// For external transitions between a node and its own ancestor or descendant, the
// outermost of the two is exited as well. A nil result means above the root.
func commonAncestor[C any](src, tgt *dsl.StateNode[C], external bool) *dsl.StateNode[C] {
	if external {
		switch {
		case src == tgt || src.IsAncestorOf(tgt):
			return src.Parent
		case tgt.IsAncestorOf(src):
			return tgt.Parent
		}
	}
	for a := src.Parent; a != nil; a = a.Parent {
		if a.IsAncestorOf(tgt) {
			return a
		}
	}
	return nil
}

// removeConflicts keeps at most one transition per overlapping exit set. A transition
// whose source is a descendant of an earlier conflicting source preempts it; otherwise
// the earlier one wins.
func removeConflicts[C any](plans []*plan[C]) []*plan[C] {
	var filtered []*plan[C]
	for _, p1 := range plans {
		preempted := false
		var remove []*plan[C]
		for _, p2 := range filtered {
			if !p1.exits.intersects(p2.exits) {
				continue
			}
			if p2.t.Source().IsAncestorOf(p1.t.Source()) {
				remove = append(remove, p2)
			} else {
				preempted = true
				break
			}
		}
		if preempted {
			continue
		}
		if len(remove) > 0 {
			kept := filtered[:0]
			for _, p := range filtered {
				drop := false
				for _, r := range remove {
					if p == r {
						drop = true
						break
					}
				}
				if !drop {
					kept = append(kept, p)
				}
			}
			filtered = kept
		}
		filtered = append(filtered, p1)
	}
	return filtered
}

// entrySet computes the nodes entered by the plans: each target with its default
// descendants and its ancestors below the domain, completed so that every entered
// parallel node has all its regions.
func (it *Interpreter[C]) entrySet(plans []*plan[C], exits nodeSet[C]) nodeSet[C] {
	entry := make(nodeSet[C])
	var parallels []*dsl.StateNode[C]

	for _, p := range plans {
		if p.actionsOnly {
			continue
		}
		tgt := p.t.TargetNode()
		addDefaultEntry(entry, tgt)
		for a := tgt.Parent; a != nil && a != p.domain; a = a.Parent {
			entry.add(a)
		}
		if p.domain != nil {
			parallels = append(parallels, p.domain)
		}
	}
	for n := range entry {
		if n.Kind == domain.KindParallel {
			parallels = append(parallels, n)
		}
	}

	remaining := make(nodeSet[C])
	for n := range it.active {
		if !exits.has(n) {
			remaining.add(n)
		}
	}
	completeRegions(entry, parallels, remaining)

	// Nodes that stay active are not re-entered.
	for n := range entry {
		if remaining.has(n) {
			delete(entry, n)
		}
	}
	return entry
}

// microstep takes every selected transition for ev as one atomic step and returns the
// internal events raised by its actions, in raised order.
func (it *Interpreter[C]) microstep(ev domain.Event, plans []*plan[C]) []domain.Event {
	var raised []domain.Event
	run := func(actions []dsl.Action[C]) {
		for _, a := range actions {
			switch a.Kind {
			case dsl.ActionAssign:
				a.Apply(&it.store, ev)
			case dsl.ActionRaise:
				if e := a.Event(it.store, ev); e != nil {
					raised = append(raised, e)
				}
			}
		}
	}

	exits := make(nodeSet[C])
	for _, p := range plans {
		for n := range p.exits {
			exits.add(n)
		}
	}
	entries := it.entrySet(plans, exits)

	// 1. Exit, deepest first
	for _, n := range exits.exitOrder() {
		if ref := it.actors.cancel(n.Path); ref != nil {
			it.logger.Debug("actor cancelled", "machine", it.def.ID(), "actor", ref.id, "owner", ref.owner)
		}
		delete(it.pending, n)
		run(n.Exit)
		delete(it.active, n)
		it.emitState(it.hooks.OnStateExit, domain.HookStateExit, n, ev)
	}

	// 2. Transition actions, in selection order
	for _, p := range plans {
		run(p.t.Actions)
		it.emitTransition(p.t, ev)
	}

	// 3. Enter, ancestors first
	for _, n := range entries.documentOrder() {
		it.active.add(n)
		run(n.Entry)
		if n.Invocation != nil {
			it.pending[n] = ev
		}
		it.emitState(it.hooks.OnStateEnter, domain.HookStateEnter, n, ev)
	}

	return raised
}

// macrostep processes the given events and the cascade of internal events they raise.
// Raised events are handled depth-first: the events raised while handling an event are
// processed, in raised order, before any event raised earlier.
func (it *Interpreter[C]) macrostep(events ...domain.Event) {
	stack := make([]domain.Event, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		stack = append(stack, events[i])
	}
	steps := 0

	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		steps++
		if steps > it.maxMicrosteps {
			it.logger.Error("microstep limit exceeded, abandoning cascade",
				"machine", it.def.ID(),
				"event", e.EventType(),
				"limit", it.maxMicrosteps,
				"dropped", len(stack)+1)
			return
		}

		plans := it.selectTransitions(e)
		if len(plans) == 0 {
			it.logger.Debug("event ignored", "machine", it.def.ID(), "event", e.EventType())
			continue
		}

		raised := it.microstep(e, plans)
		for i := len(raised) - 1; i >= 0; i-- {
			stack = append(stack, raised[i])
		}
	}
}
