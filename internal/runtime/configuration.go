package runtime

import (
	"slices"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
)

// nodeSet is a set of state nodes of one definition.
type nodeSet[C any] map[*dsl.StateNode[C]]struct{}

func (s nodeSet[C]) add(n *dsl.StateNode[C]) {
	s[n] = struct{}{}
}

func (s nodeSet[C]) has(n *dsl.StateNode[C]) bool {
	_, ok := s[n]
	return ok
}

// documentOrder returns the members sorted ancestors-first.
func (s nodeSet[C]) documentOrder() []*dsl.StateNode[C] {
	out := make([]*dsl.StateNode[C], 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	slices.SortFunc(out, func(a, b *dsl.StateNode[C]) int { return a.Order - b.Order })
	return out
}

// exitOrder returns the members sorted descendants-first.
func (s nodeSet[C]) exitOrder() []*dsl.StateNode[C] {
	out := s.documentOrder()
	slices.Reverse(out)
	return out
}

// intersects reports whether both sets share a node.
func (s nodeSet[C]) intersects(other nodeSet[C]) bool {
	for n := range s {
		if other.has(n) {
			return true
		}
	}
	return false
}

// addDefaultEntry adds n and the default configuration below it: the initial child of
// compound nodes and every region of parallel nodes.
func addDefaultEntry[C any](set nodeSet[C], n *dsl.StateNode[C]) {
	set.add(n)
	switch n.Kind {
	case domain.KindCompound:
		addDefaultEntry(set, n.Initial)
	case domain.KindParallel:
		for _, child := range n.Children {
			addDefaultEntry(set, child)
		}
	}
}

// inSubtree reports whether n is root or one of its descendants.
func inSubtree[C any](root, n *dsl.StateNode[C]) bool {
	return root == n || root.IsAncestorOf(n)
}

// completeRegions adds a default entry for every region of the given parallel nodes that
// has neither a remaining active node nor a node being entered.
func completeRegions[C any](entry nodeSet[C], parallels []*dsl.StateNode[C], remaining nodeSet[C]) {
	for len(parallels) > 0 {
		p := parallels[0]
		parallels = parallels[1:]
		if p.Kind != domain.KindParallel {
			continue
		}
		for _, region := range p.Children {
			if coversRegion(region, entry) || coversRegion(region, remaining) {
				continue
			}
			addDefaultEntry(entry, region)
		}
	}
}

func coversRegion[C any](region *dsl.StateNode[C], set nodeSet[C]) bool {
	for n := range set {
		if inSubtree(region, n) {
			return true
		}
	}
	return false
}

// checkConfiguration verifies the structural invariants of a configuration: the root is
// active, every active parallel node has all regions active and every active compound
// node has exactly one active child. It returns the offending node, or nil.
func checkConfiguration[C any](root *dsl.StateNode[C], active nodeSet[C]) *dsl.StateNode[C] {
	if !active.has(root) {
		return root
	}
	for n := range active {
		if n.Parent != nil && !active.has(n.Parent) {
			return n
		}
		switch n.Kind {
		case domain.KindParallel:
			for _, c := range n.Children {
				if !active.has(c) {
					return n
				}
			}
		case domain.KindCompound:
			count := 0
			for _, c := range n.Children {
				if active.has(c) {
					count++
				}
			}
			if count != 1 {
				return n
			}
		}
	}
	return nil
}
