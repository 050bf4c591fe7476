package domain

import "slices"

// Status defines the lifecycle stage of an interpreter.
type Status string

const (
	StatusIdle    Status = "idle"    // Defined but not started
	StatusRunning Status = "running" // Accepting events
	StatusStopped Status = "stopped" // Actors cancelled, events dropped
)

// Snapshot is the immutable view of an interpreter after a send has fully settled.
// The view layer reads tags and context from it and never inspects raw paths.
type Snapshot[C any] struct {
	// Tags is the union of the tags of every active state node.
	Tags TagSet `json:"tags"`

	// Context is a copy of the context store. Mutating it has no effect on the interpreter.
	Context C `json:"context"`

	// Value holds the sorted full paths of the active leaf states, one per region.
	Value []string `json:"value"`

	// Status indicates whether the interpreter still accepts events.
	Status Status `json:"status"`

	// active holds the path and the id of every active node (ancestors included).
	active map[string]struct{}
}

// NewSnapshot assembles a snapshot. activeNodes lists the paths and ids of every active node.
func NewSnapshot[C any](tags TagSet, context C, leaves []string, activeNodes []string, status Status) Snapshot[C] {
	value := slices.Clone(leaves)
	slices.Sort(value)
	active := make(map[string]struct{}, len(activeNodes))
	for _, n := range activeNodes {
		active[n] = struct{}{}
	}
	return Snapshot[C]{
		Tags:    tags,
		Context: context,
		Value:   value,
		Status:  status,
		active:  active,
	}
}

// HasTag reports whether the tag is present in the active configuration.
func (s Snapshot[C]) HasTag(tag Tag) bool {
	return s.Tags.Has(tag)
}

// Matches reports whether the state identified by its full path or by its id is active.
func (s Snapshot[C]) Matches(pathOrID string) bool {
	_, ok := s.active[pathOrID]
	return ok
}
