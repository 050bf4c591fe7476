package domain

import (
	"reflect"
	"slices"
)

// SnapshotDiff represents the changes between two snapshots.
// It is designed to be serialized to JSON for partial updates on a client.
type SnapshotDiff struct {
	// AddedTags and RemovedTags are sorted.
	AddedTags   []Tag `json:"added_tags,omitempty"`
	RemovedTags []Tag `json:"removed_tags,omitempty"`

	// Value is set when the active leaves changed.
	Value []string `json:"value,omitempty"`

	// Status is set when the lifecycle stage changed.
	Status *Status `json:"status,omitempty"`

	// ContextChanged is true when the context store differs.
	ContextChanged bool `json:"context_changed,omitempty"`
}

// Diff calculates the difference between prev and next.
// A nil prev represents the initial load: everything in next is a change.
func Diff[C any](prev *Snapshot[C], next Snapshot[C]) *SnapshotDiff {
	diff := &SnapshotDiff{}

	if prev == nil {
		diff.AddedTags = next.Tags.Sorted()
		diff.Value = slices.Clone(next.Value)
		status := next.Status
		diff.Status = &status
		diff.ContextChanged = true
		return diff
	}

	for _, t := range next.Tags.Sorted() {
		if !prev.Tags.Has(t) {
			diff.AddedTags = append(diff.AddedTags, t)
		}
	}
	for _, t := range prev.Tags.Sorted() {
		if !next.Tags.Has(t) {
			diff.RemovedTags = append(diff.RemovedTags, t)
		}
	}

	if !slices.Equal(prev.Value, next.Value) {
		diff.Value = slices.Clone(next.Value)
	}
	if prev.Status != next.Status {
		status := next.Status
		diff.Status = &status
	}
	diff.ContextChanged = !reflect.DeepEqual(prev.Context, next.Context)

	return diff
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *SnapshotDiff) IsEmpty() bool {
	return d == nil ||
		(len(d.AddedTags) == 0 &&
			len(d.RemovedTags) == 0 &&
			d.Value == nil &&
			d.Status == nil &&
			!d.ContextChanged)
}
