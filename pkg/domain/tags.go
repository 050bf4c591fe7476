package domain

import (
	"encoding/json"
	"slices"
)

// Tag is an opaque label attached to a state node.
type Tag string

// TagSet is a set of tags. The zero value is an empty, read-only set.
type TagSet map[Tag]struct{}

// NewTagSet builds a set from the given tags.
func NewTagSet(tags ...Tag) TagSet {
	set := make(TagSet, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	return set
}

// Has reports whether the tag is present.
func (s TagSet) Has(tag Tag) bool {
	_, ok := s[tag]
	return ok
}

// HasAny reports whether at least one of the tags is present.
func (s TagSet) HasAny(tags ...Tag) bool {
	for _, t := range tags {
		if s.Has(t) {
			return true
		}
	}
	return false
}

// Sorted returns the tags in lexical order.
func (s TagSet) Sorted() []Tag {
	out := make([]Tag, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// Clone returns an independent copy.
func (s TagSet) Clone() TagSet {
	out := make(TagSet, len(s))
	for t := range s {
		out[t] = struct{}{}
	}
	return out
}

// Equal reports whether both sets hold the same tags.
func (s TagSet) Equal(other TagSet) bool {
	if len(s) != len(other) {
		return false
	}
	for t := range s {
		if !other.Has(t) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the set as a sorted array.
func (s TagSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an array of tags.
func (s *TagSet) UnmarshalJSON(data []byte) error {
	var tags []Tag
	if err := json.Unmarshal(data, &tags); err != nil {
		return err
	}
	*s = NewTagSet(tags...)
	return nil
}
