package domain

// StateKind defines how a state node composes its children.
type StateKind string

const (
	// KindAtomic is a leaf node without children.
	KindAtomic StateKind = "atomic"
	// KindCompound has exactly one active child at a time, entered through its initial child.
	KindCompound StateKind = "compound"
	// KindParallel has every child region active at once.
	KindParallel StateKind = "parallel"
)

func (k StateKind) String() string {
	return string(k)
}
