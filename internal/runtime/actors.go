package runtime

import (
	"context"
	"time"
)

// actorRef is the registration of a running actor. An outcome is only delivered while
// the registration it was started under is still the current one for its owner.
type actorRef struct {
	id         string
	owner      string // Path of the invoking state
	generation uint64
	started    time.Time
	cancel     context.CancelFunc
}

// actorRegistry tracks at most one live actor per invoking state.
// It is only accessed during an interpreter turn.
type actorRegistry struct {
	next    uint64
	byOwner map[string]*actorRef
}

func newActorRegistry() *actorRegistry {
	return &actorRegistry{byOwner: make(map[string]*actorRef)}
}

// register supersedes any previous actor of owner and returns the new registration
// with its cancellable context.
func (r *actorRegistry) register(parent context.Context, owner, id string) (*actorRef, context.Context) {
	r.cancel(owner)

	r.next++
	ctx, cancel := context.WithCancel(parent)
	ref := &actorRef{
		id:         id,
		owner:      owner,
		generation: r.next,
		started:    time.Now(),
		cancel:     cancel,
	}
	r.byOwner[owner] = ref
	return ref, ctx
}

// cancel drops the registration of owner and cancels its context. Cancellation is best
// effort: the operation may still finish, but its outcome will be discarded.
func (r *actorRegistry) cancel(owner string) *actorRef {
	ref, ok := r.byOwner[owner]
	if !ok {
		return nil
	}
	delete(r.byOwner, owner)
	ref.cancel()
	return ref
}

// current reports whether ref is still the live registration of its owner.
func (r *actorRegistry) current(ref *actorRef) bool {
	live, ok := r.byOwner[ref.owner]
	return ok && live.generation == ref.generation
}

// settle removes ref after its outcome was accepted.
func (r *actorRegistry) settle(ref *actorRef) {
	if r.current(ref) {
		delete(r.byOwner, ref.owner)
	}
	ref.cancel()
}

// running reports whether owner has a live registration.
func (r *actorRegistry) running(owner string) bool {
	_, ok := r.byOwner[owner]
	return ok
}

func (r *actorRegistry) cancelAll() []*actorRef {
	refs := make([]*actorRef, 0, len(r.byOwner))
	for owner := range r.byOwner {
		refs = append(refs, r.cancel(owner))
	}
	return refs
}

func (r *actorRegistry) size() int {
	return len(r.byOwner)
}
