// Package reconciler applies the optimistic toggle pattern shared by likes,
// bookmarks and follows: flip local state first, issue the mutation, roll
// back if it fails.
package reconciler

import (
	"context"
	"sync"

	"github.com/plateful/plateful/auth"
	"github.com/plateful/plateful/errs"
	"github.com/plateful/plateful/store"
	Logger "github.com/plateful/plateful/utils/log"
)

// State is the local view state of one relation. Count is a display cache,
// only maintained for like-kind relations; the relation table stays the
// ground truth.
type State struct {
	Active bool
	Count  int
}

// Options carry the side-effect hooks. OnNotice surfaces a transient,
// dismissable failure notice; OnAuthExpired redirects to sign-in and takes
// priority over the notice.
type Options struct {
	OnNotice      func(msg string)
	OnAuthExpired func()
}

// Reconciler toggles binary per-user relations on behalf of one session.
// A per-relation in-flight flag serializes toggles per key: a toggle
// arriving while one is pending for the same key is dropped, not queued.
type Reconciler struct {
	session auth.Session
	store   store.RelationStore
	opts    Options

	mu       sync.Mutex
	inFlight map[store.Relation]bool
	states   map[store.Relation]*State
}

func New(session auth.Session, relations store.RelationStore, opts Options) *Reconciler {
	return &Reconciler{
		session:  session,
		store:    relations,
		opts:     opts,
		inFlight: make(map[store.Relation]bool),
		states:   make(map[store.Relation]*State),
	}
}

func (r *Reconciler) key(kind store.RelationKind, objectID string) store.Relation {
	return store.Relation{Kind: kind, SubjectID: r.session.UserID, ObjectID: objectID}
}

// Seed primes the local view state for an object, typically from a feed
// fetch that already knows the relation status and count.
func (r *Reconciler) Seed(kind store.RelationKind, objectID string, active bool, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[r.key(kind, objectID)] = &State{Active: active, Count: count}
}

// EnsureSeeded populates the local state for an object from the relation
// store on first sight. Subsequent toggles work purely against local state.
func (r *Reconciler) EnsureSeeded(ctx context.Context, kind store.RelationKind, objectID string) error {
	rel := r.key(kind, objectID)
	r.mu.Lock()
	if _, ok := r.states[rel]; ok {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	active, err := r.store.Exists(ctx, rel)
	if err != nil {
		return err
	}
	count := 0
	if kind == store.KindLike {
		n, err := r.store.Count(ctx, kind, objectID)
		if err != nil {
			return err
		}
		count = int(n)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.states[rel]; !ok {
		r.states[rel] = &State{Active: active, Count: count}
	}
	return nil
}

// State returns the current local view state for an object.
func (r *Reconciler) State(kind store.RelationKind, objectID string) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.stateLocked(r.key(kind, objectID))
}

func (r *Reconciler) stateLocked(rel store.Relation) *State {
	st, ok := r.states[rel]
	if !ok {
		st = &State{}
		r.states[rel] = st
	}
	return st
}

// Toggle flips the relation for the session user.
//
// The local flip (and counter adjustment for likes) happens synchronously
// before the persistence request is issued. On success the optimistic state
// stands. On failure it is reverted exactly: a conflict counts as success
// since the end state already matches intent, an auth failure additionally
// fires OnAuthExpired instead of the notice, everything else fires OnNotice.
// Returns the settled state.
func (r *Reconciler) Toggle(ctx context.Context, kind store.RelationKind, objectID string) State {
	rel := r.key(kind, objectID)

	r.mu.Lock()
	if r.inFlight[rel] {
		// Dropped, not queued.
		st := *r.stateLocked(rel)
		r.mu.Unlock()
		return st
	}
	st := r.stateLocked(rel)
	wasActive := st.Active
	st.Active = !wasActive
	if kind == store.KindLike {
		if wasActive {
			st.Count--
		} else {
			st.Count++
		}
	}
	r.inFlight[rel] = true
	r.mu.Unlock()

	var err error
	if wasActive {
		err = r.store.Delete(ctx, rel)
	} else {
		err = r.store.Insert(ctx, rel)
	}

	r.mu.Lock()
	delete(r.inFlight, rel)
	st = r.stateLocked(rel)

	if err == nil || errs.IsConflict(err) {
		settled := *st
		r.mu.Unlock()
		return settled
	}

	// Roll back to the pre-toggle state.
	st.Active = wasActive
	if kind == store.KindLike {
		if wasActive {
			st.Count++
		} else {
			st.Count--
		}
	}
	settled := *st
	r.mu.Unlock()

	if errs.IsUnauthenticated(err) {
		Logger.Log.Warn("session expired during toggle: ", err)
		if r.opts.OnAuthExpired != nil {
			r.opts.OnAuthExpired()
		}
		return settled
	}

	Logger.Log.Warn("toggle failed, rolled back: ", err)
	if r.opts.OnNotice != nil {
		r.opts.OnNotice("Couldn't update, please try again.")
	}
	return settled
}
