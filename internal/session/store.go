package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// ErrSessionNotFound is returned when a session doesn't exist.
var ErrSessionNotFound = errors.New("session not found")

// Mirror receives best-effort copies of session snapshots after each
// mutation, for warm inspection outside the process. Mirror failures
// never affect the authoritative in-memory state.
type Mirror interface {
	Save(ctx context.Context, snapshot Session) error
	Remove(ctx context.Context, sessionID string) error
}

// Store is a concurrency-safe keyed registry of conversation state.
//
// Mutations for the same id are linearizable: two concurrent Apply calls
// never both observe the pre-mutation state. Operations on different ids
// do not block each other; the registry lock is held only long enough to
// resolve an id to its entry, never across a caller's mutation function.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	mirror  Mirror
}

// entry pairs a session with its own lock. deleted marks entries that
// were removed from the registry after a caller already resolved them;
// it is only ever set while the registry write lock is held, so an entry
// reachable through the map is never marked.
type entry struct {
	mu      sync.Mutex
	s       *Session
	deleted bool
}

// Option configures a Store.
type Option func(*Store)

// WithMirror attaches a snapshot mirror.
func WithMirror(m Mirror) Option {
	return func(st *Store) { st.mirror = m }
}

// NewStore creates an empty session store.
func NewStore(opts ...Option) *Store {
	st := &Store{entries: make(map[string]*entry)}
	for _, opt := range opts {
		opt(st)
	}
	return st
}

// GetOrCreate returns a snapshot of the session for id, atomically
// creating a zeroed session (seeded with the supplied cold-start history,
// if any) when the id is unseen. The second result reports whether a new
// session was created.
func (st *Store) GetOrCreate(id string, seed []Turn) (Session, bool) {
	st.mu.RLock()
	e, ok := st.entries[id]
	st.mu.RUnlock()
	if ok {
		e.mu.Lock()
		if !e.deleted {
			snap := e.s.Clone()
			e.mu.Unlock()
			return snap, false
		}
		e.mu.Unlock()
	}

	st.mu.Lock()
	if e, ok := st.entries[id]; ok {
		// Created concurrently while we weren't looking.
		e.mu.Lock()
		snap := e.s.Clone()
		e.mu.Unlock()
		st.mu.Unlock()
		return snap, false
	}
	now := time.Now().UTC()
	s := &Session{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
		History:   append([]Turn(nil), seed...),
	}
	st.entries[id] = &entry{s: s}
	st.mu.Unlock()
	return s.Clone(), true
}

// Get returns a point-in-time snapshot of the session for id.
func (st *Store) Get(id string) (Session, bool) {
	st.mu.RLock()
	e, ok := st.entries[id]
	st.mu.RUnlock()
	if !ok {
		return Session{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return Session{}, false
	}
	return e.s.Clone(), true
}

// Apply atomically runs fn against the current state for id and returns
// the post-mutation snapshot. It returns ErrSessionNotFound when the id
// is unknown; fn is all-or-nothing with respect to concurrent callers.
func (st *Store) Apply(id string, fn func(*Session)) (Session, error) {
	st.mu.RLock()
	e, ok := st.entries[id]
	st.mu.RUnlock()
	if !ok {
		return Session{}, ErrSessionNotFound
	}

	e.mu.Lock()
	if e.deleted {
		e.mu.Unlock()
		return Session{}, ErrSessionNotFound
	}
	fn(e.s)
	e.s.UpdatedAt = time.Now().UTC()
	snap := e.s.Clone()
	e.mu.Unlock()

	st.mirrorSave(snap)
	return snap, nil
}

// ApplyOrCreate is the engine's write path: it creates the session if
// absent (seeding cold-start history) and then applies fn atomically.
func (st *Store) ApplyOrCreate(id string, seed []Turn, fn func(*Session)) Session {
	for {
		st.GetOrCreate(id, seed)
		snap, err := st.Apply(id, fn)
		if err == nil {
			return snap
		}
		// The session was deleted between creation and mutation;
		// retry against a fresh one.
	}
}

// Delete removes the session for id, returning true if one existed.
// The removed entry is marked while the registry lock is held, so an
// in-flight Apply that already resolved it observes the deletion and
// reports not found rather than mutating a ghost.
func (st *Store) Delete(id string) bool {
	st.mu.Lock()
	e, ok := st.entries[id]
	if !ok {
		st.mu.Unlock()
		return false
	}
	e.mu.Lock()
	e.deleted = true
	e.mu.Unlock()
	delete(st.entries, id)
	st.mu.Unlock()

	st.mirrorRemove(id)
	return true
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.entries)
}

// SweepIdle deletes sessions whose last mutation is older than ttl and
// returns how many were evicted. Swept sessions are discarded without
// reporting.
func (st *Store) SweepIdle(ttl time.Duration) int {
	cutoff := time.Now().UTC().Add(-ttl)

	st.mu.RLock()
	ids := make([]string, 0, len(st.entries))
	for id := range st.entries {
		ids = append(ids, id)
	}
	st.mu.RUnlock()

	evicted := 0
	for _, id := range ids {
		snap, ok := st.Get(id)
		if !ok || !snap.UpdatedAt.Before(cutoff) {
			continue
		}
		if st.Delete(id) {
			evicted++
		}
	}
	return evicted
}

func (st *Store) mirrorSave(snap Session) {
	if st.mirror == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := st.mirror.Save(ctx, snap); err != nil {
			log.Printf("[STORE] mirror save failed for session %s: %v", snap.ID, err)
		}
	}()
}

func (st *Store) mirrorRemove(id string) {
	if st.mirror == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := st.mirror.Remove(ctx, id); err != nil {
			log.Printf("[STORE] mirror remove failed for session %s: %v", id, err)
		}
	}()
}
