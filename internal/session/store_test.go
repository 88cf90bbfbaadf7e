package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/decoynet/decoyd/internal/intel"
)

func TestStoreGetOrCreate(t *testing.T) {
	st := NewStore()

	snap, created := st.GetOrCreate("conv-1", nil)
	if !created {
		t.Fatal("GetOrCreate() created = false, want true for unseen id")
	}
	if snap.ID != "conv-1" {
		t.Errorf("ID = %q, want %q", snap.ID, "conv-1")
	}
	if snap.TurnCount != 0 || snap.ScamConfirmed || snap.Confidence != 0 {
		t.Errorf("new session not zeroed: %+v", snap)
	}
	if snap.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	again, created := st.GetOrCreate("conv-1", nil)
	if created {
		t.Fatal("GetOrCreate() created = true, want false for existing id")
	}
	if !again.CreatedAt.Equal(snap.CreatedAt) {
		t.Error("CreatedAt changed on second GetOrCreate")
	}
}

func TestStoreGetOrCreateSeedsHistory(t *testing.T) {
	seed := []Turn{
		{Speaker: SpeakerScammer, Text: "your account is blocked"},
		{Speaker: SpeakerAgent, Text: "oh no, what do I do?"},
	}
	st := NewStore()

	snap, _ := st.GetOrCreate("conv-1", seed)
	if len(snap.History) != 2 {
		t.Fatalf("History length = %d, want 2", len(snap.History))
	}

	// Seed is ignored once the session exists; the store is authoritative.
	snap, created := st.GetOrCreate("conv-1", []Turn{{Text: "late seed"}})
	if created || len(snap.History) != 2 {
		t.Errorf("created = %v, history = %d, want false, 2", created, len(snap.History))
	}
}

func TestStoreGet(t *testing.T) {
	st := NewStore()

	if _, ok := st.Get("missing"); ok {
		t.Fatal("Get() ok = true for unknown id")
	}

	st.GetOrCreate("conv-1", nil)
	snap, ok := st.Get("conv-1")
	if !ok || snap.ID != "conv-1" {
		t.Fatalf("Get() = %+v, %v", snap, ok)
	}
}

func TestStoreGetReturnsDeepCopy(t *testing.T) {
	st := NewStore()
	st.GetOrCreate("conv-1", nil)
	_, err := st.Apply("conv-1", func(s *Session) {
		s.Artifacts = map[intel.Category][]string{intel.CategoryPhone: {"9876543210"}}
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	snap, _ := st.Get("conv-1")
	snap.Artifacts[intel.CategoryPhone][0] = "mutated"
	snap.History = append(snap.History, Turn{Text: "sneaky"})

	fresh, _ := st.Get("conv-1")
	if fresh.Artifacts[intel.CategoryPhone][0] != "9876543210" {
		t.Error("mutating a snapshot leaked into the store")
	}
	if len(fresh.History) != 0 {
		t.Error("appending to a snapshot's history leaked into the store")
	}
}

func TestStoreApply(t *testing.T) {
	st := NewStore()

	if _, err := st.Apply("missing", func(s *Session) {}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Apply() error = %v, want ErrSessionNotFound", err)
	}

	st.GetOrCreate("conv-1", nil)
	snap, err := st.Apply("conv-1", func(s *Session) {
		s.TurnCount += 2
		s.ScamConfirmed = true
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if snap.TurnCount != 2 || !snap.ScamConfirmed {
		t.Errorf("snapshot = %+v, want mutation applied", snap)
	}
	if snap.UpdatedAt.Before(snap.CreatedAt) {
		t.Error("UpdatedAt not refreshed")
	}
}

func TestStoreDelete(t *testing.T) {
	st := NewStore()
	st.GetOrCreate("conv-1", nil)

	if !st.Delete("conv-1") {
		t.Fatal("Delete() = false, want true")
	}
	if st.Delete("conv-1") {
		t.Fatal("Delete() = true for already-deleted id")
	}
	if _, ok := st.Get("conv-1"); ok {
		t.Fatal("Get() found a deleted session")
	}
	if st.Len() != 0 {
		t.Errorf("Len() = %d, want 0", st.Len())
	}
}

func TestStoreApplyOrCreateRecreatesAfterDelete(t *testing.T) {
	st := NewStore()
	snap := st.ApplyOrCreate("conv-1", nil, func(s *Session) { s.TurnCount += 2 })
	if snap.TurnCount != 2 {
		t.Fatalf("TurnCount = %d, want 2", snap.TurnCount)
	}

	st.Delete("conv-1")
	snap = st.ApplyOrCreate("conv-1", nil, func(s *Session) { s.TurnCount += 2 })
	if snap.TurnCount != 2 {
		t.Errorf("TurnCount = %d, want 2 for re-created session", snap.TurnCount)
	}
}

// TestStoreConcurrentApply drives N parallel mutations against one id and
// checks that no update is lost: the turn count lands on exactly 2N and
// the artifact set is the union of every caller's contribution.
func TestStoreConcurrentApply(t *testing.T) {
	const n = 64
	st := NewStore()
	st.GetOrCreate("conv-1", nil)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			phone := "98765000" + string(rune('0'+i%10)) + string(rune('0'+i/10))
			_, err := st.Apply("conv-1", func(s *Session) {
				s.TurnCount += 2
				if s.Artifacts == nil {
					s.Artifacts = make(map[intel.Category][]string)
				}
				seen := false
				for _, v := range s.Artifacts[intel.CategoryPhone] {
					if v == phone {
						seen = true
					}
				}
				if !seen {
					s.Artifacts[intel.CategoryPhone] = append(s.Artifacts[intel.CategoryPhone], phone)
				}
			})
			if err != nil {
				t.Errorf("Apply() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	snap, _ := st.Get("conv-1")
	if snap.TurnCount != 2*n {
		t.Errorf("TurnCount = %d, want %d", snap.TurnCount, 2*n)
	}
	distinct := map[string]struct{}{}
	for _, v := range snap.Artifacts[intel.CategoryPhone] {
		distinct[v] = struct{}{}
	}
	if len(distinct) != len(snap.Artifacts[intel.CategoryPhone]) {
		t.Error("artifact set contains duplicates")
	}
}

func TestStoreConcurrentDistinctIDs(t *testing.T) {
	const n = 32
	st := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := "conv-" + string(rune('a'+i%26)) + string(rune('0'+i/26))
			st.ApplyOrCreate(id, nil, func(s *Session) { s.TurnCount += 2 })
		}(i)
	}
	wg.Wait()

	if st.Len() != n {
		t.Errorf("Len() = %d, want %d", st.Len(), n)
	}
}

func TestStoreSweepIdle(t *testing.T) {
	st := NewStore()
	st.GetOrCreate("stale", nil)
	st.GetOrCreate("fresh", nil)

	// Backdate the stale session's last activity.
	_, err := st.Apply("stale", func(s *Session) {})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	st.mu.RLock()
	st.entries["stale"].s.UpdatedAt = time.Now().UTC().Add(-2 * time.Hour)
	st.mu.RUnlock()

	if evicted := st.SweepIdle(time.Hour); evicted != 1 {
		t.Fatalf("SweepIdle() = %d, want 1", evicted)
	}
	if _, ok := st.Get("stale"); ok {
		t.Error("stale session survived the sweep")
	}
	if _, ok := st.Get("fresh"); !ok {
		t.Error("fresh session was evicted")
	}
}
