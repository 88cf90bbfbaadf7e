package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/decoynet/decoyd/internal/intel"
)

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *RedisMirror) {
	t.Helper()

	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	mirror := NewRedisMirrorFromClient(client, "test:", 0)

	t.Cleanup(func() {
		_ = mirror.Close()
	})

	return mr, mirror
}

func TestRedisMirror_SaveAndLoad(t *testing.T) {
	_, mirror := setupMiniredis(t)
	ctx := context.Background()

	snap := Session{
		ID:            "conv-123",
		CreatedAt:     time.Now().UTC().Truncate(time.Millisecond),
		TurnCount:     4,
		ScamConfirmed: true,
		Confidence:    0.85,
		IntentSignals: []string{"credential_request", "urgency"},
		Artifacts: map[intel.Category][]string{
			intel.CategoryPaymentID: {"fraud@upi"},
			intel.CategoryPhone:     {"9876543210"},
		},
		History: []Turn{
			{ID: "t1", Speaker: SpeakerScammer, Text: "your account is blocked"},
			{ID: "t2", Speaker: SpeakerAgent, Text: "oh dear, what happened?"},
		},
	}

	if err := mirror.Save(ctx, snap); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := mirror.Load(ctx, "conv-123")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.ID != snap.ID || loaded.TurnCount != snap.TurnCount {
		t.Errorf("loaded = %+v, want %+v", loaded, snap)
	}
	if !loaded.ScamConfirmed || loaded.Confidence != 0.85 {
		t.Errorf("verdict fields lost: %+v", loaded)
	}
	if len(loaded.Artifacts[intel.CategoryPaymentID]) != 1 {
		t.Errorf("artifacts lost: %+v", loaded.Artifacts)
	}
	if len(loaded.History) != 2 {
		t.Errorf("history lost: %d turns", len(loaded.History))
	}
}

func TestRedisMirror_LoadUnknown(t *testing.T) {
	_, mirror := setupMiniredis(t)

	_, err := mirror.Load(context.Background(), "nope")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Load error = %v, want ErrSessionNotFound", err)
	}
}

func TestRedisMirror_Remove(t *testing.T) {
	_, mirror := setupMiniredis(t)
	ctx := context.Background()

	if err := mirror.Save(ctx, Session{ID: "conv-1"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := mirror.Remove(ctx, "conv-1"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := mirror.Load(ctx, "conv-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Load after Remove error = %v, want ErrSessionNotFound", err)
	}

	// Removing an unknown id is not an error.
	if err := mirror.Remove(ctx, "never-existed"); err != nil {
		t.Fatalf("Remove unknown id error = %v", err)
	}
}

func TestRedisMirror_Closed(t *testing.T) {
	_, mirror := setupMiniredis(t)
	_ = mirror.Close()

	if err := mirror.Save(context.Background(), Session{ID: "x"}); !errors.Is(err, ErrMirrorClosed) {
		t.Fatalf("Save on closed mirror error = %v, want ErrMirrorClosed", err)
	}
}

func TestStoreWithMirror(t *testing.T) {
	_, mirror := setupMiniredis(t)
	st := NewStore(WithMirror(mirror))

	st.ApplyOrCreate("conv-1", nil, func(s *Session) { s.TurnCount += 2 })

	// Mirror writes are asynchronous best-effort.
	deadline := time.Now().Add(2 * time.Second)
	for {
		snap, err := mirror.Load(context.Background(), "conv-1")
		if err == nil && snap.TurnCount == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("mirror never observed the snapshot: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	st.Delete("conv-1")
	deadline = time.Now().Add(2 * time.Second)
	for {
		_, err := mirror.Load(context.Background(), "conv-1")
		if errors.Is(err, ErrSessionNotFound) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("mirror never observed the deletion")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
