// Package session holds cumulative per-conversation state and the
// concurrency-safe keyed store that owns it.
//
// All mutation flows through the Store. Callers never hold a live
// *Session outside the store's synchronization boundary; reads hand out
// deep-copied snapshots.
package session

import (
	"time"

	"github.com/decoynet/decoyd/internal/intel"
)

// Speaker labels for history turns.
const (
	SpeakerScammer = "scammer"
	SpeakerAgent   = "agent"
)

// Turn is a single message in the conversation history, append-only.
type Turn struct {
	ID        string    `json:"id"`
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the cumulative intelligence state for one conversation.
//
// TurnCount, Confidence, ScamConfirmed, IntentSignals and Artifacts are
// monotone for the lifetime of the session: counts and confidence never
// decrease, the confirmed flag never clears, and the signal and artifact
// sets only grow. IntentSignals is kept sorted; each Artifacts slice is a
// sorted set with exact-string deduplication.
type Session struct {
	ID            string                      `json:"id"`
	CreatedAt     time.Time                   `json:"createdAt"`
	UpdatedAt     time.Time                   `json:"updatedAt"`
	TurnCount     int                         `json:"turnCount"`
	ScamConfirmed bool                        `json:"scamConfirmed"`
	Confidence    float64                     `json:"confidence"`
	IntentSignals []string                    `json:"intentSignals,omitempty"`
	Artifacts     map[intel.Category][]string `json:"artifacts,omitempty"`
	History       []Turn                      `json:"history,omitempty"`
	Reported      bool                        `json:"reported"`
}

// Clone returns a deep copy safe to use outside the store's locks.
func (s *Session) Clone() Session {
	out := *s
	out.IntentSignals = append([]string(nil), s.IntentSignals...)
	out.History = append([]Turn(nil), s.History...)
	if s.Artifacts != nil {
		out.Artifacts = make(map[intel.Category][]string, len(s.Artifacts))
		for cat, vals := range s.Artifacts {
			out.Artifacts[cat] = append([]string(nil), vals...)
		}
	}
	return out
}

// CountableArtifacts returns the number of distinct artifacts across all
// categories that count toward termination (everything except keywords).
func (s *Session) CountableArtifacts() int {
	n := 0
	for cat, vals := range s.Artifacts {
		if cat.Countable() {
			n += len(vals)
		}
	}
	return n
}
