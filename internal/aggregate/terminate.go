package aggregate

import "github.com/decoynet/decoyd/internal/session"

// Default thresholds, matching the conversation settings the service
// ships with.
const (
	DefaultMaxTurns     = 10
	DefaultMinArtifacts = 2
)

// Thresholds holds the two independent termination caps.
type Thresholds struct {
	// MaxTurns closes a conversation once it has run this many turns,
	// productive or not.
	MaxTurns int
	// MinArtifacts closes a conversation once this many distinct
	// non-keyword artifacts have been harvested, however short it was.
	MinArtifacts int
}

// DefaultThresholds returns the stock caps.
func DefaultThresholds() Thresholds {
	return Thresholds{MaxTurns: DefaultMaxTurns, MinArtifacts: DefaultMinArtifacts}
}

// ShouldFinalize reports whether the session has yielded enough value to
// stop: either cap alone suffices. Keyword hits never count toward the
// artifact cap. Pure predicate over the snapshot.
func ShouldFinalize(s *session.Session, t Thresholds) bool {
	if t.MaxTurns > 0 && s.TurnCount >= t.MaxTurns {
		return true
	}
	if t.MinArtifacts > 0 && s.CountableArtifacts() >= t.MinArtifacts {
		return true
	}
	return false
}
