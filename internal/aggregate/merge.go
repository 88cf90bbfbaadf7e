// Package aggregate implements the merge rules that fold one message's
// classification and extraction results into a session's cumulative
// state, and the termination predicate evaluated on the merged result.
//
// Everything here is pure with respect to its inputs: no I/O, no clock
// reads, no allocation visible outside the session being mutated. That
// is what makes Merge safe to run inside the session store's atomic
// Apply.
package aggregate

import (
	"sort"

	"github.com/decoynet/decoyd/internal/intel"
	"github.com/decoynet/decoyd/internal/session"
)

// Merge folds one exchange into s. The inbound turn and the agent's
// reply are appended to history and counted as two turns; the scam flag
// ORs, confidence takes the max, and the signal and artifact sets union
// with exact-string deduplication. Merging the same results twice is
// idempotent for everything except history and turn count.
func Merge(s *session.Session, verdict intel.Verdict, found intel.Extraction, inbound, reply session.Turn) {
	s.History = append(s.History, inbound, reply)
	s.TurnCount += 2

	s.ScamConfirmed = s.ScamConfirmed || verdict.IsScam
	if verdict.Confidence > s.Confidence {
		s.Confidence = verdict.Confidence
	}
	s.IntentSignals = unionSorted(s.IntentSignals, verdict.Signals)

	for cat, vals := range found {
		if len(vals) == 0 {
			continue
		}
		if s.Artifacts == nil {
			s.Artifacts = make(map[intel.Category][]string)
		}
		s.Artifacts[cat] = unionSorted(s.Artifacts[cat], vals)
	}
}

// unionSorted inserts each value into the sorted set, keeping it sorted
// and free of exact-string duplicates. No normalization is applied:
// "IFSC0001" and "ifsc0001" stay distinct.
func unionSorted(set []string, values []string) []string {
	for _, v := range values {
		i := sort.SearchStrings(set, v)
		if i < len(set) && set[i] == v {
			continue
		}
		set = append(set, "")
		copy(set[i+1:], set[i:])
		set[i] = v
	}
	return set
}
