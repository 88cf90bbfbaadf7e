package intel

import (
	"sort"
	"strings"
)

// intentKeywords maps trigger phrases to the named signal they evidence.
// Matching is lowercase substring, same as keyword extraction.
var intentKeywords = map[string]string{
	"urgent":       "urgency",
	"immediately":  "urgency",
	"limited time": "urgency",
	"act now":      "urgency",
	"expire":       "urgency",
	"blocked":      "account_threat",
	"suspended":    "account_threat",
	"account":      "account_threat",
	"bank":         "account_threat",
	"verify":       "credential_request",
	"otp":          "credential_request",
	"cvv":          "credential_request",
	"pin":          "credential_request",
	"password":     "credential_request",
	"kyc":          "credential_request",
	"transfer":     "payment_request",
	"pay":          "payment_request",
	"upi":          "payment_request",
	"lottery":      "lure",
	"winner":       "lure",
	"prize":        "lure",
	"claim":        "lure",
}

// Classify scores a message for scam intent by counting trigger-phrase
// hits. Two or more hits confirm a scam with confidence scaling up with
// the hit count; a single hit is a weak confirmation; a clean message
// keeps a small floor confidence rather than zero. The history argument
// is accepted for interface parity with model-backed classifiers and is
// unused by the keyword scorer.
func Classify(text string, history []string) Verdict {
	_ = history

	lower := strings.ToLower(text)
	hits := 0
	signalSet := map[string]struct{}{}
	for kw, signal := range intentKeywords {
		if strings.Contains(lower, kw) {
			hits++
			signalSet[signal] = struct{}{}
		}
	}

	signals := make([]string, 0, len(signalSet))
	for s := range signalSet {
		signals = append(signals, s)
	}
	sort.Strings(signals)

	switch {
	case hits >= 2:
		confidence := 0.5 + float64(hits)*0.1
		if confidence > 0.99 {
			confidence = 0.99
		}
		return Verdict{IsScam: true, Confidence: confidence, Signals: signals}
	case hits == 1:
		return Verdict{IsScam: true, Confidence: 0.4, Signals: signals}
	default:
		return Verdict{IsScam: false, Confidence: 0.1}
	}
}
