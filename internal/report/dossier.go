// Package report builds the final dossier for a terminated conversation
// and delivers it to the external intelligence sink.
package report

import (
	"fmt"
	"strings"

	"github.com/decoynet/decoyd/internal/intel"
	"github.com/decoynet/decoyd/internal/session"
)

// Dossier is the consolidated report delivered to the sink, exactly
// once per conversation.
type Dossier struct {
	SessionID              string       `json:"sessionId"`
	ScamDetected           bool         `json:"scamDetected"`
	TotalMessagesExchanged int          `json:"totalMessagesExchanged"`
	ExtractedIntelligence  Intelligence `json:"extractedIntelligence"`
	AgentNotes             string       `json:"agentNotes"`
}

// Intelligence groups the harvested artifacts by category. Slices are
// always non-nil so the wire shape carries every key.
type Intelligence struct {
	PaymentIDs    []string `json:"paymentIds"`
	BankAccounts  []string `json:"bankAccounts"`
	PhoneNumbers  []string `json:"phoneNumbers"`
	RoutingCodes  []string `json:"routingCodes"`
	PhishingLinks []string `json:"phishingLinks"`
	KeywordHits   []string `json:"keywordHits"`
}

// Build assembles an immutable dossier from a session snapshot.
func Build(snap session.Session) Dossier {
	return Dossier{
		SessionID:              snap.ID,
		ScamDetected:           snap.ScamConfirmed,
		TotalMessagesExchanged: snap.TurnCount,
		ExtractedIntelligence: Intelligence{
			PaymentIDs:    artifactList(snap, intel.CategoryPaymentID),
			BankAccounts:  artifactList(snap, intel.CategoryBankAccount),
			PhoneNumbers:  artifactList(snap, intel.CategoryPhone),
			RoutingCodes:  artifactList(snap, intel.CategoryRoutingCode),
			PhishingLinks: artifactList(snap, intel.CategoryURL),
			KeywordHits:   artifactList(snap, intel.CategoryKeyword),
		},
		AgentNotes: Notes(snap),
	}
}

// categoryNoun is the human label used in notes, singular.
var categoryNoun = map[intel.Category]string{
	intel.CategoryPaymentID:   "payment ID",
	intel.CategoryBankAccount: "bank account",
	intel.CategoryPhone:       "phone number",
	intel.CategoryRoutingCode: "routing code",
	intel.CategoryURL:         "phishing link",
	intel.CategoryKeyword:     "keyword hit",
}

// Notes synthesizes a short advisory summary of the conversation:
// verdict with confidence percentage, observed tactics, per-category
// artifact counts and conversation length. Deterministic for a given
// snapshot; the text is read by analysts, not parsed downstream.
func Notes(snap session.Session) string {
	var parts []string

	if snap.ScamConfirmed {
		parts = append(parts, fmt.Sprintf("Scam detected with %.0f%% confidence.", snap.Confidence*100))
	} else {
		parts = append(parts, "No scam detected.")
	}

	if len(snap.IntentSignals) > 0 {
		parts = append(parts, fmt.Sprintf("Tactics used: %s.", strings.Join(snap.IntentSignals, ", ")))
	}

	var found []string
	for _, cat := range intel.Categories() {
		if n := len(snap.Artifacts[cat]); n > 0 {
			found = append(found, fmt.Sprintf("%d %s(s)", n, categoryNoun[cat]))
		}
	}
	if len(found) > 0 {
		parts = append(parts, fmt.Sprintf("Extracted: %s.", strings.Join(found, ", ")))
	}

	parts = append(parts, fmt.Sprintf("Conversation lasted %d messages.", snap.TurnCount))
	return strings.Join(parts, " ")
}

func artifactList(snap session.Session, cat intel.Category) []string {
	vals := snap.Artifacts[cat]
	if vals == nil {
		return []string{}
	}
	return vals
}
