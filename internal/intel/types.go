// Package intel turns raw message text into structured scam intelligence:
// typed artifact candidates (payment handles, account numbers, phone
// numbers, routing codes, links, keyword hits) and a scam-intent verdict.
//
// Both the extractor and the detector are pure functions over their
// inputs. They perform no I/O, which lets the engine run them inside (or
// concurrently ahead of) an atomic session mutation.
package intel

// Category identifies one class of extracted artifact.
type Category string

const (
	CategoryPaymentID   Category = "payment_id"
	CategoryBankAccount Category = "bank_account"
	CategoryPhone       Category = "phone"
	CategoryRoutingCode Category = "routing_code"
	CategoryURL         Category = "url"
	CategoryKeyword     Category = "keyword"
)

// Categories lists every artifact category in a stable order.
func Categories() []Category {
	return []Category{
		CategoryPaymentID,
		CategoryBankAccount,
		CategoryPhone,
		CategoryRoutingCode,
		CategoryURL,
		CategoryKeyword,
	}
}

// Countable reports whether artifacts in this category count toward the
// termination threshold. Keyword hits are corroborating signal, not
// actionable intelligence, so they are excluded.
func (c Category) Countable() bool {
	return c != CategoryKeyword
}

// Extraction maps artifact categories to the candidate values found in a
// single message. Absent categories are treated as empty.
type Extraction map[Category][]string

// Total returns the number of candidates across all categories,
// duplicates included.
func (e Extraction) Total() int {
	n := 0
	for _, vals := range e {
		n += len(vals)
	}
	return n
}

// Verdict is the intent classifier's judgment of a single message in the
// context of the conversation so far.
type Verdict struct {
	// IsScam is true when the message shows scam intent.
	IsScam bool
	// Confidence is the classifier's certainty in [0,1].
	Confidence float64
	// Signals names the behavioral indicators observed, e.g. "urgency"
	// or "credential_request".
	Signals []string
}
