package intel

import (
	"regexp"
	"strings"
)

// Patterns target the financial identifiers scammers ask victims to use:
// UPI-style payment handles, Indian mobile numbers, bank account digit
// runs, IFSC routing codes and phishing links.
var (
	paymentIDPattern   = regexp.MustCompile(`[a-zA-Z0-9._-]{2,}@[a-zA-Z]{2,}`)
	phonePattern       = regexp.MustCompile(`(?:\+91[\s-]?)?\b[6-9]\d{9}\b`)
	bankAccountPattern = regexp.MustCompile(`\b\d{9,18}\b`)
	routingCodePattern = regexp.MustCompile(`\b[A-Z]{4}0[A-Z0-9]{6}\b`)
	urlPattern         = regexp.MustCompile(`https?://[^\s<>"{}|\\^` + "`" + `\[\]]+`)
)

// scamKeywords are matched as lowercase substrings, multi-word entries
// included.
var scamKeywords = []string{
	"urgent", "verify", "blocked", "suspended", "immediately",
	"prize", "winner", "lottery", "claim", "expire",
	"otp", "cvv", "pin", "password", "account blocked",
}

// Extract finds every artifact candidate in text. Results preserve
// first-occurrence order within each category; deduplication is the
// aggregation layer's job. A payment handle inside a URL is reported as
// a URL only, and a digit run that parses as a phone number is not also
// reported as a bank account.
func Extract(text string) Extraction {
	out := Extraction{}

	urlSpans := urlPattern.FindAllStringIndex(text, -1)
	for _, span := range urlSpans {
		out[CategoryURL] = append(out[CategoryURL], text[span[0]:span[1]])
	}

	for _, span := range paymentIDPattern.FindAllStringIndex(text, -1) {
		if insideAny(span, urlSpans) {
			continue
		}
		out[CategoryPaymentID] = append(out[CategoryPaymentID], text[span[0]:span[1]])
	}

	phoneSpans := phonePattern.FindAllStringIndex(text, -1)
	for _, span := range phoneSpans {
		out[CategoryPhone] = append(out[CategoryPhone], text[span[0]:span[1]])
	}

	for _, span := range bankAccountPattern.FindAllStringIndex(text, -1) {
		if insideAny(span, phoneSpans) {
			continue
		}
		out[CategoryBankAccount] = append(out[CategoryBankAccount], text[span[0]:span[1]])
	}

	upper := strings.ToUpper(text)
	if codes := routingCodePattern.FindAllString(upper, -1); len(codes) > 0 {
		out[CategoryRoutingCode] = codes
	}

	lower := strings.ToLower(text)
	for _, kw := range scamKeywords {
		if strings.Contains(lower, kw) {
			out[CategoryKeyword] = append(out[CategoryKeyword], kw)
		}
	}

	// Drop empty slices so absent categories stay absent.
	for cat, vals := range out {
		if len(vals) == 0 {
			delete(out, cat)
		}
	}
	return out
}

// ExtractAll runs Extract over every message text and concatenates the
// results per category. Used to mine cold-start history supplied with
// the first message of a conversation.
func ExtractAll(texts []string) Extraction {
	out := Extraction{}
	for _, text := range texts {
		for cat, vals := range Extract(text) {
			out[cat] = append(out[cat], vals...)
		}
	}
	return out
}

func insideAny(span []int, outers [][]int) bool {
	for _, o := range outers {
		if span[0] >= o[0] && span[1] <= o[1] {
			return true
		}
	}
	return false
}
