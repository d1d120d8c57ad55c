// Package intel extracts structured, validated intelligence from scam
// conversation text: payment handles, bank-account-like numbers, phone
// numbers, phishing links and suspicious vocabulary hits.
//
// Extraction is a stateless single pass; accumulating findings across turns
// is the caller's job (see Record.Merge). Extraction never fails: empty or
// garbage input yields empty category slices.
package intel

import (
	"regexp"
	"strings"
)

// Pre-compiled extraction patterns (standard Indian formats).
var (
	// Token-like handle with an alphabetic suffix, dot-separated segments
	// allowed: ramesh.k@okaxis, scammer@bank.com
	rePaymentHandle = regexp.MustCompile(`[a-zA-Z0-9.\-_]{2,256}@[a-zA-Z]{2,64}(?:\.[a-zA-Z]{2,24})*`)
	// Indian mobile: optional +91, leading digit 6-9, 10 national digits
	rePhone = regexp.MustCompile(`(?:\+91[\-\s]?)?[6-9]\d{9}`)
	// Strict re-validation after stripping separators
	rePhoneStrict = regexp.MustCompile(`^(\+91)?([6-9]\d{9})$`)
	// http(s) token up to the next whitespace
	reLink = regexp.MustCompile(`https?://[^\s]+`)
	// Bank-account-like digit run; 9+ digits excludes 4-6 digit OTPs
	reAccount = regexp.MustCompile(`\b\d{9,18}\b`)
)

// SuspiciousVocabulary is the fixed fraud-indicative term list. Matches are
// reported as the literal vocabulary term, not the occurrence in the text.
var SuspiciousVocabulary = []string{
	"urgent", "verify", "blocked", "suspend", "kyc", "expire",
	"pan card", "adhaar", "otp", "password", "click here", "confirm",
	"update", "account", "bank", "upi", "paytm", "immediate",
}

// Record holds the accumulated findings for one session. Every category is an
// ordered set: insertion order preserved, no duplicates, and membership only
// ever grows (Merge adds, never removes).
type Record struct {
	PaymentHandles  []string `json:"upiIds"`
	BankAccounts    []string `json:"bankAccounts"`
	PhoneNumbers    []string `json:"phoneNumbers"`
	Links           []string `json:"phishingLinks"`
	SuspiciousTerms []string `json:"suspiciousKeywords"`
}

// NewRecord returns a Record with all categories present but empty, so JSON
// encoding emits [] rather than null for untouched categories.
func NewRecord() Record {
	return Record{
		PaymentHandles:  []string{},
		BankAccounts:    []string{},
		PhoneNumbers:    []string{},
		Links:           []string{},
		SuspiciousTerms: []string{},
	}
}

// Extract runs one extraction pass over arbitrary text.
func Extract(text string) Record {
	rec := NewRecord()
	if text == "" {
		return rec
	}

	rec.PaymentHandles = appendUnique(rec.PaymentHandles, rePaymentHandle.FindAllString(text, -1))
	rec.Links = appendUnique(rec.Links, reLink.FindAllString(text, -1))
	rec.BankAccounts = appendUnique(rec.BankAccounts, reAccount.FindAllString(text, -1))

	for _, cand := range rePhone.FindAllString(text, -1) {
		if national, ok := normalizePhone(cand); ok {
			rec.PhoneNumbers = appendUnique(rec.PhoneNumbers, []string{national})
		}
	}

	lower := strings.ToLower(text)
	for _, term := range SuspiciousVocabulary {
		if strings.Contains(lower, term) {
			rec.SuspiciousTerms = appendUnique(rec.SuspiciousTerms, []string{term})
		}
	}

	return rec
}

// normalizePhone strips separators and the country code, returning the
// 10-digit national form. Candidates that don't survive strict validation
// are rejected.
func normalizePhone(raw string) (string, bool) {
	cleaned := strings.NewReplacer("-", "", " ", "").Replace(raw)
	m := rePhoneStrict.FindStringSubmatch(cleaned)
	if m == nil {
		return "", false
	}
	return m[2], true
}

// Merge folds another record into this one, category by category. New items
// land after existing ones in first-seen order; duplicates are dropped.
func (r *Record) Merge(other Record) {
	r.PaymentHandles = appendUnique(r.PaymentHandles, other.PaymentHandles)
	r.BankAccounts = appendUnique(r.BankAccounts, other.BankAccounts)
	r.PhoneNumbers = appendUnique(r.PhoneNumbers, other.PhoneNumbers)
	r.Links = appendUnique(r.Links, other.Links)
	r.SuspiciousTerms = appendUnique(r.SuspiciousTerms, other.SuspiciousTerms)
}

// CriticalCount returns the number of items in the categories that identify a
// payment destination or a reachable counterparty. These drive the callback
// trigger.
func (r *Record) CriticalCount() int {
	return len(r.PaymentHandles) + len(r.BankAccounts) + len(r.PhoneNumbers)
}

// TotalCount returns the number of items across all five categories.
func (r *Record) TotalCount() int {
	return r.CriticalCount() + len(r.Links) + len(r.SuspiciousTerms)
}

// Clone returns a deep copy, safe to hand out after the session lock is
// released.
func (r *Record) Clone() Record {
	out := NewRecord()
	out.PaymentHandles = append(out.PaymentHandles, r.PaymentHandles...)
	out.BankAccounts = append(out.BankAccounts, r.BankAccounts...)
	out.PhoneNumbers = append(out.PhoneNumbers, r.PhoneNumbers...)
	out.Links = append(out.Links, r.Links...)
	out.SuspiciousTerms = append(out.SuspiciousTerms, r.SuspiciousTerms...)
	return out
}

func appendUnique(dst []string, items []string) []string {
	for _, item := range items {
		seen := false
		for _, existing := range dst {
			if existing == item {
				seen = true
				break
			}
		}
		if !seen {
			dst = append(dst, item)
		}
	}
	return dst
}
