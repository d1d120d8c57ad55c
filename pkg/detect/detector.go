// Package detect classifies scam intent in inbound messages using weighted
// lexical scoring with structural pattern bonuses. The classifier is a pure
// function of its inputs plus the loaded weight tables: no sampling, no
// clock, no per-call state.
package detect

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Pre-compiled structural bonus patterns.
var (
	reURL      = regexp.MustCompile(`https?://[^\s]+`)
	reIMPSRef  = regexp.MustCompile(`(?i)\b(imps|neft|rtgs|utr)\b|\bref\.?\s*no\b`)
	rePhoneTok = regexp.MustCompile(`(\+91[\-\s]?)?[6-9]\d{9}`)
	reDigitRun = regexp.MustCompile(`\b\d{9,18}\b`)
)

// Bonus weights for structural signals. A message carrying a link, a
// transaction reference or long numeric identifiers is far more likely to be
// a payment-fraud opener than keyword hits alone suggest.
const (
	urlBonus      = 2.0
	impsBonus     = 1.5
	phoneBonus    = 1.0
	digitRunBonus = 1.0
)

// Result is the transient classification outcome for one message. Score is
// diagnostic; only the Verdict feeds decision logic downstream.
type Result struct {
	Verdict bool    `json:"scam_detected"`
	Score   float64 `json:"score"`
}

// Classify scores text against the risk vocabulary and structural patterns.
// history carries the raw text of prior turns; it contributes a reduced
// bonus when earlier turns already scored above zero.
func Classify(text string, history []string) Result {
	th := GetThresholds()

	score := scoreText(text)

	// Context bonus: once a conversation has shown scam signal, later turns
	// inherit a small head start instead of re-proving intent from scratch.
	for _, prior := range history {
		if scoreText(prior) > 0 {
			score += th.HistoryBump
			break
		}
	}

	threshold := th.Base
	if utf8.RuneCountInString(text) < th.ShortRunes {
		threshold = th.Short
	}

	return Result{Verdict: score >= threshold, Score: score}
}

// scoreText computes the raw weighted score for a single message.
func scoreText(text string) float64 {
	if text == "" {
		return 0
	}
	normalized := NormalizeText(text)
	lower := strings.ToLower(normalized)
	tokens := strings.Fields(lower)

	score := 0.0
	weights := GetKeywordWeights()

	// Single-word entries match per token (substring, so "suspended" hits
	// "suspend"); multi-word phrases match the whole lowercased text.
	for k, w := range weights {
		if strings.Contains(k, " ") {
			if strings.Contains(lower, k) {
				score += w
			}
			continue
		}
		for _, tok := range tokens {
			if strings.Contains(tok, k) {
				score += w
				break
			}
		}
	}

	if reURL.MatchString(normalized) {
		score += urlBonus
	}
	if reIMPSRef.MatchString(normalized) {
		score += impsBonus
	}
	if rePhoneTok.MatchString(normalized) {
		score += phoneBonus
	}
	if runs := reDigitRun.FindAllString(normalized, -1); len(runs) > 0 {
		score += digitRunBonus * float64(len(runs))
	}

	// Victim-distress dampening: a first-person complaint about fraud uses
	// the same vocabulary as the fraud itself.
	for phrase, penalty := range getDampeners() {
		if strings.Contains(lower, phrase) {
			score -= penalty
		}
	}

	return score
}
