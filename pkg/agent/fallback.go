package agent

import "strings"

// fallbackRule binds a signal-keyword group to one canned persona reply.
// Rules are evaluated top-down against the lowercased input; the first group
// with any matching word wins. This makes the selector a pure function of
// the text: identical input always yields the identical reply.
type fallbackRule struct {
	words []string
	reply string
}

var fallbackRules = []fallbackRule{
	{
		[]string{"credit", "credited", "transferred", "transfered", "sent"},
		"Sir! Someone transferred MY money?? Not done by me sir! What do I do!! I am very scared! Please help me!",
	},
	{
		[]string{"block", "blocked", "suspend", "lock", "freeze"},
		"Sir! Blocked?? My account blocked?? What do I do now sir! I am very scared! My life savings!",
	},
	{
		[]string{"verify", "confirm", "authenticate", "validate"},
		"Sir how to verify? I don't know sir. Can you explain step by step please? I am very confused!",
	},
	{
		[]string{"urgent", "immediate", "now", "quick", "hurry"},
		"Sir urgent? Should I do it now? But my son is not here sir. What if I make mistake? I am scared!",
	},
	{
		[]string{"link", "click", "url", "website", "app"},
		"Sir link? How to click link sir? Phone screen is very small. Can you call me instead? I am confused!",
	},
	{
		[]string{"upi", "paytm", "gpay", "phonepay", "phonepe"},
		"UPI sir? I only have paytm. My son manages these apps. Can I do from passbook instead?",
	},
	{
		[]string{"bank", "account", "passbook"},
		"Bank sir? Yes I have bank account. But I don't remember details sir. Let me find passbook. One minute.",
	},
	{
		[]string{"phone", "mobile", "number", "call"},
		"Phone number sir? Is this safe to give sir? What if someone misuse it? I am scared!",
	},
	{
		[]string{"otp", "code", "password", "pin"},
		"OTP sir? What is OTP beta? I don't know this technology sir. Too confused! Can you help?",
	},
}

const defaultFallback = "Sir, I don't understand. Can you explain again slowly please? I am old man, not good with phone."

// SelectFallback returns the deterministic canned reply for text. Used
// whenever the generative backend is unavailable, errored or unconfigured.
func SelectFallback(text string) string {
	lower := strings.ToLower(text)
	for _, rule := range fallbackRules {
		for _, w := range rule.words {
			if strings.Contains(lower, w) {
				return rule.reply
			}
		}
	}
	return defaultFallback
}
