package intel

import "strings"

// tacticGroup maps a trigger word list to the tactic label reported in the
// callback's agentNotes field.
type tacticGroup struct {
	words []string
	label string
}

var tacticGroups = []tacticGroup{
	{[]string{"urgent", "immediately", "now", "today", "blocked", "suspend", "expire"}, "urgency tactics"},
	{[]string{"bank", "rbi", "police", "government", "sbi", "hdfc", "icici", "kyc"}, "authority impersonation"},
	{[]string{"winner", "prize", "lottery", "lakh", "crore", "congratulations"}, "prize/lottery fraud"},
	{[]string{"otp", "password", "pin", "cvv", "card number"}, "credential harvesting"},
}

// GenerateNotes summarizes the tactics inferred from the conversation text
// and the accumulated intelligence. The output is the free-text agentNotes
// field of the evaluation callback.
func GenerateNotes(conversation string, rec Record) string {
	lower := strings.ToLower(conversation)
	var tactics []string

	for _, g := range tacticGroups {
		for _, w := range g.words {
			if strings.Contains(lower, w) {
				tactics = append(tactics, g.label)
				break
			}
		}
	}

	// Intelligence-derived tactics sit between urgency and impersonation in
	// reporting priority.
	if len(rec.PaymentHandles) > 0 || len(rec.BankAccounts) > 0 {
		tactics = insertAfterUrgency(tactics, "payment redirection")
	}
	if len(rec.Links) > 0 {
		tactics = insertAfterUrgency(tactics, "phishing link distribution")
	}

	if len(tactics) == 0 {
		return "Scammer engaged but specific tactics unclear. Monitoring continued."
	}
	return "Scammer used " + strings.Join(tactics, ", ") + ". Intelligence extracted successfully."
}

func insertAfterUrgency(tactics []string, label string) []string {
	for _, t := range tactics {
		if t == label {
			return tactics
		}
	}
	idx := 0
	if len(tactics) > 0 && tactics[0] == "urgency tactics" {
		idx = 1
	}
	out := make([]string, 0, len(tactics)+1)
	out = append(out, tactics[:idx]...)
	out = append(out, label)
	out = append(out, tactics[idx:]...)
	return out
}
