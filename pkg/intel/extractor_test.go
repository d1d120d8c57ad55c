package intel

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestExtractPaymentHandleAndPhone(t *testing.T) {
	rec := Extract("Send money to scammer@bank.com or call +919876543210")

	if len(rec.PaymentHandles) != 1 {
		t.Fatalf("expected 1 payment handle, got %v", rec.PaymentHandles)
	}
	if rec.PaymentHandles[0] != "scammer@bank.com" {
		t.Fatalf("expected the full domain-form handle, got %q", rec.PaymentHandles[0])
	}
	if len(rec.PhoneNumbers) != 1 {
		t.Fatalf("expected 1 phone number, got %v", rec.PhoneNumbers)
	}
	if rec.PhoneNumbers[0] != "9876543210" {
		t.Fatalf("expected national 10-digit form, got %q", rec.PhoneNumbers[0])
	}
}

func TestExtractLinkAndSuspiciousTerms(t *testing.T) {
	rec := Extract("Your bank account has been suspended due to suspicious activity. Click here to verify: http://fake-bank-verify.com/secure")

	if len(rec.Links) != 1 || rec.Links[0] != "http://fake-bank-verify.com/secure" {
		t.Fatalf("expected the phishing link, got %v", rec.Links)
	}
	found := map[string]bool{}
	for _, term := range rec.SuspiciousTerms {
		found[term] = true
	}
	for _, want := range []string{"suspend", "bank", "account", "verify", "click here"} {
		if !found[want] {
			t.Errorf("expected suspicious term %q in %v", want, rec.SuspiciousTerms)
		}
	}
}

func TestExtractRejectsShortDigitRuns(t *testing.T) {
	// OTPs (4-6 digits) must not be mistaken for account numbers.
	rec := Extract("Your OTP is 482913, do not share it")
	if len(rec.BankAccounts) != 0 {
		t.Fatalf("expected no bank accounts for an OTP, got %v", rec.BankAccounts)
	}

	rec = Extract("Transfer to account 123456789012")
	if len(rec.BankAccounts) != 1 || rec.BankAccounts[0] != "123456789012" {
		t.Fatalf("expected one 12-digit account, got %v", rec.BankAccounts)
	}
}

func TestExtractRejectsInvalidPhonePrefix(t *testing.T) {
	// National numbers must start with 6-9.
	rec := Extract("call 1234567890 please")
	if len(rec.PhoneNumbers) != 0 {
		t.Fatalf("expected no phone numbers, got %v", rec.PhoneNumbers)
	}
}

func TestExtractPhoneWithSeparators(t *testing.T) {
	rec := Extract("reach me at +91 9876543210")
	if len(rec.PhoneNumbers) != 1 || rec.PhoneNumbers[0] != "9876543210" {
		t.Fatalf("expected normalized phone, got %v", rec.PhoneNumbers)
	}
}

func TestExtractDeduplicatesPreservingOrder(t *testing.T) {
	rec := Extract("pay ram@upi then ram@upi then shyam@paytm")
	if len(rec.PaymentHandles) != 2 {
		t.Fatalf("expected 2 unique handles, got %v", rec.PaymentHandles)
	}
	if rec.PaymentHandles[0] != "ram@upi" || rec.PaymentHandles[1] != "shyam@paytm" {
		t.Fatalf("first-seen order not preserved: %v", rec.PaymentHandles)
	}
}

func TestExtractEmptyInput(t *testing.T) {
	rec := Extract("")
	if rec.TotalCount() != 0 {
		t.Fatalf("expected empty record, got %+v", rec)
	}

	rec = Extract("Hi, how are you?")
	if rec.TotalCount() != 0 {
		t.Fatalf("expected empty record for benign text, got %+v", rec)
	}
}

func TestRecordMergeIsMonotonic(t *testing.T) {
	acc := NewRecord()
	acc.Merge(Extract("pay ram@upi now"))
	sizeAfterFirst := acc.TotalCount()

	acc.Merge(Extract("call 9876543210"))
	if acc.TotalCount() < sizeAfterFirst {
		t.Fatal("merge removed items")
	}
	if acc.PaymentHandles[0] != "ram@upi" {
		t.Fatalf("merge reordered earlier items: %v", acc.PaymentHandles)
	}

	// Merging the same findings again must not grow the record.
	before := acc.TotalCount()
	acc.Merge(Extract("call 9876543210"))
	if acc.TotalCount() != before {
		t.Fatalf("duplicate merge grew record from %d to %d", before, acc.TotalCount())
	}
}

func TestRecordJSONUsesWireNames(t *testing.T) {
	data, err := json.Marshal(NewRecord())
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	s := string(data)
	for _, field := range []string{"upiIds", "bankAccounts", "phishingLinks", "phoneNumbers", "suspiciousKeywords"} {
		if !strings.Contains(s, `"`+field+`":[]`) {
			t.Errorf("expected empty array for %q, got %s", field, s)
		}
	}
}

func TestGenerateNotes(t *testing.T) {
	rec := Extract("URGENT: your bank account is blocked, pay to ram@upi")
	notes := GenerateNotes("URGENT: your bank account is blocked, pay to ram@upi", rec)

	for _, want := range []string{"urgency tactics", "payment redirection", "authority impersonation"} {
		if !strings.Contains(notes, want) {
			t.Errorf("expected %q in notes %q", want, notes)
		}
	}

	empty := GenerateNotes("hello there", NewRecord())
	if !strings.Contains(empty, "tactics unclear") {
		t.Errorf("expected fallback notes, got %q", empty)
	}
}
