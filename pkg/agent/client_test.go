package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/trapwire-ai/trapwire/pkg/session"
)

func newChatServer(t *testing.T, reply string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if len(req.Messages) == 0 || req.Messages[0].Role != "system" {
			t.Error("expected persona system message first")
		}

		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": reply}},
			},
		})
	}))
}

func TestGenerateReplyMapsRoles(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "haan ji sir"}},
			},
		})
	}))
	defer server.Close()

	client := NewClient(Config{Provider: ProviderGroq, APIKey: "k", BaseURL: server.URL})
	history := []session.Message{
		{Sender: session.SenderSubject, Text: "your account is blocked"},
		{Sender: session.SenderAgent, Text: "sir what??"},
	}
	reply, err := client.GenerateReply(context.Background(), "send your upi", history)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if reply != "haan ji sir" {
		t.Fatalf("unexpected reply %q", reply)
	}

	// system + 2 history turns + current message
	if len(captured.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(captured.Messages))
	}
	if captured.Messages[1].Role != "user" || captured.Messages[2].Role != "assistant" {
		t.Fatalf("role mapping wrong: %+v", captured.Messages)
	}
	if captured.Messages[3].Content != "send your upi" {
		t.Fatalf("current message missing: %+v", captured.Messages[3])
	}
}

func TestGenerateReplyTruncatesLongOutput(t *testing.T) {
	server := newChatServer(t, strings.Repeat("b", 400), http.StatusOK)
	defer server.Close()

	client := NewClient(Config{Provider: ProviderGroq, APIKey: "k", BaseURL: server.URL})
	reply, err := client.GenerateReply(context.Background(), "hello", nil)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if got := len([]rune(reply)); got != MaxReplyRunes {
		t.Fatalf("expected %d runes, got %d", MaxReplyRunes, got)
	}
}

func TestResponderFallsBackOnServerError(t *testing.T) {
	server := newChatServer(t, "", http.StatusInternalServerError)
	defer server.Close()

	r := NewResponder(NewClient(Config{Provider: ProviderGroq, APIKey: "k", BaseURL: server.URL}))
	reply := r.Reply(context.Background(), "your account is blocked", nil)
	if reply != SelectFallback("your account is blocked") {
		t.Fatalf("expected fallback reply, got %q", reply)
	}
}

func TestResponderWithoutBackendUsesFallback(t *testing.T) {
	r := NewResponder(NewClient(Config{Provider: ProviderNone}))
	reply := r.Reply(context.Background(), "verify your kyc", nil)
	if reply != SelectFallback("verify your kyc") {
		t.Fatalf("expected fallback reply, got %q", reply)
	}
}

func TestNewClientNoneIsNil(t *testing.T) {
	if c := NewClient(Config{Provider: ProviderNone}); c != nil {
		t.Fatal("expected nil client for provider none")
	}
	var c *Client
	if _, err := c.GenerateReply(context.Background(), "x", nil); err == nil {
		t.Fatal("nil client must error")
	}
}
