// Package agent produces the decoy's replies: a persona-driven generative
// backend when one is configured and reachable, and a deterministic
// content-keyed fallback table otherwise.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/trapwire-ai/trapwire/pkg/httputil"
	"github.com/trapwire-ai/trapwire/pkg/session"
)

// Provider selects which OpenAI-compatible chat endpoint serves the persona.
type Provider string

const (
	ProviderNone       Provider = "none"
	ProviderGroq       Provider = "groq"
	ProviderOpenRouter Provider = "openrouter"
	ProviderOllama     Provider = "ollama"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Config describes the generative backend.
type Config struct {
	Provider Provider
	APIKey   string
	Model    string
	BaseURL  string // optional override
	Timeout  time.Duration
}

// Client calls an OpenAI-compatible chat-completions endpoint with the decoy
// persona. All failures are expected to be recovered by the caller via the
// fallback selector.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	timeout    time.Duration
}

// NewClient builds a persona client, or nil when Provider is "none" or
// unset. A nil *Client is valid and simply reports itself unavailable.
func NewClient(cfg Config) *Client {
	if cfg.Provider == ProviderNone || cfg.Provider == "" {
		return nil
	}

	baseURL := cfg.BaseURL
	model := cfg.Model
	switch cfg.Provider {
	case ProviderGroq:
		if baseURL == "" {
			baseURL = "https://api.groq.com/openai/v1"
		}
		if model == "" {
			model = "llama-3.3-70b-versatile"
		}
	case ProviderOllama:
		if baseURL == "" {
			baseURL = "http://localhost:11434/v1"
		}
		if model == "" {
			model = "qwen2.5:7b"
		}
	case ProviderOpenRouter:
		fallthrough
	default:
		if baseURL == "" {
			baseURL = "https://openrouter.ai/api/v1"
		}
		if model == "" {
			model = "meta-llama/llama-3.3-70b-instruct:free"
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}

	return &Client{
		httpClient: httputil.Client(httputil.TierMedium),
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		model:      model,
		timeout:    timeout,
	}
}

// GenerateReply asks the backend for the persona's next line. History is
// role-tagged: subject turns become user messages, agent turns assistant
// messages. The reply is truncated to MaxReplyRunes.
func (c *Client) GenerateReply(ctx context.Context, text string, history []session.Message) (string, error) {
	if c == nil {
		return "", fmt.Errorf("generative backend not configured")
	}

	messages := make([]chatMessage, 0, len(history)+2)
	messages = append(messages, chatMessage{Role: "system", Content: PersonaPrompt})
	for _, m := range history {
		role := "assistant"
		if m.Sender == session.SenderSubject {
			role = "user"
		}
		messages = append(messages, chatMessage{Role: role, Content: m.Text})
	}
	messages = append(messages, chatMessage{Role: "user", Content: text})

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   60,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer httputil.DrainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		msg, _ := httputil.ReadErrorBody(resp.Body)
		return "", fmt.Errorf("chat endpoint returned %d: %s", resp.StatusCode, msg)
	}

	raw, err := httputil.ReadResponseBody(resp.Body, httputil.MaxResponseSize)
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("chat endpoint returned no choices")
	}

	return TruncateReply(parsed.Choices[0].Message.Content), nil
}

// TruncateReply bounds a reply to MaxReplyRunes without splitting a rune.
func TruncateReply(reply string) string {
	runes := []rune(reply)
	if len(runes) <= MaxReplyRunes {
		return reply
	}
	return string(runes[:MaxReplyRunes])
}
