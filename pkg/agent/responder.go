package agent

import (
	"context"
	"log"
	"strings"

	"github.com/trapwire-ai/trapwire/pkg/session"
)

// Responder is the reply source the pipeline consumes. It never fails: a
// backend error degrades to the deterministic fallback table.
type Responder struct {
	client *Client // nil means fallback-only
}

// NewResponder wraps an optional generative client.
func NewResponder(client *Client) *Responder {
	return &Responder{client: client}
}

// Reply returns the decoy's next line for text. The generative backend is
// tried first when configured; any failure selects the canned reply for the
// message's signal group instead. Errors never escape to the caller.
func (r *Responder) Reply(ctx context.Context, text string, history []session.Message) string {
	if r.client != nil {
		reply, err := r.client.GenerateReply(ctx, text, history)
		if err == nil {
			if trimmed := strings.TrimSpace(reply); trimmed != "" {
				return trimmed
			}
		} else {
			log.Printf("[WARN] generative backend failed, using fallback: %v", err)
		}
	}
	return SelectFallback(text)
}
