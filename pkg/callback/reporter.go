// Package callback decides when a session's findings are reported to the
// external evaluation endpoint and guarantees that the report fires at most
// once per session.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/trapwire-ai/trapwire/pkg/httputil"
	"github.com/trapwire-ai/trapwire/pkg/intel"
)

// Payload is the wire shape of the evaluation report.
type Payload struct {
	SessionID              string       `json:"sessionId"`
	ScamDetected           bool         `json:"scamDetected"`
	TotalMessagesExchanged int          `json:"totalMessagesExchanged"`
	ExtractedIntelligence  intel.Record `json:"extractedIntelligence"`
	AgentNotes             string       `json:"agentNotes"`
}

// Reporter delivers one already-committed payload. Implementations may retry
// internally but must only ever resend the same payload.
type Reporter interface {
	Report(ctx context.Context, p Payload) error
}

// HTTPReporter POSTs payloads with a short timeout and bounded backoff.
type HTTPReporter struct {
	url         string
	client      *http.Client
	maxAttempts int
}

// NewHTTPReporter targets url. maxAttempts below 1 means a single attempt.
func NewHTTPReporter(url string, maxAttempts int) *HTTPReporter {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &HTTPReporter{
		url:         url,
		client:      httputil.Client(httputil.TierFast),
		maxAttempts: maxAttempts,
	}
}

// Report implements Reporter. Retries resend the identical body; the trigger
// decision was committed before Report was called and is never revisited.
func (r *HTTPReporter) Report(ctx context.Context, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal callback payload: %w", err)
	}

	backoff := 500 * time.Millisecond
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				return fmt.Errorf("callback delivery cancelled: %w", ctx.Err())
			}
		}

		lastErr = r.post(ctx, body)
		if lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("callback delivery failed after %d attempts: %w", r.maxAttempts, lastErr)
}

func (r *HTTPReporter) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("callback request: %w", err)
	}
	defer httputil.DrainAndClose(resp.Body)

	if resp.StatusCode >= 300 {
		msg, _ := httputil.ReadErrorBody(resp.Body)
		return fmt.Errorf("callback endpoint returned %d: %s", resp.StatusCode, msg)
	}
	return nil
}
