// Package httputil provides pooled HTTP clients and safe response
// handling for the trapwire gateway's outbound calls.
package httputil

import (
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

// MaxResponseSize caps response body reads. Upstream services we talk
// to (LLM backends, embedding servers, callback endpoints) should never
// legitimately return more than this.
const MaxResponseSize = 10 * 1024 * 1024 // 10MB

// One transport for the whole process so TCP connections get reused
// across callback deliveries and generation requests.
var sharedTransport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	ForceAttemptHTTP2:     true,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   10,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
}

// TimeoutTier groups outbound operations by how long they are allowed
// to run.
type TimeoutTier int

const (
	// TierFast for callback posts and health probes (5s)
	TierFast TimeoutTier = iota
	// TierMedium for generation and embedding calls (30s)
	TierMedium
	// TierSlow for batch or model-warmup operations (60s)
	TierSlow
)

var timeoutDurations = map[TimeoutTier]time.Duration{
	TierFast:   5 * time.Second,
	TierMedium: 30 * time.Second,
	TierSlow:   60 * time.Second,
}

var (
	tierClients map[TimeoutTier]*http.Client
	clientOnce  sync.Once
)

func initClients() {
	tierClients = make(map[TimeoutTier]*http.Client, len(timeoutDurations))
	for tier, d := range timeoutDurations {
		tierClients[tier] = &http.Client{
			Timeout:   d,
			Transport: sharedTransport,
		}
	}
}

// Client returns the shared HTTP client for the given timeout tier.
// Callers must not mutate the returned client; per-request deadlines
// belong in the request context.
func Client(tier TimeoutTier) *http.Client {
	clientOnce.Do(initClients)
	if c, ok := tierClients[tier]; ok {
		return c
	}
	return tierClients[TierMedium]
}

// ReadResponseBody reads a response body up to maxSize bytes. Pass 0
// to use MaxResponseSize.
func ReadResponseBody(r io.Reader, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = MaxResponseSize
	}
	return io.ReadAll(io.LimitReader(r, maxSize))
}

// ReadErrorBody reads a non-2xx response body for diagnostics. Error
// payloads are small, so the limit is tighter than MaxResponseSize.
func ReadErrorBody(r io.Reader) ([]byte, error) {
	const maxErrorSize = 1 * 1024 * 1024
	return io.ReadAll(io.LimitReader(r, maxErrorSize))
}

// DrainAndClose drains and closes a response body so the underlying
// connection returns to the pool.
func DrainAndClose(body io.ReadCloser) {
	if body != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(body, MaxResponseSize))
		_ = body.Close()
	}
}
