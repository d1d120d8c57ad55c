package callback

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/trapwire-ai/trapwire/pkg/intel"
	"github.com/trapwire-ai/trapwire/pkg/session"
)

// stubReporter records deliveries and optionally fails them.
type stubReporter struct {
	mu       sync.Mutex
	payloads []Payload
	err      error
}

func (r *stubReporter) Report(_ context.Context, p Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.payloads = append(r.payloads, p)
	return nil
}

func (r *stubReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payloads)
}

func scamSession(id string, msgs int) *session.Session {
	s := &session.Session{ID: id, Intelligence: intel.NewRecord(), ScamDetected: true}
	for i := 0; i < msgs; i++ {
		s.Messages = append(s.Messages, session.Message{Sender: session.SenderSubject, Text: "msg"})
	}
	return s
}

func TestEvaluateFiresOnCriticalIntelligence(t *testing.T) {
	rep := &stubReporter{}
	d := NewDispatcher(rep, nil, 8)

	s := scamSession("s1", 2)
	s.Intelligence.Merge(intel.Extract("pay ram@upi now"))

	p, fired := d.Evaluate(s)
	if !fired {
		t.Fatal("expected trigger with critical intelligence")
	}
	d.Deliver(p)
	d.Wait()

	if rep.count() != 1 {
		t.Fatalf("expected 1 delivery, got %d", rep.count())
	}
	if !s.CallbackSent {
		t.Fatal("flag not committed")
	}
}

func TestEvaluateTurnThreshold(t *testing.T) {
	rep := &stubReporter{}
	d := NewDispatcher(rep, nil, 8)

	s := scamSession("s1", 0)

	// Seven full turns without critical intel: fires exactly when total
	// messages first exceed the threshold.
	fired := 0
	firedAt := 0
	for turn := 1; turn <= 7; turn++ {
		s.Messages = append(s.Messages,
			session.Message{Sender: session.SenderSubject, Text: "hello"},
			session.Message{Sender: session.SenderAgent, Text: "haan"},
		)
		if p, ok := d.Evaluate(s); ok {
			fired++
			firedAt = len(s.Messages)
			d.Deliver(p)
		}
	}
	d.Wait()

	if fired != 1 {
		t.Fatalf("expected exactly one fire, got %d", fired)
	}
	if firedAt != 10 {
		t.Fatalf("expected fire at 10 messages (first count > 8), fired at %d", firedAt)
	}
	if rep.count() != 1 {
		t.Fatalf("expected 1 delivery, got %d", rep.count())
	}
}

func TestEvaluateRequiresScamDetected(t *testing.T) {
	rep := &stubReporter{}
	d := NewDispatcher(rep, nil, 8)

	s := scamSession("s1", 20)
	s.ScamDetected = false

	if _, fired := d.Evaluate(s); fired {
		t.Fatal("must not fire without scam verdict")
	}
}

func TestEvaluateCommitsWithoutDelivering(t *testing.T) {
	rep := &stubReporter{}
	d := NewDispatcher(rep, nil, 8)

	s := scamSession("s1", 2)
	s.Intelligence.Merge(intel.Extract("pay ram@upi now"))

	p, fired := d.Evaluate(s)
	if !fired || !s.CallbackSent {
		t.Fatal("expected committed trigger")
	}
	d.Wait()
	if rep.count() != 0 {
		t.Fatal("nothing may be delivered before the caller hands off the payload")
	}

	d.Deliver(p)
	d.Wait()
	if rep.count() != 1 {
		t.Fatalf("expected 1 delivery after handoff, got %d", rep.count())
	}
}

func TestEvaluateAtMostOnceUnderConcurrency(t *testing.T) {
	rep := &stubReporter{}
	d := NewDispatcher(rep, nil, 8)
	store := session.NewMemoryStore()
	defer store.Close()

	_ = store.Update("s1", func(s *session.Session) error {
		s.ScamDetected = true
		s.Intelligence.Merge(intel.Extract("pay ram@upi"))
		return nil
	})

	var fired atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var p Payload
			var ok bool
			err := store.Update("s1", func(s *session.Session) error {
				p, ok = d.Evaluate(s)
				return nil
			})
			if err == nil && ok {
				fired.Add(1)
				d.Deliver(p)
			}
		}()
	}
	wg.Wait()
	d.Wait()

	if fired.Load() != 1 {
		t.Fatalf("trigger fired %d times, want 1", fired.Load())
	}
	if rep.count() != 1 {
		t.Fatalf("%d deliveries, want 1", rep.count())
	}
}

func TestDeliveryFailureDoesNotRearmFlag(t *testing.T) {
	rep := &stubReporter{err: errors.New("network down")}
	d := NewDispatcher(rep, nil, 8)

	s := scamSession("s1", 2)
	s.Intelligence.Merge(intel.Extract("call 9876543210"))

	p, fired := d.Evaluate(s)
	if !fired {
		t.Fatal("expected trigger")
	}
	d.Deliver(p)
	d.Wait()

	if !s.CallbackSent {
		t.Fatal("flag must stay committed after delivery failure")
	}
	if _, again := d.Evaluate(s); again {
		t.Fatal("failed delivery re-armed the trigger")
	}
}

func TestPayloadContents(t *testing.T) {
	rep := &stubReporter{}
	d := NewDispatcher(rep, nil, 8)

	s := scamSession("sess-42", 1)
	s.Messages[0].Text = "URGENT pay ram@upi or account blocked"
	s.Intelligence.Merge(intel.Extract(s.SubjectText()))

	p, fired := d.Evaluate(s)
	if !fired {
		t.Fatal("expected trigger")
	}
	d.Deliver(p)
	d.Wait()

	if rep.count() != 1 {
		t.Fatalf("expected 1 delivery, got %d", rep.count())
	}
	rep.mu.Lock()
	p = rep.payloads[0]
	rep.mu.Unlock()

	if p.SessionID != "sess-42" || !p.ScamDetected || p.TotalMessagesExchanged != 1 {
		t.Fatalf("bad payload header: %+v", p)
	}
	if len(p.ExtractedIntelligence.PaymentHandles) != 1 {
		t.Fatalf("payload missing intelligence: %+v", p.ExtractedIntelligence)
	}
	if p.AgentNotes == "" {
		t.Fatal("payload missing agent notes")
	}
}

func TestHTTPReporterPostsPayload(t *testing.T) {
	var got Payload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	rep := NewHTTPReporter(server.URL, 1)
	err := rep.Report(context.Background(), Payload{SessionID: "s1", ScamDetected: true})
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if got.SessionID != "s1" || !got.ScamDetected {
		t.Fatalf("server received %+v", got)
	}
}

func TestHTTPReporterRetriesSamePayload(t *testing.T) {
	var bodies [][]byte
	var mu sync.Mutex
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(body)
		mu.Lock()
		bodies = append(bodies, body)
		attempts++
		fail := attempts < 3
		mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	rep := NewHTTPReporter(server.URL, 3)
	if err := rep.Report(context.Background(), Payload{SessionID: "s1"}); err != nil {
		t.Fatalf("report failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(bodies) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(bodies))
	}
	for i := 1; i < len(bodies); i++ {
		if string(bodies[i]) != string(bodies[0]) {
			t.Fatalf("attempt %d resent a different payload", i)
		}
	}
}

func TestHTTPReporterGivesUpAfterMaxAttempts(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	rep := NewHTTPReporter(server.URL, 2)
	err := rep.Report(context.Background(), Payload{SessionID: "s1"})
	if err == nil {
		t.Fatal("expected delivery error")
	}
	if got := attempts.Load(); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
	if !strings.Contains(err.Error(), "after 2 attempts") {
		t.Fatalf("unexpected error %v", err)
	}
}
