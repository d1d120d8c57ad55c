package callback

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/trapwire-ai/trapwire/pkg/httputil"
	"github.com/trapwire-ai/trapwire/pkg/intel"
	"github.com/trapwire-ai/trapwire/pkg/session"
)

// DefaultTurnThreshold is the message count past which a scam session is
// reported even without critical intelligence.
const DefaultTurnThreshold = 8

// Dispatcher owns the one-shot report decision. Evaluate must be called
// while the caller holds the session's lock: the trigger check and the
// CallbackSent flip form one atomic step, so concurrent evaluations for the
// same session cannot both fire.
type Dispatcher struct {
	reporter      Reporter
	archive       *Archive // optional audit trail
	turnThreshold int
	timeout       time.Duration

	// sem bounds in-flight deliveries so a flood of triggering sessions
	// cannot spawn unbounded goroutines.
	sem *httputil.Semaphore
	wg  sync.WaitGroup
}

// NewDispatcher wires a reporter and an optional archive. turnThreshold <= 0
// selects the default.
func NewDispatcher(reporter Reporter, archive *Archive, turnThreshold int) *Dispatcher {
	if turnThreshold <= 0 {
		turnThreshold = DefaultTurnThreshold
	}
	return &Dispatcher{
		reporter:      reporter,
		archive:       archive,
		turnThreshold: turnThreshold,
		timeout:       30 * time.Second,
		sem:           httputil.NewSemaphore(64),
	}
}

// SetTimeout overrides the per-delivery wall-clock budget. Call before
// serving traffic.
func (d *Dispatcher) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		d.timeout = timeout
	}
}

// Evaluate checks the trigger condition and, when met for the first time,
// commits the CallbackSent flag and returns the report payload. It does NOT
// deliver: the caller hands the payload to Deliver only after the session
// has been persisted, so a failed save cannot leave a delivery in flight
// for a flag the store never recorded.
//
// Caller MUST hold the session lock (i.e. call from inside Store.Update).
func (d *Dispatcher) Evaluate(s *session.Session) (Payload, bool) {
	if d == nil || d.reporter == nil {
		return Payload{}, false
	}
	if !s.ScamDetected || s.CallbackSent {
		return Payload{}, false
	}
	if s.Intelligence.CriticalCount() == 0 && len(s.Messages) <= d.turnThreshold {
		return Payload{}, false
	}

	// Commit before delivery: a delivery failure must not re-arm the
	// trigger on the next turn.
	s.CallbackSent = true

	return Payload{
		SessionID:              s.ID,
		ScamDetected:           true,
		TotalMessagesExchanged: len(s.Messages),
		ExtractedIntelligence:  s.Intelligence.Clone(),
		AgentNotes:             intel.GenerateNotes(s.SubjectText(), s.Intelligence),
	}, true
}

// Deliver hands a committed payload to asynchronous delivery; the inbound
// request never blocks on the evaluation endpoint.
func (d *Dispatcher) Deliver(p Payload) {
	if !d.sem.TryAcquire() {
		log.Printf("[WARN] callback for session %s dropped: delivery queue full (%d dropped so far)",
			p.SessionID, d.sem.DroppedCount())
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.sem.Release()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.reporter.Report(ctx, p); err != nil {
			// Logged only: the flag stays committed, no second delivery.
			log.Printf("[WARN] callback for session %s failed: %v", p.SessionID, err)
		} else {
			log.Printf("[INFO] callback sent for session %s (%d messages, %d intel items)",
				p.SessionID, p.TotalMessagesExchanged, p.ExtractedIntelligence.TotalCount())
		}

		if d.archive != nil {
			if err := d.archive.Insert(ctx, p); err != nil {
				log.Printf("[WARN] callback archive insert failed for session %s: %v", p.SessionID, err)
			}
		}
	}()
}

// Wait blocks until all in-flight deliveries finish. Shutdown and test hook.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
