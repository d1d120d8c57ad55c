// Package engage runs the per-message decision pipeline: classify the
// inbound turn, fold new intelligence into the session, produce the
// decoy's reply, advance the engagement stage, and let the callback
// dispatcher decide whether this turn completes the report.
package engage

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/trapwire-ai/trapwire/pkg/agent"
	"github.com/trapwire-ai/trapwire/pkg/callback"
	"github.com/trapwire-ai/trapwire/pkg/detect"
	"github.com/trapwire-ai/trapwire/pkg/intel"
	"github.com/trapwire-ai/trapwire/pkg/session"
)

// ErrInvalidRequest marks client-side validation failures so the transport
// layer can map them to a 400 rather than a 500.
var ErrInvalidRequest = errors.New("invalid request")

// Request is one normalized inbound turn. History is only consulted when
// the session identifier has not been seen before; for known sessions the
// store's own message log is authoritative.
type Request struct {
	SessionID string
	Sender    string
	Text      string
	Timestamp string
	History   []session.Message
}

// Response is what the transport layer returns to the caller.
type Response struct {
	SessionID    string        `json:"sessionId"`
	Reply        string        `json:"reply"`
	ScamDetected bool          `json:"scamDetected"`
	Stage        session.Stage `json:"stage"`
}

// Pipeline wires the stateless decision components to the session store
// and the two external collaborators.
type Pipeline struct {
	store      session.Store
	responder  *agent.Responder
	dispatcher *callback.Dispatcher
	semantic   *detect.SemanticDetector
}

// NewPipeline builds a pipeline. dispatcher may be nil when callback
// delivery is disabled.
func NewPipeline(store session.Store, responder *agent.Responder, dispatcher *callback.Dispatcher) *Pipeline {
	return &Pipeline{
		store:      store,
		responder:  responder,
		dispatcher: dispatcher,
	}
}

// SetSemanticDetector attaches the optional embedding-similarity signal.
// Call before serving traffic; the field is not guarded.
func (p *Pipeline) SetSemanticDetector(d *detect.SemanticDetector) {
	p.semantic = d
}

// HandleMessage runs one turn through the pipeline. The whole update —
// classification, intelligence merge, both message appends, stage
// advance, callback evaluation — happens inside a single store borrow,
// so concurrent requests naming the same session serialize cleanly.
// Callback delivery starts only once the store has committed the turn.
func (p *Pipeline) HandleMessage(ctx context.Context, req Request) (Response, error) {
	if req.SessionID == "" {
		return Response{}, fmt.Errorf("%w: sessionId is required", ErrInvalidRequest)
	}
	if req.Text == "" {
		return Response{}, fmt.Errorf("%w: message text is required", ErrInvalidRequest)
	}

	var resp Response
	var payload callback.Payload
	var fired bool
	err := p.store.Update(req.SessionID, func(s *session.Session) error {
		// First sight of this identifier: adopt the caller-supplied
		// history so mid-conversation handoffs keep their context.
		if len(s.Messages) == 0 && len(req.History) > 0 {
			s.Messages = append(s.Messages, req.History...)
		}

		result := p.classify(ctx, req.Text, priorTexts(s.Messages))
		if result.Verdict {
			s.ScamDetected = true
		}
		s.ScamScore = result.Score

		history := make([]session.Message, len(s.Messages))
		copy(history, s.Messages)

		s.Append(session.Message{
			Sender:    session.NormalizeSender(req.Sender),
			Text:      req.Text,
			Timestamp: req.Timestamp,
		})

		s.Intelligence.Merge(p.extract(s.SubjectText()))

		reply := p.responder.Reply(ctx, req.Text, history)
		s.Append(session.Message{
			Sender:    session.SenderAgent,
			Text:      reply,
			Timestamp: req.Timestamp,
		})

		s.AdvanceStage()

		if p.dispatcher != nil {
			payload, fired = p.dispatcher.Evaluate(s)
		}

		resp = Response{
			SessionID:    s.ID,
			Reply:        reply,
			ScamDetected: s.ScamDetected,
			Stage:        s.Stage,
		}
		return nil
	})
	if err != nil {
		return Response{}, err
	}

	// Delivery only after the store committed the turn. If the save failed,
	// the CallbackSent flag was discarded with it, and delivering anyway
	// would let the next turn fire a duplicate report.
	if fired {
		p.dispatcher.Deliver(payload)
	}
	return resp, nil
}

// classify runs the lexical detector, degrading a panic to "no signal":
// a dropped verdict on one turn beats a failed request.
func (p *Pipeline) classify(ctx context.Context, text string, history []string) (res detect.Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[WARN] detector panic recovered, treating as no signal: %v", r)
			res = detect.Result{}
		}
	}()
	res = detect.Classify(text, history)

	// Auxiliary similarity signal, diagnostic only.
	if p.semantic != nil && p.semantic.IsReady() {
		if sem, err := p.semantic.Detect(ctx, text); err == nil && sem != nil && sem.IsScam {
			log.Printf("[INFO] semantic match category=%s score=%.2f", sem.Category, sem.Score)
		}
	}
	return res
}

// extract mirrors classify's degradation policy for the extractor.
func (p *Pipeline) extract(conversation string) (rec intel.Record) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[WARN] extractor panic recovered, treating as empty: %v", r)
			rec = intel.NewRecord()
		}
	}()
	return intel.Extract(conversation)
}

func priorTexts(msgs []session.Message) []string {
	if len(msgs) == 0 {
		return nil
	}
	texts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Sender == session.SenderSubject {
			texts = append(texts, m.Text)
		}
	}
	return texts
}
