// Package session holds per-engagement conversation state and the store
// abstraction that serializes concurrent updates to it.
package session

import (
	"strings"
	"time"

	"github.com/trapwire-ai/trapwire/pkg/intel"
)

// Sender identifies which side of the engagement produced a message.
type Sender string

const (
	// SenderSubject is the suspected fraud-initiator.
	SenderSubject Sender = "subject"
	// SenderAgent is the decoy persona.
	SenderAgent Sender = "agent"
)

// NormalizeSender maps legacy wire values onto the two canonical senders.
// Older callers used "scammer" for the counterparty and "user" for the decoy.
func NormalizeSender(raw string) Sender {
	switch raw {
	case "scammer", "subject":
		return SenderSubject
	default:
		return SenderAgent
	}
}

// Message is one immutable conversational turn. Ordering in
// Session.Messages is append-only and significant.
type Message struct {
	Sender    Sender `json:"sender"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// Session is the unit of engagement state, keyed by the caller-supplied
// identifier. All field access goes through Store.Update, which serializes
// concurrent requests naming the same identifier.
type Session struct {
	ID       string    `json:"session_id"`
	Messages []Message `json:"messages"`

	// ScamDetected is sticky: once true it never resets.
	ScamDetected bool    `json:"scam_detected"`
	ScamScore    float64 `json:"scam_score"`

	Stage        Stage        `json:"stage"`
	Intelligence intel.Record `json:"intelligence"`

	// CallbackSent flips false→true exactly once, under the session lock,
	// before the asynchronous delivery attempt starts.
	CallbackSent bool `json:"callback_sent"`

	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// newSession returns an initialized session for an unseen identifier.
func newSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		Messages:     []Message{},
		Stage:        StageInitial,
		Intelligence: intel.NewRecord(),
		CreatedAt:    now,
		LastSeenAt:   now,
	}
}

// Append adds one turn and bumps the activity timestamp.
func (s *Session) Append(m Message) {
	s.Messages = append(s.Messages, m)
	s.LastSeenAt = time.Now()
}

// AgentTurns counts the decoy's turns, which drive stage progression.
func (s *Session) AgentTurns() int {
	n := 0
	for _, m := range s.Messages {
		if m.Sender == SenderAgent {
			n++
		}
	}
	return n
}

// SubjectText joins only the counterparty's turns. Extraction and notes run
// over this, never over the decoy's own replies, so canned vocabulary or an
// echoed number cannot pollute the intelligence record.
func (s *Session) SubjectText() string {
	var b strings.Builder
	for _, m := range s.Messages {
		if m.Sender != SenderSubject {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(m.Text)
	}
	return b.String()
}

// Clone returns a deep copy safe to use outside the store lock.
func (s *Session) Clone() *Session {
	out := *s
	out.Messages = append([]Message(nil), s.Messages...)
	out.Intelligence = s.Intelligence.Clone()
	return &out
}
