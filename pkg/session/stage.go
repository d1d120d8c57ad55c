package session

import "github.com/trapwire-ai/trapwire/pkg/intel"

// Stage is the ordinal marker of engagement progress. It only ever moves
// forward within a session.
type Stage string

const (
	StageInitial    Stage = "initial"
	StageInterested Stage = "interested"
	StageEngaged    Stage = "engaged"
	StageExtracting Stage = "extracting"
)

// stageRank orders stages for the monotonic advance.
var stageRank = map[Stage]int{
	StageInitial:    0,
	StageInterested: 1,
	StageEngaged:    2,
	StageExtracting: 3,
}

// ComputeStage derives the stage from the decoy's turn count and which
// critical intelligence categories are still missing. Pure function.
func ComputeStage(agentTurns int, rec intel.Record) Stage {
	switch {
	case agentTurns == 0:
		return StageInitial
	case agentTurns <= 2:
		return StageInterested
	case agentTurns <= 5:
		// Keep the engagement warm while a payment handle, account number
		// or link is still missing; otherwise push for specifics.
		if len(rec.PaymentHandles) == 0 || len(rec.BankAccounts) == 0 || len(rec.Links) == 0 {
			return StageEngaged
		}
		return StageExtracting
	default:
		return StageExtracting
	}
}

// AdvanceStage recomputes the session's stage and applies it only if it does
// not regress. Turn counts are append-only so regression should not occur,
// but the invariant is enforced here rather than assumed.
func (s *Session) AdvanceStage() Stage {
	next := ComputeStage(s.AgentTurns(), s.Intelligence)
	if stageRank[next] > stageRank[s.Stage] {
		s.Stage = next
	}
	return s.Stage
}
