package model

import "time"

// ReviewState is a state in the human-in-the-loop review machine.
type ReviewState string

// Review state constants. queued → inReview → {approved, corrected,
// rejectedByUser}.
const (
	ReviewQueued     ReviewState = "QUEUED"
	ReviewInProgress ReviewState = "IN_REVIEW"
	ReviewApproved   ReviewState = "APPROVED"
	ReviewCorrected  ReviewState = "CORRECTED"
	ReviewRejected   ReviewState = "REJECTED_BY_USER"
)

// ReviewAction is a reviewer's decision for one item.
type ReviewAction string

// Review action constants.
const (
	ReviewActionApprove ReviewAction = "approve"
	ReviewActionCorrect ReviewAction = "correct"
	ReviewActionReject  ReviewAction = "reject"
)

// ReviewItem is a document waiting for, or undergoing, human review.
type ReviewItem struct {
	QueuedAt     time.Time   `json:"queued_at"`
	Result       Result      `json:"result"`
	DocumentID   string      `json:"document_id"`
	OriginalPath string      `json:"original_path"`
	SessionID    string      `json:"session_id,omitempty"`
	State        ReviewState `json:"state"`
	Priority     float64     `json:"priority"`
}

// ReviewDecision is the audit record of one review transition, kept
// separate from the operation ledger but cross-referenced by document ID.
type ReviewDecision struct {
	DecidedAt  time.Time    `json:"decided_at"`
	Override   *Result      `json:"override,omitempty"`
	DocumentID string       `json:"document_id"`
	SessionID  string       `json:"session_id"`
	Action     ReviewAction `json:"action"`
}
