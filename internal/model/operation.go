package model

import (
	"fmt"
	"time"
)

// OperationStatus is the lifecycle state of a ledgered mutation.
type OperationStatus string

// Operation status constants. An operation is recorded PENDING before the
// external move executes and updated to COMMITTED or FAILED afterwards.
// ROLLED_BACK entries are new entries referencing the operation they
// reverse; history is never rewritten.
const (
	OpPending    OperationStatus = "PENDING"
	OpCommitted  OperationStatus = "COMMITTED"
	OpFailed     OperationStatus = "FAILED"
	OpRolledBack OperationStatus = "ROLLED_BACK"
)

// Operation is one append-only ledger entry for an atomic filesystem
// mutation tied to a classification decision.
type Operation struct {
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Snapshot     *Result         `json:"snapshot,omitempty"`
	ID           string          `json:"id"`
	DocumentID   string          `json:"document_id"`
	PreviousPath string          `json:"previous_path"`
	NewPath      string          `json:"new_path"`
	PreviousName string          `json:"previous_name"`
	NewName      string          `json:"new_name"`
	Error        string          `json:"error,omitempty"`
	RollbackOf   string          `json:"rollback_of,omitempty"`
	Actor        string          `json:"actor"`
	Status       OperationStatus `json:"status"`
	LinkPaths    []string        `json:"link_paths,omitempty"`
}

// Category returns the primary category captured in the operation snapshot.
func (o *Operation) Category() string {
	if o.Snapshot == nil {
		return ""
	}
	return o.Snapshot.PrimaryCategory
}

// Validate ensures the operation is well formed before it is recorded.
func (o *Operation) Validate() error {
	if o.DocumentID == "" {
		return fmt.Errorf("operation document ID is required")
	}
	if o.PreviousPath == "" {
		return fmt.Errorf("operation previous path is required")
	}
	if o.NewPath == "" {
		return fmt.Errorf("operation new path is required")
	}

	switch o.Status {
	case OpPending, OpCommitted, OpFailed, OpRolledBack:
	default:
		return fmt.Errorf("invalid operation status %q", o.Status)
	}

	if o.Status == OpRolledBack && o.RollbackOf == "" {
		return fmt.Errorf("rolled-back operation must reference the original")
	}

	return nil
}
