// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/docsort/docsort/internal/model"
)

// Storage defines the contract for the persistence layer: the append-only
// operation ledger plus review queue and session records.
type Storage interface {
	// Operation ledger. RecordOperation appends a new entry and returns its
	// ID; entries are never deleted. UpdateOperationStatus moves a pending
	// entry to committed or failed.
	RecordOperation(ctx context.Context, op *model.Operation) (string, error)
	UpdateOperationStatus(ctx context.Context, id string, status model.OperationStatus, cause string) error
	GetOperation(ctx context.Context, id string) (*model.Operation, error)
	GetOperationsByPath(ctx context.Context, path string) ([]model.Operation, error)
	GetOperationsByCategory(ctx context.Context, category string) ([]model.Operation, error)

	// Derived current-state views over the ledger.
	LatestCommitted(ctx context.Context, path string) (*model.Operation, error)
	ClaimedBy(ctx context.Context, newPath string) (*model.Operation, error)

	// Review queue.
	EnqueueReview(ctx context.Context, item *model.ReviewItem) error
	GetReviewItem(ctx context.Context, documentID string) (*model.ReviewItem, error)
	ListPendingReview(ctx context.Context, limit int) ([]model.ReviewItem, error)
	ClaimReviewItem(ctx context.Context, documentID, sessionID string) error
	UpdateReviewState(ctx context.Context, documentID string, state model.ReviewState) error
	RecordReviewDecision(ctx context.Context, decision *model.ReviewDecision) error

	// Review sessions.
	CreateReviewSession(ctx context.Context, reviewer string) (string, error)
	EndReviewSession(ctx context.Context, sessionID string) error
	GetReviewStats(ctx context.Context, sessionID string) (*ReviewStats, error)

	// Database management.
	Migrate(ctx context.Context) error
	Close() error
}

// MoveRequest asks the file-operations collaborator to relocate a document
// and place reference links for its non-primary labels.
type MoveRequest struct {
	SourcePath      string
	DestinationPath string
	LinkTargets     []string
}

// MoveResult is the collaborator's report after a move attempt.
type MoveResult struct {
	ActualPath string
	ErrorCause string
	LinkErrors []string
	Success    bool
}

// FileMover is the external collaborator that performs physical moves,
// renames, and link creation. The engine decides what should happen and
// audits that it happened; it never touches the filesystem itself.
type FileMover interface {
	Move(ctx context.Context, req MoveRequest) (MoveResult, error)
	Exists(path string) bool
}

// IndexUpdate notifies downstream index maintainers about a committed move.
type IndexUpdate struct {
	OperationID  string
	Category     string
	EmbeddingRef string
	Tags         []string
}

// IndexNotifier receives index-update notifications after commits.
type IndexNotifier interface {
	NotifyIndexUpdate(ctx context.Context, update IndexUpdate) error
}

// ReviewStats summarizes review activity for a session, or globally when
// the session ID is empty.
type ReviewStats struct {
	Approved       int
	Corrected      int
	Rejected       int
	Pending        int
	CorrectionRate float64
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
