package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/docsort/docsort/internal/common"
	"github.com/docsort/docsort/internal/model"
	"github.com/docsort/docsort/internal/pathplan"
	"github.com/docsort/docsort/internal/service"
)

// maxRestoreAttempts bounds the search for a free restore path when the
// original location has been reoccupied since the operation committed.
const maxRestoreAttempts = 100

// RollbackOutcome reports what a rollback call actually did.
type RollbackOutcome string

// Rollback outcomes. NothingToRollBack covers pending, failed, and
// already-reversed operations; it is an answer, not an error.
const (
	OutcomeRolledBack        RollbackOutcome = "rolled_back"
	OutcomeNothingToRollBack RollbackOutcome = "nothing_to_roll_back"
)

// RollbackResult describes the effect of one rollback request.
type RollbackResult struct {
	Entry        *model.Operation
	Outcome      RollbackOutcome
	RestoredPath string
	Reason       string
}

// Rollbacker reverses committed operations. The inverse move goes through
// the same file-operations collaborator as the original; on success a new
// rolledBack entry referencing the original is appended. The original entry
// is never mutated or deleted.
type Rollbacker struct {
	store   service.Storage
	mover   service.FileMover
	actor   string
	timeout time.Duration
}

// NewRollbacker creates a rollbacker.
func NewRollbacker(store service.Storage, mover service.FileMover, actor string, timeout time.Duration) *Rollbacker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Rollbacker{store: store, mover: mover, actor: actor, timeout: timeout}
}

// Rollback reverses the operation with the given ID. Rolling back a pending
// or failed operation is a no-op with an explicit result, never an error.
func (r *Rollbacker) Rollback(ctx context.Context, operationID string) (*RollbackResult, error) {
	op, err := r.store.GetOperation(ctx, operationID)
	if err != nil {
		return nil, err
	}

	if op.Status != model.OpCommitted {
		return &RollbackResult{
			Outcome: OutcomeNothingToRollBack,
			Reason:  fmt.Sprintf("operation is %s, only committed operations can be rolled back", op.Status),
		}, nil
	}

	reversed, err := r.alreadyReversed(ctx, op)
	if err != nil {
		return nil, err
	}
	if reversed {
		return &RollbackResult{
			Outcome: OutcomeNothingToRollBack,
			Reason:  "operation has already been rolled back",
		}, nil
	}

	restorePath, err := r.restorePath(op)
	if err != nil {
		return nil, err
	}

	moveCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.mover.Move(moveCtx, service.MoveRequest{
		SourcePath:      op.NewPath,
		DestinationPath: restorePath,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: inverse move %s -> %s: %v",
			common.ErrMoveFailed, op.NewPath, restorePath, err)
	}
	if !result.Success {
		return nil, fmt.Errorf("%w: inverse move %s -> %s: %s",
			common.ErrMoveFailed, op.NewPath, restorePath, result.ErrorCause)
	}

	entry := &model.Operation{
		DocumentID:   op.DocumentID,
		PreviousPath: op.NewPath,
		NewPath:      restorePath,
		PreviousName: filepath.Base(op.NewPath),
		NewName:      filepath.Base(restorePath),
		Snapshot:     op.Snapshot,
		Status:       model.OpRolledBack,
		RollbackOf:   op.ID,
		Actor:        r.actor,
	}
	if _, err := r.store.RecordOperation(ctx, entry); err != nil {
		return nil, fmt.Errorf("rollback executed but could not be recorded: %w", err)
	}

	slog.Info("Rolled back operation",
		"operation_id", op.ID,
		"restored_path", restorePath)

	return &RollbackResult{
		Entry:        entry,
		Outcome:      OutcomeRolledBack,
		RestoredPath: restorePath,
	}, nil
}

// restorePath returns the original location when it is still free, or the
// first free suffixed variant when something else has taken it since. The
// inverse move must never replace whatever now lives there.
func (r *Rollbacker) restorePath(op *model.Operation) (string, error) {
	if !r.mover.Exists(op.PreviousPath) {
		return op.PreviousPath, nil
	}

	for attempt := 1; attempt <= maxRestoreAttempts; attempt++ {
		candidate := pathplan.Variant(op.PreviousPath, pathplan.PolicySuffix, attempt, time.Now())
		if !r.mover.Exists(candidate) {
			slog.Warn("Original path reoccupied, restoring beside it",
				"operation_id", op.ID,
				"original_path", op.PreviousPath,
				"restore_path", candidate)
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: no free restore path for %s within %d attempts",
		common.ErrConflictExhausted, op.PreviousPath, maxRestoreAttempts)
}

// alreadyReversed checks the ledger for an existing rolledBack entry
// referencing this operation.
func (r *Rollbacker) alreadyReversed(ctx context.Context, op *model.Operation) (bool, error) {
	history, err := r.store.GetOperationsByPath(ctx, op.NewPath)
	if err != nil {
		return false, err
	}
	for i := range history {
		if history[i].RollbackOf == op.ID {
			return true, nil
		}
	}
	return false, nil
}
