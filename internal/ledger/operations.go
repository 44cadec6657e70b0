package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/docsort/docsort/internal/common"
	"github.com/docsort/docsort/internal/model"
	"github.com/google/uuid"
)

// RecordOperation appends a new ledger entry and returns its ID. Entries
// are never deleted or rewritten; status changes go through
// UpdateOperationStatus, and reversals are new entries referencing the
// original.
func (s *SQLiteStore) RecordOperation(ctx context.Context, op *model.Operation) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}
	if err := validateOperation(op); err != nil {
		return "", err
	}

	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if op.CreatedAt.IsZero() {
		op.CreatedAt = now
	}
	op.UpdatedAt = now

	snapshot, err := marshalSnapshot(op.Snapshot)
	if err != nil {
		return "", err
	}
	linkPaths, err := json.Marshal(op.LinkPaths)
	if err != nil {
		return "", fmt.Errorf("failed to marshal link paths: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO operations (
			id, document_id, previous_path, new_path, previous_name, new_name,
			category, snapshot, link_paths, status, error, rollback_of, actor,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		op.ID, op.DocumentID, op.PreviousPath, op.NewPath, op.PreviousName, op.NewName,
		op.Category(), snapshot, string(linkPaths), string(op.Status), op.Error, op.RollbackOf, op.Actor,
		op.CreatedAt, op.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("%w: failed to record operation: %v", common.ErrLedgerUnavailable, err)
	}

	return op.ID, nil
}

// UpdateOperationStatus finalizes a pending entry as committed or failed.
// Any other transition is rejected; rolled-back entries are appended via
// RecordOperation, never written in place.
func (s *SQLiteStore) UpdateOperationStatus(ctx context.Context, id string, status model.OperationStatus, cause string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	if status != model.OpCommitted && status != model.OpFailed {
		return fmt.Errorf("%w: pending operations may only become committed or failed, not %s",
			ErrInvalidTransition, status)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE operations
		SET status = ?, error = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(status), cause, time.Now().UTC(), id, string(model.OpPending))
	if err != nil {
		return fmt.Errorf("%w: failed to update operation status: %v", common.ErrLedgerUnavailable, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: operation %s is not pending", ErrInvalidTransition, id)
	}

	return nil
}

// GetOperation returns a single ledger entry by ID.
func (s *SQLiteStore) GetOperation(ctx context.Context, id string) (*model.Operation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, selectOperations+` WHERE id = ?`, id)
	op, err := scanOperation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: operation %s", common.ErrNotFound, id)
	}
	return op, err
}

// GetOperationsByPath returns every entry that touched a path, oldest first.
func (s *SQLiteStore) GetOperationsByPath(ctx context.Context, path string) ([]model.Operation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(path, "path"); err != nil {
		return nil, err
	}

	return s.queryOperations(ctx, selectOperations+`
		WHERE previous_path = ? OR new_path = ?
		ORDER BY created_at, rowid`, path, path)
}

// GetOperationsByCategory returns every entry for a category, oldest first.
func (s *SQLiteStore) GetOperationsByCategory(ctx context.Context, category string) ([]model.Operation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(category, "category"); err != nil {
		return nil, err
	}

	return s.queryOperations(ctx, selectOperations+`
		WHERE category = ?
		ORDER BY created_at, rowid`, category)
}

// LatestCommitted returns the newest committed entry targeting a path that
// has not been reversed by a rollback entry. This is the derived "current
// state" view over the event log.
func (s *SQLiteStore) LatestCommitted(ctx context.Context, path string) (*model.Operation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(path, "path"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, selectOperations+`
		WHERE new_path = ? AND status = ?
		AND NOT EXISTS (
			SELECT 1 FROM operations r WHERE r.rollback_of = operations.id
		)
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`, path, string(model.OpCommitted))

	op, err := scanOperation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return op, err
}

// ClaimedBy returns the newest live claim on a destination path: a pending
// or committed entry that has not been rolled back. Used by conflict checks
// so two concurrent plans can never settle on the same destination.
func (s *SQLiteStore) ClaimedBy(ctx context.Context, newPath string) (*model.Operation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(newPath, "newPath"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, selectOperations+`
		WHERE new_path = ? AND status IN (?, ?)
		AND NOT EXISTS (
			SELECT 1 FROM operations r WHERE r.rollback_of = operations.id
		)
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`, newPath, string(model.OpPending), string(model.OpCommitted))

	op, err := scanOperation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return op, err
}

const selectOperations = `
	SELECT id, document_id, previous_path, new_path, previous_name, new_name,
	       snapshot, link_paths, status, error, rollback_of, actor,
	       created_at, updated_at
	FROM operations`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOperation(row rowScanner) (*model.Operation, error) {
	var op model.Operation
	var snapshot, linkPaths sql.NullString
	var status string

	err := row.Scan(
		&op.ID, &op.DocumentID, &op.PreviousPath, &op.NewPath, &op.PreviousName, &op.NewName,
		&snapshot, &linkPaths, &status, &op.Error, &op.RollbackOf, &op.Actor,
		&op.CreatedAt, &op.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	op.Status = model.OperationStatus(status)

	if snapshot.Valid && snapshot.String != "" {
		var result model.Result
		if err := json.Unmarshal([]byte(snapshot.String), &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal classification snapshot: %w", err)
		}
		op.Snapshot = &result
	}
	if linkPaths.Valid && linkPaths.String != "" {
		if err := json.Unmarshal([]byte(linkPaths.String), &op.LinkPaths); err != nil {
			return nil, fmt.Errorf("failed to unmarshal link paths: %w", err)
		}
	}

	return &op, nil
}

func (s *SQLiteStore) queryOperations(ctx context.Context, query string, args ...any) ([]model.Operation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query operations: %v", common.ErrLedgerUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	var ops []model.Operation
	for rows.Next() {
		op, scanErr := scanOperation(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		ops = append(ops, *op)
	}
	return ops, rows.Err()
}

func marshalSnapshot(result *model.Result) (string, error) {
	if result == nil {
		return "", nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to marshal classification snapshot: %w", err)
	}
	return string(data), nil
}
