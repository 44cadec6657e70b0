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
	"github.com/docsort/docsort/internal/service"
	"github.com/google/uuid"
)

// EnqueueReview adds a document to the review queue. A document already
// queued is re-queued with the newer result and released from any stale
// claim.
func (s *SQLiteStore) EnqueueReview(ctx context.Context, item *model.ReviewItem) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateReviewItem(item); err != nil {
		return err
	}

	if item.QueuedAt.IsZero() {
		item.QueuedAt = time.Now().UTC()
	}
	item.State = model.ReviewQueued

	result, err := json.Marshal(item.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal review result: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO review_items (document_id, original_path, session_id, state, result, priority, queued_at, updated_at)
		VALUES (?, ?, '', ?, ?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			original_path = excluded.original_path,
			session_id = '',
			state = excluded.state,
			result = excluded.result,
			priority = excluded.priority,
			updated_at = excluded.updated_at
	`, item.DocumentID, item.OriginalPath, string(model.ReviewQueued), string(result), item.Priority, item.QueuedAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%w: failed to enqueue review item: %v", common.ErrLedgerUnavailable, err)
	}

	return nil
}

// GetReviewItem returns the review entry for a document.
func (s *SQLiteStore) GetReviewItem(ctx context.Context, documentID string) (*model.ReviewItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(documentID, "documentID"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT document_id, original_path, session_id, state, result, priority, queued_at
		FROM review_items WHERE document_id = ?
	`, documentID)

	item, err := scanReviewItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: review item %s", common.ErrNotFound, documentID)
	}
	return item, err
}

// ListPendingReview returns queued items, highest priority first.
func (s *SQLiteStore) ListPendingReview(ctx context.Context, limit int) ([]model.ReviewItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, original_path, session_id, state, result, priority, queued_at
		FROM review_items
		WHERE state = ?
		ORDER BY priority DESC, queued_at
		LIMIT ?
	`, string(model.ReviewQueued), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list review items: %v", common.ErrLedgerUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	var items []model.ReviewItem
	for rows.Next() {
		item, scanErr := scanReviewItem(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// ClaimReviewItem moves a queued item to in-review for one session. The
// claim is exclusive: a second session claiming the same item gets
// ErrAlreadyClaimed.
func (s *SQLiteStore) ClaimReviewItem(ctx context.Context, documentID, sessionID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(documentID, "documentID"); err != nil {
		return err
	}
	if err := validateString(sessionID, "sessionID"); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE review_items
		SET state = ?, session_id = ?, updated_at = ?
		WHERE document_id = ? AND state = ?
	`, string(model.ReviewInProgress), sessionID, time.Now().UTC(), documentID, string(model.ReviewQueued))
	if err != nil {
		return fmt.Errorf("%w: failed to claim review item: %v", common.ErrLedgerUnavailable, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check claim result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrAlreadyClaimed, documentID)
	}

	return nil
}

// UpdateReviewState writes a new state for a document's review entry.
// Transition legality is the coordinator's concern.
func (s *SQLiteStore) UpdateReviewState(ctx context.Context, documentID string, state model.ReviewState) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(documentID, "documentID"); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE review_items SET state = ?, updated_at = ? WHERE document_id = ?
	`, string(state), time.Now().UTC(), documentID)
	if err != nil {
		return fmt.Errorf("%w: failed to update review state: %v", common.ErrLedgerUnavailable, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: review item %s", common.ErrNotFound, documentID)
	}

	return nil
}

// RecordReviewDecision appends one review transition to the audit trail.
func (s *SQLiteStore) RecordReviewDecision(ctx context.Context, decision *model.ReviewDecision) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if decision == nil {
		return fmt.Errorf("%w: decision", ErrNilParameter)
	}
	if err := validateString(decision.DocumentID, "decision.DocumentID"); err != nil {
		return err
	}

	if decision.DecidedAt.IsZero() {
		decision.DecidedAt = time.Now().UTC()
	}

	var override sql.NullString
	if decision.Override != nil {
		data, err := json.Marshal(decision.Override)
		if err != nil {
			return fmt.Errorf("failed to marshal override result: %w", err)
		}
		override = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO review_decisions (document_id, session_id, action, override, decided_at)
		VALUES (?, ?, ?, ?, ?)
	`, decision.DocumentID, decision.SessionID, string(decision.Action), override, decision.DecidedAt)
	if err != nil {
		return fmt.Errorf("%w: failed to record review decision: %v", common.ErrLedgerUnavailable, err)
	}

	return nil
}

// CreateReviewSession opens a new review session and returns its ID.
func (s *SQLiteStore) CreateReviewSession(ctx context.Context, reviewer string) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}

	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO review_sessions (id, reviewer, started_at) VALUES (?, ?, ?)
	`, id, reviewer, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("%w: failed to create review session: %v", common.ErrLedgerUnavailable, err)
	}

	return id, nil
}

// EndReviewSession closes a session. Items the session still holds stay
// claimed; re-queuing them is an explicit coordinator action.
func (s *SQLiteStore) EndReviewSession(ctx context.Context, sessionID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(sessionID, "sessionID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE review_sessions SET ended_at = ? WHERE id = ? AND ended_at IS NULL
	`, time.Now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("%w: failed to end review session: %v", common.ErrLedgerUnavailable, err)
	}

	return nil
}

// GetReviewStats summarizes decisions for one session, or globally when
// sessionID is empty.
func (s *SQLiteStore) GetReviewStats(ctx context.Context, sessionID string) (*service.ReviewStats, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT action, COUNT(*) FROM review_decisions
	`
	args := []any{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` GROUP BY action`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query review stats: %v", common.ErrLedgerUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	stats := &service.ReviewStats{}
	for rows.Next() {
		var action string
		var count int
		if scanErr := rows.Scan(&action, &count); scanErr != nil {
			return nil, scanErr
		}
		switch model.ReviewAction(action) {
		case model.ReviewActionApprove:
			stats.Approved = count
		case model.ReviewActionCorrect:
			stats.Corrected = count
		case model.ReviewActionReject:
			stats.Rejected = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM review_items WHERE state = ?
	`, string(model.ReviewQueued)).Scan(&stats.Pending)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to count pending reviews: %v", common.ErrLedgerUnavailable, err)
	}

	if decided := stats.Approved + stats.Corrected + stats.Rejected; decided > 0 {
		stats.CorrectionRate = float64(stats.Corrected) / float64(decided)
	}

	return stats, nil
}

func scanReviewItem(row rowScanner) (*model.ReviewItem, error) {
	var item model.ReviewItem
	var state, result string

	err := row.Scan(&item.DocumentID, &item.OriginalPath, &item.SessionID, &state, &result, &item.Priority, &item.QueuedAt)
	if err != nil {
		return nil, err
	}

	item.State = model.ReviewState(state)
	if err := json.Unmarshal([]byte(result), &item.Result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal review result: %w", err)
	}

	return &item, nil
}
