// Package review implements the human-in-the-loop review workflow for
// classification decisions that could not be auto-accepted.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/docsort/docsort/internal/model"
	"github.com/docsort/docsort/internal/service"
)

// Replanner re-runs path planning and the physical move for a result that
// review has finalized. Approvals and corrections both go back through it so
// reviewed documents land exactly like auto-accepted ones.
type Replanner interface {
	Replan(ctx context.Context, result *model.Result, originalPath string) error
}

// Weights controls queue ordering. Confidence weighs how far below certain a
// decision was, Recency weighs how long an item has been waiting.
type Weights struct {
	Confidence float64
	Recency    float64
}

// DefaultWeights orders mostly by uncertainty with a mild aging bump so old
// items cannot starve.
func DefaultWeights() Weights {
	return Weights{Confidence: 1.0, Recency: 0.1}
}

// Coordinator drives review items through queued, in-review, and a terminal
// decision. State lives in storage; the coordinator owns transition legality.
type Coordinator struct {
	store     service.Storage
	replanner Replanner
	weights   Weights
	now       func() time.Time
}

// NewCoordinator creates a review coordinator.
func NewCoordinator(store service.Storage, replanner Replanner, weights Weights) *Coordinator {
	if weights.Confidence == 0 && weights.Recency == 0 {
		weights = DefaultWeights()
	}
	return &Coordinator{
		store:     store,
		replanner: replanner,
		weights:   weights,
		now:       time.Now,
	}
}

// StartSession opens a review session and returns its ID.
func (c *Coordinator) StartSession(ctx context.Context, reviewer string) (string, error) {
	return c.store.CreateReviewSession(ctx, reviewer)
}

// EndSession closes a session.
func (c *Coordinator) EndSession(ctx context.Context, sessionID string) error {
	return c.store.EndReviewSession(ctx, sessionID)
}

// Enqueue places a document in the review queue. A document already queued
// is re-queued with the newer result; its earlier entry never produces a
// duplicate.
func (c *Coordinator) Enqueue(ctx context.Context, result *model.Result, originalPath string) error {
	if result == nil {
		return fmt.Errorf("review enqueue requires a result")
	}

	item := &model.ReviewItem{
		DocumentID:   result.DocumentID,
		OriginalPath: originalPath,
		Result:       *result,
		State:        model.ReviewQueued,
		Priority:     c.weights.Confidence * (1 - result.Confidence),
		QueuedAt:     c.now().UTC(),
	}
	if err := c.store.EnqueueReview(ctx, item); err != nil {
		return err
	}

	slog.Info("Queued document for review",
		"document_id", result.DocumentID,
		"confidence", result.Confidence,
		"priority", item.Priority)
	return nil
}

// ListPending returns queued items ranked by uncertainty and waiting time,
// most urgent first.
func (c *Coordinator) ListPending(ctx context.Context, limit int) ([]model.ReviewItem, error) {
	items, err := c.store.ListPendingReview(ctx, limit)
	if err != nil {
		return nil, err
	}

	now := c.now().UTC()
	sort.SliceStable(items, func(i, j int) bool {
		return c.score(&items[i], now) > c.score(&items[j], now)
	})
	return items, nil
}

// score combines the stored uncertainty priority with an aging term. One
// recency weight unit corresponds to a day of waiting.
func (c *Coordinator) score(item *model.ReviewItem, now time.Time) float64 {
	age := now.Sub(item.QueuedAt)
	if age < 0 {
		age = 0
	}
	return item.Priority + c.weights.Recency*age.Hours()/24
}

// Requeue releases a claimed item back to the queue unchanged, clearing its
// session hold.
func (c *Coordinator) Requeue(ctx context.Context, item *model.ReviewItem) error {
	if item == nil {
		return fmt.Errorf("review requeue requires an item")
	}
	requeued := *item
	requeued.SessionID = ""
	return c.store.EnqueueReview(ctx, &requeued)
}

// Claim takes exclusive hold of a queued item for one session and returns
// it. Claiming an item another session holds fails.
func (c *Coordinator) Claim(ctx context.Context, documentID, sessionID string) (*model.ReviewItem, error) {
	if err := c.store.ClaimReviewItem(ctx, documentID, sessionID); err != nil {
		return nil, err
	}

	item, err := c.store.GetReviewItem(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Submit applies a reviewer decision to a claimed item.
//
// Approve finalizes the machine's result unchanged and replans the move.
// Correct finalizes the reviewer's override as a new result version and
// replans. Reject marks the document rejected by the user; nothing moves.
// Every decision is recorded in the audit trail.
func (c *Coordinator) Submit(ctx context.Context, decision *model.ReviewDecision) (*model.Result, error) {
	if decision == nil {
		return nil, fmt.Errorf("review decision is required")
	}

	item, err := c.store.GetReviewItem(ctx, decision.DocumentID)
	if err != nil {
		return nil, err
	}
	if item.State != model.ReviewInProgress {
		return nil, fmt.Errorf("document %s is %s, not in review", item.DocumentID, item.State)
	}
	if item.SessionID != decision.SessionID {
		return nil, fmt.Errorf("document %s is held by another session", item.DocumentID)
	}

	var final *model.Result
	var state model.ReviewState

	switch decision.Action {
	case model.ReviewActionApprove:
		approved := item.Result.Clone()
		approved.Status = model.StatusAutoAccepted
		final = &approved
		state = model.ReviewApproved

	case model.ReviewActionCorrect:
		if decision.Override == nil {
			return nil, fmt.Errorf("correction requires an override result")
		}
		corrected := decision.Override.Clone()
		corrected.DocumentID = item.DocumentID
		corrected.Status = model.StatusAutoAccepted
		corrected.Version = item.Result.Version + 1
		if err := corrected.Validate(); err != nil {
			return nil, fmt.Errorf("invalid override result: %w", err)
		}
		final = &corrected
		state = model.ReviewCorrected

	case model.ReviewActionReject:
		state = model.ReviewRejected

	default:
		return nil, fmt.Errorf("unknown review action %q", decision.Action)
	}

	if err := c.store.UpdateReviewState(ctx, item.DocumentID, state); err != nil {
		return nil, err
	}

	decision.DecidedAt = c.now().UTC()
	if err := c.store.RecordReviewDecision(ctx, decision); err != nil {
		return nil, err
	}

	if final != nil && c.replanner != nil {
		if err := c.replanner.Replan(ctx, final, item.OriginalPath); err != nil {
			return final, fmt.Errorf("decision recorded but replanning failed: %w", err)
		}
	}

	slog.Info("Review decision applied",
		"document_id", item.DocumentID,
		"action", decision.Action,
		"state", state)
	return final, nil
}

// Stats summarizes decisions for one session, or globally when sessionID is
// empty.
func (c *Coordinator) Stats(ctx context.Context, sessionID string) (*service.ReviewStats, error) {
	return c.store.GetReviewStats(ctx, sessionID)
}
