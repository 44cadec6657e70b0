// Package engine orchestrates the full decision pipeline for one document:
// rule evaluation, label resolution, confidence routing, path planning,
// naming, and the ledgered move.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/docsort/docsort/internal/common"
	"github.com/docsort/docsort/internal/model"
	"github.com/docsort/docsort/internal/naming"
	"github.com/docsort/docsort/internal/pathplan"
	"github.com/docsort/docsort/internal/resolve"
	"github.com/docsort/docsort/internal/review"
	"github.com/docsort/docsort/internal/route"
	"github.com/docsort/docsort/internal/rule"
	"github.com/docsort/docsort/internal/service"
)

// Disposition is what finally happened to a document.
type Disposition string

// Dispositions. Planned means dry-run: the destination was computed but
// nothing was recorded or moved.
const (
	DispositionMoved    Disposition = "moved"
	DispositionReview   Disposition = "queued_for_review"
	DispositionRejected Disposition = "rejected"
	DispositionFailed   Disposition = "failed"
	DispositionPlanned  Disposition = "planned"
)

// Outcome reports the pipeline's verdict for one document.
type Outcome struct {
	Result      *model.Result
	Operation   *model.Operation
	DocumentID  string
	FinalPath   string
	Reason      string
	Disposition Disposition
	Err         error
}

// Config holds orchestration knobs.
type Config struct {
	Actor        string
	Workers      int
	MoveTimeout  time.Duration
	DryRun       bool
	StageReviews bool
}

// Components are the decision-pipeline stages the engine drives.
type Components struct {
	Rules    *rule.Engine
	Router   *route.Router
	Resolver *resolve.Resolver
	Planner  *pathplan.Planner
	Namer    *naming.Generator
	Reviews  *review.Coordinator
}

// Engine runs documents through the pipeline. Stages are pure; the engine
// owns all side effects and their ordering.
type Engine struct {
	store    service.Storage
	mover    service.FileMover
	notifier service.IndexNotifier
	comps    Components
	cfg      Config

	// planMu serializes conflict checking with the pending-entry write so
	// two concurrent documents cannot claim the same destination.
	planMu sync.Mutex
}

// New creates an engine.
func New(store service.Storage, mover service.FileMover, notifier service.IndexNotifier, comps Components, cfg Config) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MoveTimeout <= 0 {
		cfg.MoveTimeout = 30 * time.Second
	}
	if cfg.Actor == "" {
		cfg.Actor = "docsort"
	}
	return &Engine{
		store:    store,
		mover:    mover,
		notifier: notifier,
		comps:    comps,
		cfg:      cfg,
	}
}

// SetReviews attaches the review coordinator. The coordinator needs the
// engine as its replanner, so the two are wired in two steps.
func (e *Engine) SetReviews(reviews *review.Coordinator) {
	e.comps.Reviews = reviews
}

// ProcessDocument runs one document through the full pipeline and returns
// its outcome. Pipeline errors that have a defined degraded state (conflict
// exhaustion, unresolvable evidence) end in review, not in an error.
func (e *Engine) ProcessDocument(ctx context.Context, evidence *model.Evidence) Outcome {
	if evidence == nil || evidence.DocumentID == "" || evidence.OriginalPath == "" {
		return Outcome{
			Disposition: DispositionFailed,
			Err:         fmt.Errorf("%w: document ID and original path are required", common.ErrEmptyEvidence),
		}
	}

	result := e.Decide(evidence)
	outcome := e.dispatch(ctx, evidence, &result)
	outcome.DocumentID = evidence.DocumentID
	outcome.Result = &result

	slog.Info("Processed document",
		"document_id", evidence.DocumentID,
		"category", result.PrimaryCategory,
		"confidence", result.Confidence,
		"disposition", outcome.Disposition)
	return outcome
}

// Decide runs the decision stages only: rules, resolution, and routing. It
// touches nothing outside the result, which makes it reusable for dry runs
// and for tests of routing behavior.
func (e *Engine) Decide(evidence *model.Evidence) model.Result {
	pre := e.comps.Rules.Evaluate(model.PhasePre, evidence.Attributes, nil)

	result := e.comps.Resolver.Resolve(evidence, pre.Actions)
	result.RulesApplied = append(append([]string{}, pre.Matched...), result.RulesApplied...)

	post := e.comps.Rules.Evaluate(model.PhasePost, evidence.Attributes, &result)
	result.RulesApplied = append(result.RulesApplied, post.Matched...)

	// A post-phase confidence override beats a pre-phase one; within a
	// phase the rule engine already kept only the highest-priority one.
	if c, ok := confidenceOverride(post.Actions); ok {
		result.Confidence = c
	} else if c, ok := confidenceOverride(pre.Actions); ok {
		result.Confidence = c
	}

	if result.Status == "" {
		result.Status = e.comps.Router.Route(result.Confidence)
	}

	actions := append(append([]model.Action{}, pre.Actions...), post.Actions...)
	result.Status = e.comps.Router.Apply(result.Status, actions)

	return result
}

func confidenceOverride(actions []model.Action) (float64, bool) {
	for _, a := range actions {
		if a.Kind == model.ActionSetConfidence {
			return a.Confidence, true
		}
	}
	return 0, false
}

// dispatch turns a routed result into side effects.
func (e *Engine) dispatch(ctx context.Context, evidence *model.Evidence, result *model.Result) Outcome {
	switch result.Status {
	case model.StatusRejected:
		return Outcome{Disposition: DispositionRejected, Reason: "confidence below rejection floor or rejected by rule"}

	case model.StatusNeedsReview:
		return e.queueForReview(ctx, evidence, result, "")

	case model.StatusAutoAccepted:
		outcome := e.executeMove(ctx, evidence, result)
		if errors.Is(outcome.Err, common.ErrConflictExhausted) {
			// No free destination within budget. Degrade to review so a
			// human picks the path instead of the document being lost.
			return e.queueForReview(ctx, evidence, result, "destination conflicts exhausted")
		}
		return outcome

	default:
		return Outcome{
			Disposition: DispositionFailed,
			Err:         fmt.Errorf("unroutable result status %q", result.Status),
		}
	}
}

func (e *Engine) queueForReview(ctx context.Context, evidence *model.Evidence, result *model.Result, reason string) Outcome {
	if reason == "" {
		reason = "confidence in review band or review required by rule"
	}

	if e.cfg.DryRun {
		return Outcome{Disposition: DispositionPlanned, Reason: reason}
	}
	if e.comps.Reviews == nil {
		return Outcome{
			Disposition: DispositionFailed,
			Err:         fmt.Errorf("document needs review but no review coordinator is wired"),
		}
	}

	outcome := Outcome{Disposition: DispositionReview, Reason: reason}
	reviewPath := evidence.OriginalPath

	// Optionally stage the physical file into the review area so pending
	// documents are not scattered across their source locations. Staging
	// happens first so the queue entry points at where the file now lives.
	if e.cfg.StageReviews {
		staged := result.Clone()
		staged.Status = model.StatusNeedsReview
		moved := e.executeMove(ctx, evidence, &staged)
		if moved.Err != nil {
			slog.Warn("Failed to stage document for review",
				"document_id", evidence.DocumentID,
				"error", moved.Err)
		} else {
			outcome.FinalPath = moved.FinalPath
			outcome.Operation = moved.Operation
			reviewPath = moved.FinalPath
		}
	}

	if err := e.comps.Reviews.Enqueue(ctx, result, reviewPath); err != nil {
		return Outcome{Disposition: DispositionFailed, Err: err}
	}

	return outcome
}

// executeMove plans, names, ledgers, and performs one move. The pending
// entry is written before the move under planMu, so the destination is
// claimed in the ledger before any other document can plan against it.
func (e *Engine) executeMove(ctx context.Context, evidence *model.Evidence, result *model.Result) Outcome {
	op, links, err := e.planAndClaim(ctx, evidence, result)
	if err != nil {
		return Outcome{Disposition: DispositionFailed, Err: err}
	}

	if e.cfg.DryRun {
		return Outcome{
			Disposition: DispositionPlanned,
			Operation:   op,
			FinalPath:   op.NewPath,
		}
	}

	moveCtx, cancel := context.WithTimeout(ctx, e.cfg.MoveTimeout)
	defer cancel()

	moveResult, moveErr := e.mover.Move(moveCtx, service.MoveRequest{
		SourcePath:      evidence.OriginalPath,
		DestinationPath: op.NewPath,
		LinkTargets:     links,
	})

	// The status update must land even when the caller's context has been
	// canceled mid-move; otherwise the entry is stuck pending.
	commitCtx, commitCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer commitCancel()

	if moveErr != nil || !moveResult.Success {
		cause := moveResult.ErrorCause
		if moveErr != nil {
			cause = moveErr.Error()
		}
		if updateErr := e.store.UpdateOperationStatus(commitCtx, op.ID, model.OpFailed, cause); updateErr != nil {
			slog.Error("Failed to mark operation failed",
				"operation_id", op.ID,
				"error", updateErr)
		}
		return Outcome{
			Disposition: DispositionFailed,
			Operation:   op,
			Err:         fmt.Errorf("%w: %s -> %s: %s", common.ErrMoveFailed, op.PreviousPath, op.NewPath, cause),
		}
	}

	if err := e.store.UpdateOperationStatus(commitCtx, op.ID, model.OpCommitted, ""); err != nil {
		// The file moved but the ledger still says pending. Surface loudly;
		// the operation is findable by path and can be reconciled.
		return Outcome{
			Disposition: DispositionFailed,
			Operation:   op,
			FinalPath:   moveResult.ActualPath,
			Err:         fmt.Errorf("move succeeded but commit failed for operation %s: %w", op.ID, err),
		}
	}
	op.Status = model.OpCommitted

	for _, linkErr := range moveResult.LinkErrors {
		slog.Warn("Link placement failed", "document_id", evidence.DocumentID, "error", linkErr)
	}

	e.notifyIndex(ctx, op, result)

	return Outcome{
		Disposition: DispositionMoved,
		Operation:   op,
		FinalPath:   moveResult.ActualPath,
	}
}

// planAndClaim computes the destination and records the pending entry while
// holding planMu. In dry-run mode nothing is written; the entry is returned
// unrecorded.
func (e *Engine) planAndClaim(ctx context.Context, evidence *model.Evidence, result *model.Result) (*model.Operation, []string, error) {
	e.planMu.Lock()
	defer e.planMu.Unlock()

	plan, err := e.comps.Planner.Plan(ctx, result, evidence.OriginalPath, evidence.Attributes)
	if err != nil {
		return nil, nil, err
	}

	finalPath := plan.PrimaryPath
	if !plan.ReviewArea {
		name, nameErr := e.comps.Namer.Generate(ctx, plan, evidence.Attributes, result)
		if nameErr != nil {
			return nil, nil, nameErr
		}
		finalPath = name.FinalPath
	}

	links := make([]string, 0, len(plan.LinkPaths))
	for _, l := range plan.LinkPaths {
		links = append(links, l.Path)
	}

	snapshot := result.Clone()
	op := &model.Operation{
		DocumentID:   evidence.DocumentID,
		PreviousPath: evidence.OriginalPath,
		NewPath:      finalPath,
		PreviousName: filepath.Base(evidence.OriginalPath),
		NewName:      filepath.Base(finalPath),
		Snapshot:     &snapshot,
		LinkPaths:    links,
		Status:       model.OpPending,
		Actor:        e.cfg.Actor,
	}

	if e.cfg.DryRun {
		return op, links, nil
	}

	err = common.WithRetry(ctx, func() error {
		_, recordErr := e.store.RecordOperation(ctx, op)
		return recordErr
	}, service.RetryOptions{MaxAttempts: 3})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to record pending operation: %w", err)
	}

	return op, links, nil
}

func (e *Engine) notifyIndex(ctx context.Context, op *model.Operation, result *model.Result) {
	if e.notifier == nil {
		return
	}
	err := e.notifier.NotifyIndexUpdate(ctx, service.IndexUpdate{
		OperationID: op.ID,
		Category:    result.PrimaryCategory,
		Tags:        result.TagLabels(),
	})
	if err != nil {
		slog.Warn("Index notification failed", "operation_id", op.ID, "error", err)
	}
}

// ProcessBatch runs documents through the pipeline on a bounded worker pool.
// Individual failures are reported through onDone; only a canceled context
// stops the batch.
func (e *Engine) ProcessBatch(ctx context.Context, documents []model.Evidence, onDone func(Outcome)) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)

	var mu sync.Mutex
	for i := range documents {
		evidence := &documents[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			outcome := e.ProcessDocument(ctx, evidence)
			if onDone != nil {
				mu.Lock()
				onDone(outcome)
				mu.Unlock()
			}
			return nil
		})
	}

	return g.Wait()
}

// Replan re-runs planning and the move for a result finalized by review. It
// satisfies the review coordinator's replanner contract.
func (e *Engine) Replan(ctx context.Context, result *model.Result, originalPath string) error {
	evidence := &model.Evidence{
		DocumentID:   result.DocumentID,
		OriginalPath: originalPath,
	}
	outcome := e.executeMove(ctx, evidence, result)
	if outcome.Err != nil {
		return outcome.Err
	}
	return nil
}
