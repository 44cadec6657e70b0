package engine

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsort/docsort/internal/model"
	"github.com/docsort/docsort/internal/naming"
	"github.com/docsort/docsort/internal/pathplan"
	"github.com/docsort/docsort/internal/resolve"
	"github.com/docsort/docsort/internal/review"
	"github.com/docsort/docsort/internal/route"
	"github.com/docsort/docsort/internal/rule"
	"github.com/docsort/docsort/internal/service"
	"github.com/docsort/docsort/internal/testutil"
)

type testHarness struct {
	engine  *Engine
	store   service.Storage
	mover   *MockMover
	reviews *review.Coordinator
}

func newHarness(t *testing.T, rules []model.Rule, mutate func(*Config)) *testHarness {
	t.Helper()

	store := testutil.SetupTestDB(t)
	mover := NewMockMover()
	checker := NewChecker(store, mover)

	router, err := route.NewRouter(testutil.Thresholds())
	require.NoError(t, err)

	planner, err := pathplan.NewPlanner(pathplan.Options{
		BaseDir:          "/archive",
		ReviewDir:        "_review",
		UncategorizedDir: "_uncategorized",
		ConflictPolicy:   pathplan.PolicySuffix,
		MaxPathLength:    255,
		MaxAttempts:      3,
	}, checker)
	require.NoError(t, err)

	namer, err := naming.NewGenerator(naming.Options{
		DefaultTemplate:   "{title}",
		ConflictPolicy:    pathplan.PolicySuffix,
		MaxFilenameLength: 128,
		MaxAttempts:       3,
	}, checker)
	require.NoError(t, err)

	cfg := Config{Actor: "test", Workers: 2, MoveTimeout: time.Second}
	if mutate != nil {
		mutate(&cfg)
	}

	eng := New(store, mover, nil, Components{
		Rules:    rule.NewEngine(rules),
		Router:   router,
		Resolver: resolve.NewResolver(testutil.Taxonomy(), router.MinThreshold(), 10),
		Planner:  planner,
		Namer:    namer,
	}, cfg)

	reviews := review.NewCoordinator(store, eng, review.DefaultWeights())
	eng.SetReviews(reviews)

	return &testHarness{engine: eng, store: store, mover: mover, reviews: reviews}
}

func TestProcessDocumentHighConfidenceMoves(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	evidence := testutil.Evidence("doc-1", "/inbox/scan.pdf", "invoice", 0.92)
	outcome := h.engine.ProcessDocument(ctx, evidence)

	require.NoError(t, outcome.Err)
	assert.Equal(t, DispositionMoved, outcome.Disposition)
	assert.Equal(t, filepath.FromSlash("/archive/invoice/scan.pdf"), outcome.FinalPath)

	// The move went through the collaborator.
	moves := h.mover.Moves()
	require.Len(t, moves, 1)
	assert.Equal(t, "/inbox/scan.pdf", moves[0].SourcePath)

	// The ledger holds one committed entry with a full snapshot.
	op, err := h.store.GetOperation(ctx, outcome.Operation.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OpCommitted, op.Status)
	require.NotNil(t, op.Snapshot)
	assert.Equal(t, "invoice", op.Snapshot.PrimaryCategory)
	assert.Equal(t, model.StatusAutoAccepted, op.Snapshot.Status)
}

func TestProcessDocumentAmbiguousQueuesForReview(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	evidence := testutil.Evidence("doc-2", "/inbox/memo.pdf", "report", 0.55)
	outcome := h.engine.ProcessDocument(ctx, evidence)

	require.NoError(t, outcome.Err)
	assert.Equal(t, DispositionReview, outcome.Disposition)
	assert.Empty(t, h.mover.Moves(), "nothing moves without staging enabled")

	items, err := h.reviews.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "doc-2", items[0].DocumentID)
	assert.Equal(t, "/inbox/memo.pdf", items[0].OriginalPath)
}

func TestProcessDocumentLowConfidenceRejected(t *testing.T) {
	h := newHarness(t, nil, nil)

	evidence := testutil.Evidence("doc-3", "/inbox/noise.bin", "letter", 0.1)
	outcome := h.engine.ProcessDocument(context.Background(), evidence)

	require.NoError(t, outcome.Err)
	assert.Equal(t, DispositionRejected, outcome.Disposition)
	assert.Empty(t, h.mover.Moves())
}

func TestProcessDocumentRuleForcesReview(t *testing.T) {
	rules := []model.Rule{{
		Name:      "contracts-need-eyes",
		Phase:     model.PhasePost,
		Priority:  10,
		Active:    true,
		Condition: model.Condition{Field: "category", Op: model.OpEquals, Value: "contract"},
		Action:    model.Action{Kind: model.ActionRequireReview},
	}}
	h := newHarness(t, rules, nil)

	evidence := testutil.Evidence("doc-4", "/inbox/deal.pdf", "contract", 0.95)
	outcome := h.engine.ProcessDocument(context.Background(), evidence)

	require.NoError(t, outcome.Err)
	assert.Equal(t, DispositionReview, outcome.Disposition)
	assert.Contains(t, outcome.Result.RulesApplied, "contracts-need-eyes")
}

func TestProcessDocumentRejectRuleWins(t *testing.T) {
	rules := []model.Rule{{
		Name:      "no-temp-files",
		Phase:     model.PhasePre,
		Priority:  10,
		Active:    true,
		Condition: model.Condition{Field: model.AttrExtension, Op: model.OpEquals, Value: "tmp"},
		Action:    model.Action{Kind: model.ActionReject},
	}}
	h := newHarness(t, rules, nil)

	evidence := testutil.Evidence("doc-5", "/inbox/junk.tmp", "invoice", 0.99)
	evidence.Attributes[model.AttrExtension] = "tmp"
	outcome := h.engine.ProcessDocument(context.Background(), evidence)

	require.NoError(t, outcome.Err)
	assert.Equal(t, DispositionRejected, outcome.Disposition, "reject beats any confidence")
}

func TestProcessDocumentConfidenceOverridePostWins(t *testing.T) {
	rules := []model.Rule{
		{
			Name:      "pre-boost",
			Phase:     model.PhasePre,
			Priority:  1,
			Active:    true,
			Condition: model.Condition{Field: model.AttrExtension, Op: model.OpEquals, Value: "pdf"},
			Action:    model.Action{Kind: model.ActionSetConfidence, Confidence: 0.99},
		},
		{
			Name:      "post-damp",
			Phase:     model.PhasePost,
			Priority:  1,
			Active:    true,
			Condition: model.Condition{Field: "category", Op: model.OpEquals, Value: "invoice"},
			Action:    model.Action{Kind: model.ActionSetConfidence, Confidence: 0.5},
		},
	}
	h := newHarness(t, rules, nil)

	evidence := testutil.Evidence("doc-6", "/inbox/inv.pdf", "invoice", 0.9)
	evidence.Attributes[model.AttrExtension] = "pdf"
	outcome := h.engine.ProcessDocument(context.Background(), evidence)

	require.NoError(t, outcome.Err)
	assert.InDelta(t, 0.5, outcome.Result.Confidence, 1e-9)
	assert.Equal(t, DispositionReview, outcome.Disposition)
}

func TestProcessDocumentDryRunTouchesNothing(t *testing.T) {
	h := newHarness(t, nil, func(cfg *Config) { cfg.DryRun = true })
	ctx := context.Background()

	evidence := testutil.Evidence("doc-7", "/inbox/scan.pdf", "invoice", 0.92)
	outcome := h.engine.ProcessDocument(ctx, evidence)

	require.NoError(t, outcome.Err)
	assert.Equal(t, DispositionPlanned, outcome.Disposition)
	assert.Equal(t, filepath.FromSlash("/archive/invoice/scan.pdf"), outcome.FinalPath)
	assert.Empty(t, h.mover.Moves())

	ops, err := h.store.GetOperationsByPath(ctx, "/inbox/scan.pdf")
	require.NoError(t, err)
	assert.Empty(t, ops, "dry run writes no ledger entries")
}

func TestProcessDocumentConflictExhaustionDegradesToReview(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	base := filepath.FromSlash("/archive/invoice/scan.pdf")
	h.mover.existing[base] = true
	for i := 1; i <= 3; i++ {
		h.mover.existing[filepath.FromSlash("/archive/invoice/scan_"+strconv.Itoa(i)+".pdf")] = true
	}

	evidence := testutil.Evidence("doc-8", "/inbox/scan.pdf", "invoice", 0.92)
	outcome := h.engine.ProcessDocument(ctx, evidence)

	require.NoError(t, outcome.Err)
	assert.Equal(t, DispositionReview, outcome.Disposition)
	assert.Contains(t, outcome.Reason, "conflict")
}

func TestProcessDocumentMoveFailureMarksFailed(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.mover.FailCause = "read-only filesystem"
	ctx := context.Background()

	evidence := testutil.Evidence("doc-9", "/inbox/scan.pdf", "invoice", 0.92)
	outcome := h.engine.ProcessDocument(ctx, evidence)

	require.Error(t, outcome.Err)
	assert.Equal(t, DispositionFailed, outcome.Disposition)

	op, err := h.store.GetOperation(ctx, outcome.Operation.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OpFailed, op.Status)
	assert.Equal(t, "read-only filesystem", op.Error)
}

func TestProcessDocumentMissingEssentials(t *testing.T) {
	h := newHarness(t, nil, nil)

	outcome := h.engine.ProcessDocument(context.Background(), &model.Evidence{DocumentID: "doc-10"})
	assert.Equal(t, DispositionFailed, outcome.Disposition)
	require.Error(t, outcome.Err)
}

func TestProcessBatchBoundedWorkers(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	documents := make([]model.Evidence, 20)
	for i := range documents {
		id := "batch-" + strconv.Itoa(i)
		documents[i] = *testutil.Evidence(id, "/inbox/"+id+".pdf", "invoice", 0.92)
	}

	var outcomes []Outcome
	err := h.engine.ProcessBatch(ctx, documents, func(o Outcome) {
		outcomes = append(outcomes, o)
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 20)

	for _, o := range outcomes {
		assert.Equal(t, DispositionMoved, o.Disposition, "document %s", o.DocumentID)
	}
	assert.Len(t, h.mover.Moves(), 20)
}

func TestConcurrentDocumentsNeverShareADestination(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	// Twenty documents all want /archive/invoice/same.pdf.
	documents := make([]model.Evidence, 20)
	for i := range documents {
		id := "clash-" + strconv.Itoa(i)
		documents[i] = *testutil.Evidence(id, "/inbox/"+strconv.Itoa(i)+"/same.pdf", "invoice", 0.92)
	}

	err := h.engine.ProcessBatch(ctx, documents, nil)
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, mv := range h.mover.Moves() {
		assert.False(t, seen[mv.DestinationPath], "destination %s used twice", mv.DestinationPath)
		seen[mv.DestinationPath] = true
	}
}

func TestReviewApprovalReplansThroughEngine(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	evidence := testutil.Evidence("doc-11", "/inbox/memo.pdf", "report", 0.55)
	outcome := h.engine.ProcessDocument(ctx, evidence)
	require.Equal(t, DispositionReview, outcome.Disposition)

	sessionID, err := h.reviews.StartSession(ctx, "alex")
	require.NoError(t, err)
	_, err = h.reviews.Claim(ctx, "doc-11", sessionID)
	require.NoError(t, err)

	final, err := h.reviews.Submit(ctx, &model.ReviewDecision{
		DocumentID: "doc-11",
		SessionID:  sessionID,
		Action:     model.ReviewActionApprove,
	})
	require.NoError(t, err)
	require.NotNil(t, final)

	// The approval triggered a real, ledgered move.
	moves := h.mover.Moves()
	require.Len(t, moves, 1)
	assert.Equal(t, "/inbox/memo.pdf", moves[0].SourcePath)
	assert.Equal(t, filepath.FromSlash("/archive/report/memo.pdf"), moves[0].DestinationPath)

	claim, err := h.store.ClaimedBy(ctx, filepath.FromSlash("/archive/report/memo.pdf"))
	require.NoError(t, err)
	require.NotNil(t, claim)
	assert.Equal(t, model.OpCommitted, claim.Status)
}

func TestStageReviewsMovesIntoReviewArea(t *testing.T) {
	h := newHarness(t, nil, func(cfg *Config) { cfg.StageReviews = true })
	ctx := context.Background()

	evidence := testutil.Evidence("doc-12", "/inbox/memo.pdf", "report", 0.55)
	outcome := h.engine.ProcessDocument(ctx, evidence)

	require.NoError(t, outcome.Err)
	assert.Equal(t, DispositionReview, outcome.Disposition)
	assert.Equal(t, filepath.FromSlash("/archive/_review/memo.pdf"), outcome.FinalPath)

	// The queue entry points at the staged location.
	item, err := h.reviews.Claim(ctx, "doc-12", "session-x")
	require.NoError(t, err)
	assert.Equal(t, filepath.FromSlash("/archive/_review/memo.pdf"), item.OriginalPath)
}
