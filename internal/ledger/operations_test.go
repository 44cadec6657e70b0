package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsort/docsort/internal/common"
	"github.com/docsort/docsort/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))

	t.Cleanup(func() { _ = store.Close() })
	return store
}

func pendingOp(docID, from, to string) *model.Operation {
	return &model.Operation{
		DocumentID:   docID,
		PreviousPath: from,
		NewPath:      to,
		PreviousName: "a.pdf",
		NewName:      "b.pdf",
		Status:       model.OpPending,
		Actor:        "test",
		Snapshot: &model.Result{
			DocumentID:      docID,
			PrimaryCategory: "invoice",
			Status:          model.StatusAutoAccepted,
			Confidence:      0.9,
			Version:         1,
		},
	}
}

func TestRecordAndGetOperation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	op := pendingOp("doc-1", "/inbox/a.pdf", "/archive/invoice/b.pdf")
	op.LinkPaths = []string{"/archive/finance/b.pdf"}

	id, err := store.RecordOperation(ctx, op)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := store.GetOperation(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, "doc-1", got.DocumentID)
	assert.Equal(t, model.OpPending, got.Status)
	assert.Equal(t, []string{"/archive/finance/b.pdf"}, got.LinkPaths)
	require.NotNil(t, got.Snapshot)
	assert.Equal(t, "invoice", got.Snapshot.PrimaryCategory)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestGetOperationNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetOperation(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRecordOperationValidates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.RecordOperation(ctx, nil)
	assert.Error(t, err)

	_, err = store.RecordOperation(ctx, &model.Operation{NewPath: "/x", PreviousPath: "/y", Status: model.OpPending})
	assert.Error(t, err, "document ID is required")

	rolledBack := pendingOp("doc-2", "/a", "/b")
	rolledBack.Status = model.OpRolledBack
	_, err = store.RecordOperation(ctx, rolledBack)
	assert.Error(t, err, "rolled-back entry must reference the original")
}

func TestUpdateOperationStatusTransitions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.RecordOperation(ctx, pendingOp("doc-3", "/a", "/b"))
	require.NoError(t, err)

	require.NoError(t, store.UpdateOperationStatus(ctx, id, model.OpCommitted, ""))

	got, err := store.GetOperation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.OpCommitted, got.Status)

	// A finalized entry never changes again.
	err = store.UpdateOperationStatus(ctx, id, model.OpFailed, "late failure")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUpdateOperationStatusFailedKeepsCause(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.RecordOperation(ctx, pendingOp("doc-4", "/a", "/b"))
	require.NoError(t, err)

	require.NoError(t, store.UpdateOperationStatus(ctx, id, model.OpFailed, "disk full"))

	got, err := store.GetOperation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.OpFailed, got.Status)
	assert.Equal(t, "disk full", got.Error)
}

func TestUpdateOperationStatusRejectsDirectRollback(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.RecordOperation(ctx, pendingOp("doc-5", "/a", "/b"))
	require.NoError(t, err)

	err = store.UpdateOperationStatus(ctx, id, model.OpRolledBack, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestGetOperationsByPathMatchesBothEnds(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.RecordOperation(ctx, pendingOp("doc-6", "/inbox/x.pdf", "/archive/x.pdf"))
	require.NoError(t, err)
	_, err = store.RecordOperation(ctx, pendingOp("doc-6", "/archive/x.pdf", "/archive/y.pdf"))
	require.NoError(t, err)

	ops, err := store.GetOperationsByPath(ctx, "/archive/x.pdf")
	require.NoError(t, err)
	assert.Len(t, ops, 2, "path matches as destination of one entry and source of another")
}

func TestGetOperationsByCategory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	op := pendingOp("doc-7", "/a", "/b")
	_, err := store.RecordOperation(ctx, op)
	require.NoError(t, err)

	other := pendingOp("doc-8", "/c", "/d")
	other.Snapshot.PrimaryCategory = "contract"
	_, err = store.RecordOperation(ctx, other)
	require.NoError(t, err)

	ops, err := store.GetOperationsByCategory(ctx, "invoice")
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "doc-7", ops[0].DocumentID)
}

func TestLatestCommittedIgnoresPendingAndRolledBack(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Pending entries are not current state.
	id, err := store.RecordOperation(ctx, pendingOp("doc-9", "/a", "/dest"))
	require.NoError(t, err)

	got, err := store.LatestCommitted(ctx, "/dest")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.UpdateOperationStatus(ctx, id, model.OpCommitted, ""))

	got, err = store.LatestCommitted(ctx, "/dest")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id, got.ID)

	// A rollback entry referencing the operation removes it from the view.
	reversal := pendingOp("doc-9", "/dest", "/a")
	reversal.Status = model.OpRolledBack
	reversal.RollbackOf = id
	_, err = store.RecordOperation(ctx, reversal)
	require.NoError(t, err)

	got, err = store.LatestCommitted(ctx, "/dest")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestClaimedByCoversPendingAndCommitted(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.RecordOperation(ctx, pendingOp("doc-10", "/a", "/claimed"))
	require.NoError(t, err)

	claim, err := store.ClaimedBy(ctx, "/claimed")
	require.NoError(t, err)
	require.NotNil(t, claim, "pending entries claim their destination")
	assert.Equal(t, "doc-10", claim.DocumentID)

	require.NoError(t, store.UpdateOperationStatus(ctx, id, model.OpCommitted, ""))

	claim, err = store.ClaimedBy(ctx, "/claimed")
	require.NoError(t, err)
	require.NotNil(t, claim, "committed entries keep the claim")

	free, err := store.ClaimedBy(ctx, "/never-used")
	require.NoError(t, err)
	assert.Nil(t, free)
}

func TestClaimReleasedByFailure(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.RecordOperation(ctx, pendingOp("doc-11", "/a", "/spot"))
	require.NoError(t, err)
	require.NoError(t, store.UpdateOperationStatus(ctx, id, model.OpFailed, "no space"))

	claim, err := store.ClaimedBy(ctx, "/spot")
	require.NoError(t, err)
	assert.Nil(t, claim, "failed entries release their claim")
}
