package cli

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsort/docsort/internal/model"
)

func promptTaxonomy() model.Taxonomy {
	return model.Taxonomy{
		Primary: "doc_type",
		Dimensions: []model.Dimension{
			{Name: "doc_type", Labels: []string{"invoice", "contract", "report"}, Exclusive: true},
			{Name: "topic", Labels: []string{"finance", "legal"}},
		},
	}
}

func queuedItem(docID string) *model.ReviewItem {
	return &model.ReviewItem{
		DocumentID:   docID,
		OriginalPath: "/inbox/" + docID + ".pdf",
		State:        model.ReviewInProgress,
		Result: model.Result{
			DocumentID:      docID,
			PrimaryCategory: "invoice",
			Confidence:      0.5,
			Status:          model.StatusNeedsReview,
			Tags: []model.Tag{
				{Dimension: "doc_type", Label: "invoice", Confidence: 0.5},
			},
			Version: 1,
		},
	}
}

func promptWith(t *testing.T, input string) (Decision, *strings.Builder) {
	t.Helper()
	var out strings.Builder
	p := NewReviewPrompter(strings.NewReader(input), &out, promptTaxonomy())

	decision, err := p.Prompt(context.Background(), queuedItem("doc-1"))
	require.NoError(t, err)
	return decision, &out
}

func TestPromptApprove(t *testing.T) {
	decision, out := promptWith(t, "a\n")

	assert.Equal(t, model.ReviewActionApprove, decision.Action)
	assert.Nil(t, decision.Override)
	assert.Contains(t, out.String(), "doc-1")
	assert.Contains(t, out.String(), "/inbox/doc-1.pdf")
}

func TestPromptApproveIsCaseInsensitive(t *testing.T) {
	decision, _ := promptWith(t, "A\n")
	assert.Equal(t, model.ReviewActionApprove, decision.Action)
}

func TestPromptReject(t *testing.T) {
	decision, _ := promptWith(t, "r\n")
	assert.Equal(t, model.ReviewActionReject, decision.Action)
}

func TestPromptSkipAndQuit(t *testing.T) {
	skip, _ := promptWith(t, "s\n")
	assert.True(t, skip.Skip)

	quit, _ := promptWith(t, "q\n")
	assert.True(t, quit.Quit)
}

func TestPromptInvalidChoiceReprompts(t *testing.T) {
	decision, out := promptWith(t, "x\n\na\n")

	assert.Equal(t, model.ReviewActionApprove, decision.Action)
	assert.Contains(t, out.String(), "Please choose one of")
}

func TestPromptCorrection(t *testing.T) {
	decision, _ := promptWith(t, "c\ncontract\nlegal, finance\n")

	assert.Equal(t, model.ReviewActionCorrect, decision.Action)
	require.NotNil(t, decision.Override)
	assert.Equal(t, "contract", decision.Override.PrimaryCategory)
	assert.InDelta(t, 1.0, decision.Override.Confidence, 1e-9)

	require.Len(t, decision.Override.Tags, 2)
	assert.Equal(t, "legal", decision.Override.Tags[0].Label)
	assert.Equal(t, "topic", decision.Override.Tags[0].Dimension)
	assert.Equal(t, "finance", decision.Override.Tags[1].Label)
}

func TestPromptCorrectionEmptyTagsKeepCurrent(t *testing.T) {
	decision, _ := promptWith(t, "c\nreport\n\n")

	require.NotNil(t, decision.Override)
	assert.Equal(t, "report", decision.Override.PrimaryCategory)
	require.Len(t, decision.Override.Tags, 1, "existing tags survive an empty tag line")
	assert.Equal(t, "invoice", decision.Override.Tags[0].Label)
}

func TestPromptCorrectionRejectsUnknownCategory(t *testing.T) {
	decision, out := promptWith(t, "c\nreceipt\ncontract\n\n")

	assert.Equal(t, "contract", decision.Override.PrimaryCategory)
	assert.Contains(t, out.String(), "Not a known category: receipt")
}

func TestPromptCorrectionDropsUnknownTags(t *testing.T) {
	decision, out := promptWith(t, "c\ncontract\nlegal, banana\n")

	require.Len(t, decision.Override.Tags, 1)
	assert.Equal(t, "legal", decision.Override.Tags[0].Label)
	assert.Contains(t, out.String(), "Unknown label dropped: banana")
}

func TestPromptCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewReviewPrompter(strings.NewReader("a\n"), &strings.Builder{}, promptTaxonomy())
	_, err := p.Prompt(ctx, queuedItem("doc-1"))
	assert.Error(t, err)
}
