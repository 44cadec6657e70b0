// Package testutil provides shared fixtures for package tests: an isolated
// in-memory ledger and a small document taxonomy.
package testutil

import (
	"context"
	"testing"

	"github.com/docsort/docsort/internal/ledger"
	"github.com/docsort/docsort/internal/model"
	"github.com/docsort/docsort/internal/route"
)

// SetupTestDB creates a migrated in-memory ledger store with automatic
// cleanup.
func SetupTestDB(t *testing.T) *ledger.SQLiteStore {
	t.Helper()

	store, err := ledger.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

// Taxonomy returns a small two-dimension taxonomy: an exclusive primary
// doc_type dimension and a non-exclusive topic dimension.
func Taxonomy() model.Taxonomy {
	return model.Taxonomy{
		Primary: "doc_type",
		Dimensions: []model.Dimension{
			{
				Name:      "doc_type",
				Labels:    []string{"invoice", "contract", "report", "letter"},
				Exclusive: true,
			},
			{
				Name:   "topic",
				Labels: []string{"finance", "legal", "engineering", "hr"},
			},
		},
	}
}

// Thresholds returns the routing cut points used throughout the tests.
func Thresholds() route.Thresholds {
	return route.Thresholds{Auto: 0.85, Review: 0.6, Min: 0.3}
}

// Evidence builds minimal evidence with one primary-dimension candidate.
func Evidence(documentID, originalPath, category string, score float64) *model.Evidence {
	return &model.Evidence{
		DocumentID:   documentID,
		OriginalPath: originalPath,
		Attributes: map[string]string{
			model.AttrFilename: originalPath,
		},
		Candidates: []model.Candidate{
			{Dimension: "doc_type", Label: category, Score: score},
		},
	}
}
