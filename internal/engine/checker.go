package engine

import (
	"context"

	"github.com/docsort/docsort/internal/pathplan"
	"github.com/docsort/docsort/internal/service"
)

// ledgerChecker answers destination availability from both sources of
// truth: the filesystem via the file-operations collaborator and the
// ledger's latest non-rolled-back claims.
type ledgerChecker struct {
	store service.Storage
	mover service.FileMover
}

// NewChecker builds the conflict checker the planner and namer consult.
func NewChecker(store service.Storage, mover service.FileMover) pathplan.Checker {
	return &ledgerChecker{store: store, mover: mover}
}

func (c *ledgerChecker) Exists(path string) bool {
	return c.mover.Exists(path)
}

func (c *ledgerChecker) Owner(ctx context.Context, path string) (string, error) {
	op, err := c.store.ClaimedBy(ctx, path)
	if err != nil {
		return "", err
	}
	if op == nil {
		return "", nil
	}
	return op.DocumentID, nil
}
