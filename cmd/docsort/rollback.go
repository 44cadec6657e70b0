package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/docsort/docsort/internal/cli"
	"github.com/docsort/docsort/internal/common"
	"github.com/docsort/docsort/internal/fsops"
	"github.com/docsort/docsort/internal/ledger"
)

func rollbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <operation-id>",
		Short: "Reverse a committed move",
		Long: `Move a document back to where it came from. The original ledger
entry is never altered; the reversal is appended as a new entry that
references it. Rolling back a pending, failed, or already-reversed
operation does nothing and says so.`,
		Args: cobra.ExactArgs(1),
		RunE: runRollback,
	}
}

func runRollback(cmd *cobra.Command, args []string) error {
	store, err := initStore(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	mover := fsops.NewLocalMover(fsops.Options{})
	rollbacker := ledger.NewRollbacker(store, mover, viper.GetString("actor"), 0)

	result, err := rollbacker.Rollback(cmd.Context(), args[0])
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.NewUserError("no such operation: "+args[0], err)
		}
		return err
	}

	switch result.Outcome {
	case ledger.OutcomeRolledBack:
		fmt.Println(cli.FormatSuccess("Restored to " + result.RestoredPath))
	case ledger.OutcomeNothingToRollBack:
		fmt.Println(cli.FormatInfo("Nothing to roll back: " + result.Reason))
	}
	return nil
}
