package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docsort/docsort/internal/cli"
	"github.com/docsort/docsort/internal/model"
)

func operationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operations",
		Short: "Inspect the append-only operation ledger",
		Long: `Query the ledger of filesystem mutations. Every move is recorded
before it happens and updated afterwards; rollbacks are new entries, so
the full history of any path or category is always available.`,
		RunE: runOperations,
	}

	cmd.Flags().String("id", "", "show one operation by ID")
	cmd.Flags().String("path", "", "list operations touching a path (as source or destination)")
	cmd.Flags().String("category", "", "list operations for a category")

	return cmd
}

func runOperations(cmd *cobra.Command, _ []string) error {
	id, _ := cmd.Flags().GetString("id")
	path, _ := cmd.Flags().GetString("path")
	category, _ := cmd.Flags().GetString("category")

	store, err := initStore(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	switch {
	case id != "":
		op, getErr := store.GetOperation(cmd.Context(), id)
		if getErr != nil {
			return getErr
		}
		printOperation(op)
		return nil

	case path != "":
		ops, listErr := store.GetOperationsByPath(cmd.Context(), path)
		if listErr != nil {
			return listErr
		}
		return printOperations(ops)

	case category != "":
		ops, listErr := store.GetOperationsByCategory(cmd.Context(), category)
		if listErr != nil {
			return listErr
		}
		return printOperations(ops)

	default:
		return fmt.Errorf("one of --id, --path, or --category is required")
	}
}

func printOperations(ops []model.Operation) error {
	if len(ops) == 0 {
		fmt.Println(cli.FormatInfo("No operations found."))
		return nil
	}
	for i := range ops {
		printOperation(&ops[i])
	}
	return nil
}

func printOperation(op *model.Operation) {
	status := op.Status
	line := fmt.Sprintf("%s  %-11s %s → %s", op.ID, status, op.PreviousPath, op.NewPath)
	switch status {
	case model.OpCommitted:
		fmt.Println(cli.FormatSuccess(line))
	case model.OpFailed:
		fmt.Println(cli.FormatError(line + "  (" + op.Error + ")"))
	case model.OpRolledBack:
		fmt.Println(cli.FormatWarning(line + "  reverses " + op.RollbackOf))
	default:
		fmt.Println(cli.FormatInfo(line))
	}
}
