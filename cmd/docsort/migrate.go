package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/docsort/docsort/internal/cli"
	"github.com/docsort/docsort/internal/ledger"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the ledger database schema to the latest
version. Safe to run repeatedly; already-applied migrations are skipped.`,
		RunE: runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	store, err := initStore(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	slog.Info("Database migrated", "schema_version", ledger.ExpectedSchemaVersion)
	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Schema at version %d.", ledger.ExpectedSchemaVersion)))
	return nil
}
