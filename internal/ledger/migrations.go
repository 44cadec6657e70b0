package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
const ExpectedSchemaVersion = 2

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Operation ledger",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS operations (
					id TEXT PRIMARY KEY,
					document_id TEXT NOT NULL,
					previous_path TEXT NOT NULL,
					new_path TEXT NOT NULL,
					previous_name TEXT,
					new_name TEXT,
					category TEXT,
					snapshot TEXT,
					link_paths TEXT,
					status TEXT NOT NULL,
					error TEXT,
					rollback_of TEXT,
					actor TEXT,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_operations_document ON operations(document_id)`,
				`CREATE INDEX idx_operations_previous_path ON operations(previous_path)`,
				`CREATE INDEX idx_operations_new_path ON operations(new_path)`,
				`CREATE INDEX idx_operations_category ON operations(category)`,
				`CREATE INDEX idx_operations_rollback_of ON operations(rollback_of)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Review queue, sessions, and decision records",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS review_items (
					document_id TEXT PRIMARY KEY,
					original_path TEXT NOT NULL DEFAULT '',
					session_id TEXT NOT NULL DEFAULT '',
					state TEXT NOT NULL,
					result TEXT NOT NULL,
					priority REAL NOT NULL DEFAULT 0,
					queued_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_review_items_state ON review_items(state)`,

				`CREATE TABLE IF NOT EXISTS review_sessions (
					id TEXT PRIMARY KEY,
					reviewer TEXT,
					started_at DATETIME NOT NULL,
					ended_at DATETIME
				)`,

				`CREATE TABLE IF NOT EXISTS review_decisions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					document_id TEXT NOT NULL,
					session_id TEXT NOT NULL,
					action TEXT NOT NULL,
					override TEXT,
					decided_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_review_decisions_session ON review_decisions(session_id)`,
				`CREATE INDEX idx_review_decisions_document ON review_decisions(document_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
}

func migrate(ctx context.Context, db *sql.DB) error {
	var currentVersion int
	err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
