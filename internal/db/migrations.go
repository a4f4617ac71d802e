package db

import (
	"database/sql"
	"fmt"
)

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: case-insensitive uniqueness for borrower names so that
	// "alice" and "Alice" resolve to one directory entry.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_borrowers_name_nocase
	     ON borrowers(name COLLATE NOCASE)`,
}

// Migrate ensures the schema exists and runs all migrations.
func Migrate(db *sql.DB) error {
	if err := EnsureSchema(db); err != nil {
		return err
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
