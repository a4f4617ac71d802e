package store

import (
	"context"
	"fmt"
	"strings"

	"gadgetry/internal/model"
)

// UpsertBorrower adds a name to the borrower directory if it is not already
// there. Uses INSERT OR IGNORE so a duplicate is a no-op, not an error.
func UpsertBorrower(ctx context.Context, q Querier, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("borrower name required")
	}

	_, err := q.ExecContext(ctx,
		`INSERT OR IGNORE INTO borrowers (id, name, created_at) VALUES (?, ?, ?)`,
		model.NewID(), name, Now(),
	)
	if err != nil {
		return fmt.Errorf("upserting borrower: %w", err)
	}
	return nil
}

// ListBorrowers returns the borrower directory ordered by name.
func ListBorrowers(ctx context.Context, q Querier) ([]model.Borrower, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, name, created_at FROM borrowers ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing borrowers: %w", err)
	}
	defer rows.Close()

	var borrowers []model.Borrower
	for rows.Next() {
		var b model.Borrower
		if err := rows.Scan(&b.ID, &b.Name, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning borrower: %w", err)
		}
		borrowers = append(borrowers, b)
	}
	return borrowers, rows.Err()
}
