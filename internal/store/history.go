package store

import (
	"context"
	"fmt"

	"gadgetry/internal/model"
)

// AppendHistory adds one entry to an item's trail.
func AppendHistory(ctx context.Context, q Querier, itemID, action, details string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO item_history (id, item_id, action, details, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		model.NewID(), itemID, action, details, Now(),
	)
	if err != nil {
		return fmt.Errorf("appending history: %w", err)
	}
	return nil
}

// ListItemHistory returns an item's trail, newest first. Entries written in
// the same second fall back to insertion order.
func ListItemHistory(ctx context.Context, q Querier, itemID string) ([]model.HistoryEntry, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, item_id, action, details, created_at
		 FROM item_history WHERE item_id = ?
		 ORDER BY created_at DESC, rowid DESC`, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing item history: %w", err)
	}
	defer rows.Close()

	var entries []model.HistoryEntry
	for rows.Next() {
		var e model.HistoryEntry
		if err := rows.Scan(&e.ID, &e.ItemID, &e.Action, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning history entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteHistoryEntry removes a single entry. This is a user correction
// action; the engine itself never deletes history.
func DeleteHistoryEntry(ctx context.Context, q Querier, id string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM item_history WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting history entry: %w", err)
	}
	return nil
}
