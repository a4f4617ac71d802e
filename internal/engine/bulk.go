package engine

import (
	"context"
	"fmt"
	"strings"

	"gadgetry/internal/model"
	"gadgetry/internal/store"
)

// BulkMoveItems re-homes every matching item to the given location (nil
// means unclassified) and appends one "moved" history entry per surviving
// item, all in one transaction. Ids deleted by a concurrent actor are
// silently skipped rather than aborting the batch; the returned count is
// the number of rows actually updated.
func (e *Engine) BulkMoveItems(ctx context.Context, itemIDs []string, locationID *string) (int, error) {
	if len(itemIDs) == 0 {
		return 0, nil
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	label := unclassifiedLabel
	if locationID != nil {
		loc, err := store.GetLocation(ctx, tx, *locationID)
		if err != nil {
			return 0, err
		}
		if loc == nil {
			return 0, fmt.Errorf("%w: location %s", ErrNotFound, *locationID)
		}
		label = loc.Name
	}

	placeholders, args := inClause(itemIDs)
	args = append([]any{locationID, store.Now()}, args...)
	result, err := tx.ExecContext(ctx,
		`UPDATE items SET location_id = ?, updated_at = ? WHERE id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("moving items: %w", err)
	}
	moved, _ := result.RowsAffected()

	// History only for ids that still exist; a vanished id is a no-op for
	// the history step, not an error.
	survivors, err := existingItemIDs(ctx, tx, itemIDs)
	if err != nil {
		return 0, err
	}
	for _, id := range survivors {
		if err := store.AppendHistory(ctx, tx, id, model.ActionMoved,
			fmt.Sprintf("Moved to %s", label)); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing bulk move: %w", err)
	}

	e.audit.Log(ctx, AuditEntry{Action: "MOVE", EntityType: "item",
		Details: fmt.Sprintf("bulk move of %d items to %s", moved, label)})
	e.webhooks.Trigger(EventItemsMoved, map[string]any{"item_ids": itemIDs, "location_id": locationID, "count": moved})
	return int(moved), nil
}

// BulkDeleteItems deletes all matching items in one statement; history,
// ledger, and attachment rows cascade. Attachment files for the whole batch
// are then deleted concurrently, each failure isolated and ignored.
func (e *Engine) BulkDeleteItems(ctx context.Context, itemIDs []string) (int, error) {
	if len(itemIDs) == 0 {
		return 0, nil
	}

	attachments, err := store.ListAttachmentsForItems(ctx, e.db, itemIDs)
	if err != nil {
		return 0, err
	}

	placeholders, args := inClause(itemIDs)
	result, err := e.db.ExecContext(ctx,
		`DELETE FROM items WHERE id IN (`+placeholders+`)`, args...,
	)
	if err != nil {
		return 0, fmt.Errorf("bulk deleting items: %w", err)
	}
	deleted, _ := result.RowsAffected()

	e.deleteFiles(attachments)

	e.audit.Log(ctx, AuditEntry{Action: "DELETE", EntityType: "item",
		Details: fmt.Sprintf("bulk delete of %d items", deleted)})
	e.webhooks.Trigger(EventItemsDeleted, map[string]any{"item_ids": itemIDs, "count": deleted})
	return int(deleted), nil
}

func existingItemIDs(ctx context.Context, q store.Querier, itemIDs []string) ([]string, error) {
	placeholders, args := inClause(itemIDs)
	rows, err := q.QueryContext(ctx,
		`SELECT id FROM items WHERE id IN (`+placeholders+`)`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("checking item ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning item id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func inClause(ids []string) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(ids)), ","), args
}
