package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gadgetry/internal/model"
	"gadgetry/internal/store"
)

// LendItem opens a loan for a single item: a new open lending record, status
// set to lent, and the location cleared (the item is with the borrower now,
// not on a shelf). Lending an already-lent item is rejected so a second open
// record can never appear.
func (e *Engine) LendItem(ctx context.Context, itemID, borrowerName string, dueDate *time.Time) (*model.Item, error) {
	borrowerName = strings.TrimSpace(borrowerName)
	if borrowerName == "" {
		return nil, fmt.Errorf("%w: borrower name required", ErrValidation)
	}

	now := store.Now()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := store.GetItem(ctx, tx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: item %s", ErrNotFound, itemID)
	}
	if open, err := store.GetOpenLending(ctx, tx, itemID); err != nil {
		return nil, err
	} else if open != nil {
		return nil, fmt.Errorf("%w: item is already lent to %s", ErrValidation, open.BorrowerName)
	}

	if err := e.lendInTx(ctx, tx, item, borrowerName, dueDate, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing lend: %w", err)
	}

	e.upsertBorrower(ctx, borrowerName)
	e.audit.Log(ctx, AuditEntry{Action: "LEND", EntityType: "item", EntityID: item.ID,
		EntityName: item.Name, Details: borrowerName})
	e.webhooks.Trigger(EventItemLent, item)
	return item, nil
}

// BulkLendItems lends every matching item to the same borrower in one
// transaction. Missing ids and already-lent items are silently skipped;
// the result is the count of items actually lent.
func (e *Engine) BulkLendItems(ctx context.Context, itemIDs []string, borrowerName string, dueDate *time.Time) (int, error) {
	borrowerName = strings.TrimSpace(borrowerName)
	if borrowerName == "" {
		return 0, fmt.Errorf("%w: borrower name required", ErrValidation)
	}

	now := store.Now()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	lent := 0
	for _, id := range itemIDs {
		item, err := store.GetItem(ctx, tx, id)
		if err != nil {
			return 0, err
		}
		if item == nil {
			continue
		}
		if open, err := store.GetOpenLending(ctx, tx, id); err != nil {
			return 0, err
		} else if open != nil {
			continue
		}
		if err := e.lendInTx(ctx, tx, item, borrowerName, dueDate, now); err != nil {
			return 0, err
		}
		lent++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing bulk lend: %w", err)
	}

	e.upsertBorrower(ctx, borrowerName)
	e.audit.Log(ctx, AuditEntry{Action: "LEND", EntityType: "item",
		Details: fmt.Sprintf("bulk lend of %d items to %s", lent, borrowerName)})
	e.webhooks.Trigger(EventItemsLent, map[string]any{"item_ids": itemIDs, "borrower_name": borrowerName, "count": lent})
	return lent, nil
}

// lendInTx applies the lend writes for one item inside an open transaction.
func (e *Engine) lendInTx(ctx context.Context, tx store.Querier, item *model.Item, borrowerName string, dueDate *time.Time, now time.Time) error {
	rec := &model.LendingRecord{
		ID:           model.NewID(),
		ItemID:       item.ID,
		BorrowerName: borrowerName,
		BorrowDate:   now,
		DueDate:      dueDate,
	}
	if err := store.InsertLending(ctx, tx, rec); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE items SET status = ?, location_id = NULL, updated_at = ? WHERE id = ?`,
		model.StatusLent, now, item.ID,
	); err != nil {
		return fmt.Errorf("marking item lent: %w", err)
	}
	item.Status = model.StatusLent
	item.LocationID = nil
	item.UpdatedAt = now

	return store.AppendHistory(ctx, tx, item.ID, model.ActionLent,
		fmt.Sprintf("Lent to %s", borrowerName))
}

// ReturnItem closes the item's open loan if one exists (silently proceeding
// if none does), sets the status back to available, and clears the location:
// a returned item lands as unclassified, it does not snap back to its
// pre-loan shelf.
func (e *Engine) ReturnItem(ctx context.Context, itemID string) (*model.Item, error) {
	now := store.Now()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := store.GetItem(ctx, tx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: item %s", ErrNotFound, itemID)
	}

	open, err := store.GetOpenLending(ctx, tx, itemID)
	if err != nil {
		return nil, err
	}
	details := "Returned"
	if open != nil {
		if err := store.CloseLending(ctx, tx, open.ID, now); err != nil {
			return nil, err
		}
		details = fmt.Sprintf("Returned by %s", open.BorrowerName)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE items SET status = ?, location_id = NULL, updated_at = ? WHERE id = ?`,
		model.StatusAvailable, now, itemID,
	); err != nil {
		return nil, fmt.Errorf("marking item returned: %w", err)
	}
	item.Status = model.StatusAvailable
	item.LocationID = nil
	item.UpdatedAt = now

	if err := store.AppendHistory(ctx, tx, itemID, model.ActionReturned, details); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing return: %w", err)
	}

	e.audit.Log(ctx, AuditEntry{Action: "RETURN", EntityType: "item", EntityID: item.ID, EntityName: item.Name})
	e.webhooks.Trigger(EventItemReturned, item)
	return item, nil
}

// upsertBorrower refreshes the borrower directory after a committed lend.
// Best-effort: a failure is logged and swallowed, it can never roll back
// the lend itself.
func (e *Engine) upsertBorrower(ctx context.Context, name string) {
	if err := store.UpsertBorrower(ctx, e.db, name); err != nil {
		e.logger.Warn("upserting borrower contact", "name", name, "error", err)
	}
}
