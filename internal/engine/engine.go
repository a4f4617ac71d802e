// Package engine orchestrates every mutation of item state. An item's status,
// its open loan, and its history trail live in separate records but must stay
// mutually consistent, so all writers funnel through the engine's
// transactions; nothing else writes these tables.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"gadgetry/internal/model"
	"gadgetry/internal/store"
)

// Sentinel errors for the engine's error taxonomy. Handlers map these to
// HTTP status codes.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
)

// Display labels for the nil location.
const (
	unclassifiedLabel = "unclassified"
	oldStorageLabel   = "old storage"
)

// Engine coordinates atomic multi-record transitions across items, lending
// records, and history, and fires side-effect notifications after commit.
// Collaborators are injected; pass nil for any that is not needed and a
// no-op is substituted.
type Engine struct {
	db          *sql.DB
	audit       AuditLogger
	webhooks    Dispatcher
	attachments AttachmentStore
	logger      *slog.Logger
}

// New creates an engine around the given database handle.
func New(db *sql.DB, audit AuditLogger, webhooks Dispatcher, attachments AttachmentStore, logger *slog.Logger) *Engine {
	if audit == nil {
		audit = nopAudit{}
	}
	if webhooks == nil {
		webhooks = nopDispatcher{}
	}
	if attachments == nil {
		attachments = nopAttachments{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{db: db, audit: audit, webhooks: webhooks, attachments: attachments, logger: logger}
}

// DB exposes the underlying handle for read-only callers (handlers listing
// locations, history, etc. go straight to the store).
func (e *Engine) DB() *sql.DB {
	return e.db
}

// CreateItem inserts a new item with its "created" history entry and, if the
// draft arrives already lent, the open lending record and "lent" entry, all
// in one transaction. A lent draft without a borrower name aborts the whole
// transaction; nothing is created.
func (e *Engine) CreateItem(ctx context.Context, draft *model.ItemDraft) (*model.Item, error) {
	if err := draft.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	now := store.Now()
	item := itemFromDraft(model.NewID(), draft)
	item.CreatedAt = now
	item.UpdatedAt = now

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	label := e.locationLabel(ctx, tx, item.LocationID, unclassifiedLabel)

	if err := store.InsertItem(ctx, tx, item); err != nil {
		return nil, err
	}
	if err := store.AppendHistory(ctx, tx, item.ID, model.ActionCreated,
		fmt.Sprintf("Created at %s", label)); err != nil {
		return nil, err
	}

	lent := item.Status == model.StatusLent
	if lent {
		if draft.BorrowerName == "" {
			return nil, fmt.Errorf("%w: borrower name required for lent item", ErrValidation)
		}
		rec := &model.LendingRecord{
			ID:           model.NewID(),
			ItemID:       item.ID,
			BorrowerName: draft.BorrowerName,
			BorrowDate:   now,
			DueDate:      draft.DueDate,
		}
		if err := store.InsertLending(ctx, tx, rec); err != nil {
			return nil, err
		}
		if err := store.AppendHistory(ctx, tx, item.ID, model.ActionLent,
			fmt.Sprintf("Lent to %s", draft.BorrowerName)); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing item creation: %w", err)
	}

	e.audit.Log(ctx, AuditEntry{Action: "CREATE", EntityType: "item", EntityID: item.ID, EntityName: item.Name})
	e.webhooks.Trigger(EventItemCreated, item)
	if lent {
		e.audit.Log(ctx, AuditEntry{Action: "LEND", EntityType: "item", EntityID: item.ID,
			EntityName: item.Name, Details: draft.BorrowerName})
		e.webhooks.Trigger(EventItemLent, item)
	}

	return item, nil
}

// UpdateItem writes the draft over the current item and detects the three
// independent transitions (moved, entered lent, exited lent), each producing
// its own history entry and, where relevant, ledger mutation. The checks are
// independent and can co-occur in a single edit.
func (e *Engine) UpdateItem(ctx context.Context, id string, draft *model.ItemDraft) (*model.Item, error) {
	if err := draft.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := store.GetItem(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("%w: item %s", ErrNotFound, id)
	}

	updated := itemFromDraft(id, draft)
	updated.ImageMime = current.ImageMime
	updated.CreatedAt = current.CreatedAt
	updated.UpdatedAt = store.Now()

	if err := store.UpdateItem(ctx, tx, updated); err != nil {
		return nil, err
	}

	tr := detectTransitions(current, updated)

	if tr.Moved {
		from := e.locationLabel(ctx, tx, current.LocationID, oldStorageLabel)
		to := e.locationLabel(ctx, tx, updated.LocationID, unclassifiedLabel)
		if err := store.AppendHistory(ctx, tx, id, model.ActionMoved,
			fmt.Sprintf("Moved from %s to %s", from, to)); err != nil {
			return nil, err
		}
	}

	if tr.EnteredLent {
		if draft.BorrowerName == "" {
			return nil, fmt.Errorf("%w: borrower name required for lent item", ErrValidation)
		}
		rec := &model.LendingRecord{
			ID:           model.NewID(),
			ItemID:       id,
			BorrowerName: draft.BorrowerName,
			BorrowDate:   updated.UpdatedAt,
			DueDate:      draft.DueDate,
		}
		if err := store.InsertLending(ctx, tx, rec); err != nil {
			return nil, err
		}
		if err := store.AppendHistory(ctx, tx, id, model.ActionLent,
			fmt.Sprintf("Lent to %s", draft.BorrowerName)); err != nil {
			return nil, err
		}
	}

	if tr.ExitedLent {
		// An open record may legitimately be missing (imported data); the
		// status still transitions, only the ledger write is skipped.
		open, err := store.GetOpenLending(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		details := "Returned"
		if open != nil {
			if err := store.CloseLending(ctx, tx, open.ID, updated.UpdatedAt); err != nil {
				return nil, err
			}
			details = fmt.Sprintf("Returned by %s", open.BorrowerName)
		}
		if err := store.AppendHistory(ctx, tx, id, model.ActionReturned, details); err != nil {
			return nil, err
		}
	}

	if !tr.Any() {
		if err := store.AppendHistory(ctx, tx, id, model.ActionUpdated, "Details updated"); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing item update: %w", err)
	}

	e.audit.Log(ctx, AuditEntry{Action: "UPDATE", EntityType: "item", EntityID: id, EntityName: updated.Name})
	e.webhooks.Trigger(EventItemUpdated, updated)
	if tr.EnteredLent {
		e.audit.Log(ctx, AuditEntry{Action: "LEND", EntityType: "item", EntityID: id,
			EntityName: updated.Name, Details: draft.BorrowerName})
		e.webhooks.Trigger(EventItemLent, updated)
	}
	if tr.ExitedLent {
		e.audit.Log(ctx, AuditEntry{Action: "RETURN", EntityType: "item", EntityID: id, EntityName: updated.Name})
		e.webhooks.Trigger(EventItemReturned, updated)
	}
	if tr.Moved {
		e.audit.Log(ctx, AuditEntry{Action: "MOVE", EntityType: "item", EntityID: id, EntityName: updated.Name})
	}

	return updated, nil
}

// DeleteItem removes an item; its history, ledger, and attachment rows
// cascade. Attached files are deleted best-effort after the row is gone; a
// file failure is logged and swallowed, never rolled back.
func (e *Engine) DeleteItem(ctx context.Context, id string) error {
	item, err := store.GetItem(ctx, e.db, id)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("%w: item %s", ErrNotFound, id)
	}

	attachments, err := store.ListItemAttachments(ctx, e.db, id)
	if err != nil {
		return err
	}

	if err := store.DeleteItem(ctx, e.db, id); err != nil {
		return err
	}

	e.deleteFiles(attachments)

	e.audit.Log(ctx, AuditEntry{Action: "DELETE", EntityType: "item", EntityID: id, EntityName: item.Name})
	e.webhooks.Trigger(EventItemDeleted, map[string]string{"id": id, "name": item.Name})
	return nil
}

// ItemDetail is an item with its nested location, trail, ledger, and
// attachment metadata.
type ItemDetail struct {
	Item        *model.Item           `json:"item"`
	Location    *model.Location       `json:"location,omitempty"`
	History     []model.HistoryEntry  `json:"history"`
	Lending     []model.LendingRecord `json:"lending"`
	Attachments []model.Attachment    `json:"attachments"`
}

// GetItemDetail loads an item with its related records.
func (e *Engine) GetItemDetail(ctx context.Context, id string) (*ItemDetail, error) {
	item, err := store.GetItem(ctx, e.db, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: item %s", ErrNotFound, id)
	}

	detail := &ItemDetail{Item: item}
	if item.LocationID != nil {
		if detail.Location, err = store.GetLocation(ctx, e.db, *item.LocationID); err != nil {
			return nil, err
		}
	}
	if detail.History, err = store.ListItemHistory(ctx, e.db, id); err != nil {
		return nil, err
	}
	if detail.Lending, err = store.ListItemLendings(ctx, e.db, id); err != nil {
		return nil, err
	}
	if detail.Attachments, err = store.ListItemAttachments(ctx, e.db, id); err != nil {
		return nil, err
	}
	return detail, nil
}

// locationLabel resolves a nullable location id to a display name, falling
// back to the given label when unset or referencing a deleted location.
func (e *Engine) locationLabel(ctx context.Context, q store.Querier, id *string, fallback string) string {
	if id == nil {
		return fallback
	}
	loc, err := store.GetLocation(ctx, q, *id)
	if err != nil || loc == nil {
		return fallback
	}
	return loc.Name
}

// deleteFiles removes attachment files best-effort and concurrently; each
// failure is isolated and only logged.
func (e *Engine) deleteFiles(attachments []model.Attachment) {
	for _, att := range attachments {
		go func(key string) {
			if err := e.attachments.Delete(context.Background(), key); err != nil {
				e.logger.Warn("deleting attachment file", "file_key", key, "error", err)
			}
		}(att.FileKey)
	}
}

func itemFromDraft(id string, draft *model.ItemDraft) *model.Item {
	return &model.Item{
		ID:             id,
		Name:           draft.Name,
		Category:       draft.Category,
		Brand:          draft.Brand,
		Model:          draft.Model,
		SerialNumber:   draft.SerialNumber,
		Color:          draft.Color,
		Specs:          draft.Specs,
		Status:         draft.Status,
		LocationID:     draft.LocationID,
		PurchaseDate:   draft.PurchaseDate,
		PurchasePrice:  draft.PurchasePrice,
		PurchaseSource: draft.PurchaseSource,
		WarrantyUntil:  draft.WarrantyUntil,
		Notes:          draft.Notes,
	}
}
