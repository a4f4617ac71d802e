package engine

import (
	"context"
	"fmt"
	"io"
	"strings"

	"gadgetry/internal/model"
	"gadgetry/internal/store"
)

// AddAttachment stores the file bytes first and records the metadata after,
// so a write failure never leaves a database row pointing at nothing.
func (e *Engine) AddAttachment(ctx context.Context, itemID, hint, mime string, r io.Reader) (*model.Attachment, error) {
	if strings.TrimSpace(hint) == "" {
		return nil, fmt.Errorf("%w: attachment name required", ErrValidation)
	}

	item, err := store.GetItem(ctx, e.db, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: item %s", ErrNotFound, itemID)
	}

	fileKey, err := e.attachments.Save(ctx, hint, mime, r)
	if err != nil {
		return nil, fmt.Errorf("saving attachment file: %w", err)
	}

	att, err := store.InsertAttachment(ctx, e.db, itemID, fileKey, mime)
	if err != nil {
		// Orphaned file, best-effort cleanup.
		if derr := e.attachments.Delete(ctx, fileKey); derr != nil {
			e.logger.Warn("cleaning up attachment file", "file_key", fileKey, "error", derr)
		}
		return nil, err
	}

	e.audit.Log(ctx, AuditEntry{Action: "ATTACH", EntityType: "item", EntityID: itemID,
		EntityName: item.Name, Details: hint})
	return att, nil
}

// OpenAttachment returns the attachment metadata and a reader over its bytes.
// The caller closes the reader.
func (e *Engine) OpenAttachment(ctx context.Context, id string) (*model.Attachment, io.ReadCloser, error) {
	att, err := store.GetAttachment(ctx, e.db, id)
	if err != nil {
		return nil, nil, err
	}
	if att == nil {
		return nil, nil, fmt.Errorf("%w: attachment %s", ErrNotFound, id)
	}

	rc, err := e.attachments.Open(ctx, att.FileKey)
	if err != nil {
		return nil, nil, fmt.Errorf("opening attachment file: %w", err)
	}
	return att, rc, nil
}

// RemoveAttachment deletes the metadata row, then the file best-effort.
func (e *Engine) RemoveAttachment(ctx context.Context, id string) error {
	att, err := store.GetAttachment(ctx, e.db, id)
	if err != nil {
		return err
	}
	if att == nil {
		return fmt.Errorf("%w: attachment %s", ErrNotFound, id)
	}

	if err := store.DeleteAttachment(ctx, e.db, id); err != nil {
		return err
	}

	if err := e.attachments.Delete(ctx, att.FileKey); err != nil {
		e.logger.Warn("deleting attachment file", "file_key", att.FileKey, "error", err)
	}

	e.audit.Log(ctx, AuditEntry{Action: "DETACH", EntityType: "item", EntityID: att.ItemID, Details: att.FileKey})
	return nil
}
