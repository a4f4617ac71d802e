package store

import (
	"context"
	"database/sql"
	"fmt"

	"gadgetry/internal/model"
)

// InsertAttachment records file metadata for an item.
func InsertAttachment(ctx context.Context, q Querier, itemID, fileKey, mime string) (*model.Attachment, error) {
	att := &model.Attachment{
		ID:        model.NewID(),
		ItemID:    itemID,
		FileKey:   fileKey,
		Mime:      mime,
		CreatedAt: Now(),
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO attachments (id, item_id, file_key, mime, created_at) VALUES (?, ?, ?, ?, ?)`,
		att.ID, att.ItemID, att.FileKey, att.Mime, att.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting attachment: %w", err)
	}
	return att, nil
}

// GetAttachment returns one attachment record, or (nil, nil) when no row
// matches.
func GetAttachment(ctx context.Context, q Querier, id string) (*model.Attachment, error) {
	var a model.Attachment
	err := q.QueryRowContext(ctx,
		`SELECT id, item_id, file_key, mime, created_at FROM attachments WHERE id = ?`, id,
	).Scan(&a.ID, &a.ItemID, &a.FileKey, &a.Mime, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting attachment: %w", err)
	}
	return &a, nil
}

// DeleteAttachment removes one attachment record.
func DeleteAttachment(ctx context.Context, q Querier, id string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM attachments WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting attachment: %w", err)
	}
	return nil
}

// ListItemAttachments returns the attachment metadata for an item.
func ListItemAttachments(ctx context.Context, q Querier, itemID string) ([]model.Attachment, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, item_id, file_key, mime, created_at
		 FROM attachments WHERE item_id = ? ORDER BY created_at, id`, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing attachments: %w", err)
	}
	defer rows.Close()

	var attachments []model.Attachment
	for rows.Next() {
		var a model.Attachment
		if err := rows.Scan(&a.ID, &a.ItemID, &a.FileKey, &a.Mime, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning attachment: %w", err)
		}
		attachments = append(attachments, a)
	}
	return attachments, rows.Err()
}

// ListAttachmentsForItems returns the union of file keys attached to the
// given items, for bulk cleanup.
func ListAttachmentsForItems(ctx context.Context, q Querier, itemIDs []string) ([]model.Attachment, error) {
	var attachments []model.Attachment
	for _, id := range itemIDs {
		atts, err := ListItemAttachments(ctx, q, id)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, atts...)
	}
	return attachments, nil
}
