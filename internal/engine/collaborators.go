package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
)

// Webhook event names.
const (
	EventItemCreated  = "item.created"
	EventItemUpdated  = "item.updated"
	EventItemDeleted  = "item.deleted"
	EventItemLent     = "item.lent"
	EventItemReturned = "item.returned"
	EventItemsMoved   = "items.bulk_moved"
	EventItemsLent    = "items.bulk_lent"
	EventItemsDeleted = "items.bulk_deleted"
)

// AuditEntry describes one activity-log line.
type AuditEntry struct {
	Action     string `json:"action"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id,omitempty"`
	EntityName string `json:"entity_name,omitempty"`
	Details    string `json:"details,omitempty"`
}

// AuditLogger records activity best-effort. Implementations must never
// return control flow into the engine; failures stay inside.
type AuditLogger interface {
	Log(ctx context.Context, entry AuditEntry)
}

// Dispatcher delivers webhook events. Trigger must not block the caller;
// delivery happens fire-and-forget after the engine's transaction commits.
type Dispatcher interface {
	Trigger(event string, payload any)
}

// AttachmentStore holds attachment file bytes outside the database.
type AttachmentStore interface {
	Save(ctx context.Context, hint, mime string, r io.Reader) (fileKey string, err error)
	Open(ctx context.Context, fileKey string) (io.ReadCloser, error)
	Delete(ctx context.Context, fileKey string) error
}

// SlogAudit writes audit entries to a structured logger.
type SlogAudit struct {
	Logger *slog.Logger
}

func (a SlogAudit) Log(_ context.Context, entry AuditEntry) {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("activity",
		"action", entry.Action,
		"entity_type", entry.EntityType,
		"entity_id", entry.EntityID,
		"entity_name", entry.EntityName,
		"details", entry.Details,
	)
}

type nopAudit struct{}

func (nopAudit) Log(context.Context, AuditEntry) {}

type nopDispatcher struct{}

func (nopDispatcher) Trigger(string, any) {}

type nopAttachments struct{}

func (nopAttachments) Save(_ context.Context, _, _ string, _ io.Reader) (string, error) {
	return "", nil
}

func (nopAttachments) Open(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("no attachment store configured")
}

func (nopAttachments) Delete(context.Context, string) error { return nil }
