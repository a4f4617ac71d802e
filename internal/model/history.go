package model

import "time"

// HistoryEntry is one line of an item's audit trail. Entries are append-only
// from the engine's perspective; deletion exists only as an explicit user
// correction.
type HistoryEntry struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"item_id"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

// History actions.
const (
	ActionCreated  = "created"
	ActionMoved    = "moved"
	ActionLent     = "lent"
	ActionReturned = "returned"
	ActionUpdated  = "updated"
)

// Attachment is file metadata for a document or photo attached to an item.
// The bytes live in the attachment store under FileKey.
type Attachment struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"item_id"`
	FileKey   string    `json:"file_key"`
	Mime      string    `json:"mime,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
