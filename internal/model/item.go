package model

import (
	"fmt"
	"strings"
	"time"
)

// Item is the current snapshot of a catalogued gadget.
type Item struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Category       string            `json:"category"`
	Brand          string            `json:"brand,omitempty"`
	Model          string            `json:"model,omitempty"`
	SerialNumber   string            `json:"serial_number,omitempty"`
	Color          string            `json:"color,omitempty"`
	Specs          map[string]string `json:"specs,omitempty"`
	Status         string            `json:"status"`
	LocationID     *string           `json:"location_id,omitempty"`
	PurchaseDate   *time.Time        `json:"purchase_date,omitempty"`
	PurchasePrice  *float64          `json:"purchase_price,omitempty"`
	PurchaseSource string            `json:"purchase_source,omitempty"`
	WarrantyUntil  *time.Time        `json:"warranty_until,omitempty"`
	Notes          string            `json:"notes,omitempty"`
	ImageMime      string            `json:"image_mime,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Item statuses.
const (
	StatusAvailable = "available"
	StatusLent      = "lent"
	StatusInRepair  = "in_repair"
	StatusArchived  = "archived"
)

// ValidStatus reports whether s is a known item status.
func ValidStatus(s string) bool {
	switch s {
	case StatusAvailable, StatusLent, StatusInRepair, StatusArchived:
		return true
	}
	return false
}

// ItemDraft carries the caller-supplied fields for creating or updating an
// item. BorrowerName and DueDate are the lending intent, only consulted when
// Status is StatusLent.
type ItemDraft struct {
	Name           string            `json:"name"`
	Category       string            `json:"category"`
	Brand          string            `json:"brand"`
	Model          string            `json:"model"`
	SerialNumber   string            `json:"serial_number"`
	Color          string            `json:"color"`
	Specs          map[string]string `json:"specs"`
	Status         string            `json:"status"`
	LocationID     *string           `json:"location_id"`
	PurchaseDate   *time.Time        `json:"purchase_date"`
	PurchasePrice  *float64          `json:"purchase_price"`
	PurchaseSource string            `json:"purchase_source"`
	WarrantyUntil  *time.Time        `json:"warranty_until"`
	Notes          string            `json:"notes"`

	BorrowerName string     `json:"borrower_name"`
	DueDate      *time.Time `json:"due_date"`
}

// Validate checks the schema-level requirements of a draft. Business rules
// (borrower required when lending) are enforced by the engine inside its
// transaction.
func (d *ItemDraft) Validate() error {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return fmt.Errorf("name required")
	}
	d.BorrowerName = strings.TrimSpace(d.BorrowerName)
	if d.Status == "" {
		d.Status = StatusAvailable
	}
	if !ValidStatus(d.Status) {
		return fmt.Errorf("invalid status %q", d.Status)
	}
	return nil
}
