package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"gadgetry/internal/model"
)

const itemColumns = `id, name, category, brand, model, serial_number, color, specs, status,
	location_id, purchase_date, purchase_price, purchase_source, warranty_until,
	notes, image_mime, created_at, updated_at`

// InsertItem inserts a fully populated item row. The caller supplies the id
// and timestamps so the insert can participate in an engine transaction.
func InsertItem(ctx context.Context, q Querier, item *model.Item) error {
	specs, err := encodeSpecs(item.Specs)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx,
		`INSERT INTO items (id, name, category, brand, model, serial_number, color, specs,
		                    status, location_id, purchase_date, purchase_price, purchase_source,
		                    warranty_until, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Name, item.Category, nullString(item.Brand), nullString(item.Model),
		nullString(item.SerialNumber), nullString(item.Color), specs, item.Status,
		item.LocationID, item.PurchaseDate, item.PurchasePrice, nullString(item.PurchaseSource),
		item.WarrantyUntil, nullString(item.Notes), item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting item: %w", err)
	}
	return nil
}

// GetItem returns an item by ID, or nil if it does not exist.
func GetItem(ctx context.Context, q Querier, id string) (*model.Item, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id,
	)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ItemFilter narrows an item listing. Zero values mean "no filter".
type ItemFilter struct {
	Status   string
	Category string
	Brand    string
	Query    string // matches name, model, or notes
	Locality *string
	Limit    int
	Offset   int
}

// MaxListLimit caps the page size of item listings.
const MaxListLimit = 100

// ListItems returns items matching the filter, ordered by name.
func ListItems(ctx context.Context, q Querier, filter ItemFilter) ([]model.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	if filter.Brand != "" {
		query += ` AND brand = ?`
		args = append(args, filter.Brand)
	}
	if filter.Query != "" {
		pattern := "%" + filter.Query + "%"
		query += ` AND (name LIKE ? OR model LIKE ? OR notes LIKE ?)`
		args = append(args, pattern, pattern, pattern)
	}
	if filter.Locality != nil {
		if *filter.Locality == "" {
			query += ` AND location_id IS NULL`
		} else {
			query += ` AND location_id = ?`
			args = append(args, *filter.Locality)
		}
	}

	limit := filter.Limit
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}
	query += ` ORDER BY name LIMIT ? OFFSET ?`
	args = append(args, limit, max(filter.Offset, 0))

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// UpdateItem writes all caller-editable fields of an item.
func UpdateItem(ctx context.Context, q Querier, item *model.Item) error {
	specs, err := encodeSpecs(item.Specs)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx,
		`UPDATE items SET name = ?, category = ?, brand = ?, model = ?, serial_number = ?,
		        color = ?, specs = ?, status = ?, location_id = ?, purchase_date = ?,
		        purchase_price = ?, purchase_source = ?, warranty_until = ?, notes = ?,
		        updated_at = ?
		 WHERE id = ?`,
		item.Name, item.Category, nullString(item.Brand), nullString(item.Model),
		nullString(item.SerialNumber), nullString(item.Color), specs, item.Status,
		item.LocationID, item.PurchaseDate, item.PurchasePrice, nullString(item.PurchaseSource),
		item.WarrantyUntil, nullString(item.Notes), item.UpdatedAt, item.ID,
	)
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}
	return nil
}

// DeleteItem removes an item row. History, lending, and attachment rows
// cascade at the schema level.
func DeleteItem(ctx context.Context, q Querier, id string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	return nil
}

// SetItemImage sets an item's image data.
func SetItemImage(ctx context.Context, q Querier, id string, image []byte, mime string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE items SET image = ?, image_mime = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		image, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting item image: %w", err)
	}
	return nil
}

// GetItemImage returns an item's image data and MIME type.
func GetItemImage(ctx context.Context, q Querier, id string) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT image, image_mime FROM items WHERE id = ?`, id,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting item image: %w", err)
	}
	return image, mime.String, nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (*model.Item, error) {
	item := &model.Item{}
	var brand, mdl, serial, color, source, notes, imageMime sql.NullString
	var specs string
	var price sql.NullFloat64
	var purchaseDate, warrantyUntil sql.NullTime

	err := s.Scan(&item.ID, &item.Name, &item.Category, &brand, &mdl, &serial, &color,
		&specs, &item.Status, &item.LocationID, &purchaseDate, &price, &source,
		&warrantyUntil, &notes, &imageMime, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}

	item.Brand = brand.String
	item.Model = mdl.String
	item.SerialNumber = serial.String
	item.Color = color.String
	item.PurchaseSource = source.String
	item.Notes = notes.String
	item.ImageMime = imageMime.String
	if price.Valid {
		item.PurchasePrice = &price.Float64
	}
	if purchaseDate.Valid {
		t := purchaseDate.Time
		item.PurchaseDate = &t
	}
	if warrantyUntil.Valid {
		t := warrantyUntil.Time
		item.WarrantyUntil = &t
	}
	if specs != "" && specs != "{}" {
		if err := json.Unmarshal([]byte(specs), &item.Specs); err != nil {
			return nil, fmt.Errorf("decoding specs: %w", err)
		}
	}
	return item, nil
}

func encodeSpecs(specs map[string]string) (string, error) {
	if len(specs) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(specs)
	if err != nil {
		return "", fmt.Errorf("encoding specs: %w", err)
	}
	return string(data), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Timestamps in SQLite round-trip as UTC; Now keeps inserts consistent.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
