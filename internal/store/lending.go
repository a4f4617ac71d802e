package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gadgetry/internal/model"
)

// InsertLending records a new loan. The caller decides the id and dates so
// the insert can run inside an engine transaction.
func InsertLending(ctx context.Context, q Querier, rec *model.LendingRecord) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO lending_records (id, item_id, borrower_name, borrow_date, due_date, return_date)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ItemID, rec.BorrowerName, rec.BorrowDate, rec.DueDate, rec.ReturnDate,
	)
	if err != nil {
		return fmt.Errorf("inserting lending record: %w", err)
	}
	return nil
}

// GetOpenLending returns the item's open loan, or nil if the item is not
// currently lent out. The engine guarantees at most one open record per item.
func GetOpenLending(ctx context.Context, q Querier, itemID string) (*model.LendingRecord, error) {
	rec := &model.LendingRecord{}
	err := q.QueryRowContext(ctx,
		`SELECT id, item_id, borrower_name, borrow_date, due_date, return_date
		 FROM lending_records
		 WHERE item_id = ? AND return_date IS NULL
		 ORDER BY borrow_date DESC LIMIT 1`, itemID,
	).Scan(&rec.ID, &rec.ItemID, &rec.BorrowerName, &rec.BorrowDate, &rec.DueDate, &rec.ReturnDate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting open lending record: %w", err)
	}
	return rec, nil
}

// CloseLending sets a loan's return date.
func CloseLending(ctx context.Context, q Querier, id string, returnedAt time.Time) error {
	_, err := q.ExecContext(ctx,
		`UPDATE lending_records SET return_date = ? WHERE id = ?`,
		returnedAt, id,
	)
	if err != nil {
		return fmt.Errorf("closing lending record: %w", err)
	}
	return nil
}

// ListItemLendings returns an item's full lending ledger, newest first.
func ListItemLendings(ctx context.Context, q Querier, itemID string) ([]model.LendingRecord, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, item_id, borrower_name, borrow_date, due_date, return_date
		 FROM lending_records WHERE item_id = ?
		 ORDER BY borrow_date DESC, id`, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing lending records: %w", err)
	}
	defer rows.Close()

	var records []model.LendingRecord
	for rows.Next() {
		var rec model.LendingRecord
		if err := rows.Scan(&rec.ID, &rec.ItemID, &rec.BorrowerName, &rec.BorrowDate,
			&rec.DueDate, &rec.ReturnDate); err != nil {
			return nil, fmt.Errorf("scanning lending record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListLendings returns all lending records, optionally only open loans.
func ListLendings(ctx context.Context, q Querier, openOnly bool) ([]model.LendingRecord, error) {
	query := `SELECT id, item_id, borrower_name, borrow_date, due_date, return_date
	          FROM lending_records`
	if openOnly {
		query += ` WHERE return_date IS NULL`
	}
	query += ` ORDER BY borrow_date DESC, id`

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing lending records: %w", err)
	}
	defer rows.Close()

	var records []model.LendingRecord
	for rows.Next() {
		var rec model.LendingRecord
		if err := rows.Scan(&rec.ID, &rec.ItemID, &rec.BorrowerName, &rec.BorrowDate,
			&rec.DueDate, &rec.ReturnDate); err != nil {
			return nil, fmt.Errorf("scanning lending record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
