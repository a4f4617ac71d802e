package model

import "time"

// LendingRecord tracks who borrowed an item and when it came back.
// A record with no return date is an open loan; an item has at most one
// open loan at a time.
type LendingRecord struct {
	ID           string     `json:"id"`
	ItemID       string     `json:"item_id"`
	BorrowerName string     `json:"borrower_name"`
	BorrowDate   time.Time  `json:"borrow_date"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	ReturnDate   *time.Time `json:"return_date,omitempty"`
}

// Open reports whether the loan is still out.
func (r *LendingRecord) Open() bool {
	return r.ReturnDate == nil
}

// Borrower is a directory entry for someone items have been lent to.
// Maintained best-effort on lend; duplicates are silently ignored.
type Borrower struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
