package store

import (
	"context"
	"database/sql"
)

// Querier is the subset of *sql.DB and *sql.Tx that store functions need,
// so the same helpers work standalone and inside engine transactions.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
