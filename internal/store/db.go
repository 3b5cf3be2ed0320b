// Package store is the Postgres data layer for notifications and the
// transaction tables they are derived from.
package store

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Queries runs every statement against db, which may be a pool or a transaction.
type Queries struct {
	db   DBTX
	inTx bool
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) withTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx, inTx: true}
}
