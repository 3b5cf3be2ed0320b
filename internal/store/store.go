package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Store provides all queries plus a unit of work.
type Store interface {
	Querier
	ExecTx(ctx context.Context, fn func(q Querier) error) error
	Ping(ctx context.Context) error
}

type SQLStore struct {
	*Queries
	db *sql.DB
}

// NewStore creates a new Store.
func NewStore(db *sql.DB) Store {
	return &SQLStore{Queries: New(db), db: db}
}

// ExecTx runs fn inside one database transaction. fn's Querier is bound to
// that transaction; a returned error rolls everything back.
func (s *SQLStore) ExecTx(ctx context.Context, fn func(q Querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(s.Queries.withTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx err: %v, rollback err: %w", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

// Ping checks if the database connection is alive.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
