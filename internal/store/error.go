package store

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

const UniqueViolationCode = "23505"

// ErrRecordNotFound is returned by single-row lookups that match nothing.
var ErrRecordNotFound = sql.ErrNoRows

// IsUniqueViolation reports whether err is a Postgres unique constraint failure.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == UniqueViolationCode
	}
	return false
}
