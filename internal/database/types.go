package database

import (
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// queryer picks the transaction when one is passed, otherwise the global
// connection. Repositories accept a nil tx for standalone reads.
func queryer(tx *sqlx.Tx) sqlx.ExtContext {
	if tx != nil {
		return tx
	}
	return DB
}

// IsUniqueViolation reports whether err is a unique-constraint violation
// on either backend. The engine relies on this to detect idempotency-key
// replays and entity-creation races instead of pre-checking.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
