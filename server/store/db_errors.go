package store

import (
	"errors"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/buildbeaver/autopin/common/gerror"
)

// Postgres error codes, from https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgUniqueViolation pq.ErrorCode = "23505"
	pgNoDataFound     pq.ErrorCode = "P0002"
)

// MakeStandardDBError converts a driver error into the matching gerror, or returns err unchanged if
// there is no match.
func MakeStandardDBError(err error) error {
	switch {
	case isUniqueViolation(err):
		return gerror.NewErrAlreadyExists("Resource already exists").Wrap(err)
	case isNoData(err):
		return gerror.NewErrNotFound("Resource not found").Wrap(err)
	default:
		return err
	}
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pgErr *pq.Error
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func isNoData(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrNotFound
	}
	var pgErr *pq.Error
	return errors.As(err, &pgErr) && pgErr.Code == pgNoDataFound
}
