package repository

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgDuplicateKeyCode  = "23505"
	pgForeignKeyCode    = "23503"
	pgCheckCode         = "23514"
	pgSerializationCode = "40001"
	pgDeadlockCode      = "40P01"
)

// MapError translates database errors to domain errors.
// It maps sql.ErrNoRows to notFoundErr and PostgreSQL unique violation (23505)
// to duplicateErr. Other errors are returned unchanged.
func MapError(err error, notFoundErr, duplicateErr error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return notFoundErr
	}

	if IsCode(err, pgDuplicateKeyCode) {
		return duplicateErr
	}

	return err
}

// IsForeignKeyViolation reports whether err is a PostgreSQL foreign key violation (23503).
func IsForeignKeyViolation(err error) bool {
	return IsCode(err, pgForeignKeyCode)
}

// IsCheckViolation reports whether err is a PostgreSQL check constraint violation (23514).
func IsCheckViolation(err error) bool {
	return IsCode(err, pgCheckCode)
}

// IsRetryable reports whether err is a serialization failure (40001) or a
// deadlock (40P01), after which the whole transaction may be rerun.
func IsRetryable(err error) bool {
	return IsCode(err, pgSerializationCode) || IsCode(err, pgDeadlockCode)
}

// IsCode reports whether err wraps a PostgreSQL error with the given SQLSTATE code.
func IsCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
