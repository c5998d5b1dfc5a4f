package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE codes the services react to.
const (
	CodeUniqueViolation      = "23505"
	CodeForeignKeyViolation  = "23503"
	CodeSerializationFailure = "40001"
	CodeDeadlockDetected     = "40P01"
)

func pgCode(err error) (string, string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}

func matches(err error, want string, constraint []string) bool {
	code, name := pgCode(err)
	if code != want {
		return false
	}
	if len(constraint) == 0 {
		return true
	}
	for _, c := range constraint {
		if c == name {
			return true
		}
	}
	return false
}

// IsUniqueViolation reports a unique constraint violation, optionally on a named constraint.
func IsUniqueViolation(err error, constraint ...string) bool {
	return matches(err, CodeUniqueViolation, constraint)
}

// IsForeignKeyViolation reports a foreign key violation, optionally on a named constraint.
func IsForeignKeyViolation(err error, constraint ...string) bool {
	return matches(err, CodeForeignKeyViolation, constraint)
}

// IsSerializationFailure reports errors that a retry of the whole transaction could resolve.
func IsSerializationFailure(err error) bool {
	code, _ := pgCode(err)
	return code == CodeSerializationFailure || code == CodeDeadlockDetected
}

// IsNoRows reports pgx.ErrNoRows.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
