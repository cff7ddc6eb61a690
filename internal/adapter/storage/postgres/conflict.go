package postgres

import (
	"errors"
	"fmt"

	"gamecafe-wallet/internal/core/ports"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes that signal a collision with a concurrent writer or
// a duplicate key. Everything else is treated as an infrastructure error.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

// translateConflict normalizes low-level pg failures into the uniform error
// kinds the service layer understands. It never retries; retry policy belongs
// to the caller. Non-conflict errors pass through unchanged.
func translateConflict(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgSerializationFailure, pgDeadlockDetected:
		return fmt.Errorf("%s: %w", pgErr.Message, ports.ErrConflict)
	case pgUniqueViolation:
		return fmt.Errorf("%s: %w", pgErr.Message, ports.ErrDuplicate)
	default:
		return err
	}
}
