package pg

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotReady          = errors.New("postgres did not accept connections")
	ErrInvalidConnString = errors.New("invalid PG_CONN_URL")
	ErrPingFailed        = errors.New("postgres ping failed")
	ErrMigrationFailed   = errors.New("postgres migration failed")
	ErrNoMigrations      = errors.New("migrations filesystem is nil")
)

// IsNotFoundError reports whether err is pgx.ErrNoRows.
func IsNotFoundError(err error) bool {
	return err != nil && errors.Is(err, pgx.ErrNoRows)
}

// IsDuplicateKeyError detects unique constraint violations (SQLSTATE 23505).
func IsDuplicateKeyError(err error) bool {
	return hasCode(err, "23505")
}

// IsCheckViolationError detects CHECK constraint violations (SQLSTATE 23514).
// The entitlements table uses one to keep provider and subscription id in agreement.
func IsCheckViolationError(err error) bool {
	return hasCode(err, "23514")
}

func hasCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
