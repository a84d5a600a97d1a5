package pg

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrEmptyConnectionString = errors.New("pg: PG_CONN_URL is empty, the notification store needs a postgres URL")
	ErrInvalidConfig         = errors.New("pg: invalid notification store pool config")
	ErrStoreUnreachable      = errors.New("pg: notification store unreachable")
	ErrStoreUnhealthy        = errors.New("pg: notification store failed health check")
	ErrMigrationFailed       = errors.New("pg: notification schema migration failed")
)

// IsNotFoundError reports whether err means the query matched no row.
func IsNotFoundError(err error) bool {
	return err != nil && errors.Is(err, pgx.ErrNoRows)
}

// IsDuplicateKeyError reports a unique constraint violation.
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
