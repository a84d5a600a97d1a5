package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Healthcheck reports whether the notification store pool answers a ping.
// Failures wrap ErrStoreUnhealthy.
func Healthcheck(pool *pgxpool.Pool) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return errors.Join(ErrStoreUnhealthy, err)
		}
		return nil
	}
}
