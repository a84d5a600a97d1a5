package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// Healthcheck pings the preference cache backend. It is registered as the
// "redis" check of /healthz; failures wrap ErrCacheUnhealthy.
func Healthcheck(client redis.UniversalClient) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return errors.Join(ErrCacheUnhealthy, err)
		}
		return nil
	}
}
