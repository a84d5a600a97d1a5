// Package redis connects the Redis backend of the preference cache with
// go-redis/v9.
//
// Config is populated from REDIS_* environment variables. Connect retries
// until the server answers a ping:
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
// Healthcheck turns a client into the "redis" check of /healthz. Errors are
// sentinels joined with the driver error, so errors.Is works on both.
package redis
