package redis

import "errors"

var (
	ErrEmptyConnectionURL   = errors.New("redis: REDIS_URL is empty, the preference cache needs a redis URL")
	ErrInvalidConnectionURL = errors.New("redis: cannot parse preference cache URL")
	// ErrCacheNotReady is returned when every connection attempt failed.
	ErrCacheNotReady  = errors.New("redis: preference cache did not answer ping")
	ErrCacheUnhealthy = errors.New("redis: preference cache failed health check")
)
