package mongo

import "errors"

var (
	// ErrDeliveryLogUnreachable is returned once every connection attempt failed.
	ErrDeliveryLogUnreachable = errors.New("mongo: delivery log unreachable")
	ErrDeliveryLogUnhealthy   = errors.New("mongo: delivery log failed health check")
)
