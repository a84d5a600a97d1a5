package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Healthcheck pings the server backing the delivery log. Failures wrap
// ErrDeliveryLogUnhealthy.
func Healthcheck(client *mongo.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx, nil); err != nil {
			return errors.Join(ErrDeliveryLogUnhealthy, err)
		}
		return nil
	}
}
