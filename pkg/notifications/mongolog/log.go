// Package mongolog stores delivery outcomes in a MongoDB collection.
package mongolog

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// DefaultCollection is the collection name used by New.
const DefaultCollection = "delivery_outcomes"

// DeliveryLog is a notifications.DeliveryLog on a MongoDB collection.
type DeliveryLog struct {
	coll      *mongo.Collection
	retention time.Duration
}

var _ notifications.DeliveryLog = (*DeliveryLog)(nil)

// Option configures a DeliveryLog.
type Option func(*DeliveryLog)

// WithRetention expires outcomes d after they finished. Zero keeps them.
func WithRetention(d time.Duration) Option {
	return func(l *DeliveryLog) { l.retention = d }
}

// WithCollection overrides the collection name.
func WithCollection(name string) Option {
	return func(l *DeliveryLog) {
		if name != "" {
			l.coll = l.coll.Database().Collection(name)
		}
	}
}

// New returns a delivery log on db.
func New(db *mongo.Database, opts ...Option) *DeliveryLog {
	l := &DeliveryLog{coll: db.Collection(DefaultCollection)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// EnsureIndexes creates the lookup index and, with a retention set, the TTL
// index. It is idempotent.
func (l *DeliveryLog) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "reference_id", Value: 1}, {Key: "started_at", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "finished_at", Value: -1}}},
	}
	if l.retention > 0 {
		models = append(models, mongo.IndexModel{
			Keys:    bson.D{{Key: "finished_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(l.retention / time.Second)),
		})
	}
	if _, err := l.coll.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("failed to create delivery log indexes: %w", err)
	}
	return nil
}

func (l *DeliveryLog) Record(ctx context.Context, outcomes ...notifications.DeliveryOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	if _, err := l.coll.InsertMany(ctx, outcomes, options.InsertMany().SetOrdered(false)); err != nil {
		return fmt.Errorf("failed to record delivery outcomes: %w", err)
	}
	return nil
}

func (l *DeliveryLog) ListOutcomes(ctx context.Context, referenceID string) ([]notifications.DeliveryOutcome, error) {
	cur, err := l.coll.Find(ctx,
		bson.D{{Key: "reference_id", Value: referenceID}},
		options.Find().SetSort(bson.D{{Key: "started_at", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery outcomes: %w", err)
	}
	out := make([]notifications.DeliveryOutcome, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode delivery outcomes: %w", err)
	}
	return out, nil
}
