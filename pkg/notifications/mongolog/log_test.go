package mongolog_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/mongo"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/notifications/mongolog"
)

func TestDeliveryLog(t *testing.T) {
	url := os.Getenv("NOTIFYKIT_TEST_MONGO_URL")
	if url == "" || testing.Short() {
		t.Skip("NOTIFYKIT_TEST_MONGO_URL not set")
	}
	ctx := context.Background()
	db, err := mongo.NewWithDatabase(ctx, mongo.Config{
		ConnectionURL:  url,
		Database:       "notifykit_test",
		ConnectTimeout: 5 * time.Second,
		MaxPoolSize:    4,
		RetryAttempts:  1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Client().Disconnect(context.Background()) })

	coll := "outcomes_" + uuid.NewString()
	t.Cleanup(func() { _ = db.Collection(coll).Drop(context.Background()) })
	l := mongolog.New(db, mongolog.WithCollection(coll), mongolog.WithRetention(time.Hour))
	require.NoError(t, l.EnsureIndexes(ctx))

	ref := uuid.NewString()
	start := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, l.Record(ctx,
		notifications.DeliveryOutcome{ReferenceID: ref, Channel: notifications.ChannelEmail, Status: notifications.StatusDelivered, Attempts: 1, StartedAt: start.Add(time.Second), FinishedAt: start.Add(2 * time.Second)},
		notifications.DeliveryOutcome{ReferenceID: ref, Channel: notifications.ChannelPush, Status: notifications.StatusFailedPermanent, Attempts: 1, Error: "410", StartedAt: start, FinishedAt: start},
		notifications.DeliveryOutcome{ReferenceID: "other", Channel: notifications.ChannelInApp, Status: notifications.StatusSkipped, StartedAt: start, FinishedAt: start},
	))
	require.NoError(t, l.Record(ctx))

	got, err := l.ListOutcomes(ctx, ref)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, notifications.ChannelPush, got[0].Channel, "oldest first")
	assert.Equal(t, notifications.StatusFailedPermanent, got[0].Status)
	assert.Equal(t, "410", got[0].Error)
	assert.Equal(t, notifications.ChannelEmail, got[1].Channel)
}
