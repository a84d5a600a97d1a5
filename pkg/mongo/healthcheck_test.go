package mongo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/notifykit/pkg/mongo"
)

const unreachableURL = "mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=200&connectTimeoutMS=200"

func TestHealthcheck_UnreachableDeliveryLog(t *testing.T) {
	t.Parallel()

	client, err := mongodriver.Connect(options.Client().ApplyURI(unreachableURL))
	require.NoError(t, err)
	defer func() { _ = client.Disconnect(context.Background()) }()

	err = mongo.Healthcheck(client)(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, mongo.ErrDeliveryLogUnhealthy)
	assert.Contains(t, err.Error(), "delivery log")
}

func TestNew_Unreachable(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := mongo.NewWithDatabase(ctx, mongo.Config{
		ConnectionURL:  unreachableURL,
		Database:       "notifykit",
		ConnectTimeout: 200 * time.Millisecond,
		RetryAttempts:  2,
		RetryInterval:  10 * time.Millisecond,
	})
	assert.Nil(t, db)
	assert.ErrorIs(t, err, mongo.ErrDeliveryLogUnreachable)
}
