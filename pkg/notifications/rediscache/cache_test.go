package rediscache_test

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/notifications/rediscache"
	"github.com/dmitrymomot/notifykit/pkg/redis"
)

type countingStore struct {
	notifications.PreferenceStore
	gets atomic.Int32
}

func (s *countingStore) Get(ctx context.Context, userID string) (notifications.Preferences, error) {
	s.gets.Add(1)
	return s.PreferenceStore.Get(ctx, userID)
}

func TestPreferenceStore(t *testing.T) {
	url := os.Getenv("NOTIFYKIT_TEST_REDIS_URL")
	if url == "" || testing.Short() {
		t.Skip("NOTIFYKIT_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	client, err := redis.Connect(ctx, redis.Config{ConnectionURL: url, RetryAttempts: 1, ConnectTimeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	backing := &countingStore{PreferenceStore: notifications.NewMemoryPreferenceStore()}
	s := rediscache.New(backing, client,
		rediscache.WithTTL(time.Minute),
		rediscache.WithKeyPrefix("notifykit-test:"+uuid.NewString()+":"),
	)
	user := uuid.NewString()

	_, err = s.Get(ctx, user)
	require.NoError(t, err)
	p, err := s.Get(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int32(1), backing.gets.Load(), "second read is served by redis")
	assert.Equal(t, user, p.UserID)

	_, err = s.Update(ctx, user, func(p notifications.Preferences) (notifications.Preferences, error) {
		p.EmailDigestFrequency = notifications.FrequencyDaily
		return p, nil
	})
	require.NoError(t, err)
	p, err = s.Get(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, notifications.FrequencyDaily, p.EmailDigestFrequency)
	assert.Equal(t, int32(1), backing.gets.Load())

	require.NoError(t, s.Invalidate(ctx, user))
	_, err = s.Get(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int32(2), backing.gets.Load())
}
