package notifications

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingPreferenceStore counts reads that reach the backing store.
type countingPreferenceStore struct {
	PreferenceStore
	gets atomic.Int32
}

func (s *countingPreferenceStore) Get(ctx context.Context, userID string) (Preferences, error) {
	s.gets.Add(1)
	return s.PreferenceStore.Get(ctx, userID)
}

func TestMemoryPreferenceStore(t *testing.T) {
	t.Parallel()

	s := NewMemoryPreferenceStore()
	ctx := context.Background()

	_, err := s.Get(ctx, "")
	assert.Error(t, err)

	p, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, p.NotificationsEnabled)
	assert.Equal(t, FrequencyInstant, p.EmailDigestFrequency)
	assert.False(t, p.UpdatedAt.IsZero())

	p.CategoryPreferences = map[string]ChannelSet{"x": {}}
	again, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, again.CategoryPreferences, "returned copies are isolated")

	boom := errors.New("boom")
	_, err = s.Update(ctx, "u1", func(Preferences) (Preferences, error) { return Preferences{}, boom })
	assert.ErrorIs(t, err, boom)

	updated, err := s.Update(ctx, "u1", func(p Preferences) (Preferences, error) {
		p.PushEnabled = false
		p.UserID = "someone-else"
		return p, nil
	})
	require.NoError(t, err)
	assert.False(t, updated.PushEnabled)
	assert.Equal(t, "u1", updated.UserID)
}

func TestCachedPreferenceStore(t *testing.T) {
	t.Parallel()

	backing := &countingPreferenceStore{PreferenceStore: NewMemoryPreferenceStore()}
	s := NewCachedPreferenceStore(backing, 10, time.Minute)
	ctx := context.Background()

	_, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	_, err = s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), backing.gets.Load(), "second read served from cache")

	_, err = s.Update(ctx, "u1", func(p Preferences) (Preferences, error) {
		p.EmailDigestFrequency = FrequencyDaily
		return p, nil
	})
	require.NoError(t, err)

	p, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, FrequencyDaily, p.EmailDigestFrequency, "update refreshes the cache")
	assert.Equal(t, int32(1), backing.gets.Load())

	s.Invalidate("u1")
	_, err = s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), backing.gets.Load())
}
