package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySubscriptionStore(t *testing.T) {
	t.Parallel()

	s := NewMemorySubscriptionStore()
	ctx := context.Background()

	_, err := s.Subscribe(ctx, PushSubscription{ID: "s1", UserID: "u1"})
	assert.Error(t, err, "endpoint is required")

	first, err := s.Subscribe(ctx, PushSubscription{ID: "s1", UserID: "u1", Endpoint: "https://e/1", CreatedAt: baseTime})
	require.NoError(t, err)
	assert.True(t, first.IsActive)

	_, err = s.Subscribe(ctx, PushSubscription{ID: "s2", UserID: "u1", Endpoint: "https://e/2", CreatedAt: baseTime.Add(time.Minute)})
	require.NoError(t, err)
	_, err = s.Subscribe(ctx, PushSubscription{ID: "s3", UserID: "u2", Endpoint: "https://e/1", CreatedAt: baseTime})
	require.NoError(t, err)

	list, err := s.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "s2", list[0].ID, "newest first")

	require.NoError(t, s.Deactivate(ctx, "s1", baseTime.Add(time.Hour)))
	require.NoError(t, s.Deactivate(ctx, "s1", baseTime.Add(2*time.Hour)))
	got, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.True(t, baseTime.Add(time.Hour).Equal(*got.DeactivatedAt), "second deactivate is a no-op")

	active, err := s.ListActive(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "s2", active[0].ID)

	again, err := s.Subscribe(ctx, PushSubscription{ID: "s9", UserID: "u1", Endpoint: "https://e/1", Keys: PushKeys{Auth: "new"}})
	require.NoError(t, err)
	assert.Equal(t, "s1", again.ID, "resubscribing reactivates the existing record")
	assert.True(t, again.IsActive)
	assert.Nil(t, again.DeactivatedAt)
	assert.Equal(t, "new", again.Keys.Auth)

	assert.ErrorIs(t, s.Deactivate(ctx, "missing", baseTime), ErrSubscriptionNotFound)
	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubscribeRequest_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     SubscribeRequest
		wantErr bool
	}{
		{"webpush with keys", SubscribeRequest{Endpoint: "https://e/1", Keys: PushKeys{P256dh: "k", Auth: "a"}}, false},
		{"webpush without keys", SubscribeRequest{Endpoint: "https://e/1"}, true},
		{"fcm token", SubscribeRequest{Endpoint: "token", Provider: ProviderFCM}, false},
		{"missing endpoint", SubscribeRequest{Provider: ProviderFCM}, true},
		{"unknown provider", SubscribeRequest{Endpoint: "x", Provider: "apns"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.req.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPreferences)
				return
			}
			assert.NoError(t, err)
		})
	}
}
