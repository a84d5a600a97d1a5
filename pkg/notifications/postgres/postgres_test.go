package postgres_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/notifications/postgres"
	"github.com/dmitrymomot/notifykit/pkg/pg"
)

// connect returns a migrated pool, or skips when no test database is set.
func connect(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("NOTIFYKIT_TEST_PG_URL")
	if url == "" || testing.Short() {
		t.Skip("NOTIFYKIT_TEST_PG_URL not set")
	}
	ctx := context.Background()
	cfg := pg.Config{
		ConnectionString: url,
		MaxOpenConns:     4,
		RetryAttempts:    1,
		MigrationsTable:  "notifykit_migrations",
	}
	pool, err := pg.Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, postgres.Migrate(ctx, pool, cfg, slog.New(slog.DiscardHandler)))
	return pool
}

func TestStorage(t *testing.T) {
	pool := connect(t)
	s := postgres.NewStorage(pool)
	ctx := context.Background()
	user := "u-" + uuid.NewString()
	base := time.Now().UTC().Truncate(time.Millisecond)

	for i, cat := range []string{"billing", "reports", "billing"} {
		require.NoError(t, s.Create(ctx, notifications.Notification{
			ID:        uuid.NewString(),
			UserID:    user,
			Title:     "title",
			Type:      notifications.TypeInfo,
			Category:  cat,
			Priority:  notifications.PriorityHigh,
			Data:      map[string]any{"i": float64(i)},
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	items, total, err := s.List(ctx, user, notifications.ListOptions{PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 2)
	assert.Equal(t, float64(2), items[0].Data["i"], "newest first")

	items, _, err = s.List(ctx, user, notifications.ListOptions{Category: "billing"})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	id := items[0].ID
	n, err := s.Update(ctx, user, id, func(n *notifications.Notification) bool {
		return n.Apply(notifications.ActionRead, base)
	})
	require.NoError(t, err)
	assert.True(t, n.IsRead)

	count, err := s.CountUnread(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	changed, err := s.MarkAllRead(ctx, user, "", base)
	require.NoError(t, err)
	assert.Equal(t, 2, changed)

	_, err = s.Get(ctx, "someone-else", id)
	assert.ErrorIs(t, err, notifications.ErrNotificationNotFound)

	require.NoError(t, s.Delete(ctx, user, id))
	assert.ErrorIs(t, s.Delete(ctx, user, id), notifications.ErrNotificationNotFound)
}

func TestPreferenceStore(t *testing.T) {
	pool := connect(t)
	s := postgres.NewPreferenceStore(pool)
	ctx := context.Background()
	user := "u-" + uuid.NewString()

	p, err := s.Get(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, notifications.DefaultPreferences(user).DigestTime, p.DigestTime)
	assert.True(t, p.NotificationsEnabled)

	until := time.Now().Add(time.Hour).UTC().Truncate(time.Microsecond)
	updated, err := s.Update(ctx, user, func(p notifications.Preferences) (notifications.Preferences, error) {
		p.EmailDigestFrequency = notifications.FrequencyWeekly
		p.CategoryPreferences = map[string]notifications.ChannelSet{"marketing": {InApp: true}}
		p.DNDEnabled = true
		p.DNDUntil = &until
		return p, nil
	})
	require.NoError(t, err)
	assert.Equal(t, notifications.FrequencyWeekly, updated.EmailDigestFrequency)

	p, err = s.Get(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, notifications.FrequencyWeekly, p.EmailDigestFrequency)
	assert.Equal(t, notifications.ChannelSet{InApp: true}, p.CategoryPreferences["marketing"])
	require.NotNil(t, p.DNDUntil)
	assert.True(t, until.Equal(*p.DNDUntil))
}

func TestSubscriptionStore(t *testing.T) {
	pool := connect(t)
	s := postgres.NewSubscriptionStore(pool)
	ctx := context.Background()
	user := "u-" + uuid.NewString()

	sub, err := s.Subscribe(ctx, notifications.PushSubscription{
		ID:       uuid.NewString(),
		UserID:   user,
		Endpoint: "https://push.example.com/" + user,
		Keys:     notifications.PushKeys{P256dh: "p", Auth: "a"},
		Provider: notifications.ProviderWebPush,
		Device:   notifications.Device{Name: "laptop"},
	})
	require.NoError(t, err)
	assert.True(t, sub.IsActive)

	require.NoError(t, s.Deactivate(ctx, sub.ID, time.Now()))
	require.NoError(t, s.Deactivate(ctx, sub.ID, time.Now()))
	active, err := s.ListActive(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, active)

	again, err := s.Subscribe(ctx, notifications.PushSubscription{
		ID:       uuid.NewString(),
		UserID:   user,
		Endpoint: sub.Endpoint,
		Provider: notifications.ProviderWebPush,
	})
	require.NoError(t, err)
	assert.Equal(t, sub.ID, again.ID)
	assert.True(t, again.IsActive)

	assert.ErrorIs(t, s.Deactivate(ctx, uuid.NewString(), time.Now()), notifications.ErrSubscriptionNotFound)
}
