package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/pg"
)

const subscriptionColumns = `id, user_id, endpoint, p256dh, auth, provider, device, is_active, created_at, deactivated_at`

// SubscriptionStore is a notifications.SubscriptionStore backed by the
// push_subscriptions table.
type SubscriptionStore struct {
	db DB
}

var _ notifications.SubscriptionStore = (*SubscriptionStore)(nil)

// NewSubscriptionStore creates a subscription store.
func NewSubscriptionStore(db DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

func (s *SubscriptionStore) Subscribe(ctx context.Context, sub notifications.PushSubscription) (notifications.PushSubscription, error) {
	if sub.ID == "" || sub.UserID == "" || sub.Endpoint == "" {
		return notifications.PushSubscription{}, errors.New("subscription id, user id and endpoint are required")
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO push_subscriptions (id, user_id, endpoint, p256dh, auth, provider, device, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8)
		ON CONFLICT (user_id, endpoint) DO UPDATE SET
			p256dh = EXCLUDED.p256dh,
			auth = EXCLUDED.auth,
			provider = EXCLUDED.provider,
			device = EXCLUDED.device,
			is_active = TRUE,
			deactivated_at = NULL
		RETURNING `+subscriptionColumns,
		sub.ID, sub.UserID, sub.Endpoint, sub.Keys.P256dh, sub.Keys.Auth, string(sub.Provider), sub.Device, sub.CreatedAt,
	)
	stored, err := scanSubscription(row)
	if err != nil {
		return notifications.PushSubscription{}, fmt.Errorf("failed to upsert push subscription: %w", err)
	}
	return stored, nil
}

func (s *SubscriptionStore) Get(ctx context.Context, id string) (notifications.PushSubscription, error) {
	sub, err := scanSubscription(s.db.QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM push_subscriptions WHERE id = $1`, id))
	if pg.IsNotFoundError(err) {
		return notifications.PushSubscription{}, notifications.ErrSubscriptionNotFound
	}
	if err != nil {
		return notifications.PushSubscription{}, fmt.Errorf("failed to get push subscription: %w", err)
	}
	return sub, nil
}

func (s *SubscriptionStore) List(ctx context.Context, userID string) ([]notifications.PushSubscription, error) {
	return s.list(ctx, `SELECT `+subscriptionColumns+` FROM push_subscriptions
		WHERE user_id = $1 ORDER BY created_at DESC, id`, userID)
}

func (s *SubscriptionStore) ListActive(ctx context.Context, userID string) ([]notifications.PushSubscription, error) {
	return s.list(ctx, `SELECT `+subscriptionColumns+` FROM push_subscriptions
		WHERE user_id = $1 AND is_active ORDER BY created_at DESC, id`, userID)
}

func (s *SubscriptionStore) list(ctx context.Context, query, userID string) ([]notifications.PushSubscription, error) {
	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list push subscriptions: %w", err)
	}
	subs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (notifications.PushSubscription, error) {
		return scanSubscription(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan push subscriptions: %w", err)
	}
	return subs, nil
}

func (s *SubscriptionStore) Deactivate(ctx context.Context, id string, at time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE push_subscriptions SET is_active = FALSE, deactivated_at = $2 WHERE id = $1 AND is_active`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate push subscription: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM push_subscriptions WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check push subscription: %w", err)
	}
	if !exists {
		return notifications.ErrSubscriptionNotFound
	}
	return nil
}

func scanSubscription(row pgx.Row) (notifications.PushSubscription, error) {
	var (
		sub      notifications.PushSubscription
		provider string
	)
	err := row.Scan(
		&sub.ID, &sub.UserID, &sub.Endpoint, &sub.Keys.P256dh, &sub.Keys.Auth,
		&provider, &sub.Device, &sub.IsActive, &sub.CreatedAt, &sub.DeactivatedAt,
	)
	sub.Provider = notifications.PushProvider(provider)
	return sub, err
}
