package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

const preferenceColumns = `user_id, notifications_enabled, push_enabled, email_enabled, sound_enabled,
	email, email_digest_frequency, digest_time, digest_timezone, category_preferences,
	quiet_hours_enabled, quiet_hours_start, quiet_hours_end, quiet_hours_timezone,
	dnd_enabled, dnd_until, updated_at`

// PreferenceStore is a notifications.PreferenceStore backed by the
// notification_preferences table.
type PreferenceStore struct {
	db  DB
	now func() time.Time
}

var _ notifications.PreferenceStore = (*PreferenceStore)(nil)

// NewPreferenceStore creates a preference store.
func NewPreferenceStore(db DB) *PreferenceStore {
	return &PreferenceStore{db: db, now: time.Now}
}

// Get returns the user's record, inserting the defaults on first access.
func (s *PreferenceStore) Get(ctx context.Context, userID string) (notifications.Preferences, error) {
	if userID == "" {
		return notifications.Preferences{}, errors.New("user id is required")
	}
	if err := s.ensure(ctx, s.db, userID); err != nil {
		return notifications.Preferences{}, err
	}
	p, err := scanPreferences(s.db.QueryRow(ctx,
		`SELECT `+preferenceColumns+` FROM notification_preferences WHERE user_id = $1`, userID))
	if err != nil {
		return notifications.Preferences{}, fmt.Errorf("failed to load preferences: %w", err)
	}
	return p, nil
}

// Update locks the row, applies fn and writes the result in one transaction.
func (s *PreferenceStore) Update(ctx context.Context, userID string, fn func(notifications.Preferences) (notifications.Preferences, error)) (notifications.Preferences, error) {
	if userID == "" {
		return notifications.Preferences{}, errors.New("user id is required")
	}

	var out notifications.Preferences
	var fnErr error
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if err := s.ensure(ctx, tx, userID); err != nil {
			return err
		}
		current, err := scanPreferences(tx.QueryRow(ctx,
			`SELECT `+preferenceColumns+` FROM notification_preferences WHERE user_id = $1 FOR UPDATE`, userID))
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			fnErr = err
			return err
		}
		next.UserID = userID
		next.UpdatedAt = s.now()
		if err := writePreferences(ctx, tx, next); err != nil {
			return err
		}
		out = next
		return nil
	})
	if fnErr != nil {
		return notifications.Preferences{}, fnErr
	}
	if err != nil {
		return notifications.Preferences{}, fmt.Errorf("failed to update preferences: %w", err)
	}
	return out, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (s *PreferenceStore) ensure(ctx context.Context, db execer, userID string) error {
	p := notifications.DefaultPreferences(userID)
	p.UpdatedAt = s.now()
	_, err := db.Exec(ctx, `
		INSERT INTO notification_preferences (`+preferenceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (user_id) DO NOTHING`,
		preferenceArgs(p)...,
	)
	if err != nil {
		return fmt.Errorf("failed to create default preferences: %w", err)
	}
	return nil
}

func writePreferences(ctx context.Context, db execer, p notifications.Preferences) error {
	_, err := db.Exec(ctx, `
		UPDATE notification_preferences SET
			notifications_enabled = $2, push_enabled = $3, email_enabled = $4, sound_enabled = $5,
			email = $6, email_digest_frequency = $7, digest_time = $8, digest_timezone = $9,
			category_preferences = $10, quiet_hours_enabled = $11, quiet_hours_start = $12,
			quiet_hours_end = $13, quiet_hours_timezone = $14, dnd_enabled = $15, dnd_until = $16,
			updated_at = $17
		WHERE user_id = $1`,
		preferenceArgs(p)...,
	)
	return err
}

func preferenceArgs(p notifications.Preferences) []any {
	categories := p.CategoryPreferences
	if categories == nil {
		categories = map[string]notifications.ChannelSet{}
	}
	return []any{
		p.UserID, p.NotificationsEnabled, p.PushEnabled, p.EmailEnabled, p.SoundEnabled,
		p.Email, string(p.EmailDigestFrequency), p.DigestTime.String(), p.DigestTimezone, categories,
		p.QuietHoursEnabled, p.QuietHoursStart.String(), p.QuietHoursEnd.String(), p.QuietHoursTimezone,
		p.DNDEnabled, p.DNDUntil, p.UpdatedAt,
	}
}

func scanPreferences(row pgx.Row) (notifications.Preferences, error) {
	var (
		p                                notifications.Preferences
		freq, digestAt, quietAt, quietTo string
	)
	err := row.Scan(
		&p.UserID, &p.NotificationsEnabled, &p.PushEnabled, &p.EmailEnabled, &p.SoundEnabled,
		&p.Email, &freq, &digestAt, &p.DigestTimezone, &p.CategoryPreferences,
		&p.QuietHoursEnabled, &quietAt, &quietTo, &p.QuietHoursTimezone,
		&p.DNDEnabled, &p.DNDUntil, &p.UpdatedAt,
	)
	if err != nil {
		return notifications.Preferences{}, err
	}
	p.EmailDigestFrequency = notifications.Frequency(freq)
	for dst, src := range map[*notifications.TimeOfDay]string{
		&p.DigestTime:      digestAt,
		&p.QuietHoursStart: quietAt,
		&p.QuietHoursEnd:   quietTo,
	} {
		t, err := notifications.ParseTimeOfDay(src)
		if err != nil {
			return notifications.Preferences{}, fmt.Errorf("stored time %q: %w", src, err)
		}
		*dst = t
	}
	if len(p.CategoryPreferences) == 0 {
		p.CategoryPreferences = nil
	}
	return p, nil
}
