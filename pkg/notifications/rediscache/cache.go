// Package rediscache puts a shared Redis read-through cache in front of a
// notifications.PreferenceStore, so several engine processes can share hot
// preference records without each hitting the database.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// Defaults for Option values.
const (
	DefaultTTL       = 5 * time.Minute
	DefaultKeyPrefix = "notifykit:prefs:"
)

// PreferenceStore caches preference records in Redis as JSON.
// Redis failures degrade to reading the backing store and are only logged.
type PreferenceStore struct {
	next   notifications.PreferenceStore
	rdb    redis.UniversalClient
	ttl    time.Duration
	prefix string
	log    *slog.Logger
}

var _ notifications.PreferenceStore = (*PreferenceStore)(nil)

// Option configures a PreferenceStore.
type Option func(*PreferenceStore)

// WithTTL sets how long a cached record lives.
func WithTTL(ttl time.Duration) Option {
	return func(s *PreferenceStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithKeyPrefix sets the key namespace.
func WithKeyPrefix(prefix string) Option {
	return func(s *PreferenceStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithLogger sets the logger for cache errors.
func WithLogger(l *slog.Logger) Option {
	return func(s *PreferenceStore) {
		if l != nil {
			s.log = l
		}
	}
}

// New wraps next with a Redis cache.
func New(next notifications.PreferenceStore, rdb redis.UniversalClient, opts ...Option) *PreferenceStore {
	s := &PreferenceStore{
		next:   next,
		rdb:    rdb,
		ttl:    DefaultTTL,
		prefix: DefaultKeyPrefix,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *PreferenceStore) key(userID string) string {
	return s.prefix + userID
}

func (s *PreferenceStore) Get(ctx context.Context, userID string) (notifications.Preferences, error) {
	raw, err := s.rdb.Get(ctx, s.key(userID)).Bytes()
	switch {
	case err == nil:
		var p notifications.Preferences
		jerr := json.Unmarshal(raw, &p)
		if jerr == nil {
			return p, nil
		}
		s.warn(ctx, "failed to decode cached preferences", userID, jerr)
	case !errors.Is(err, redis.Nil):
		s.warn(ctx, "failed to read cached preferences", userID, err)
	}

	p, err := s.next.Get(ctx, userID)
	if err != nil {
		return notifications.Preferences{}, err
	}
	s.store(ctx, p)
	return p, nil
}

func (s *PreferenceStore) Update(ctx context.Context, userID string, fn func(notifications.Preferences) (notifications.Preferences, error)) (notifications.Preferences, error) {
	p, err := s.next.Update(ctx, userID, fn)
	if err != nil {
		return notifications.Preferences{}, err
	}
	s.store(ctx, p)
	return p, nil
}

// Invalidate removes the cached record for userID.
func (s *PreferenceStore) Invalidate(ctx context.Context, userID string) error {
	return s.rdb.Del(ctx, s.key(userID)).Err()
}

func (s *PreferenceStore) store(ctx context.Context, p notifications.Preferences) {
	raw, err := json.Marshal(p)
	if err != nil {
		s.warn(ctx, "failed to encode preferences", p.UserID, err)
		return
	}
	if err := s.rdb.Set(ctx, s.key(p.UserID), raw, s.ttl).Err(); err != nil {
		s.warn(ctx, "failed to cache preferences", p.UserID, err)
		// A stale entry must not outlive a failed refresh.
		_ = s.rdb.Del(ctx, s.key(p.UserID)).Err()
	}
}

func (s *PreferenceStore) warn(ctx context.Context, msg, userID string, err error) {
	s.log.LogAttrs(ctx, slog.LevelWarn, msg, logger.UserID(userID), logger.Error(err))
}
