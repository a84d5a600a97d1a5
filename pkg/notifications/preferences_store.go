package notifications

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/cache"
)

// PreferenceStore persists one Preferences record per user.
type PreferenceStore interface {
	// Get returns the user's preferences. A user without a record gets the
	// defaults, which are persisted on first access.
	Get(ctx context.Context, userID string) (Preferences, error)

	// Update applies fn to the current record atomically and stores the
	// result. An error from fn aborts the update and is returned unchanged.
	Update(ctx context.Context, userID string, fn func(Preferences) (Preferences, error)) (Preferences, error)
}

// MemoryPreferenceStore is an in-memory PreferenceStore.
type MemoryPreferenceStore struct {
	mu    sync.RWMutex
	prefs map[string]Preferences
	now   func() time.Time
}

var _ PreferenceStore = (*MemoryPreferenceStore)(nil)

// NewMemoryPreferenceStore creates an empty store.
func NewMemoryPreferenceStore() *MemoryPreferenceStore {
	return &MemoryPreferenceStore{prefs: make(map[string]Preferences), now: time.Now}
}

func (s *MemoryPreferenceStore) Get(ctx context.Context, userID string) (Preferences, error) {
	if userID == "" {
		return Preferences{}, errors.New("user ID is required")
	}

	s.mu.RLock()
	p, ok := s.prefs[userID]
	s.mu.RUnlock()
	if ok {
		return p.Clone(), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.prefs[userID]; ok {
		return p.Clone(), nil
	}
	p = DefaultPreferences(userID)
	p.UpdatedAt = s.now()
	s.prefs[userID] = p
	return p.Clone(), nil
}

func (s *MemoryPreferenceStore) Update(ctx context.Context, userID string, fn func(Preferences) (Preferences, error)) (Preferences, error) {
	if userID == "" {
		return Preferences{}, errors.New("user ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.prefs[userID]
	if !ok {
		current = DefaultPreferences(userID)
	}
	next, err := fn(current.Clone())
	if err != nil {
		return Preferences{}, err
	}
	next.UserID = userID
	next.UpdatedAt = s.now()
	s.prefs[userID] = next.Clone()
	return next, nil
}

// CachedPreferenceStore keeps recently read preferences in an in-process LRU
// in front of another store. Updates go through to the backing store and
// refresh the cached copy.
type CachedPreferenceStore struct {
	next  PreferenceStore
	cache *cache.LRUCache[string, Preferences]
}

var _ PreferenceStore = (*CachedPreferenceStore)(nil)

// NewCachedPreferenceStore wraps next with an LRU of the given capacity.
// ttl bounds staleness when several processes share the backing store;
// zero keeps entries until evicted.
func NewCachedPreferenceStore(next PreferenceStore, capacity int, ttl time.Duration) *CachedPreferenceStore {
	if capacity <= 0 {
		capacity = 10_000
	}
	return &CachedPreferenceStore{
		next:  next,
		cache: cache.NewLRUCache[string, Preferences](capacity, cache.WithTTL(ttl)),
	}
}

func (s *CachedPreferenceStore) Get(ctx context.Context, userID string) (Preferences, error) {
	if p, ok := s.cache.Get(userID); ok {
		return p.Clone(), nil
	}
	p, err := s.next.Get(ctx, userID)
	if err != nil {
		return Preferences{}, err
	}
	s.cache.Put(userID, p.Clone())
	return p, nil
}

func (s *CachedPreferenceStore) Update(ctx context.Context, userID string, fn func(Preferences) (Preferences, error)) (Preferences, error) {
	p, err := s.next.Update(ctx, userID, fn)
	if err != nil {
		s.cache.Remove(userID)
		return Preferences{}, err
	}
	s.cache.Put(userID, p.Clone())
	return p, nil
}

// Invalidate drops the cached copy for userID.
func (s *CachedPreferenceStore) Invalidate(userID string) {
	s.cache.Remove(userID)
}
