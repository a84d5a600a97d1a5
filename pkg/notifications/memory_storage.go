package notifications

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// MemoryStorage is an in-memory implementation of the Storage interface.
// Suitable for development and testing.
type MemoryStorage struct {
	notifications map[string]map[string]*Notification // userID -> id -> notification
	mu            sync.RWMutex
}

var _ Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates a new in-memory notification storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		notifications: make(map[string]map[string]*Notification),
	}
}

func (s *MemoryStorage) Create(ctx context.Context, n Notification) error {
	if n.ID == "" {
		return errors.New("notification ID is required")
	}
	if n.UserID == "" {
		return errors.New("user ID is required")
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.notifications[n.UserID]
	if !ok {
		byID = make(map[string]*Notification)
		s.notifications[n.UserID] = byID
	}
	stored := n.Clone()
	byID[n.ID] = &stored
	return nil
}

func (s *MemoryStorage) Get(ctx context.Context, userID, id string) (Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.notifications[userID][id]
	if !ok {
		return Notification{}, ErrNotificationNotFound
	}
	// Copy so callers cannot mutate stored data.
	return n.Clone(), nil
}

func (s *MemoryStorage) List(ctx context.Context, userID string, opts ListOptions) ([]Notification, int, error) {
	opts = opts.Normalize()

	s.mu.RLock()
	filtered := make([]Notification, 0, len(s.notifications[userID]))
	for _, n := range s.notifications[userID] {
		if opts.Matches(*n) {
			filtered = append(filtered, n.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(filtered, func(i, j int) bool {
		if !filtered[i].CreatedAt.Equal(filtered[j].CreatedAt) {
			return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
		}
		return filtered[i].ID > filtered[j].ID
	})

	total := len(filtered)
	start := opts.Offset()
	if start >= total {
		return []Notification{}, total, nil
	}
	end := min(start+opts.PageSize, total)
	return filtered[start:end], total, nil
}

func (s *MemoryStorage) CountUnread(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.notifications[userID] {
		if !n.IsRead && !n.IsArchived {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStorage) Update(ctx context.Context, userID, id string, fn func(*Notification) bool) (Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[userID][id]
	if !ok {
		return Notification{}, ErrNotificationNotFound
	}
	next := n.Clone()
	if fn(&next) {
		*n = next
	}
	return n.Clone(), nil
}

func (s *MemoryStorage) MarkAllRead(ctx context.Context, userID, category string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, n := range s.notifications[userID] {
		if category != "" && n.Category != category {
			continue
		}
		if n.Apply(ActionRead, now) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStorage) Delete(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notifications[userID][id]; !ok {
		return ErrNotificationNotFound
	}
	delete(s.notifications[userID], id)
	return nil
}
