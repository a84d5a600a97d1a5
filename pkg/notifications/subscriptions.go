package notifications

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// PushProvider selects the push transport for a subscription.
type PushProvider string

const (
	ProviderWebPush PushProvider = "webpush"
	ProviderFCM     PushProvider = "fcm"
)

// PushKeys are the Web Push encryption keys of a browser subscription.
type PushKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// Device describes the client that registered a subscription.
type Device struct {
	Name      string `json:"name,omitempty"`
	Platform  string `json:"platform,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// PushSubscription is one device endpoint able to receive push messages.
// For FCM the endpoint is the registration token.
type PushSubscription struct {
	ID            string       `json:"id"`
	UserID        string       `json:"user_id"`
	Endpoint      string       `json:"endpoint"`
	Keys          PushKeys     `json:"keys"`
	Provider      PushProvider `json:"provider"`
	Device        Device       `json:"device"`
	IsActive      bool         `json:"is_active"`
	CreatedAt     time.Time    `json:"created_at"`
	DeactivatedAt *time.Time   `json:"deactivated_at,omitempty"`
}

// SubscribeRequest registers a push endpoint for a user.
type SubscribeRequest struct {
	Endpoint string       `json:"endpoint" validate:"required,max=2048"`
	Keys     PushKeys     `json:"keys"`
	Provider PushProvider `json:"provider" validate:"omitempty,oneof=webpush fcm"`
	Device   Device       `json:"device"`
}

// Validate checks the request, requiring encryption keys for Web Push.
func (r SubscribeRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return toConfigurationErrors(err)
	}
	if r.provider() == ProviderWebPush && (r.Keys.P256dh == "" || r.Keys.Auth == "") {
		return &ConfigurationError{Field: "keys", Reason: "p256dh and auth are required for webpush"}
	}
	return nil
}

func (r SubscribeRequest) provider() PushProvider {
	if r.Provider == "" {
		return ProviderWebPush
	}
	return r.Provider
}

// SubscriptionStore persists push subscriptions. Subscriptions are
// deactivated, never hard-deleted.
type SubscriptionStore interface {
	// Subscribe inserts sub, or reactivates and refreshes the existing
	// subscription with the same user and endpoint.
	Subscribe(ctx context.Context, sub PushSubscription) (PushSubscription, error)
	Get(ctx context.Context, id string) (PushSubscription, error)
	// List returns all subscriptions of a user, newest first.
	List(ctx context.Context, userID string) ([]PushSubscription, error)
	// ListActive returns the active subscriptions of a user.
	ListActive(ctx context.Context, userID string) ([]PushSubscription, error)
	// Deactivate marks a subscription inactive. Deactivating an inactive
	// subscription is a no-op.
	Deactivate(ctx context.Context, id string, at time.Time) error
}

// MemorySubscriptionStore is an in-memory SubscriptionStore.
type MemorySubscriptionStore struct {
	mu   sync.RWMutex
	subs map[string]*PushSubscription // id -> subscription
}

var _ SubscriptionStore = (*MemorySubscriptionStore)(nil)

// NewMemorySubscriptionStore creates an empty store.
func NewMemorySubscriptionStore() *MemorySubscriptionStore {
	return &MemorySubscriptionStore{subs: make(map[string]*PushSubscription)}
}

func (s *MemorySubscriptionStore) Subscribe(ctx context.Context, sub PushSubscription) (PushSubscription, error) {
	if sub.ID == "" || sub.UserID == "" || sub.Endpoint == "" {
		return PushSubscription{}, errors.New("subscription id, user id and endpoint are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.subs {
		if existing.UserID == sub.UserID && existing.Endpoint == sub.Endpoint {
			existing.Keys = sub.Keys
			existing.Provider = sub.Provider
			existing.Device = sub.Device
			existing.IsActive = true
			existing.DeactivatedAt = nil
			return *existing, nil
		}
	}

	sub.IsActive = true
	sub.DeactivatedAt = nil
	stored := sub
	s.subs[sub.ID] = &stored
	return stored, nil
}

func (s *MemorySubscriptionStore) Get(ctx context.Context, id string) (PushSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subs[id]
	if !ok {
		return PushSubscription{}, ErrSubscriptionNotFound
	}
	return *sub, nil
}

func (s *MemorySubscriptionStore) List(ctx context.Context, userID string) ([]PushSubscription, error) {
	return s.list(userID, false), nil
}

func (s *MemorySubscriptionStore) ListActive(ctx context.Context, userID string) ([]PushSubscription, error) {
	return s.list(userID, true), nil
}

func (s *MemorySubscriptionStore) list(userID string, activeOnly bool) []PushSubscription {
	s.mu.RLock()
	out := make([]PushSubscription, 0)
	for _, sub := range s.subs {
		if sub.UserID != userID || (activeOnly && !sub.IsActive) {
			continue
		}
		out = append(out, *sub)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *MemorySubscriptionStore) Deactivate(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[id]
	if !ok {
		return ErrSubscriptionNotFound
	}
	if !sub.IsActive {
		return nil
	}
	sub.IsActive = false
	sub.DeactivatedAt = &at
	return nil
}
