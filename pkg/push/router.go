package push

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// Router picks a sender by subscription provider. Subscriptions without a
// provider are treated as Web Push.
type Router struct {
	senders map[notifications.PushProvider]notifications.PushSender
}

var _ notifications.PushSender = (*Router)(nil)

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{senders: make(map[notifications.PushProvider]notifications.PushSender)}
}

// Handle registers sender for provider. A nil sender is ignored.
func (r *Router) Handle(provider notifications.PushProvider, sender notifications.PushSender) *Router {
	if sender != nil {
		r.senders[provider] = sender
	}
	return r
}

// Providers returns the number of registered providers.
func (r *Router) Providers() int {
	return len(r.senders)
}

func (r *Router) SendPush(ctx context.Context, sub notifications.PushSubscription, payload notifications.Payload) error {
	provider := sub.Provider
	if provider == "" {
		provider = notifications.ProviderWebPush
	}
	s, ok := r.senders[provider]
	if !ok {
		return fmt.Errorf("%w: %w: %w: %s", notifications.ErrPermanentDelivery, notifications.ErrNoSender, ErrUnknownProvider, provider)
	}
	return s.SendPush(ctx, sub, payload)
}
