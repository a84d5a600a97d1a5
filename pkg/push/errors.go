package push

import (
	"errors"
	"fmt"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

var (
	ErrInvalidConfig   = errors.New("push: invalid config")
	ErrInvalidPayload  = errors.New("push: invalid payload")
	ErrRejected        = errors.New("push: rejected by push service")
	ErrServiceFailed   = errors.New("push: push service unavailable")
	ErrUnknownProvider = errors.New("push: no sender for provider")

	// ErrEndpointGone and ErrMalformedKeys describe the subscription itself,
	// so both match notifications.ErrSubscriptionExpired.
	ErrEndpointGone  = fmt.Errorf("push: endpoint expired or unsubscribed: %w", notifications.ErrSubscriptionExpired)
	ErrMalformedKeys = fmt.Errorf("push: malformed subscription keys: %w", notifications.ErrSubscriptionExpired)
)
