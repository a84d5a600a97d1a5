package notifications

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is matched by every "unknown resource" error of the package.
	ErrNotFound = errors.New("notifications: not found")

	// ErrNotificationNotFound is returned when a notification is not found.
	ErrNotificationNotFound = fmt.Errorf("%w: notification", ErrNotFound)

	// ErrSubscriptionNotFound is returned when a push subscription is not found.
	ErrSubscriptionNotFound = fmt.Errorf("%w: push subscription", ErrNotFound)

	// ErrInvalidEvent is returned by Submit for malformed events.
	ErrInvalidEvent = errors.New("notifications: invalid event")

	// ErrInvalidPreferences is matched by every ConfigurationError.
	ErrInvalidPreferences = errors.New("notifications: invalid preferences")

	// ErrTransientDelivery marks sender failures worth retrying
	// (network errors, rate limits, timeouts).
	ErrTransientDelivery = errors.New("notifications: transient delivery failure")

	// ErrPermanentDelivery marks sender failures that must not be retried,
	// such as an expired or invalid push endpoint.
	ErrPermanentDelivery = errors.New("notifications: permanent delivery failure")

	// ErrSubscriptionExpired marks a push endpoint the push service no longer
	// accepts. Only this error deactivates a subscription; it also matches
	// ErrPermanentDelivery.
	ErrSubscriptionExpired = fmt.Errorf("%w: push subscription expired", ErrPermanentDelivery)

	// ErrSessionNotConnected is returned by live senders when the target
	// session is gone. The dispatcher records it as skipped, not failed.
	ErrSessionNotConnected = errors.New("notifications: live session not connected")

	// ErrNoSender is returned when no sender is configured for a channel.
	ErrNoSender = errors.New("notifications: no sender configured for channel")
)

// ConfigurationError describes a rejected preference value.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("notifications: invalid preference %q: %s", e.Field, e.Reason)
}

// Is makes every ConfigurationError match ErrInvalidPreferences.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrInvalidPreferences
}

// ConfigurationErrors flattens err into the configuration errors it carries.
func ConfigurationErrors(err error) []*ConfigurationError {
	var out []*ConfigurationError
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		if ce, ok := e.(*ConfigurationError); ok {
			out = append(out, ce)
			return
		}
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(u.Unwrap())
		}
	}
	walk(err)
	return out
}
