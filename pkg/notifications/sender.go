package notifications

import (
	"context"
	"fmt"
)

// PayloadKind distinguishes a single notification from a digest summary.
type PayloadKind string

const (
	PayloadNotification PayloadKind = "notification"
	PayloadDigest       PayloadKind = "digest"
)

// Payload is what a channel sender renders and transmits.
// Exactly one of Notification and Digest is set, according to Kind.
type Payload struct {
	Kind         PayloadKind    `json:"type"`
	Notification *Notification  `json:"notification,omitempty"`
	Digest       *DigestPreview `json:"digest,omitempty"`
}

// NotificationPayload wraps a single notification.
func NotificationPayload(n Notification) Payload {
	return Payload{Kind: PayloadNotification, Notification: &n}
}

// DigestPayload wraps a digest summary.
func DigestPayload(d DigestPreview) Payload {
	return Payload{Kind: PayloadDigest, Digest: &d}
}

// UserID returns the recipient of the payload.
func (p Payload) UserID() string {
	switch {
	case p.Notification != nil:
		return p.Notification.UserID
	case p.Digest != nil:
		return p.Digest.UserID
	}
	return ""
}

// ReferenceID returns the notification id or the digest id.
func (p Payload) ReferenceID() string {
	switch {
	case p.Notification != nil:
		return p.Notification.ID
	case p.Digest != nil:
		return p.Digest.ID
	}
	return ""
}

// ChannelSender is the outward transport contract. Implementations return
// nil on success, an error matching ErrPermanentDelivery for failures that
// must not be retried, ErrSessionNotConnected when a live session is gone,
// and any other error for transient failures.
type ChannelSender interface {
	SendPush(ctx context.Context, sub PushSubscription, payload Payload) error
	SendEmail(ctx context.Context, address string, payload Payload) error
	SendInAppLive(ctx context.Context, sessionID string, payload Payload) error
}

// PushSender delivers to one push subscription.
type PushSender interface {
	SendPush(ctx context.Context, sub PushSubscription, payload Payload) error
}

// EmailSender delivers to one email address.
type EmailSender interface {
	SendEmail(ctx context.Context, address string, payload Payload) error
}

// LiveSender writes to one connected client session.
type LiveSender interface {
	SendInAppLive(ctx context.Context, sessionID string, payload Payload) error
}

// SessionDirectory lists the live sessions a user currently has open.
type SessionDirectory interface {
	Sessions(userID string) []string
}

// Senders composes per-channel senders into a ChannelSender.
// A nil field makes that channel fail permanently with ErrNoSender.
type Senders struct {
	Push  PushSender
	Email EmailSender
	Live  LiveSender
}

var _ ChannelSender = Senders{}

func (s Senders) SendPush(ctx context.Context, sub PushSubscription, payload Payload) error {
	if s.Push == nil {
		return fmt.Errorf("%w: %w: %s", ErrPermanentDelivery, ErrNoSender, ChannelPush)
	}
	return s.Push.SendPush(ctx, sub, payload)
}

func (s Senders) SendEmail(ctx context.Context, address string, payload Payload) error {
	if s.Email == nil {
		return fmt.Errorf("%w: %w: %s", ErrPermanentDelivery, ErrNoSender, ChannelEmail)
	}
	return s.Email.SendEmail(ctx, address, payload)
}

func (s Senders) SendInAppLive(ctx context.Context, sessionID string, payload Payload) error {
	if s.Live == nil {
		return ErrSessionNotConnected
	}
	return s.Live.SendInAppLive(ctx, sessionID, payload)
}
