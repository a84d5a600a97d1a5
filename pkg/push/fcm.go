package push

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// FCMClient is the part of the Firebase messaging client the sender uses.
type FCMClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMSender delivers to mobile devices through Firebase Cloud Messaging.
// The subscription endpoint holds the device registration token.
type FCMSender struct {
	client    FCMClient
	channelID string
	log       *slog.Logger
}

var _ notifications.PushSender = (*FCMSender)(nil)

// FCMOption configures an FCMSender.
type FCMOption func(*FCMSender)

// WithFCMLogger sets the logger.
func WithFCMLogger(l *slog.Logger) FCMOption {
	return func(s *FCMSender) {
		if l != nil {
			s.log = l
		}
	}
}

// WithAndroidChannel sets the Android notification channel id.
func WithAndroidChannel(id string) FCMOption {
	return func(s *FCMSender) {
		if id != "" {
			s.channelID = id
		}
	}
}

// NewFCMClient initializes a Firebase app from cfg and returns its
// messaging client. Base64 credentials take precedence over a file.
func NewFCMClient(ctx context.Context, cfg Config) (*messaging.Client, error) {
	var opt option.ClientOption
	switch {
	case cfg.FirebaseCredentialsBase64 != "":
		raw, err := base64.StdEncoding.DecodeString(cfg.FirebaseCredentialsBase64)
		if err != nil {
			return nil, errors.Join(ErrInvalidConfig, err)
		}
		opt = option.WithCredentialsJSON(raw)
	case cfg.FirebaseCredentialsFile != "":
		opt = option.WithCredentialsFile(cfg.FirebaseCredentialsFile)
	default:
		return nil, fmt.Errorf("%w: firebase credentials are required", ErrInvalidConfig)
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FirebaseProjectID}, opt)
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	return client, nil
}

// NewFCMSender wraps a messaging client.
func NewFCMSender(client FCMClient, opts ...FCMOption) *FCMSender {
	s := &FCMSender{
		client:    client,
		channelID: "notifications",
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendPush sends payload to the registration token in sub.Endpoint.
// Unregistered tokens expire the subscription. Sender mismatches and invalid
// arguments are permanent without touching it, since a wrong Firebase project
// would otherwise deactivate every device.
func (s *FCMSender) SendPush(ctx context.Context, sub notifications.PushSubscription, payload notifications.Payload) error {
	msg, err := NewMessage(payload)
	if err != nil {
		return errors.Join(notifications.ErrPermanentDelivery, err)
	}

	id, err := s.client.Send(ctx, s.build(sub.Endpoint, msg))
	if err != nil {
		switch {
		case messaging.IsUnregistered(err):
			return errors.Join(ErrEndpointGone, err)
		case messaging.IsSenderIDMismatch(err), errorutils.IsInvalidArgument(err):
			return errors.Join(notifications.ErrPermanentDelivery, ErrRejected, err)
		}
		return errors.Join(notifications.ErrTransientDelivery, ErrServiceFailed, err)
	}

	s.log.LogAttrs(ctx, slog.LevelDebug, "fcm message sent",
		logger.SubscriptionID(sub.ID),
		logger.MessageID(id),
	)
	return nil
}

func (s *FCMSender) build(token string, m Message) *messaging.Message {
	data := map[string]string{
		"type": m.Type,
		"id":   m.ID,
	}
	if m.URL != "" {
		data["url"] = m.URL
	}
	if m.Category != "" {
		data["category"] = m.Category
	}
	if m.Count > 0 {
		data["count"] = strconv.Itoa(m.Count)
	}
	// FCM data values are strings only.
	for k, v := range m.Data {
		if _, taken := data[k]; taken {
			continue
		}
		data[k] = stringify(v)
	}

	priority := "normal"
	if m.urgent() {
		priority = "high"
	}

	return &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title:    m.Title,
			Body:     m.Body,
			ImageURL: m.Icon,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority:    priority,
			CollapseKey: collapseKey(m),
			Notification: &messaging.AndroidNotification{
				Sound:     "default",
				ChannelID: s.channelID,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: m.Title,
						Body:  m.Body,
					},
					Sound:    "default",
					Category: m.Category,
				},
			},
		},
	}
}

// collapseKey lets a device keep only the latest digest summary.
// Web Push topics allow at most 32 URL-safe characters.
func collapseKey(m Message) string {
	if m.Type == string(notifications.PayloadDigest) {
		return "digest"
	}
	return ""
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(raw)
}
