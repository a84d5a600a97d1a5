package push

import (
	"context"
	"crypto/ecdh"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// WebPushSender delivers encrypted Web Push messages signed with VAPID.
type WebPushSender struct {
	cfg    Config
	client webpush.HTTPClient
	log    *slog.Logger
}

var _ notifications.PushSender = (*WebPushSender)(nil)

// WebPushOption configures a WebPushSender.
type WebPushOption func(*WebPushSender)

// WithHTTPClient overrides the HTTP client used to reach push services.
func WithHTTPClient(c webpush.HTTPClient) WebPushOption {
	return func(s *WebPushSender) {
		if c != nil {
			s.client = c
		}
	}
}

// WithWebPushLogger sets the logger.
func WithWebPushLogger(l *slog.Logger) WebPushOption {
	return func(s *WebPushSender) {
		if l != nil {
			s.log = l
		}
	}
}

// NewWebPushSender validates the VAPID settings in cfg.
func NewWebPushSender(cfg Config, opts ...WebPushOption) (*WebPushSender, error) {
	if !cfg.WebPushEnabled() {
		return nil, fmt.Errorf("%w: VAPID key pair is required", ErrInvalidConfig)
	}
	if cfg.VAPIDSubscriber == "" {
		return nil, fmt.Errorf("%w: VAPID subscriber is required", ErrInvalidConfig)
	}
	s := &WebPushSender{
		cfg:    cfg,
		client: http.DefaultClient,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SendPush encrypts payload for sub and posts it to the subscription endpoint.
// 404 and 410 mean the browser dropped the subscription. Other 4xx answers
// except 429 are permanent but leave the subscription alone, since they
// usually point at the payload or the VAPID setup.
func (s *WebPushSender) SendPush(ctx context.Context, sub notifications.PushSubscription, payload notifications.Payload) error {
	if err := validateKeys(sub.Keys); err != nil {
		return err
	}
	msg, err := NewMessage(payload)
	if err != nil {
		return errors.Join(notifications.ErrPermanentDelivery, err)
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return errors.Join(notifications.ErrPermanentDelivery, ErrInvalidPayload, err)
	}

	urgency := webpush.UrgencyNormal
	if msg.urgent() {
		urgency = webpush.UrgencyHigh
	}

	resp, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			Auth:   sub.Keys.Auth,
			P256dh: sub.Keys.P256dh,
		},
	}, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.cfg.VAPIDSubscriber,
		VAPIDPublicKey:  s.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: s.cfg.VAPIDPrivateKey,
		TTL:             int(s.cfg.TTL.Seconds()),
		Urgency:         urgency,
		Topic:           collapseKey(msg),
	})
	if err != nil {
		if ctx.Err() != nil {
			return errors.Join(notifications.ErrTransientDelivery, ctx.Err())
		}
		if isTransportError(err) {
			return errors.Join(notifications.ErrTransientDelivery, ErrServiceFailed, err)
		}
		// Subscription keys were checked above, so a failure before the
		// request is sent comes from the VAPID keys or encryption.
		return errors.Join(notifications.ErrPermanentDelivery, ErrRejected, err)
	}
	defer resp.Body.Close()
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	err = classifyStatus(resp.StatusCode, string(detail))
	if err != nil {
		s.log.LogAttrs(ctx, slog.LevelDebug, "web push rejected",
			logger.SubscriptionID(sub.ID),
			logger.Status(resp.StatusCode),
			logger.Error(err),
		)
	}
	return err
}

func classifyStatus(code int, detail string) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound || code == http.StatusGone:
		return fmt.Errorf("%w: status %d", ErrEndpointGone, code)
	case code == http.StatusTooManyRequests || code >= 500:
		return fmt.Errorf("%w: %w: status %d: %s", notifications.ErrTransientDelivery, ErrServiceFailed, code, detail)
	default:
		return fmt.Errorf("%w: %w: status %d: %s", notifications.ErrPermanentDelivery, ErrRejected, code, detail)
	}
}

func isTransportError(err error) bool {
	var uerr *url.Error
	var nerr net.Error
	return errors.As(err, &uerr) || errors.As(err, &nerr)
}

// validateKeys checks the browser keys the way the payload encryption will
// use them: an uncompressed P-256 point and a 16 byte auth secret.
func validateKeys(k notifications.PushKeys) error {
	pub, err := decodeKey(k.P256dh)
	if err != nil {
		return fmt.Errorf("%w: p256dh: %w", ErrMalformedKeys, err)
	}
	if _, err := ecdh.P256().NewPublicKey(pub); err != nil {
		return fmt.Errorf("%w: p256dh: %w", ErrMalformedKeys, err)
	}
	auth, err := decodeKey(k.Auth)
	if err != nil {
		return fmt.Errorf("%w: auth: %w", ErrMalformedKeys, err)
	}
	if len(auth) != 16 {
		return fmt.Errorf("%w: auth: want 16 bytes, got %d", ErrMalformedKeys, len(auth))
	}
	return nil
}

// decodeKey accepts padded or unpadded, URL-safe or standard base64.
func decodeKey(s string) ([]byte, error) {
	s = strings.TrimRight(s, "=")
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
