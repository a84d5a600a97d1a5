package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dmitrymomot/notifykit/pkg/email/templates"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// NotificationSender renders notification and digest payloads into HTML
// and hands them to an EmailSender. It satisfies notifications.EmailSender.
type NotificationSender struct {
	sender  EmailSender
	appName string
	log     *slog.Logger
}

var _ notifications.EmailSender = (*NotificationSender)(nil)

// NotifierOption configures a NotificationSender.
type NotifierOption func(*NotificationSender)

// WithAppName sets the product name used in subjects and footers.
func WithAppName(name string) NotifierOption {
	return func(s *NotificationSender) {
		if name != "" {
			s.appName = name
		}
	}
}

// WithNotifierLogger sets the logger.
func WithNotifierLogger(l *slog.Logger) NotifierOption {
	return func(s *NotificationSender) {
		if l != nil {
			s.log = l
		}
	}
}

// NewNotificationSender wraps sender.
func NewNotificationSender(sender EmailSender, opts ...NotifierOption) *NotificationSender {
	s := &NotificationSender{
		sender:  sender,
		appName: "Notifications",
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendEmail renders payload and sends it to address. Invalid addresses and
// provider rejections are reported as notifications.ErrPermanentDelivery,
// everything else as notifications.ErrTransientDelivery.
func (s *NotificationSender) SendEmail(ctx context.Context, address string, payload notifications.Payload) error {
	params, err := s.render(ctx, address, payload)
	if err != nil {
		return errors.Join(notifications.ErrPermanentDelivery, err)
	}
	if err := s.sender.SendEmail(ctx, params); err != nil {
		s.log.LogAttrs(ctx, slog.LevelDebug, "email provider returned error",
			logger.UserID(payload.UserID()),
			logger.Channel(notifications.ChannelEmail),
			logger.Error(err),
		)
		return classify(err)
	}
	return nil
}

func classify(err error) error {
	if errors.Is(err, ErrInvalidParams) || errors.Is(err, ErrRejected) {
		return errors.Join(notifications.ErrPermanentDelivery, err)
	}
	return errors.Join(notifications.ErrTransientDelivery, err)
}

func (s *NotificationSender) render(ctx context.Context, address string, payload notifications.Payload) (SendEmailParams, error) {
	switch {
	case payload.Kind == notifications.PayloadNotification && payload.Notification != nil:
		n := payload.Notification
		body, err := templates.Render(ctx, templates.Notification(templates.NotificationView{
			AppName:     s.appName,
			Title:       n.Title,
			Message:     n.Message,
			ActionURL:   n.ActionURL,
			ActionLabel: n.ActionLabel,
		}))
		if err != nil {
			return SendEmailParams{}, err
		}
		return SendEmailParams{
			SendTo:   address,
			Subject:  n.Title,
			BodyHTML: body,
			Tag:      n.Category,
		}, nil

	case payload.Kind == notifications.PayloadDigest && payload.Digest != nil:
		view := s.digestView(*payload.Digest)
		body, err := templates.Render(ctx, templates.Digest(view))
		if err != nil {
			return SendEmailParams{}, err
		}
		return SendEmailParams{
			SendTo:   address,
			Subject:  digestSubject(s.appName, *payload.Digest),
			BodyHTML: body,
			Tag:      "digest-" + string(payload.Digest.Frequency),
		}, nil
	}
	return SendEmailParams{}, fmt.Errorf("%w: unsupported payload %q", ErrInvalidParams, payload.Kind)
}

func (s *NotificationSender) digestView(d notifications.DigestPreview) templates.DigestView {
	view := templates.DigestView{
		AppName: s.appName,
		Total:   d.Total,
		More:    d.Total - len(d.Highlights),
	}
	if !d.PeriodStart.IsZero() && !d.PeriodEnd.IsZero() {
		view.Period = d.PeriodStart.Format("Jan 2 15:04") + " to " + d.PeriodEnd.Format("Jan 2 15:04 MST")
	}

	names := make([]string, 0, len(d.CategoryCounts))
	for name := range d.CategoryCounts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ci, cj := d.CategoryCounts[names[i]], d.CategoryCounts[names[j]]
		if ci != cj {
			return ci > cj
		}
		return names[i] < names[j]
	})
	for _, name := range names {
		view.Categories = append(view.Categories, templates.CategoryCount{
			Title: s.categoryTitle(name),
			Count: d.CategoryCounts[name],
		})
	}

	for _, n := range d.Highlights {
		view.Highlights = append(view.Highlights, templates.DigestItem{
			Title:     n.Title,
			Message:   n.Message,
			ActionURL: n.ActionURL,
		})
	}
	return view
}

// categoryTitle turns "billing_alerts" into "Billing Alerts".
func (s *NotificationSender) categoryTitle(name string) string {
	if name == "" {
		return "General"
	}
	// Casers are stateful and must not be shared between goroutines.
	return cases.Title(language.English).String(strings.NewReplacer("_", " ", "-", " ").Replace(name))
}

func digestSubject(appName string, d notifications.DigestPreview) string {
	switch d.Frequency {
	case notifications.FrequencyHourly, notifications.FrequencyDaily, notifications.FrequencyWeekly:
		return fmt.Sprintf("%s %s digest: %d new notifications", appName, d.Frequency, d.Total)
	}
	return fmt.Sprintf("%s: %d new notifications", appName, d.Total)
}
