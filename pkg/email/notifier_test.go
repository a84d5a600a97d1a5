package email_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/email"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

func TestNotificationSender_Notification(t *testing.T) {
	t.Parallel()

	m := new(MockEmailSender)
	var got email.SendEmailParams
	m.On("SendEmail", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(1).(email.SendEmailParams) }).
		Return(nil)

	s := email.NewNotificationSender(m, email.WithAppName("Acme"))
	err := s.SendEmail(context.Background(), "user@example.com", notifications.NotificationPayload(notifications.Notification{
		ID:          "n1",
		UserID:      "u1",
		Title:       "Invoice <paid>",
		Message:     "Thanks & see you",
		Category:    "billing",
		ActionURL:   "https://example.com/invoices/1",
		ActionLabel: "View invoice",
	}))
	require.NoError(t, err)
	m.AssertExpectations(t)

	assert.Equal(t, "user@example.com", got.SendTo)
	assert.Equal(t, "Invoice <paid>", got.Subject)
	assert.Equal(t, "billing", got.Tag)
	assert.Contains(t, got.BodyHTML, "Invoice &lt;paid&gt;")
	assert.Contains(t, got.BodyHTML, "Thanks &amp; see you")
	assert.Contains(t, got.BodyHTML, `href="https://example.com/invoices/1"`)
	assert.Contains(t, got.BodyHTML, "View invoice")
	assert.Contains(t, got.BodyHTML, "Acme")
}

func TestNotificationSender_Digest(t *testing.T) {
	t.Parallel()

	m := new(MockEmailSender)
	var got email.SendEmailParams
	m.On("SendEmail", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(1).(email.SendEmailParams) }).
		Return(nil)

	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	s := email.NewNotificationSender(m, email.WithAppName("Acme"))
	err := s.SendEmail(context.Background(), "user@example.com", notifications.DigestPayload(notifications.DigestPreview{
		ID:             "d1",
		UserID:         "u1",
		Frequency:      notifications.FrequencyHourly,
		PeriodStart:    start,
		PeriodEnd:      start.Add(time.Hour),
		Total:          5,
		CategoryCounts: map[string]int{"billing_alerts": 3, "team-updates": 2},
		Highlights: []notifications.Notification{
			{Title: "First"},
			{Title: "Second"},
		},
	}))
	require.NoError(t, err)

	assert.Equal(t, "Acme hourly digest: 5 new notifications", got.Subject)
	assert.Equal(t, "digest-hourly", got.Tag)
	assert.Contains(t, got.BodyHTML, "Billing Alerts")
	assert.Contains(t, got.BodyHTML, "Team Updates")
	assert.Contains(t, got.BodyHTML, "First")
	assert.Contains(t, got.BodyHTML, "and 3 more")
	assert.Less(t,
		strings.Index(got.BodyHTML, "Billing Alerts"),
		strings.Index(got.BodyHTML, "Team Updates"),
		"larger categories are listed first",
	)
}

func TestNotificationSender_ErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		providerErr   error
		wantPermanent bool
	}{
		{"invalid params", errors.Join(email.ErrInvalidParams, errors.New("SendTo is required")), true},
		{"rejected", errors.Join(email.ErrFailedToSendEmail, email.ErrRejected), true},
		{"network", errors.Join(email.ErrFailedToSendEmail, errors.New("connection reset")), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := new(MockEmailSender)
			m.On("SendEmail", mock.Anything, mock.Anything).Return(tt.providerErr)

			s := email.NewNotificationSender(m)
			err := s.SendEmail(context.Background(), "user@example.com",
				notifications.NotificationPayload(notifications.Notification{Title: "hi"}))
			require.Error(t, err)
			if tt.wantPermanent {
				assert.ErrorIs(t, err, notifications.ErrPermanentDelivery)
			} else {
				assert.ErrorIs(t, err, notifications.ErrTransientDelivery)
				assert.NotErrorIs(t, err, notifications.ErrPermanentDelivery)
			}
		})
	}
}

func TestNotificationSender_UnsupportedPayload(t *testing.T) {
	t.Parallel()

	m := new(MockEmailSender)
	s := email.NewNotificationSender(m)
	err := s.SendEmail(context.Background(), "user@example.com", notifications.Payload{Kind: "bogus"})
	assert.ErrorIs(t, err, notifications.ErrPermanentDelivery)
	m.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything)
}

func TestNew_Provider(t *testing.T) {
	t.Parallel()

	base := email.Config{
		SenderEmail:          "sender@example.com",
		SupportEmail:         "support@example.com",
		PostmarkServerToken:  "server",
		PostmarkAccountToken: "account",
		SMTPHost:             "smtp.example.com",
		SMTPPort:             587,
		DevOutputDir:         t.TempDir(),
	}

	tests := []struct {
		provider string
		wantErr  bool
	}{
		{email.ProviderPostmark, false},
		{email.ProviderSMTP, false},
		{email.ProviderDev, false},
		{"", false},
		{"carrier-pigeon", true},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			t.Parallel()
			cfg := base
			cfg.Provider = tt.provider
			s, err := email.New(cfg)
			if tt.wantErr {
				assert.ErrorIs(t, err, email.ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, s)
		})
	}
}

func TestNewSMTPSender_InvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  email.Config
		msg  string
	}{
		{"missing host", email.Config{SMTPPort: 25, SenderEmail: "a@example.com"}, "SMTPHost is required"},
		{"bad port", email.Config{SMTPHost: "h", SenderEmail: "a@example.com"}, "SMTPPort must be positive"},
		{"bad sender", email.Config{SMTPHost: "h", SMTPPort: 25, SenderEmail: "nope"}, "SenderEmail must be a valid email address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, err := email.NewSMTPSender(tt.cfg)
			assert.Nil(t, s)
			assert.ErrorIs(t, err, email.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestSMTPSender_ValidatesParams(t *testing.T) {
	t.Parallel()

	s, err := email.NewSMTPSender(email.Config{SMTPHost: "127.0.0.1", SMTPPort: 1, SenderEmail: "a@example.com"})
	require.NoError(t, err)

	err = s.SendEmail(context.Background(), email.SendEmailParams{SendTo: "bad", Subject: "s", BodyHTML: "b"})
	assert.ErrorIs(t, err, email.ErrInvalidParams)
}
