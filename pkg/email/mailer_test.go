package email_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/email"
)

// MockEmailSender is a mock implementation of EmailSender for testing
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) SendEmail(ctx context.Context, params email.SendEmailParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func validParams() email.SendEmailParams {
	return email.SendEmailParams{
		SendTo:   "user@example.com",
		Subject:  "New comment",
		BodyHTML: "<p>hello</p>",
		Tag:      "comments",
	}
}

func TestSendEmailParams_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*email.SendEmailParams)
		errMsg string
	}{
		{name: "valid", mutate: func(*email.SendEmailParams) {}},
		{name: "tag is optional", mutate: func(p *email.SendEmailParams) { p.Tag = "" }},
		{name: "missing recipient", mutate: func(p *email.SendEmailParams) { p.SendTo = "  " }, errMsg: "SendTo is required"},
		{name: "malformed recipient", mutate: func(p *email.SendEmailParams) { p.SendTo = "user@localhost" }, errMsg: "SendTo must be a valid email address"},
		{name: "missing subject", mutate: func(p *email.SendEmailParams) { p.Subject = "" }, errMsg: "Subject is required"},
		{name: "blank body", mutate: func(p *email.SendEmailParams) { p.BodyHTML = "\n\t" }, errMsg: "BodyHTML is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := validParams()
			tt.mutate(&p)
			err := p.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, email.ErrInvalidParams)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	base := email.Config{
		SenderEmail:  "noreply@example.com",
		SupportEmail: "support@example.com",
		DevOutputDir: t.TempDir(),
		SMTPPort:     587,
	}

	tests := []struct {
		name    string
		mutate  func(*email.Config)
		wantErr bool
	}{
		{name: "dev by default", mutate: func(c *email.Config) { c.Provider = "" }},
		{name: "dev", mutate: func(c *email.Config) { c.Provider = email.ProviderDev }},
		{name: "postmark", mutate: func(c *email.Config) {
			c.Provider = email.ProviderPostmark
			c.PostmarkServerToken = "server"
			c.PostmarkAccountToken = "account"
		}},
		{name: "postmark without tokens", mutate: func(c *email.Config) { c.Provider = email.ProviderPostmark }, wantErr: true},
		{name: "smtp", mutate: func(c *email.Config) {
			c.Provider = email.ProviderSMTP
			c.SMTPHost = "smtp.example.com"
		}},
		{name: "smtp without host", mutate: func(c *email.Config) { c.Provider = email.ProviderSMTP }, wantErr: true},
		{name: "unknown provider", mutate: func(c *email.Config) { c.Provider = "carrier-pigeon" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := base
			tt.mutate(&cfg)
			sender, err := email.New(cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, email.ErrInvalidConfig)
				assert.Nil(t, sender)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, sender)
		})
	}
}

func TestDevSender_SendEmail(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	s := email.NewDevSender(dir,
		email.WithDevReplyTo("support@example.com"),
		email.WithDevClock(func() time.Time { return now }),
	)

	p := validParams()
	p.Tag = "Digest Daily!"
	require.NoError(t, s.SendEmail(context.Background(), p))
	require.NoError(t, s.SendEmail(context.Background(), p))

	day := filepath.Join(dir, "2026-03-14")
	htmlFiles, err := filepath.Glob(filepath.Join(day, "092653_digest_daily_*.html"))
	require.NoError(t, err)
	assert.Len(t, htmlFiles, 2, "same-second sends must not overwrite each other")

	jsonFiles, err := filepath.Glob(filepath.Join(day, "*.json"))
	require.NoError(t, err)
	require.Len(t, jsonFiles, 2)

	raw, err := os.ReadFile(jsonFiles[0])
	require.NoError(t, err)
	var meta map[string]any
	require.NoError(t, json.Unmarshal(raw, &meta))
	assert.Equal(t, "user@example.com", meta["send_to"])
	assert.Equal(t, "support@example.com", meta["reply_to"])
	assert.Equal(t, "Digest Daily!", meta["tag"])
	assert.Equal(t, "2026-03-14T09:26:53Z", meta["sent_at"])

	body, err := os.ReadFile(filepath.Join(day, meta["html_file"].(string)))
	require.NoError(t, err)
	assert.Equal(t, "<p>hello</p>", string(body))
}

func TestDevSender_RejectsInvalidParams(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := email.NewDevSender(dir)
	p := validParams()
	p.SendTo = ""

	err := s.SendEmail(context.Background(), p)
	assert.ErrorIs(t, err, email.ErrInvalidParams)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
