package email

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DevSender writes every email to disk instead of sending it: the rendered
// HTML plus a JSON sidecar with the envelope. Files are grouped per day so a
// local run with digests enabled stays browsable.
type DevSender struct {
	dir     string
	replyTo string
	now     func() time.Time
}

// DevOption configures a DevSender.
type DevOption func(*DevSender)

// WithDevReplyTo records the reply-to address in the sidecar.
func WithDevReplyTo(addr string) DevOption {
	return func(d *DevSender) { d.replyTo = addr }
}

// WithDevClock overrides the clock used for file names.
func WithDevClock(now func() time.Time) DevOption {
	return func(d *DevSender) {
		if now != nil {
			d.now = now
		}
	}
}

// NewDevSender creates a sender rooted at dir. The directory is created on
// first send.
func NewDevSender(dir string, opts ...DevOption) *DevSender {
	d := &DevSender{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type devEnvelope struct {
	ID      string `json:"id"`
	SentAt  string `json:"sent_at"`
	SendTo  string `json:"send_to"`
	ReplyTo string `json:"reply_to,omitempty"`
	Subject string `json:"subject"`
	Tag     string `json:"tag,omitempty"`
	HTML    string `json:"html_file"`
}

// SendEmail writes <dir>/<YYYY-MM-DD>/<HHMMSS>_<tag>_<id>.{html,json}.
// The random id keeps fan-out sends in the same second from colliding.
func (d *DevSender) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}

	now := d.now().UTC()
	day := filepath.Join(d.dir, now.Format("2006-01-02"))
	if err := os.MkdirAll(day, 0o755); err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}

	id := uuid.NewString()
	label := params.Tag
	if label == "" {
		label = params.Subject
	}
	base := fmt.Sprintf("%s_%s_%s", now.Format("150405"), sanitizeFilename(label), id[:8])

	htmlName := base + ".html"
	if err := os.WriteFile(filepath.Join(day, htmlName), []byte(params.BodyHTML), 0o644); err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}

	meta, err := json.MarshalIndent(devEnvelope{
		ID:      id,
		SentAt:  now.Format(time.RFC3339),
		SendTo:  params.SendTo,
		ReplyTo: d.replyTo,
		Subject: params.Subject,
		Tag:     params.Tag,
		HTML:    htmlName,
	}, "", "  ")
	if err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}
	if err := os.WriteFile(filepath.Join(day, base+".json"), meta, 0o644); err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}
	return nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-z0-9\-_.]+`)

func sanitizeFilename(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "_")
	s = unsafeFilenameChars.ReplaceAllString(s, "")
	s = strings.Trim(s, "._")
	if len(s) > 60 {
		s = s[:60]
	}
	if s == "" {
		return "email"
	}
	return s
}
