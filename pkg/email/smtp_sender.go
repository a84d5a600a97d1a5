package email

import (
	"context"
	"errors"
	"fmt"
	"net/textproto"

	"gopkg.in/gomail.v2"
)

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type smtpSender struct {
	dialer dialer
	config Config
}

// NewSMTPSender creates an EmailSender that relays through an SMTP server.
func NewSMTPSender(cfg Config) (EmailSender, error) {
	if cfg.SMTPHost == "" {
		return nil, fmt.Errorf("%w: SMTPHost is required", ErrInvalidConfig)
	}
	if cfg.SMTPPort <= 0 {
		return nil, fmt.Errorf("%w: SMTPPort must be positive", ErrInvalidConfig)
	}
	if !emailRegex.MatchString(cfg.SenderEmail) {
		return nil, fmt.Errorf("%w: SenderEmail must be a valid email address", ErrInvalidConfig)
	}
	return &smtpSender{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
		config: cfg,
	}, nil
}

// SendEmail sends one message per call. A 5xx reply from the server is
// reported as ErrRejected.
func (s *smtpSender) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SenderEmail)
	m.SetHeader("To", params.SendTo)
	m.SetHeader("Subject", params.Subject)
	if s.config.SupportEmail != "" {
		m.SetHeader("Reply-To", s.config.SupportEmail)
	}
	if params.Tag != "" {
		m.SetHeader("X-Tag", params.Tag)
	}
	m.SetBody("text/html", params.BodyHTML)

	if err := s.dialer.DialAndSend(m); err != nil {
		var perr *textproto.Error
		if errors.As(err, &perr) && perr.Code >= 500 {
			return errors.Join(ErrFailedToSendEmail, ErrRejected, err)
		}
		return errors.Join(ErrFailedToSendEmail, err)
	}
	return nil
}
