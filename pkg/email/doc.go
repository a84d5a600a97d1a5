// Package email sends notification and digest emails through Postmark, an
// SMTP relay or, in development, a directory of HTML files.
//
// # Providers
//
// Every provider implements EmailSender:
//   - NewPostmarkClient sends through Postmark's transactional API
//   - NewSMTPSender relays through any SMTP server using gomail
//   - NewDevSender writes timestamped HTML and JSON files to disk
//
// New picks one from Config.Provider ("postmark", "smtp" or "dev").
//
// # Notifications
//
// NotificationSender adapts an EmailSender to notifications.EmailSender. It
// renders single notifications and digests with the templ components in the
// templates subpackage and maps provider errors onto the delivery
// classification the dispatcher retries on:
//
//	sender, err := email.New(cfg)
//	if err != nil {
//	    return err
//	}
//	senders := notifications.Senders{
//	    Email: email.NewNotificationSender(sender, email.WithAppName("Acme")),
//	}
//
// Invalid parameters and provider rejections (Postmark codes such as 406
// "inactive recipient", SMTP 5xx replies) become
// notifications.ErrPermanentDelivery. Everything else is
// notifications.ErrTransientDelivery.
//
// # Configuration
//
// Config is loaded from the environment (EMAIL_PROVIDER, POSTMARK_*, SMTP_*,
// EMAIL_DEV_DIR, SENDER_EMAIL, SUPPORT_EMAIL). Only the credentials of the
// selected provider are checked.
//
// # Error Handling
//
//   - ErrInvalidConfig: configuration validation failed
//   - ErrInvalidParams: email parameters validation failed
//   - ErrRejected: the provider refused the message for good
//   - ErrFailedToSendEmail: email delivery failed
package email
