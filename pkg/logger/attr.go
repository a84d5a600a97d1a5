package logger

import (
	"log/slog"
	"time"
)

// optional returns an empty Attr for an empty value, so callers can pass
// identifiers unconditionally.
func optional(key, value string) slog.Attr {
	if value == "" {
		return slog.Attr{}
	}
	return slog.String(key, value)
}

// Error records err under "error". A nil error yields an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

func UserID(id string) slog.Attr { return optional("user_id", id) }
func NotificationID(id string) slog.Attr { return optional("notification_id", id) }
func SubscriptionID(id string) slog.Attr { return optional("subscription_id", id) }
func RequestID(id string) slog.Attr { return optional("request_id", id) }

// MessageID records a provider-assigned message id, such as an FCM name.
func MessageID(id string) slog.Attr { return optional("message_id", id) }

// Channel, Decision and Status accept the engine's string enums.
func Channel(ch any) slog.Attr { return slog.Any("channel", ch) }
func Decision(d any) slog.Attr { return slog.Any("decision", d) }
func Status(s any) slog.Attr { return slog.Any("status", s) }
func Category(c string) slog.Attr { return slog.String("category", c) }

func RetryCount(n int) slog.Attr { return slog.Int("retry_count", n) }

func Duration(d time.Duration) slog.Attr { return slog.Duration("duration", d) }

// Component names a subsystem, for example a shutdown drain.
func Component(name string) slog.Attr { return slog.String("component", name) }
