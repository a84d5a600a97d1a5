package logger_test

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

func TestError(t *testing.T) {
	err := errors.New("smtp: 451 try again later")
	attr := logger.Error(err)
	require.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())

	assert.True(t, logger.Error(nil).Equal(slog.Attr{}))
}

func TestIdentifierAttrs(t *testing.T) {
	tests := []struct {
		name string
		fn   func(string) slog.Attr
		key  string
	}{
		{"user", logger.UserID, "user_id"},
		{"notification", logger.NotificationID, "notification_id"},
		{"subscription", logger.SubscriptionID, "subscription_id"},
		{"request", logger.RequestID, "request_id"},
		{"message", logger.MessageID, "message_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attr := tt.fn("id-1")
			require.Equal(t, tt.key, attr.Key)
			assert.Equal(t, "id-1", attr.Value.String())
			assert.True(t, tt.fn("").Equal(slog.Attr{}), "empty id is dropped")
		})
	}
}

func TestDeliveryAttrs(t *testing.T) {
	tests := []struct {
		name string
		attr slog.Attr
		key  string
		want any
	}{
		{"channel", logger.Channel("push"), "channel", "push"},
		{"category", logger.Category("billing"), "category", "billing"},
		{"decision", logger.Decision("digest"), "decision", "digest"},
		{"status", logger.Status("delivered"), "status", "delivered"},
		{"retry count", logger.RetryCount(2), "retry_count", int64(2)},
		{"duration", logger.Duration(1500 * time.Millisecond), "duration", 1500 * time.Millisecond},
		{"component", logger.Component("engine"), "component", "engine"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.key, tt.attr.Key)
			assert.Equal(t, tt.want, tt.attr.Value.Any())
		})
	}
}
