// Package logger builds the *slog.Logger every notifyd component logs with.
//
// New takes functional options: a format (JSON or text), a level, static
// attributes and ContextExtractor callbacks. Extractors run on every record,
// so a request id stored by HTTP middleware also shows up on delivery logs
// written later from a detached context.
//
//	log := logger.New(
//	    logger.WithEnvironment(os.Getenv("APP_ENV"), "notifyd"),
//	    logger.WithContextExtractors(requestid.LoggerExtractor()),
//	)
//	logger.SetAsDefault(log)
//
// WithEnvironment selects a preset. Development logs text at debug level.
// Staging and production log JSON at info level. Each preset adds "service"
// and "env" attributes.
//
// The helpers in attr.go keep attribute keys identical across packages:
// UserID, NotificationID, SubscriptionID, Channel, Category, Decision,
// Status, RetryCount, Duration and so on. Error and the identifier helpers
// return an empty attribute for nil or empty input, so they can be passed
// unconditionally:
//
//	log.LogAttrs(ctx, slog.LevelWarn, "delivery finished",
//	    logger.NotificationID(n.ID),
//	    logger.Channel(notifications.ChannelPush),
//	    logger.Error(err),
//	)
package logger
