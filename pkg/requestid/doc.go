// Package requestid attaches a correlation id to every HTTP request served by
// notifyd.
//
// Middleware reuses a valid client supplied "X-Request-ID" header or
// generates a UUID, stores it in the request context and echoes it in the
// response header. FromContext reads it back, and LoggerExtractor plugs it
// into the logger so every record written while handling the request
// carries a request_id attribute:
//
//	log := logger.New(logger.WithContextExtractors(requestid.LoggerExtractor()))
//	router.Use(requestid.Middleware)
//
// Invalid or empty ids supplied by clients are replaced silently.
package requestid
