// Package notifyhttp exposes the notification engine over a JSON HTTP API.
//
// Event ingestion lives under POST /v1/events and /v1/events/batch and may be
// guarded with a bearer token (WithIngestToken). The user facing endpoints
// read the caller from the X-User-ID header, which an upstream gateway is
// expected to set after authentication:
//
//	GET    /v1/notifications                  paginated list
//	GET    /v1/notifications/unread-count
//	POST   /v1/notifications/read-all         optional ?category=
//	GET    /v1/notifications/{id}
//	POST   /v1/notifications/{id}/read
//	POST   /v1/notifications/{id}/archive
//	DELETE /v1/notifications/{id}
//	GET    /v1/notifications/{id}/deliveries
//	GET    /v1/preferences
//	PATCH  /v1/preferences
//	GET    /v1/push-subscriptions
//	POST   /v1/push-subscriptions
//	DELETE /v1/push-subscriptions/{id}
//	GET    /v1/digest/preview                 optional ?frequency=
//	GET    /v1/ws                             live push session
//
// A batch answers with one entry per user id, in request order, each marked
// accepted or failed. The status is 202 when every entry was accepted and
// 207 otherwise; accepted entries are stored and must not be resubmitted.
//
// Every response uses the Response envelope. Failures carry an ErrorDetail
// whose code is stable: not_found, validation_error, invalid_event,
// bad_request, unauthorized, not_implemented or internal_error.
package notifyhttp
