package notifyhttp

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
	Error   *ErrorDetail   `json:"error,omitempty"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Details map[string][]string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body Response) {
	body.Code = status
	if body.Message == "" {
		body.Message = http.StatusText(status)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respond(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Response{Data: data})
}

func respondMeta(w http.ResponseWriter, data any, meta map[string]any) {
	writeJSON(w, http.StatusOK, Response{Data: data, Meta: meta})
}

// respondError maps domain errors onto HTTP statuses. Unknown errors are
// logged and reported as 500 without their text.
func (a *API) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := classifyError(err)
	if status >= http.StatusInternalServerError {
		a.log.LogAttrs(r.Context(), slog.LevelError, "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Error(err),
		)
	}
	writeJSON(w, status, Response{Error: detail})
}

func classifyError(err error) (int, *ErrorDetail) {
	var herr httpError
	switch {
	case errors.As(err, &herr):
		return herr.status, &ErrorDetail{Code: herr.code, Message: herr.message}
	case errors.Is(err, notifications.ErrNotFound):
		return http.StatusNotFound, &ErrorDetail{Code: "not_found", Message: err.Error()}
	case errors.Is(err, notifications.ErrInvalidPreferences):
		detail := &ErrorDetail{Code: "validation_error", Message: "invalid preferences"}
		if cerrs := notifications.ConfigurationErrors(err); len(cerrs) > 0 {
			detail.Details = make(map[string][]string, len(cerrs))
			for _, ce := range cerrs {
				detail.Details[ce.Field] = append(detail.Details[ce.Field], ce.Reason)
			}
		}
		return http.StatusUnprocessableEntity, detail
	case errors.Is(err, notifications.ErrInvalidEvent):
		return http.StatusUnprocessableEntity, &ErrorDetail{Code: "invalid_event", Message: err.Error()}
	}
	return http.StatusInternalServerError, &ErrorDetail{Code: "internal_error", Message: "internal server error"}
}

// httpError is a request-level failure with a fixed status.
type httpError struct {
	status  int
	code    string
	message string
}

func (e httpError) Error() string { return e.message }

var (
	errMissingUser = httpError{http.StatusUnauthorized, "unauthorized", "missing user id"}
	errBadToken    = httpError{http.StatusUnauthorized, "unauthorized", "invalid ingestion token"}
)

func badRequest(msg string) error {
	return httpError{http.StatusBadRequest, "bad_request", msg}
}
