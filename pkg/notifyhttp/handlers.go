package notifyhttp

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

const maxBodySize = 1 << 20

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("request body is empty")
		}
		return badRequest("malformed JSON: " + err.Error())
	}
	return nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest(name + " must be an integer")
	}
	return n, nil
}

func queryBool(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, badRequest(name + " must be a boolean")
	}
	return b, nil
}

type submitResponse struct {
	Notification *notifications.Notification    `json:"notification,omitempty"`
	Evaluation   notifications.Evaluation        `json:"evaluation"`
	Outcomes     []notifications.DeliveryOutcome `json:"outcomes,omitempty"`
}

func toSubmitResponse(res notifications.SubmitResult) submitResponse {
	return submitResponse{
		Notification: res.Notification,
		Evaluation:   res.Evaluation,
		Outcomes:     res.Outcomes,
	}
}

func (a *API) submitEvent(w http.ResponseWriter, r *http.Request) {
	var event notifications.Event
	if err := decode(r, &event); err != nil {
		a.respondError(w, r, err)
		return
	}
	res, err := a.engine.Submit(r.Context(), event)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respond(w, http.StatusAccepted, toSubmitResponse(res))
}

type batchRequest struct {
	UserIDs []string            `json:"user_ids"`
	Event   notifications.Event `json:"event"`
}

func (a *API) submitBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decode(r, &req); err != nil {
		a.respondError(w, r, err)
		return
	}
	if len(req.UserIDs) == 0 {
		a.respondError(w, r, badRequest("user_ids is required"))
		return
	}
	// The joined error repeats what each result carries.
	results, _ := a.engine.SubmitMany(r.Context(), req.UserIDs, req.Event)

	status := http.StatusAccepted
	out := make([]batchEntry, len(results))
	for i, res := range results {
		out[i] = batchEntry{UserID: res.UserID, Status: "accepted"}
		if res.Err == nil {
			sr := toSubmitResponse(res)
			out[i].Result = &sr
			continue
		}
		code, detail := classifyError(res.Err)
		if code >= http.StatusInternalServerError {
			a.log.LogAttrs(r.Context(), slog.LevelError, "batch submission failed",
				logger.UserID(res.UserID),
				logger.Error(res.Err),
			)
		}
		out[i].Status = "failed"
		out[i].Error = detail
		status = http.StatusMultiStatus
	}
	respond(w, status, out)
}

// batchEntry reports one user of a batch. Accepted entries are stored and
// must not be resubmitted.
type batchEntry struct {
	UserID string          `json:"user_id"`
	Status string          `json:"status"`
	Result *submitResponse `json:"result,omitempty"`
	Error  *ErrorDetail    `json:"error,omitempty"`
}

func (a *API) listNotifications(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page")
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	size, err := queryInt(r, "page_size")
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	unread, err := queryBool(r, "unread_only")
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	archived, err := queryBool(r, "include_archived")
	if err != nil {
		a.respondError(w, r, err)
		return
	}

	opts := notifications.ListOptions{
		Page:            page,
		PageSize:        size,
		UnreadOnly:      unread,
		Category:        r.URL.Query().Get("category"),
		IncludeArchived: archived,
	}.Normalize()

	items, total, err := a.engine.List(r.Context(), userFromContext(r.Context()), opts)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	if items == nil {
		items = []notifications.Notification{}
	}
	respondMeta(w, items, map[string]any{
		"page":      opts.Page,
		"page_size": opts.PageSize,
		"total":     total,
		"has_more":  opts.Page*opts.PageSize < total,
	})
}

func (a *API) unreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := a.engine.UnreadCount(r.Context(), userFromContext(r.Context()))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]int{"count": n})
}

func (a *API) getNotification(w http.ResponseWriter, r *http.Request) {
	n, err := a.engine.Get(r.Context(), userFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, n)
}

func (a *API) markRead(w http.ResponseWriter, r *http.Request) {
	n, err := a.engine.MarkRead(r.Context(), userFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, n)
}

func (a *API) archive(w http.ResponseWriter, r *http.Request) {
	n, err := a.engine.Archive(r.Context(), userFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, n)
}

func (a *API) markAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := a.engine.MarkAllRead(r.Context(), userFromContext(r.Context()), r.URL.Query().Get("category"))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]int{"updated": n})
}

func (a *API) deleteNotification(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.Delete(r.Context(), userFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		a.respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (a *API) listDeliveries(w http.ResponseWriter, r *http.Request) {
	if a.deliveries == nil {
		a.respondError(w, r, httpError{http.StatusNotImplemented, "not_implemented", "delivery log is disabled"})
		return
	}
	id := chi.URLParam(r, "id")
	// Ownership check before exposing delivery addresses.
	if _, err := a.engine.Get(r.Context(), userFromContext(r.Context()), id); err != nil {
		a.respondError(w, r, err)
		return
	}
	outcomes, err := a.deliveries.ListOutcomes(r.Context(), id)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	if outcomes == nil {
		outcomes = []notifications.DeliveryOutcome{}
	}
	respond(w, http.StatusOK, outcomes)
}

func (a *API) getPreferences(w http.ResponseWriter, r *http.Request) {
	p, err := a.engine.GetPreferences(r.Context(), userFromContext(r.Context()))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, p)
}

func (a *API) updatePreferences(w http.ResponseWriter, r *http.Request) {
	var update notifications.PreferencesUpdate
	if err := decode(r, &update); err != nil {
		a.respondError(w, r, err)
		return
	}
	p, err := a.engine.UpdatePreferences(r.Context(), userFromContext(r.Context()), update)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, p)
}

func (a *API) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := a.engine.ListSubscriptions(r.Context(), userFromContext(r.Context()))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	if subs == nil {
		subs = []notifications.PushSubscription{}
	}
	respond(w, http.StatusOK, subs)
}

func (a *API) subscribe(w http.ResponseWriter, r *http.Request) {
	var req notifications.SubscribeRequest
	if err := decode(r, &req); err != nil {
		a.respondError(w, r, err)
		return
	}
	sub, err := a.engine.SubscribePush(r.Context(), userFromContext(r.Context()), req)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, sub)
}

func (a *API) unsubscribe(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.UnsubscribePush(r.Context(), userFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		a.respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]bool{"unsubscribed": true})
}

func (a *API) previewDigest(w http.ResponseWriter, r *http.Request) {
	freq := notifications.Frequency(r.URL.Query().Get("frequency"))
	preview, err := a.engine.PreviewDigest(r.Context(), userFromContext(r.Context()), freq)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, preview)
}

func (a *API) serveWS(w http.ResponseWriter, r *http.Request) {
	if a.hub == nil {
		a.respondError(w, r, httpError{http.StatusNotImplemented, "not_implemented", "live push is disabled"})
		return
	}
	// On failure the upgrader has already answered the client.
	_ = a.hub.ServeWS(w, r, userFromContext(r.Context()))
}
