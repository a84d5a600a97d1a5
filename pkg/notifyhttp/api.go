package notifyhttp

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/requestid"
)

// DefaultUserHeader carries the authenticated user id, set by the gateway
// in front of the service.
const DefaultUserHeader = "X-User-ID"

// Engine is the part of notifications.Engine the API serves.
type Engine interface {
	Submit(ctx context.Context, event notifications.Event) (notifications.SubmitResult, error)
	SubmitMany(ctx context.Context, userIDs []string, template notifications.Event) ([]notifications.SubmitResult, error)
	List(ctx context.Context, userID string, opts notifications.ListOptions) ([]notifications.Notification, int, error)
	Get(ctx context.Context, userID, id string) (notifications.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, id string) (notifications.Notification, error)
	Archive(ctx context.Context, userID, id string) (notifications.Notification, error)
	MarkAllRead(ctx context.Context, userID, category string) (int, error)
	Delete(ctx context.Context, userID, id string) error
	GetPreferences(ctx context.Context, userID string) (notifications.Preferences, error)
	UpdatePreferences(ctx context.Context, userID string, update notifications.PreferencesUpdate) (notifications.Preferences, error)
	SubscribePush(ctx context.Context, userID string, req notifications.SubscribeRequest) (notifications.PushSubscription, error)
	UnsubscribePush(ctx context.Context, userID, subscriptionID string) error
	ListSubscriptions(ctx context.Context, userID string) ([]notifications.PushSubscription, error)
	PreviewDigest(ctx context.Context, userID string, freq notifications.Frequency) (notifications.DigestPreview, error)
}

var _ Engine = (*notifications.Engine)(nil)

// LiveHub upgrades a request into a live push session.
type LiveHub interface {
	ServeWS(w http.ResponseWriter, r *http.Request, userID string) error
}

// API serves the notification center over HTTP.
type API struct {
	engine      Engine
	hub         LiveHub
	deliveries  notifications.DeliveryLog
	health      http.Handler
	userHeader  string
	ingestToken string
	log         *slog.Logger
}

// Option configures an API.
type Option func(*API)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) {
		if l != nil {
			a.log = l
		}
	}
}

// WithLiveHub enables GET /v1/ws.
func WithLiveHub(h LiveHub) Option {
	return func(a *API) { a.hub = h }
}

// WithDeliveryLog enables GET /v1/notifications/{id}/deliveries.
func WithDeliveryLog(l notifications.DeliveryLog) Option {
	return func(a *API) { a.deliveries = l }
}

// WithHealthHandler mounts h at /healthz.
func WithHealthHandler(h http.Handler) Option {
	return func(a *API) { a.health = h }
}

// WithUserHeader changes the header the user id is read from.
func WithUserHeader(name string) Option {
	return func(a *API) {
		if name != "" {
			a.userHeader = name
		}
	}
}

// WithIngestToken requires "Authorization: Bearer <token>" on event
// ingestion endpoints. An empty token leaves them open.
func WithIngestToken(token string) Option {
	return func(a *API) { a.ingestToken = token }
}

// New creates the API.
func New(engine Engine, opts ...Option) *API {
	a := &API{
		engine:     engine,
		userHeader: DefaultUserHeader,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Routes returns the router with every endpoint mounted.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(middleware.RealIP)
	r.Use(a.recoverer)
	r.Use(a.requestLogger)

	if a.health != nil {
		r.Method(http.MethodGet, "/healthz", a.health)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(a.requireIngestToken)
			r.Post("/events", a.submitEvent)
			r.Post("/events/batch", a.submitBatch)
		})

		r.Group(func(r chi.Router) {
			r.Use(a.requireUser)

			r.Get("/notifications", a.listNotifications)
			r.Get("/notifications/unread-count", a.unreadCount)
			r.Post("/notifications/read-all", a.markAllRead)
			r.Get("/notifications/{id}", a.getNotification)
			r.Post("/notifications/{id}/read", a.markRead)
			r.Post("/notifications/{id}/archive", a.archive)
			r.Delete("/notifications/{id}", a.deleteNotification)
			r.Get("/notifications/{id}/deliveries", a.listDeliveries)

			r.Get("/preferences", a.getPreferences)
			r.Patch("/preferences", a.updatePreferences)

			r.Get("/push-subscriptions", a.listSubscriptions)
			r.Post("/push-subscriptions", a.subscribe)
			r.Delete("/push-subscriptions/{id}", a.unsubscribe)

			r.Get("/digest/preview", a.previewDigest)

			r.Get("/ws", a.serveWS)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, Response{Error: &ErrorDetail{Code: "not_found", Message: "route not found"}})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, Response{Error: &ErrorDetail{Code: "method_not_allowed", Message: "method not allowed"}})
	})
	return r
}

type userKey struct{}

func userFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}

func (a *API) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(a.userHeader))
		if userID == "" {
			a.respondError(w, r, errMissingUser)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, userID)))
	})
}

func (a *API) requireIngestToken(next http.Handler) http.Handler {
	if a.ingestToken == "" {
		return next
	}
	want := []byte("Bearer " + a.ingestToken)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get("Authorization"))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			a.respondError(w, r, errBadToken)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		a.log.LogAttrs(r.Context(), slog.LevelDebug, "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Status(ww.Status()),
			logger.Duration(time.Since(start)),
			slog.String("remote_addr", r.RemoteAddr),
		)
	})
}

func (a *API) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				a.log.LogAttrs(r.Context(), slog.LevelError, "panic in handler",
					slog.Any("panic", rec),
					slog.String("path", r.URL.Path),
				)
				writeJSON(w, http.StatusInternalServerError, Response{Error: &ErrorDetail{Code: "internal_error", Message: "internal server error"}})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
