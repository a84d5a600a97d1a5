package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// Engine ties evaluation, storage, digests and delivery together. It is the
// single ingestion point for business events and the backend of the client
// API.
type Engine struct {
	store      Storage
	prefs      PreferenceStore
	subs       SubscriptionStore
	evaluator  *Evaluator
	digests    *DigestAggregator
	dispatcher *Dispatcher
	sessions   SessionDirectory
	log        *slog.Logger
	now        func() time.Time
	newID      func() string
	async      bool
	inflight   sync.WaitGroup
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineLogger sets the engine logger.
func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithCatalog sets the category catalog used by suppression evaluation.
func WithCatalog(c *Catalog) EngineOption {
	return func(e *Engine) { e.evaluator = NewEvaluator(c) }
}

// WithSessions sets the directory of live sessions for in-app delivery.
func WithSessions(s SessionDirectory) EngineOption {
	return func(e *Engine) { e.sessions = s }
}

// WithDigestAggregator replaces the default aggregator.
func WithDigestAggregator(a *DigestAggregator) EngineOption {
	return func(e *Engine) {
		if a != nil {
			e.digests = a
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator replaces the uuid generator for notification and
// subscription ids.
func WithIDGenerator(fn func() string) EngineOption {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// WithAsyncDelivery makes Submit return once the notification is stored,
// leaving immediate delivery to a background goroutine. Close waits for it.
func WithAsyncDelivery(async bool) EngineOption {
	return func(e *Engine) { e.async = async }
}

// NewEngine creates an engine. dispatcher may be nil, in which case nothing
// is delivered and notifications are only stored.
func NewEngine(store Storage, prefs PreferenceStore, subs SubscriptionStore, dispatcher *Dispatcher, opts ...EngineOption) *Engine {
	e := &Engine{
		store:      store,
		prefs:      prefs,
		subs:       subs,
		evaluator:  NewEvaluator(nil),
		digests:    NewDigestAggregator(),
		dispatcher: dispatcher,
		log:        slog.Default(),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SubmitResult describes what happened to a submitted event.
type SubmitResult struct {
	// Notification is nil when the event was dropped.
	Notification *Notification
	Evaluation   Evaluation
	// Outcomes holds immediate delivery results; empty in async mode.
	Outcomes []DeliveryOutcome
	// UserID and Err are filled by SubmitMany. A non-nil Err means nothing
	// was stored for that user.
	UserID string
	Err    error
}

// Submit evaluates an event against the user's preferences, stores the
// notification unless it is dropped, holds deferred channels for the digest
// and delivers the immediate ones. Delivery failures are recorded, never
// returned.
func (e *Engine) Submit(ctx context.Context, event Event) (SubmitResult, error) {
	if err := event.Validate(); err != nil {
		return SubmitResult{}, err
	}
	event = event.withDefaults()

	prefs, err := e.prefs.Get(ctx, event.UserID)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("failed to load preferences: %w", err)
	}

	now := e.now()
	eval := e.evaluator.Evaluate(event, prefs, now)
	res := SubmitResult{Evaluation: eval}

	if !eval.CreatesRecord() {
		e.log.LogAttrs(ctx, slog.LevelDebug, "notification dropped",
			logger.UserID(event.UserID),
			logger.Category(event.Category),
			logger.Decision(eval.Decision),
			slog.String("reason", eval.Reason),
		)
		return res, nil
	}

	n := event.toNotification(e.newID(), now)
	if err := e.store.Create(ctx, n); err != nil {
		return SubmitResult{}, fmt.Errorf("failed to store notification: %w", err)
	}
	res.Notification = &n

	e.log.LogAttrs(ctx, slog.LevelInfo, "notification created",
		logger.UserID(n.UserID),
		logger.NotificationID(n.ID),
		logger.Category(n.Category),
		logger.Decision(eval.Decision),
		slog.String("reason", eval.Reason),
	)

	if !eval.Deferred.Empty() {
		e.digests.Hold(prefs, eval.Frequency, n, eval.Deferred, now)
	}
	if eval.Immediate.Empty() || e.dispatcher == nil {
		return res, nil
	}

	reqs := Route(n, eval.Immediate, e.recipient(ctx, n.UserID, prefs.Email, eval.Immediate))
	if e.async {
		e.inflight.Add(1)
		go func() {
			defer e.inflight.Done()
			e.dispatcher.Send(context.WithoutCancel(ctx), reqs)
		}()
		return res, nil
	}
	res.Outcomes = e.dispatcher.Send(ctx, reqs)
	return res, nil
}

// SubmitMany submits template once per user id. Results are index-aligned
// with userIDs; a failure for one user does not stop the others and is
// reported in that result's Err as well as in the joined error.
func (e *Engine) SubmitMany(ctx context.Context, userIDs []string, template Event) ([]SubmitResult, error) {
	results := make([]SubmitResult, len(userIDs))
	var errs []error
	for i, userID := range userIDs {
		ev := template
		ev.UserID = userID
		res, err := e.Submit(ctx, ev)
		if err != nil {
			err = fmt.Errorf("user %q: %w", userID, err)
			errs = append(errs, err)
		}
		res.UserID = userID
		res.Err = err
		results[i] = res
	}
	return results, errors.Join(errs...)
}

// recipient resolves the addresses for the requested channels. Lookup
// failures degrade to fewer requests instead of failing the submission.
func (e *Engine) recipient(ctx context.Context, userID, email string, channels ChannelSet) Recipient {
	rcpt := Recipient{UserID: userID, Email: email}
	if channels.Push && e.subs != nil {
		subs, err := e.subs.ListActive(ctx, userID)
		if err != nil {
			e.log.LogAttrs(ctx, slog.LevelError, "failed to load push subscriptions",
				logger.UserID(userID),
				logger.Error(err),
			)
		}
		rcpt.Subscriptions = subs
		if err == nil && len(subs) == 0 {
			e.log.LogAttrs(ctx, slog.LevelDebug, "push enabled but no active subscription", logger.UserID(userID))
		}
	}
	if channels.Email && email == "" {
		e.log.LogAttrs(ctx, slog.LevelDebug, "email enabled but no address on file", logger.UserID(userID))
	}
	if channels.InApp && e.sessions != nil {
		rcpt.Sessions = e.sessions.Sessions(userID)
	}
	return rcpt
}

// List returns one page of the user's notifications and the total count.
func (e *Engine) List(ctx context.Context, userID string, opts ListOptions) ([]Notification, int, error) {
	return e.store.List(ctx, userID, opts.Normalize())
}

// Get returns a single notification owned by userID.
func (e *Engine) Get(ctx context.Context, userID, id string) (Notification, error) {
	return e.store.Get(ctx, userID, id)
}

// UnreadCount returns the number of unread, non-archived notifications.
func (e *Engine) UnreadCount(ctx context.Context, userID string) (int, error) {
	return e.store.CountUnread(ctx, userID)
}

// MarkRead marks a notification as read. Marking a read or archived
// notification is a no-op.
func (e *Engine) MarkRead(ctx context.Context, userID, id string) (Notification, error) {
	return e.transition(ctx, userID, id, ActionRead)
}

// Archive archives a notification. Archiving twice is a no-op.
func (e *Engine) Archive(ctx context.Context, userID, id string) (Notification, error) {
	return e.transition(ctx, userID, id, ActionArchive)
}

func (e *Engine) transition(ctx context.Context, userID, id string, action Action) (Notification, error) {
	now := e.now()
	return e.store.Update(ctx, userID, id, func(n *Notification) bool {
		return n.Apply(action, now)
	})
}

// MarkAllRead marks every unread, non-archived notification as read,
// limited to category when it is non-empty.
func (e *Engine) MarkAllRead(ctx context.Context, userID, category string) (int, error) {
	return e.store.MarkAllRead(ctx, userID, category, e.now())
}

// Delete removes a notification in any state.
func (e *Engine) Delete(ctx context.Context, userID, id string) error {
	return e.store.Delete(ctx, userID, id)
}

// GetPreferences returns the user's preferences, creating defaults on first
// access.
func (e *Engine) GetPreferences(ctx context.Context, userID string) (Preferences, error) {
	return e.prefs.Get(ctx, userID)
}

// UpdatePreferences merges a partial update into the user's preferences.
// Invalid values are rejected with errors matching ErrInvalidPreferences and
// nothing is stored.
func (e *Engine) UpdatePreferences(ctx context.Context, userID string, update PreferencesUpdate) (Preferences, error) {
	p, err := e.prefs.Update(ctx, userID, func(current Preferences) (Preferences, error) {
		current = current.Normalized()
		current.UserID = userID
		next, err := update.Apply(current)
		if err != nil {
			return Preferences{}, err
		}
		if err := next.Validate(); err != nil {
			return Preferences{}, err
		}
		return next, nil
	})
	if err != nil {
		return Preferences{}, err
	}
	e.log.LogAttrs(ctx, slog.LevelInfo, "preferences updated", logger.UserID(userID))
	return p, nil
}

// SubscribePush registers a push endpoint. Registering a known endpoint
// again reactivates it.
func (e *Engine) SubscribePush(ctx context.Context, userID string, req SubscribeRequest) (PushSubscription, error) {
	if userID == "" {
		return PushSubscription{}, &ConfigurationError{Field: "user_id", Reason: "is required"}
	}
	if err := req.Validate(); err != nil {
		return PushSubscription{}, err
	}
	sub, err := e.subs.Subscribe(ctx, PushSubscription{
		ID:        e.newID(),
		UserID:    userID,
		Endpoint:  req.Endpoint,
		Keys:      req.Keys,
		Provider:  req.provider(),
		Device:    req.Device,
		IsActive:  true,
		CreatedAt: e.now(),
	})
	if err != nil {
		return PushSubscription{}, fmt.Errorf("failed to store push subscription: %w", err)
	}
	e.log.LogAttrs(ctx, slog.LevelInfo, "push subscription registered",
		logger.UserID(userID),
		logger.SubscriptionID(sub.ID),
		slog.String("provider", string(sub.Provider)),
	)
	return sub, nil
}

// UnsubscribePush deactivates a subscription owned by userID.
func (e *Engine) UnsubscribePush(ctx context.Context, userID, subscriptionID string) error {
	sub, err := e.subs.Get(ctx, subscriptionID)
	if err != nil {
		return err
	}
	if sub.UserID != userID {
		return ErrSubscriptionNotFound
	}
	return e.subs.Deactivate(ctx, subscriptionID, e.now())
}

// ListSubscriptions returns every push subscription of a user.
func (e *Engine) ListSubscriptions(ctx context.Context, userID string) ([]PushSubscription, error) {
	return e.subs.List(ctx, userID)
}

// PreviewDigest summarizes the user's open digest window without closing it.
// An empty frequency uses the user's configured one. Without held
// notifications the preview is empty but still carries the window bounds.
func (e *Engine) PreviewDigest(ctx context.Context, userID string, freq Frequency) (DigestPreview, error) {
	prefs, err := e.prefs.Get(ctx, userID)
	if err != nil {
		return DigestPreview{}, fmt.Errorf("failed to load preferences: %w", err)
	}
	prefs = prefs.Normalized()
	if freq == "" {
		freq = prefs.EmailDigestFrequency
	}
	if !freq.Valid() {
		return DigestPreview{}, &ConfigurationError{Field: "frequency", Reason: "must be one of instant hourly daily weekly"}
	}

	if preview, ok := e.digests.Preview(userID, freq, 0); ok {
		return preview, nil
	}
	now := e.now()
	return DigestPreview{
		UserID:         userID,
		Frequency:      freq,
		PeriodStart:    now,
		PeriodEnd:      WindowEnd(freq, now, prefs),
		CategoryCounts: map[string]int{},
		Highlights:     []Notification{},
	}, nil
}

// FlushDigests closes every digest window that ended at or before now and
// delivers the summaries. It returns the digests that were closed.
func (e *Engine) FlushDigests(ctx context.Context, now time.Time) []Digest {
	digests := e.digests.CloseExpiredWindows(now)
	if len(digests) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	for _, d := range digests {
		e.log.LogAttrs(ctx, slog.LevelInfo, "digest window closed",
			logger.UserID(d.Preview.UserID),
			slog.String("frequency", string(d.Preview.Frequency)),
			slog.Int("total", d.Preview.Total),
		)
		if e.dispatcher == nil {
			continue
		}
		channels := d.Channels.Without(ChannelInApp)
		reqs := RouteDigest(d, e.recipient(ctx, d.Preview.UserID, d.Email, channels))
		if len(reqs) == 0 {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.dispatcher.Send(ctx, reqs)
		}()
	}
	wg.Wait()
	return digests
}

// PendingDigests returns the number of open digest windows.
func (e *Engine) PendingDigests() int {
	return e.digests.Pending()
}

// Close waits for background deliveries started by Submit in async mode.
func (e *Engine) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
