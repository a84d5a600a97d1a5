// Package notifications decides whether, when and where a user is notified,
// and keeps the user's notification history.
//
// # Architecture
//
// An Event submitted by the business layer flows through these parts:
//
//   - PreferenceStore: one Preferences record per user, created with defaults
//     on first access.
//   - Evaluator: a pure function of (event, preferences, time) that returns
//     an Evaluation: instant, digest or drop, plus the channels to deliver
//     now and the channels to hold.
//   - Storage: the durable notification history and its read/archive
//     lifecycle.
//   - DigestAggregator: per (user, frequency) buckets of held deliveries,
//     closed when their window ends.
//   - Route and Dispatcher: expansion into one DeliveryRequest per channel
//     and address, then concurrent delivery with retries through a
//     ChannelSender.
//
// Engine wires them together and exposes the client operations.
//
// # Basic Usage
//
//	store := notifications.NewMemoryStorage()
//	prefs := notifications.NewMemoryPreferenceStore()
//	subs := notifications.NewMemorySubscriptionStore()
//	dispatcher := notifications.NewDispatcher(sender, notifications.DefaultDispatcherConfig(),
//	    notifications.WithSubscriptionStore(subs),
//	)
//	engine := notifications.NewEngine(store, prefs, subs, dispatcher)
//
//	res, err := engine.Submit(ctx, notifications.Event{
//	    UserID:   "user123",
//	    Title:    "Invoice paid",
//	    Category: "billing",
//	    Priority: notifications.PriorityHigh,
//	})
//
// A DigestScheduler calls Engine.FlushDigests on a cron schedule so held
// push and email deliveries go out as one summary per window.
//
// # Delivery Semantics
//
// Submission succeeds once the notification is stored; delivery failures are
// retried and recorded in a DeliveryLog but never returned to the producer.
// Senders signal failures that must not be retried by wrapping
// ErrPermanentDelivery. A push subscription is deactivated only for
// ErrSubscriptionExpired.
package notifications
