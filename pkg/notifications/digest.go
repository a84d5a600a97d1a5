package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// DefaultHighlights is the number of notifications a digest summary shows.
const DefaultHighlights = 5

// DigestPreview summarizes held notifications for one window.
type DigestPreview struct {
	ID             string         `json:"id,omitempty"`
	UserID         string         `json:"user_id"`
	Frequency      Frequency      `json:"frequency"`
	PeriodStart    time.Time      `json:"period_start"`
	PeriodEnd      time.Time      `json:"period_end"`
	Total          int            `json:"total"`
	CategoryCounts map[string]int `json:"category_counts"`
	Highlights     []Notification `json:"highlights"`
}

// Digest is a closed window ready to be delivered.
type Digest struct {
	Preview       DigestPreview
	Notifications []Notification
	// Channels is the union of channels held by the notifications in the window.
	Channels ChannelSet
	// Email is the address captured from the most recent hold.
	Email string
}

type digestBucket struct {
	start    time.Time
	end      time.Time
	email    string
	items    []Notification
	counts   map[string]int
	channels ChannelSet
}

// digestSlot owns one (user, frequency) bucket. A slot marked dead has been
// closed and removed from the map; holders that raced with the close retry
// on a fresh slot.
type digestSlot struct {
	mu     sync.Mutex
	dead   bool
	bucket *digestBucket
}

// DigestAggregator buffers held deliveries per (user, frequency) until their
// window closes. Locks are per slot; there is no aggregator-wide lock.
type DigestAggregator struct {
	slots      sync.Map // slotKey -> *digestSlot
	highlights int
	log        *slog.Logger
}

// DigestOption configures a DigestAggregator.
type DigestOption func(*DigestAggregator)

// WithDigestLogger sets the aggregator logger.
func WithDigestLogger(l *slog.Logger) DigestOption {
	return func(a *DigestAggregator) {
		if l != nil {
			a.log = l
		}
	}
}

// WithHighlights sets how many notifications a digest summary includes.
func WithHighlights(n int) DigestOption {
	return func(a *DigestAggregator) {
		if n > 0 {
			a.highlights = n
		}
	}
}

// NewDigestAggregator creates an empty aggregator.
func NewDigestAggregator(opts ...DigestOption) *DigestAggregator {
	a := &DigestAggregator{highlights: DefaultHighlights, log: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type slotKey struct {
	userID string
	freq   Frequency
}

// Hold appends n to the bucket for (prefs.UserID, freq), opening a window at
// now if none is open. deferred lists the channels held for n.
func (a *DigestAggregator) Hold(prefs Preferences, freq Frequency, n Notification, deferred ChannelSet, now time.Time) {
	prefs = prefs.Normalized()
	key := slotKey{userID: n.UserID, freq: freq}

	for {
		v, _ := a.slots.LoadOrStore(key, &digestSlot{})
		slot := v.(*digestSlot)

		slot.mu.Lock()
		if slot.dead {
			slot.mu.Unlock()
			continue
		}
		if slot.bucket == nil {
			slot.bucket = &digestBucket{
				start:  now,
				end:    WindowEnd(freq, now, prefs),
				counts: make(map[string]int),
			}
		}
		b := slot.bucket
		b.items = append(b.items, n.Clone())
		b.counts[n.Category]++
		b.channels = b.channels.Union(deferred)
		if prefs.Email != "" {
			b.email = prefs.Email
		}
		slot.mu.Unlock()

		a.log.LogAttrs(context.Background(), slog.LevelDebug, "notification held for digest",
			logger.UserID(n.UserID),
			logger.NotificationID(n.ID),
			slog.String("frequency", string(freq)),
			slog.Time("period_end", b.end),
		)
		return
	}
}

// CloseExpiredWindows closes every window whose end is not after now and
// returns one digest per closed non-empty window. A window is closed exactly
// once; a concurrent Hold lands in a fresh window.
func (a *DigestAggregator) CloseExpiredWindows(now time.Time) []Digest {
	var out []Digest
	a.slots.Range(func(k, v any) bool {
		if d, ok := a.closeSlot(k.(slotKey), v.(*digestSlot), now, false); ok {
			out = append(out, d)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Preview.PeriodEnd.Equal(out[j].Preview.PeriodEnd) {
			return out[i].Preview.PeriodEnd.Before(out[j].Preview.PeriodEnd)
		}
		return out[i].Preview.UserID < out[j].Preview.UserID
	})
	return out
}

// CloseWindow closes the (userID, freq) window regardless of its end time.
func (a *DigestAggregator) CloseWindow(userID string, freq Frequency, now time.Time) (Digest, bool) {
	key := slotKey{userID: userID, freq: freq}
	v, ok := a.slots.Load(key)
	if !ok {
		return Digest{}, false
	}
	return a.closeSlot(key, v.(*digestSlot), now, true)
}

func (a *DigestAggregator) closeSlot(key slotKey, slot *digestSlot, now time.Time, force bool) (Digest, bool) {
	slot.mu.Lock()
	if slot.dead || slot.bucket == nil || (!force && now.Before(slot.bucket.end)) {
		slot.mu.Unlock()
		return Digest{}, false
	}
	b := slot.bucket
	slot.bucket = nil
	slot.dead = true
	// Unmapped before the lock is released so a Hold that sees dead always
	// finds a fresh slot on retry.
	a.slots.CompareAndDelete(key, slot)
	slot.mu.Unlock()

	if len(b.items) == 0 {
		return Digest{}, false
	}
	preview := a.summarize(key, b, a.highlights)
	preview.ID = uuid.NewString()
	return Digest{
		Preview:       preview,
		Notifications: b.items,
		Channels:      b.channels,
		Email:         b.email,
	}, true
}

// Preview summarizes the open (userID, freq) window without closing it.
// limit <= 0 uses the aggregator default.
func (a *DigestAggregator) Preview(userID string, freq Frequency, limit int) (DigestPreview, bool) {
	key := slotKey{userID: userID, freq: freq}
	v, ok := a.slots.Load(key)
	if !ok {
		return DigestPreview{}, false
	}
	slot := v.(*digestSlot)

	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.dead || slot.bucket == nil || len(slot.bucket.items) == 0 {
		return DigestPreview{}, false
	}
	if limit <= 0 {
		limit = a.highlights
	}
	b := *slot.bucket
	b.items = append([]Notification(nil), slot.bucket.items...)
	return a.summarize(key, &b, limit), true
}

// Pending returns the number of open windows.
func (a *DigestAggregator) Pending() int {
	n := 0
	a.slots.Range(func(_, v any) bool {
		slot := v.(*digestSlot)
		slot.mu.Lock()
		if !slot.dead && slot.bucket != nil {
			n++
		}
		slot.mu.Unlock()
		return true
	})
	return n
}

func (a *DigestAggregator) summarize(key slotKey, b *digestBucket, limit int) DigestPreview {
	counts := make(map[string]int, len(b.counts))
	for c, n := range b.counts {
		counts[c] = n
	}
	return DigestPreview{
		UserID:         key.userID,
		Frequency:      key.freq,
		PeriodStart:    b.start,
		PeriodEnd:      b.end,
		Total:          len(b.items),
		CategoryCounts: counts,
		Highlights:     highlights(b.items, limit),
	}
}

// highlights returns the top limit notifications ordered by priority, then
// most recent first.
func highlights(items []Notification, limit int) []Notification {
	sorted := make([]Notification, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := sorted[i].Priority.Rank(), sorted[j].Priority.Rank()
		if ri != rj {
			return ri > rj
		}
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

// Subject returns a one-line summary such as "3 new notifications".
func (d DigestPreview) Subject() string {
	if d.Total == 1 {
		return "1 new notification"
	}
	return fmt.Sprintf("%d new notifications", d.Total)
}
