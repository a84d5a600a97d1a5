package notifications

import (
	"context"
	"time"
)

// Pagination bounds for List.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Storage handles notification persistence and retrieval.
// Every method is scoped to a user: a notification owned by another user is
// reported as ErrNotificationNotFound.
type Storage interface {
	// Create stores a new notification.
	Create(ctx context.Context, n Notification) error

	// Get retrieves a single notification.
	Get(ctx context.Context, userID, id string) (Notification, error)

	// List returns one page of notifications, newest first, and the total
	// number of notifications matching the filter.
	List(ctx context.Context, userID string, opts ListOptions) ([]Notification, int, error)

	// CountUnread returns the number of unread, non-archived notifications.
	CountUnread(ctx context.Context, userID string) (int, error)

	// Update applies fn to the stored notification atomically. fn reports
	// whether it changed anything; unchanged notifications are not written.
	Update(ctx context.Context, userID, id string, fn func(*Notification) bool) (Notification, error)

	// MarkAllRead marks every unread, non-archived notification as read,
	// optionally limited to one category, and returns how many changed.
	MarkAllRead(ctx context.Context, userID, category string, now time.Time) (int, error)

	// Delete removes a notification in any state.
	Delete(ctx context.Context, userID, id string) error
}

// ListOptions provides filtering and pagination for List.
type ListOptions struct {
	Page            int    // 1-based page number
	PageSize        int    // items per page, capped at MaxPageSize
	UnreadOnly      bool   // only unread notifications
	Category        string // only this category when non-empty
	IncludeArchived bool   // archived notifications are hidden unless set
}

// Normalize clamps the pagination values into range.
func (o ListOptions) Normalize() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PageSize < 1 {
		o.PageSize = DefaultPageSize
	}
	if o.PageSize > MaxPageSize {
		o.PageSize = MaxPageSize
	}
	return o
}

// Offset returns the number of items preceding the page.
func (o ListOptions) Offset() int {
	o = o.Normalize()
	return (o.Page - 1) * o.PageSize
}

// Matches reports whether n passes the filter part of the options.
func (o ListOptions) Matches(n Notification) bool {
	if n.IsArchived && !o.IncludeArchived {
		return false
	}
	if o.UnreadOnly && n.IsRead {
		return false
	}
	if o.Category != "" && n.Category != o.Category {
		return false
	}
	return true
}
