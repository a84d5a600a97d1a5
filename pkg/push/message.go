package push

import (
	"fmt"
	"maps"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// Message is the JSON document delivered to web push service workers and
// flattened into FCM notification and data fields.
type Message struct {
	Type     string         `json:"type"`
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Body     string         `json:"body,omitempty"`
	URL      string         `json:"url,omitempty"`
	Icon     string         `json:"icon,omitempty"`
	Category string         `json:"category,omitempty"`
	Priority string         `json:"priority,omitempty"`
	Count    int            `json:"count,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// NewMessage converts a payload into a push message. Digests become a
// single "N new notifications" summary.
func NewMessage(p notifications.Payload) (Message, error) {
	switch {
	case p.Kind == notifications.PayloadNotification && p.Notification != nil:
		n := p.Notification
		return Message{
			Type:     string(p.Kind),
			ID:       n.ID,
			Title:    n.Title,
			Body:     n.Message,
			URL:      n.ActionURL,
			Icon:     n.Icon,
			Category: n.Category,
			Priority: string(n.Priority),
			Data:     maps.Clone(n.Data),
		}, nil
	case p.Kind == notifications.PayloadDigest && p.Digest != nil:
		d := p.Digest
		m := Message{
			Type:  string(p.Kind),
			ID:    d.ID,
			Title: summaryTitle(d.Total),
			Count: d.Total,
		}
		if len(d.Highlights) > 0 {
			m.Body = d.Highlights[0].Title
		}
		return m, nil
	}
	return Message{}, fmt.Errorf("%w: %q", ErrInvalidPayload, p.Kind)
}

func summaryTitle(total int) string {
	if total == 1 {
		return "1 new notification"
	}
	return fmt.Sprintf("%d new notifications", total)
}

// urgent reports whether the message should bypass device power saving.
func (m Message) urgent() bool {
	return m.Priority == string(notifications.PriorityHigh) || m.Priority == string(notifications.PriorityUrgent)
}
