package notifications

import (
	"errors"
	"maps"
	"strings"
	"time"
)

// Type represents the notification type/severity.
type Type string

const (
	TypeInfo           Type = "info"
	TypeSuccess        Type = "success"
	TypeWarning        Type = "warning"
	TypeError          Type = "error"
	TypeActionRequired Type = "action_required"
)

// Valid reports whether t is one of the known notification types.
func (t Type) Valid() bool {
	switch t {
	case TypeInfo, TypeSuccess, TypeWarning, TypeError, TypeActionRequired:
		return true
	}
	return false
}

// Priority represents the notification priority level.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank orders priorities for sorting. Unknown values rank as medium.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityHigh:
		return 2
	case PriorityUrgent:
		return 3
	default:
		return 1
	}
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// DefaultCategory is assigned to events submitted without a category.
const DefaultCategory = "general"

// Notification is the core domain model for notifications.
// Content fields are immutable once created; only the lifecycle fields change.
type Notification struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	Title       string         `json:"title"`
	Message     string         `json:"message"`
	Type        Type           `json:"type"`
	Category    string         `json:"category"`
	Priority    Priority       `json:"priority"`
	ActionURL   string         `json:"action_url,omitempty"`
	ActionLabel string         `json:"action_label,omitempty"`
	Icon        string         `json:"icon,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	IsRead      bool           `json:"is_read"`
	ReadAt      *time.Time     `json:"read_at,omitempty"`
	IsArchived  bool           `json:"is_archived"`
	ArchivedAt  *time.Time     `json:"archived_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Clone returns a copy that shares no mutable state with n.
func (n Notification) Clone() Notification {
	c := n
	if n.Data != nil {
		c.Data = maps.Clone(n.Data)
	}
	if n.ReadAt != nil {
		t := *n.ReadAt
		c.ReadAt = &t
	}
	if n.ArchivedAt != nil {
		t := *n.ArchivedAt
		c.ArchivedAt = &t
	}
	return c
}

// Event is a raw notification request produced by the business layer.
// It is the only ingestion shape; the engine assigns id and timestamp.
type Event struct {
	UserID      string         `json:"user_id" validate:"required,max=128"`
	Title       string         `json:"title" validate:"required,max=200"`
	Message     string         `json:"message" validate:"max=4000"`
	Type        Type           `json:"type" validate:"omitempty,oneof=info success warning error action_required"`
	Category    string         `json:"category" validate:"omitempty,max=64"`
	Priority    Priority       `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	ActionURL   string         `json:"action_url,omitempty" validate:"omitempty,max=2048"`
	ActionLabel string         `json:"action_label,omitempty" validate:"omitempty,max=64"`
	Icon        string         `json:"icon,omitempty" validate:"omitempty,max=256"`
	Data        map[string]any `json:"data,omitempty"`
}

// Validate checks the event shape. Errors match ErrInvalidEvent.
func (e Event) Validate() error {
	if strings.TrimSpace(e.UserID) == "" {
		return errors.Join(ErrInvalidEvent, errors.New("user_id is required"))
	}
	if strings.TrimSpace(e.Title) == "" {
		return errors.Join(ErrInvalidEvent, errors.New("title is required"))
	}
	if err := validate.Struct(e); err != nil {
		return errors.Join(ErrInvalidEvent, err)
	}
	return nil
}

func (e Event) withDefaults() Event {
	if e.Type == "" {
		e.Type = TypeInfo
	}
	if e.Priority == "" {
		e.Priority = PriorityMedium
	}
	if e.Category == "" {
		e.Category = DefaultCategory
	}
	return e
}

func (e Event) toNotification(id string, now time.Time) Notification {
	e = e.withDefaults()
	n := Notification{
		ID:          id,
		UserID:      e.UserID,
		Title:       e.Title,
		Message:     e.Message,
		Type:        e.Type,
		Category:    e.Category,
		Priority:    e.Priority,
		ActionURL:   e.ActionURL,
		ActionLabel: e.ActionLabel,
		Icon:        e.Icon,
		CreatedAt:   now,
	}
	if e.Data != nil {
		n.Data = maps.Clone(e.Data)
	}
	return n
}
