package notifications

import (
	"context"
	"sort"
	"sync"
	"time"
)

// DeliveryStatus is the final result of one delivery request.
type DeliveryStatus string

const (
	StatusDelivered       DeliveryStatus = "delivered"
	StatusSkipped         DeliveryStatus = "skipped"
	StatusFailedTransient DeliveryStatus = "failed_transient"
	StatusFailedPermanent DeliveryStatus = "failed_permanent"
)

// DeliveryOutcome records what happened to one delivery request.
type DeliveryOutcome struct {
	// ReferenceID is the notification id, or the digest id for digests.
	ReferenceID    string         `json:"reference_id" bson:"reference_id"`
	Kind           PayloadKind    `json:"kind" bson:"kind"`
	UserID         string         `json:"user_id" bson:"user_id"`
	Channel        Channel        `json:"channel" bson:"channel"`
	Address        string         `json:"address,omitempty" bson:"address,omitempty"`
	SubscriptionID string         `json:"subscription_id,omitempty" bson:"subscription_id,omitempty"`
	Status         DeliveryStatus `json:"status" bson:"status"`
	Attempts       int            `json:"attempts" bson:"attempts"`
	Error          string         `json:"error,omitempty" bson:"error,omitempty"`
	StartedAt      time.Time      `json:"started_at" bson:"started_at"`
	FinishedAt     time.Time      `json:"finished_at" bson:"finished_at"`
}

// DeliveryLog stores delivery outcomes.
type DeliveryLog interface {
	Record(ctx context.Context, outcomes ...DeliveryOutcome) error
	// ListOutcomes returns the outcomes recorded for a notification or
	// digest, oldest first.
	ListOutcomes(ctx context.Context, referenceID string) ([]DeliveryOutcome, error)
}

// MemoryDeliveryLog keeps outcomes in memory.
type MemoryDeliveryLog struct {
	mu       sync.RWMutex
	outcomes map[string][]DeliveryOutcome
}

var _ DeliveryLog = (*MemoryDeliveryLog)(nil)

// NewMemoryDeliveryLog creates an empty delivery log.
func NewMemoryDeliveryLog() *MemoryDeliveryLog {
	return &MemoryDeliveryLog{outcomes: make(map[string][]DeliveryOutcome)}
}

func (l *MemoryDeliveryLog) Record(ctx context.Context, outcomes ...DeliveryOutcome) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, o := range outcomes {
		l.outcomes[o.ReferenceID] = append(l.outcomes[o.ReferenceID], o)
	}
	return nil
}

func (l *MemoryDeliveryLog) ListOutcomes(ctx context.Context, referenceID string) ([]DeliveryOutcome, error) {
	l.mu.RLock()
	out := append([]DeliveryOutcome{}, l.outcomes[referenceID]...)
	l.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out, nil
}

// All returns every recorded outcome, ordered by start time.
func (l *MemoryDeliveryLog) All() []DeliveryOutcome {
	l.mu.RLock()
	var out []DeliveryOutcome
	for _, list := range l.outcomes {
		out = append(out, list...)
	}
	l.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}
