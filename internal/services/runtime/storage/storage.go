// Package storage defines the persistence contracts of the runtime.
package storage

import (
	"context"
	"time"
)

// Outcome is the result of routing one event.
type Outcome string

const (
	// OutcomeDelivered means the addressed operator handled the event.
	OutcomeDelivered Outcome = "delivered"
	// OutcomeDropped means no live operator had the event's id.
	OutcomeDropped Outcome = "dropped"
	// OutcomeFailed means the operator's handler panicked.
	OutcomeFailed Outcome = "failed"
)

// DeliveryRecord is one durable event routing outcome.
type DeliveryRecord struct {
	ID         int64
	OperatorID string
	EventKind  string
	Body       string
	Outcome    Outcome
	LastError  string
	CreatedAt  time.Time
}

// DeliveryJournal persists event routing outcomes.
type DeliveryJournal interface {
	RecordDelivery(ctx context.Context, record DeliveryRecord) error
	ListDeliveries(ctx context.Context, limit int) ([]DeliveryRecord, error)
}
