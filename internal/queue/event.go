// Package queue carries audit events from the API to the audit sinks over
// RabbitMQ: the event payload, the publisher used by the service and the
// consumer that stores what it receives.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	EventReservationCreated = "reservation.created"
	EventReservationUpdated = "reservation.updated"
	EventStatusChanged      = "reservation.status_changed"
	EventReservationDeleted = "reservation.deleted"
	EventNoShowCancelled    = "reservation.no_show_cancelled"
	EventPersistenceError   = "persistence.error"
)

// AuditEvent is one entry of the audit trail.  Persistence errors carry
// the full driver error in Detail; it never reaches API clients.
type AuditEvent struct {
	ID            string `json:"id" bson:"_id"`
	Type          string `json:"type" bson:"type"`
	Operation     string `json:"operation,omitempty" bson:"operation,omitempty"`
	ParkingID     uint64 `json:"parking_id" bson:"parking_id"`
	UserID        uint64 `json:"user_id" bson:"user_id"`
	ReservationID uint64 `json:"reservation_id,omitempty" bson:"reservation_id,omitempty"`
	FromStatus    string `json:"from_status,omitempty" bson:"from_status,omitempty"`
	ToStatus      string `json:"to_status,omitempty" bson:"to_status,omitempty"`
	Start         string `json:"reservation_start,omitempty" bson:"reservation_start,omitempty"`
	End           string `json:"reservation_end,omitempty" bson:"reservation_end,omitempty"`
	LocalWindow   string `json:"local_window,omitempty" bson:"local_window,omitempty"`
	Detail        string `json:"detail,omitempty" bson:"detail,omitempty"`
	OccurredAt    string `json:"occurred_at" bson:"occurred_at"`
}

// NewAuditEvent stamps a fresh id and the current UTC time.
func NewAuditEvent(eventType string) AuditEvent {
	return AuditEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
}
