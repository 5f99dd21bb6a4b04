// Package events publishes domain events for downstream collaborators.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/coaching-core-api/pkg/middleware/requestid"
)

// Event types double as RabbitMQ queue names.
const (
	EnrollmentConfirmed = "enrollment.confirmed"
	PayoutGenerated     = "payout.generated"
	PayoutStatusChanged = "payout.status_changed"
)

// Queues lists every queue the publisher declares.
var Queues = []string{EnrollmentConfirmed, PayoutGenerated, PayoutStatusChanged}

// Event is the envelope written to the broker.
type Event struct {
	ID            string      `json:"id"`
	Type          string      `json:"type"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	OccurredAt    time.Time   `json:"occurred_at"`
	Payload       interface{} `json:"payload"`
}

// New stamps an event with an ID and the current time.
func New(eventType string, payload interface{}) Event {
	return Event{ID: uuid.NewString(), Type: eventType, OccurredAt: time.Now().UTC(), Payload: payload}
}

// Correlate copies the request ID carried by ctx onto the event, unless the
// event already has one.
func Correlate(ctx context.Context, event Event) Event {
	if event.CorrelationID == "" {
		event.CorrelationID = requestid.FromContext(ctx)
	}
	return event
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event. Used when ENABLE_EVENTS is off.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }
