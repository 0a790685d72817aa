package orders

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeOrderCreated       = "OrderCreated"
	EventTypeOrderStatusChanged = "OrderStatusChanged"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	OrderType   OrderType `json:"order_type"`
	Quantity    int       `json:"quantity"`
	TotalCents  int64     `json:"total_cents"`
	Currency    string    `json:"currency"`
}

type OrderStatusChangedPayload struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Event       Event  `json:"event"`
	From        Status `json:"from"`
	To          Status `json:"to"`
	Actor       string `json:"actor"`
	TotalCents  int64  `json:"total_cents"`
	Currency    string `json:"currency"`
}

// NewEnvelope wraps a payload; it panics only if payload cannot be encoded,
// which for the payload types above cannot happen.
func NewEnvelope(eventType, producer, orderID, traceID string, payload any, at time.Time) Envelope {
	b, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    at.UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: orderID,
		Payload:       b,
	}
}
