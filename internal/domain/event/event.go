package event

import (
	"time"

	"github.com/google/uuid"
)

// Event represents a domain event raised after a state change has been committed
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	WorkspaceID   string                 `json:"workspace_id"`
	AggregateID   string                 `json:"aggregate_id"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates a new domain event. AggregateID is the request, rule or
// threshold the event is about.
func NewEvent(eventType Type, workspaceID, aggregateID string, payload map[string]interface{}) *Event {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	id := uuid.NewString()
	return &Event{
		ID:            id,
		Type:          eventType,
		WorkspaceID:   workspaceID,
		AggregateID:   aggregateID,
		Payload:       payload,
		Timestamp:     time.Now().UTC(),
		CorrelationID: id,
	}
}

// WithCorrelation returns a copy of the event linked to an existing chain
func (e *Event) WithCorrelation(correlationID string) *Event {
	cp := *e
	cp.CorrelationID = correlationID
	return &cp
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case string:
			return v
		case interface{ String() string }:
			return v.String()
		}
	}
	return ""
}

// GetPayloadFloat retrieves a float64 value from the payload
func (e *Event) GetPayloadFloat(key string) float64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case float64:
			return v
		case int64:
			return float64(v)
		case int:
			return float64(v)
		}
	}
	return 0
}
