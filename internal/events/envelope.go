package events

import (
	"encoding/json"
	"time"
)

// Envelope is the wire format published after commit. Consumers
// (notification/presence layer) never see raw table rows.
type Envelope struct {
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}
