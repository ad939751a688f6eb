package amqp

import (
	"encoding/json"
	"time"
)

// EventType names a ledger change published to the exchange.
type EventType string

const (
	EventBudgetInitialized   EventType = "budget.initialized"
	EventEnvelopeCreated     EventType = "envelope.created"
	EventEnvelopeUpdated     EventType = "envelope.updated"
	EventEnvelopeDeleted     EventType = "envelope.deleted"
	EventEnvelopeTransferred EventType = "envelope.transferred"
)

// LedgerEventMessage describes one successful ledger mutation together with
// the budget totals right after it.
type LedgerEventMessage struct {
	Type           EventType `json:"type"`
	EnvelopeID     uint64    `json:"envelope_id,omitempty"`
	EnvelopeName   string    `json:"envelope_name,omitempty"`
	FromEnvelopeID uint64    `json:"from_envelope_id,omitempty"`
	ToEnvelopeID   uint64    `json:"to_envelope_id,omitempty"`
	AmountCents    int64     `json:"amount_cents"`
	TotalCents     int64     `json:"total_cents"`
	AvailableCents int64     `json:"available_cents"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewLedgerEventMessage creates an event of the given type stamped with the current time
func NewLedgerEventMessage(eventType EventType) *LedgerEventMessage {
	return &LedgerEventMessage{
		Type:      eventType,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventMessageFromJSON creates a message from JSON bytes
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
