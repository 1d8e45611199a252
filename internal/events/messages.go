package events

import (
	"encoding/json"
	"errors"
	"time"
)

// Invalidation reasons.
const (
	ReasonTransactionCreated = "transaction_created"
	ReasonAccountCreated     = "account_created"
	ReasonManual             = "manual"
)

// InvalidationMessage tells every instance to drop its cached charts.
// Year and Month narrow the affected period; zero means unknown.
type InvalidationMessage struct {
	Source    string    `json:"source"`
	Reason    string    `json:"reason"`
	Year      int       `json:"year,omitempty"`
	Month     int       `json:"month,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewInvalidationMessage stamps a message with the current time.
func NewInvalidationMessage(source, reason string, year, month int) *InvalidationMessage {
	return &InvalidationMessage{
		Source:    source,
		Reason:    reason,
		Year:      year,
		Month:     month,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *InvalidationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// InvalidationMessageFromJSON decodes and checks a message body.
func InvalidationMessageFromJSON(data []byte) (*InvalidationMessage, error) {
	var msg InvalidationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Source == "" {
		return nil, errors.New("invalidation message without source")
	}
	if msg.Month < 0 || msg.Month > 12 {
		return nil, errors.New("invalidation message with invalid month")
	}
	return &msg, nil
}
