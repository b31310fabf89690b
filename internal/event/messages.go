package event

import (
	"encoding/json"
	"time"
)

// LedgerChangedMessage announces that a user's booked ledger changed.
// It carries only the user id; the worker recomputes rollups from the
// store rather than trusting a payload.
type LedgerChangedMessage struct {
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerChangedMessage creates a change message for the given user
func NewLedgerChangedMessage(userID string) *LedgerChangedMessage {
	return &LedgerChangedMessage{
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON creates a message from JSON bytes
func LedgerChangedMessageFromJSON(data []byte) (*LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
