package amqp

import (
	"encoding/json"
	"time"
)

// LedgerEventMessage is the compact mutation notice published after each
// successful ledger command. It carries only the operation and entity ids;
// the mirror worker fetches full records from storage.
type LedgerEventMessage struct {
	Op             string    `json:"op"`
	TransactionIDs []string  `json:"transaction_ids,omitempty"`
	DebtID         string    `json:"debt_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewLedgerEventMessage creates an event message stamped with the current time.
func NewLedgerEventMessage(op string, txnIDs []string, debtID string) *LedgerEventMessage {
	return &LedgerEventMessage{
		Op:             op,
		TransactionIDs: txnIDs,
		DebtID:         debtID,
		Timestamp:      time.Now(),
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
