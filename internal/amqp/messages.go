package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// TransactionSnapshot carries the transaction fields in their wire form.
type TransactionSnapshot struct {
	ID       string `json:"id"`
	Date     string `json:"date"`
	Type     string `json:"type"`
	Category string `json:"category"`
	Amount   string `json:"amount"`
	Note     string `json:"note"`
}

// TransactionEvent announces that a transaction was created, updated or
// deleted. Deletions carry the transaction as it was before removal.
type TransactionEvent struct {
	EventID       string               `json:"event_id"`
	Action        string               `json:"action"`
	TransactionID string               `json:"transaction_id"`
	Transaction   *TransactionSnapshot `json:"transaction,omitempty"`
	Timestamp     time.Time            `json:"timestamp"`
}

var (
	errMissingAction        = errors.New("event action is required")
	errMissingTransactionID = errors.New("event transaction id is required")
)

// NewTransactionEvent stamps a new event with a unique id.
func NewTransactionEvent(action, transactionID string, snap *TransactionSnapshot, at time.Time) *TransactionEvent {
	if at.IsZero() {
		at = time.Now()
	}
	return &TransactionEvent{
		EventID:       uuid.NewString(),
		Action:        action,
		TransactionID: transactionID,
		Transaction:   snap,
		Timestamp:     at.UTC(),
	}
}

func (e *TransactionEvent) Validate() error {
	if e.Action == "" {
		return errMissingAction
	}
	if e.TransactionID == "" {
		return errMissingTransactionID
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON decodes and validates an event.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var e TransactionEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
