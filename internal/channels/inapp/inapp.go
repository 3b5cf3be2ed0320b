// Package inapp pushes events to connected clients, addressed by user id.
package inapp

import (
	"context"
	"encoding/json"
	"fmt"
)

// Event names understood by the web client.
const (
	EventNotificationsNew              = "notifications:new"
	EventNotificationsIndicatorsDelete = "notifications:indicators:delete"
	EventTransactionAction             = "transaction:action"
)

// Emitter delivers one event to every session of a user.
type Emitter interface {
	Emit(ctx context.Context, userID int64, event string, payload interface{}) error
}

// TransactionAction is the payload of EventTransactionAction.
type TransactionAction struct {
	TransactionIDs []int64 `json:"transactionIds"`
	GroupIDs       []int64 `json:"groupIds"`
	EventType      string  `json:"eventType"`
}

// Envelope is the wire form used by the broker-backed emitters.
type Envelope struct {
	UserID  int64           `json:"userId"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func newEnvelope(userID int64, event string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{UserID: userID, Event: event, Payload: raw})
}
