package consumer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Message is one delivery pulled from a Source.
type Message struct {
	ID         string
	Subject    string
	Data       []byte
	Deliveries int

	// source-specific handle (zeebe job key, retries)
	jobKey     int64
	jobRetries int32
}

// Source is a durable pull subscription. Implementations must keep unacked
// messages available for redelivery.
type Source interface {
	Fetch(ctx context.Context) ([]*Message, error)
	Ack(ctx context.Context, msg *Message) error
	Nack(ctx context.Context, msg *Message) error
	Close() error
}

// UniqueDurable returns a durable name no other process shares, so a
// consumer using it sees every message on the stream.
func UniqueDurable(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}
