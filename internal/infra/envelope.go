package infra

import (
	"context"

	"github.com/google/uuid"
)

// Envelope is the wire shape of an integration message. Consumers route on
// Pattern and deduplicate on ID.
type Envelope struct {
	Pattern string `json:"pattern"`
	ID      string `json:"id"`
	Data    any    `json:"data"`
}

func NewEnvelope(pattern string, data any) Envelope {
	return Envelope{Pattern: pattern, ID: uuid.NewString(), Data: data}
}

// MessagePublisher sends an envelope to a broker. key groups messages that
// must stay ordered, such as all messages for one order.
type MessagePublisher interface {
	Publish(ctx context.Context, key string, msg Envelope) error
	Close() error
}
