package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"order-pipeline/internal/infra"
)

// Publisher writes envelopes to one topic. Messages with the same key land
// on the same partition.
//
// The writer is asynchronous: Publish returns once the message is queued in
// the writer and delivery failures are logged from the completion callback.
type Publisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewPublisher takes a comma-separated broker list. timeout bounds dialing
// the brokers and each produce request.
func NewPublisher(brokersCSV, topic string, timeout time.Duration, logger *zap.Logger) (*Publisher, error) {
	var brokers []string
	for _, b := range strings.Split(brokersCSV, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}

	p := &Publisher{logger: logger}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: timeout,
		ReadTimeout:  timeout,
		Transport:    &kafka.Transport{DialTimeout: timeout},
		Completion:   p.completed,
	}
	return p, nil
}

// Publish queues msg for delivery. Only failures seen before the message is
// handed to the writer, such as a broker that cannot be reached for topic
// metadata before ctx ends, are returned.
func (p *Publisher) Publish(ctx context.Context, key string, msg infra.Envelope) error {
	m, err := newMessage(key, msg, time.Now().UTC())
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, m); err != nil {
		return fmt.Errorf("kafka: write %s: %w", msg.Pattern, err)
	}
	return nil
}

func (p *Publisher) completed(messages []kafka.Message, err error) {
	if err == nil {
		return
	}
	for _, m := range messages {
		p.logger.Error("failed to deliver message",
			zap.String("topic", m.Topic),
			zap.ByteString("key", m.Key),
			zap.String("pattern", header(m, "pattern")),
			zap.String("message_id", header(m, "message_id")),
			zap.Error(err))
	}
}

// Close flushes queued messages.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func newMessage(key string, msg infra.Envelope, at time.Time) (kafka.Message, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("kafka: marshal %s: %w", msg.Pattern, err)
	}
	return kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  at,
		Headers: []kafka.Header{
			{Key: "pattern", Value: []byte(msg.Pattern)},
			{Key: "message_id", Value: []byte(msg.ID)},
		},
	}, nil
}

func header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

var _ infra.MessagePublisher = (*Publisher)(nil)
