package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"order-pipeline/internal/infra"
)

func TestNewMessage(t *testing.T) {
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	env := infra.Envelope{Pattern: "order.created", ID: "msg-1", Data: map[string]string{"orderNumber": "ORD-1"}}

	m, err := newMessage("ORD-1", env, at)
	require.NoError(t, err)

	assert.Equal(t, []byte("ORD-1"), m.Key)
	assert.Equal(t, at, m.Time)
	assert.Equal(t, "order.created", header(m, "pattern"))
	assert.Equal(t, "msg-1", header(m, "message_id"))
	assert.Empty(t, header(m, "missing"))

	var got map[string]any
	require.NoError(t, json.Unmarshal(m.Value, &got))
	assert.Equal(t, "order.created", got["pattern"])
	assert.Equal(t, "msg-1", got["id"])
}

func TestNewMessage_MarshalError(t *testing.T) {
	_, err := newMessage("k", infra.Envelope{Pattern: "order.created", Data: make(chan int)}, time.Now())
	assert.Error(t, err)
}

func TestNewPublisher_RequiresBrokers(t *testing.T) {
	_, err := NewPublisher(" , ", "order-events", time.Second, zap.NewNop())
	assert.Error(t, err)

	p, err := NewPublisher("a:9092, b:9092", "order-events", time.Second, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, p.writer.Async)
	assert.Equal(t, "order-events", p.writer.Topic)
}

func TestPublisher_CompletionLogsFailures(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	p := &Publisher{logger: zap.New(core)}

	m, err := newMessage("ORD-1", infra.Envelope{Pattern: "order.cancelled", ID: "msg-2"}, time.Now())
	require.NoError(t, err)

	p.completed([]kafka.Message{m}, nil)
	assert.Equal(t, 0, logs.Len())

	p.completed([]kafka.Message{m}, errors.New("broker gone"))
	entries := logs.FilterMessage("failed to deliver message").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "msg-2", entries[0].ContextMap()["message_id"])
}

// silentBroker accepts connections and never answers.
func silentBroker(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var conns []net.Conn
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			conns = append(conns, c)
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		<-done
		for _, c := range conns {
			c.Close()
		}
	})
	return ln.Addr().String()
}

func TestPublisher_UnresponsiveBrokerDoesNotBlockPastDeadline(t *testing.T) {
	p, err := NewPublisher(silentBroker(t), "order-events", 200*time.Millisecond, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_ = p.Publish(ctx, "ORD-1", infra.NewEnvelope("order.created", map[string]string{"orderNumber": "ORD-1"}))
	assert.Less(t, time.Since(start), 2*time.Second)
}
