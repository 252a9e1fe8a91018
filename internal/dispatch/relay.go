package dispatch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"order-pipeline/internal/bus"
	"order-pipeline/internal/domain"
	"order-pipeline/internal/infra"
)

// Relay republishes committed order events to a message broker for other
// services. Delivery is best effort.
type Relay struct {
	publisher infra.MessagePublisher
	timeout   time.Duration
	logger    *zap.Logger
}

// NewRelay bounds every publish by timeout so a slow broker cannot hold up
// the command that raised the event.
func NewRelay(publisher infra.MessagePublisher, timeout time.Duration, logger *zap.Logger) *Relay {
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	return &Relay{publisher: publisher, timeout: timeout, logger: logger}
}

func (r *Relay) Subscribe(eb *bus.EventBus) {
	for _, name := range []string{
		domain.EventOrderCreated,
		domain.EventOrderCancelled,
		domain.EventPaymentConfirmed,
		domain.EventOrderStatusUpdated,
	} {
		eb.Subscribe(name, "integration-relay", r.Forward)
	}
}

func (r *Relay) Forward(ctx context.Context, evt bus.Event) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	key := orderNumberOf(evt)
	msg := infra.NewEnvelope(evt.EventName(), evt)
	if err := r.publisher.Publish(ctx, key, msg); err != nil {
		r.logger.Error("failed to relay event",
			zap.String("event", evt.EventName()),
			zap.String("order_number", key),
			zap.Error(err))
	}
	return nil
}

func orderNumberOf(evt bus.Event) string {
	switch e := evt.(type) {
	case domain.OrderCreatedEvent:
		return e.Order.OrderNumber
	case domain.OrderCancelledEvent:
		return e.Order.OrderNumber
	case domain.PaymentConfirmedEvent:
		return e.Order.OrderNumber
	case domain.OrderStatusUpdatedEvent:
		return e.Order.OrderNumber
	}
	return ""
}
