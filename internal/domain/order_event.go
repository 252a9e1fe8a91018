package domain

import "time"

const (
	EventOrderCreated       = "order.created"
	EventOrderCancelled     = "order.cancelled"
	EventPaymentConfirmed   = "order.payment_confirmed"
	EventOrderStatusUpdated = "order.status_updated"
)

// Events describe state changes that have already been committed. Order is
// a snapshot taken right after the write.

type OrderCreatedEvent struct {
	Order      Order     `json:"order"`
	OccurredAt time.Time `json:"occurredAt"`
}

func (OrderCreatedEvent) EventName() string { return EventOrderCreated }

type OrderCancelledEvent struct {
	Order      Order     `json:"order"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

func (OrderCancelledEvent) EventName() string { return EventOrderCancelled }

type PaymentConfirmedEvent struct {
	Order      Order     `json:"order"`
	OccurredAt time.Time `json:"occurredAt"`
}

func (PaymentConfirmedEvent) EventName() string { return EventPaymentConfirmed }

type OrderStatusUpdatedEvent struct {
	Order          Order          `json:"order"`
	OldStatus      OrderStatus    `json:"oldStatus"`
	NewStatus      OrderStatus    `json:"newStatus"`
	TrackingNumber *string        `json:"trackingNumber,omitempty"`
	PaymentStatus  *PaymentStatus `json:"paymentStatus,omitempty"`
	OccurredAt     time.Time      `json:"occurredAt"`
}

func (OrderStatusUpdatedEvent) EventName() string { return EventOrderStatusUpdated }
