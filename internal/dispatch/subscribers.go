package dispatch

import (
	"context"

	"go.uber.org/zap"

	"order-pipeline/internal/bus"
	"order-pipeline/internal/domain"
	"order-pipeline/internal/processors"
	"order-pipeline/internal/queue"
)

// Dispatcher enqueues the jobs that follow each order event.
type Dispatcher struct {
	queue  queue.Enqueuer
	logger *zap.Logger
}

func NewDispatcher(enq queue.Enqueuer, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{queue: enq, logger: logger}
}

func (d *Dispatcher) Subscribe(eb *bus.EventBus) {
	bus.On(eb, "queue-dispatch", d.OnOrderCreated)
	bus.On(eb, "queue-dispatch", d.OnOrderCancelled)
	bus.On(eb, "queue-dispatch", d.OnPaymentConfirmed)
	bus.On(eb, "queue-dispatch", d.OnOrderStatusUpdated)
}

func (d *Dispatcher) OnOrderCreated(ctx context.Context, evt domain.OrderCreatedEvent) error {
	o := evt.Order
	d.enqueue(ctx, processors.QueueOrderSync, processors.SyncOrderPayload{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
	}, SyncOrderKey(o.OrderNumber), o.OrderNumber)
	return nil
}

func (d *Dispatcher) OnOrderCancelled(ctx context.Context, evt domain.OrderCancelledEvent) error {
	o := evt.Order
	d.enqueue(ctx, processors.QueueOrderSync, processors.CancelOrderPayload{
		OrderNumber: o.OrderNumber,
		Reason:      evt.Reason,
	}, CancelOrderKey(o.OrderNumber), o.OrderNumber)
	return nil
}

// OnPaymentConfirmed deducts inventory, sends the confirmation email and
// pushes the new status to the admin service. The three jobs run on
// separate queues and may finish in any order.
func (d *Dispatcher) OnPaymentConfirmed(ctx context.Context, evt domain.PaymentConfirmedEvent) error {
	o := evt.Order

	lines := make([]processors.InventoryLine, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, processors.InventoryLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	d.enqueue(ctx, processors.QueueInventorySync, processors.DeductInventoryPayload{
		OrderNumber: o.OrderNumber,
		Items:       lines,
	}, DeductInventoryKey(o.OrderNumber), o.OrderNumber)

	d.enqueue(ctx, processors.QueueEmail, confirmationEmail(&o), "", o.OrderNumber)

	paid := string(o.PaymentStatus)
	d.enqueue(ctx, processors.QueueOrderSync, processors.UpdateOrderStatusPayload{
		OrderNumber:   o.OrderNumber,
		Status:        string(o.Status),
		PaymentStatus: &paid,
	}, UpdateOrderStatusKey(o.OrderNumber, o.Status, nil), o.OrderNumber)
	return nil
}

func (d *Dispatcher) OnOrderStatusUpdated(ctx context.Context, evt domain.OrderStatusUpdatedEvent) error {
	o := evt.Order
	payload := processors.UpdateOrderStatusPayload{
		OrderNumber:    o.OrderNumber,
		Status:         string(evt.NewStatus),
		TrackingNumber: evt.TrackingNumber,
	}
	if evt.PaymentStatus != nil {
		ps := string(*evt.PaymentStatus)
		payload.PaymentStatus = &ps
	}
	d.enqueue(ctx, processors.QueueOrderSync, payload,
		UpdateOrderStatusKey(o.OrderNumber, evt.NewStatus, evt.TrackingNumber), o.OrderNumber)
	return nil
}

// enqueue runs after the order change has committed, so it must not be
// cut short by the caller going away.
func (d *Dispatcher) enqueue(ctx context.Context, queueName string, payload processors.Payload, key, orderNumber string) {
	ctx = context.WithoutCancel(ctx)
	id, created, err := d.queue.EnqueueUnique(ctx, queueName, payload.JobName(), payload, Policy(queueName, key))
	if err != nil {
		d.logger.Error("failed to enqueue job",
			zap.String("queue", queueName),
			zap.String("job_name", payload.JobName()),
			zap.String("order_number", orderNumber),
			zap.Error(err))
		return
	}
	if !created {
		d.logger.Info("duplicate job ignored",
			zap.String("queue", queueName),
			zap.String("job_name", payload.JobName()),
			zap.String("job_id", id),
			zap.String("idempotency_key", key))
		return
	}
	d.logger.Debug("job enqueued",
		zap.String("queue", queueName),
		zap.String("job_name", payload.JobName()),
		zap.String("job_id", id),
		zap.String("order_number", orderNumber))
}

func confirmationEmail(o *domain.Order) processors.OrderConfirmationPayload {
	to := o.ShippingAddr.Email
	if to == "" {
		to = o.BillingAddr.Email
	}
	lines := make([]processors.EmailLine, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, processors.EmailLine{
			ProductName: it.ProductName,
			ProductSKU:  it.ProductSKU,
			Quantity:    it.Quantity,
			Price:       it.Price,
			Subtotal:    it.Subtotal,
		})
	}
	return processors.OrderConfirmationPayload{
		OrderNumber:     o.OrderNumber,
		To:              to,
		CustomerName:    o.ShippingAddr.FullName(),
		Items:           lines,
		Subtotal:        o.Subtotal,
		Tax:             o.Tax,
		Shipping:        o.Shipping,
		Discount:        o.Discount,
		Total:           o.Total,
		ShippingAddress: o.ShippingAddr,
		CreatedAt:       o.CreatedAt,
	}
}
