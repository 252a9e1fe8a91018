package processors

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"order-pipeline/internal/domain"
	"order-pipeline/internal/infra"
	"order-pipeline/internal/queue"
)

// OrderReader is the read side of the order repository. Processors only use
// it to build fresh payloads.
type OrderReader interface {
	FindByID(ctx context.Context, id uint64) (*domain.Order, error)
}

type OrderSyncProcessor struct {
	client infra.OrderSyncClientInterface
	orders OrderReader
	logger *zap.Logger
}

func NewOrderSyncProcessor(client infra.OrderSyncClientInterface, orders OrderReader, logger *zap.Logger) *OrderSyncProcessor {
	return &OrderSyncProcessor{client: client, orders: orders, logger: logger}
}

func (p *OrderSyncProcessor) Process(ctx context.Context, job *queue.Job) error {
	payload, err := Decode(job)
	if err != nil {
		return err
	}

	var orderNumber string
	switch pl := payload.(type) {
	case SyncOrderPayload:
		orderNumber = pl.OrderNumber
		err = p.syncOrder(ctx, pl, job.IdempotencyKey)
	case UpdateOrderStatusPayload:
		orderNumber = pl.OrderNumber
		err = p.client.UpdateOrderStatus(ctx, pl.OrderNumber, infra.OrderStatusRequest{
			Status:         pl.Status,
			TrackingNumber: pl.TrackingNumber,
			PaymentStatus:  pl.PaymentStatus,
		}, job.IdempotencyKey)
	case CancelOrderPayload:
		orderNumber = pl.OrderNumber
		err = p.client.CancelOrder(ctx, pl.OrderNumber, infra.CancelOrderRequest{Reason: pl.Reason}, job.IdempotencyKey)
	default:
		return unknownJob(QueueOrderSync, job)
	}
	if err != nil {
		return classify(err)
	}

	p.logger.Info("order synced to admin service",
		zap.String("job_name", job.Name),
		zap.String("order_number", orderNumber))
	return nil
}

func (p *OrderSyncProcessor) syncOrder(ctx context.Context, pl SyncOrderPayload, key string) error {
	order, err := p.orders.FindByID(ctx, pl.OrderID)
	if err != nil {
		return queue.Transient(fmt.Errorf("load order %s: %w", pl.OrderNumber, err))
	}
	if order == nil {
		return queue.Unrecoverablef("order %s no longer exists", pl.OrderNumber)
	}
	return p.client.SyncOrder(ctx, SyncRequest(order), key)
}

// SyncRequest flattens an order into the admin service's sync shape.
func SyncRequest(o *domain.Order) infra.OrderSyncRequest {
	items := make([]infra.OrderSyncItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, infra.OrderSyncItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			ProductSKU:  it.ProductSKU,
			Quantity:    it.Quantity,
			Price:       it.Price,
			Subtotal:    it.Subtotal,
		})
	}
	s, b := o.ShippingAddr, o.BillingAddr
	return infra.OrderSyncRequest{
		OrderNumber:       o.OrderNumber,
		UserID:            o.UserID,
		Status:            string(o.Status),
		PaymentStatus:     string(o.PaymentStatus),
		PaymentMethod:     o.PaymentMethod,
		Subtotal:          o.Subtotal,
		Tax:               o.Tax,
		Shipping:          o.Shipping,
		Discount:          o.Discount,
		Total:             o.Total,
		ShippingFirstName: s.FirstName,
		ShippingLastName:  s.LastName,
		ShippingEmail:     s.Email,
		ShippingPhone:     s.Phone,
		ShippingAddress1:  s.Address1,
		ShippingAddress2:  s.Address2,
		ShippingCity:      s.City,
		ShippingState:     s.State,
		ShippingPostcode:  s.PostalCode,
		ShippingCountry:   s.Country,
		BillingFirstName:  b.FirstName,
		BillingLastName:   b.LastName,
		BillingEmail:      b.Email,
		BillingPhone:      b.Phone,
		BillingAddress1:   b.Address1,
		BillingAddress2:   b.Address2,
		BillingCity:       b.City,
		BillingState:      b.State,
		BillingPostcode:   b.PostalCode,
		BillingCountry:    b.Country,
		Notes:             o.Notes,
		Items:             items,
		CreatedAt:         o.CreatedAt,
	}
}
