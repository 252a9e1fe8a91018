package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"order-pipeline/internal/bus"
	"order-pipeline/internal/domain"
	"order-pipeline/internal/infra"
	"order-pipeline/internal/repository"
)

type OrderService struct {
	repo     repository.OrderRepository
	catalog  infra.ProductClientInterface
	events   bus.Publisher
	payments PaymentProcessor
	logger   *zap.Logger
	now      func() time.Time
}

func NewOrderService(r repository.OrderRepository, catalog infra.ProductClientInterface, events bus.Publisher, payments PaymentProcessor, logger *zap.Logger) *OrderService {
	return &OrderService{
		repo:     r,
		catalog:  catalog,
		events:   events,
		payments: payments,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Register binds every command and query handler of s.
func Register(commands, queries *bus.Bus, s *OrderService) error {
	return errors.Join(
		bus.Register(commands, s.CreateOrder),
		bus.Register(commands, s.CancelOrder),
		bus.Register(commands, s.ConfirmPayment),
		bus.Register(commands, s.UpdateOrderStatus),
		bus.Register(queries, s.GetOrder),
		bus.Register(queries, s.GetOrders),
	)
}

func (s *OrderService) CreateOrder(ctx context.Context, cmd CreateOrder) (*domain.Order, error) {
	if len(cmd.Items) == 0 {
		return nil, fmt.Errorf("%w: order must contain at least one item", domain.ErrValidation)
	}
	requested := make(map[uint64]int, len(cmd.Items))
	var ids []uint64
	for _, it := range cmd.Items {
		if it.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity for product %d must be at least 1", domain.ErrValidation, it.ProductID)
		}
		if _, seen := requested[it.ProductID]; !seen {
			ids = append(ids, it.ProductID)
		}
		requested[it.ProductID] += it.Quantity
	}

	products, err := s.checkAvailability(ctx, ids, requested)
	if err != nil {
		return nil, err
	}

	now := s.now()
	items := make([]domain.OrderItem, 0, len(cmd.Items))
	for _, it := range cmd.Items {
		p := products[it.ProductID]
		items = append(items, domain.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			ProductSKU:  p.SKU,
			Quantity:    it.Quantity,
			Price:       p.Price,
			Subtotal:    domain.LineSubtotal(p.Price, it.Quantity),
		})
	}

	billing := cmd.ShippingAddress
	if cmd.BillingAddress != nil {
		billing = *cmd.BillingAddress
	}
	order := &domain.Order{
		OrderNumber:   domain.NewOrderNumber(now),
		UserID:        cmd.UserID,
		Status:        domain.StatusPending,
		PaymentStatus: domain.PaymentPending,
		PaymentMethod: cmd.PaymentMethod,
		ShippingAddr:  cmd.ShippingAddress,
		BillingAddr:   billing,
		Notes:         cmd.Notes,
		Items:         items,
	}
	order.ApplyPricing(domain.PriceItems(items))

	if err := s.repo.Create(ctx, order); err != nil {
		return nil, err
	}
	s.logger.Info("order created",
		zap.String("order_number", order.OrderNumber),
		zap.Uint64("order_id", order.ID),
		zap.String("total", order.Total.StringFixed(2)))

	s.events.Publish(ctx, domain.OrderCreatedEvent{Order: order.Snapshot(), OccurredAt: now})
	return order, nil
}

// checkAvailability asks the admin service for every product in one call
// and reports all failing lines together.
func (s *OrderService) checkAvailability(ctx context.Context, ids []uint64, requested map[uint64]int) (map[uint64]infra.ProductInfo, error) {
	found, err := s.catalog.GetProductsBatch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("check product availability: %w", err)
	}
	byID := make(map[uint64]infra.ProductInfo, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}

	var problems []string
	for _, id := range ids {
		p, ok := byID[id]
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("product %d not found", id))
		case !p.IsActive:
			problems = append(problems, fmt.Sprintf("product %s is not available", p.Name))
		case p.Stock < requested[id]:
			problems = append(problems, fmt.Sprintf("insufficient stock for %s: requested %d, available %d", p.Name, requested[id], p.Stock))
		}
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrOutOfStock, strings.Join(problems, "; "))
	}
	return byID, nil
}

func (s *OrderService) CancelOrder(ctx context.Context, cmd CancelOrder) (*domain.Order, error) {
	order, err := s.load(ctx, cmd.OrderID, cmd.UserID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := order.Cancel(cmd.Reason, now); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, order); err != nil {
		return nil, err
	}
	s.logger.Info("order cancelled", zap.String("order_number", order.OrderNumber))

	s.events.Publish(ctx, domain.OrderCancelledEvent{Order: order.Snapshot(), Reason: cmd.Reason, OccurredAt: now})
	return order, nil
}

func (s *OrderService) ConfirmPayment(ctx context.Context, cmd ConfirmPayment) (*domain.Order, error) {
	order, err := s.load(ctx, cmd.OrderID, cmd.UserID)
	if err != nil {
		return nil, err
	}
	if err := order.PaymentConfirmable(); err != nil {
		return nil, err
	}

	if err := s.payments.Capture(ctx, order); err != nil {
		if !errors.Is(err, ErrPaymentDeclined) {
			return nil, fmt.Errorf("capture payment for order %s: %w", order.OrderNumber, err)
		}
		order.FailPayment()
		if saveErr := s.repo.Save(ctx, order); saveErr != nil {
			return nil, saveErr
		}
		s.logger.Warn("payment declined", zap.String("order_number", order.OrderNumber))
		return nil, err
	}

	if err := order.ConfirmPayment(); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, order); err != nil {
		return nil, err
	}
	s.logger.Info("payment confirmed", zap.String("order_number", order.OrderNumber))

	s.events.Publish(ctx, domain.PaymentConfirmedEvent{Order: order.Snapshot(), OccurredAt: s.now()})
	return order, nil
}

func (s *OrderService) UpdateOrderStatus(ctx context.Context, cmd UpdateOrderStatus) (*domain.Order, error) {
	order, err := s.load(ctx, cmd.OrderID, nil)
	if err != nil {
		return nil, err
	}
	now := s.now()
	old, err := order.UpdateStatus(domain.StatusUpdate{
		Status:         cmd.Status,
		TrackingNumber: cmd.TrackingNumber,
		PaymentStatus:  cmd.PaymentStatus,
	}, now)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, order); err != nil {
		return nil, err
	}
	s.logger.Info("order status updated",
		zap.String("order_number", order.OrderNumber),
		zap.String("from", string(old)),
		zap.String("to", string(order.Status)))

	s.events.Publish(ctx, domain.OrderStatusUpdatedEvent{
		Order:          order.Snapshot(),
		OldStatus:      old,
		NewStatus:      order.Status,
		TrackingNumber: cmd.TrackingNumber,
		PaymentStatus:  cmd.PaymentStatus,
		OccurredAt:     now,
	})
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, q GetOrder) (*domain.Order, error) {
	return s.load(ctx, q.OrderID, q.UserID)
}

func (s *OrderService) GetOrders(ctx context.Context, q GetOrders) (*OrderPage, error) {
	page, limit := q.Page, q.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	limit = min(limit, MaxPageLimit)

	orders, total, err := s.repo.FindMany(ctx, repository.OrderFilter{UserID: q.UserID, Status: q.Status}, page, limit)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return &OrderPage{
		Orders:     orders,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: int((total + int64(limit) - 1) / int64(limit)),
	}, nil
}

func (s *OrderService) load(ctx context.Context, id uint64, userID *uint64) (*domain.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil || order.Deleted() {
		return nil, fmt.Errorf("%w: order %d", domain.ErrNotFound, id)
	}
	if !order.OwnedBy(userID) {
		return nil, fmt.Errorf("%w: order %d belongs to another user", domain.ErrForbidden, id)
	}
	return order, nil
}
