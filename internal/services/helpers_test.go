package services

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"order-pipeline/internal/bus"
	"order-pipeline/internal/domain"
	"order-pipeline/internal/infra"
)

func CreateMockOrder(id uint64, userID *uint64, status domain.OrderStatus, payment domain.PaymentStatus) *domain.Order {
	return &domain.Order{
		ID:            id,
		OrderNumber:   "ORD-1700000000000-1234",
		UserID:        userID,
		Status:        status,
		PaymentStatus: payment,
		Subtotal:      decimal.RequireFromString("100"),
		Tax:           decimal.RequireFromString("10"),
		Total:         decimal.RequireFromString("110"),
		Items: []domain.OrderItem{{
			ProductID:   TestProductID,
			ProductName: TestProductName,
			Quantity:    2,
			Price:       decimal.RequireFromString("50"),
			Subtotal:    decimal.RequireFromString("100"),
		}},
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func CreateMockProduct(id uint64, name, price string, stock int) infra.ProductInfo {
	return infra.ProductInfo{
		ID:       id,
		Name:     name,
		SKU:      "SKU-" + name,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		IsActive: true,
	}
}

const (
	TestProductID   = uint64(1)
	TestOrderID     = uint64(1)
	TestProductName = "Test Product"
)

func userID(id uint64) *uint64 { return &id }

// recordingPublisher captures published events in order.
type recordingPublisher struct {
	mu     sync.Mutex
	events []bus.Event
}

func (r *recordingPublisher) Publish(ctx context.Context, events ...bus.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
}

func (r *recordingPublisher) Events() []bus.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bus.Event(nil), r.events...)
}
