package repository

import (
	"context"

	"order-pipeline/internal/domain"
)

// OrderFilter narrows FindMany. Soft-deleted orders are excluded unless
// IncludeDeleted is set.
type OrderFilter struct {
	UserID         *uint64
	Status         *domain.OrderStatus
	IncludeDeleted bool
}

type OrderRepository interface {
	// Create persists the order and its items in one transaction.
	Create(ctx context.Context, order *domain.Order) error
	// Save updates the order row. Items are immutable and never rewritten.
	Save(ctx context.Context, order *domain.Order) error
	// FindByID returns nil, nil when the order does not exist or is deleted.
	FindByID(ctx context.Context, id uint64) (*domain.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*domain.Order, error)
	// FindMany pages through orders newest first. page starts at 1.
	FindMany(ctx context.Context, filter OrderFilter, page, limit int) ([]domain.Order, int64, error)
}
