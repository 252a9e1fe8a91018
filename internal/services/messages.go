package services

import "order-pipeline/internal/domain"

// Commands

type CreateOrderItem struct {
	ProductID uint64
	Quantity  int
}

type CreateOrder struct {
	UserID          *uint64
	Items           []CreateOrderItem
	ShippingAddress domain.Address
	// BillingAddress defaults to ShippingAddress when nil.
	BillingAddress *domain.Address
	PaymentMethod  string
	Notes          string
}

type CancelOrder struct {
	OrderID uint64
	UserID  *uint64
	Reason  string
}

type ConfirmPayment struct {
	OrderID uint64
	UserID  *uint64
}

type UpdateOrderStatus struct {
	OrderID        uint64
	Status         domain.OrderStatus
	TrackingNumber *string
	PaymentStatus  *domain.PaymentStatus
}

// Queries

type GetOrder struct {
	OrderID uint64
	UserID  *uint64
}

type GetOrders struct {
	UserID *uint64
	Status *domain.OrderStatus
	Page   int
	Limit  int
}

type OrderPage struct {
	Orders     []domain.Order `json:"orders"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"totalPages"`
}

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// Commands lists one value of every command type the service handles.
func Commands() []any {
	return []any{CreateOrder{}, CancelOrder{}, ConfirmPayment{}, UpdateOrderStatus{}}
}

// Queries lists one value of every query type the service handles.
func Queries() []any {
	return []any{GetOrder{}, GetOrders{}}
}
