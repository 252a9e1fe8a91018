package domain

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
	StatusRefunded   OrderStatus = "refunded"
	StatusSuccess    OrderStatus = "success"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered,
		StatusCancelled, StatusRefunded, StatusSuccess:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// Address is captured on the order at creation time and never re-derived
// from the customer profile.
type Address struct {
	FirstName  string `json:"firstName" gorm:"size:100"`
	LastName   string `json:"lastName" gorm:"size:100"`
	Email      string `json:"email" gorm:"size:255"`
	Phone      string `json:"phone" gorm:"size:50"`
	Address1   string `json:"address1" gorm:"size:255"`
	Address2   string `json:"address2" gorm:"size:255"`
	City       string `json:"city" gorm:"size:100"`
	State      string `json:"state" gorm:"size:100"`
	PostalCode string `json:"postalCode" gorm:"size:20"`
	Country    string `json:"country" gorm:"size:100"`
}

func (a Address) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

type Order struct {
	ID             uint64          `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderNumber    string          `json:"orderNumber" gorm:"size:64;not null;uniqueIndex"`
	UserID         *uint64         `json:"userId,omitempty" gorm:"index"`
	Status         OrderStatus     `json:"status" gorm:"size:20;not null;default:'pending';index"`
	PaymentStatus  PaymentStatus   `json:"paymentStatus" gorm:"size:20;not null;default:'pending'"`
	PaymentMethod  string          `json:"paymentMethod,omitempty" gorm:"size:50"`
	Subtotal       decimal.Decimal `json:"subtotal" gorm:"type:decimal(12,2);not null"`
	Tax            decimal.Decimal `json:"tax" gorm:"type:decimal(12,2);not null"`
	Shipping       decimal.Decimal `json:"shipping" gorm:"type:decimal(12,2);not null"`
	Discount       decimal.Decimal `json:"discount" gorm:"type:decimal(12,2);not null"`
	Total          decimal.Decimal `json:"total" gorm:"type:decimal(12,2);not null"`
	ShippingAddr   Address         `json:"shippingAddress" gorm:"embedded;embeddedPrefix:shipping_"`
	BillingAddr    Address         `json:"billingAddress" gorm:"embedded;embeddedPrefix:billing_"`
	Notes          string          `json:"notes,omitempty" gorm:"type:text"`
	TrackingNumber *string         `json:"trackingNumber,omitempty" gorm:"size:100"`
	ShippedAt      *time.Time      `json:"shippedAt,omitempty"`
	DeliveredAt    *time.Time      `json:"deliveredAt,omitempty"`
	CancelledAt    *time.Time      `json:"cancelledAt,omitempty"`
	CreatedAt      time.Time       `json:"createdAt" gorm:"autoCreateTime;index"`
	UpdatedAt      time.Time       `json:"updatedAt" gorm:"autoUpdateTime"`
	DeletedAt      *time.Time      `json:"deletedAt,omitempty" gorm:"index"`
	Items          []OrderItem     `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// OrderItem is an immutable snapshot of the product at order time.
type OrderItem struct {
	ID          uint64          `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderID     uint64          `json:"orderId" gorm:"not null;index"`
	ProductID   uint64          `json:"productId" gorm:"not null;index"`
	ProductName string          `json:"productName" gorm:"size:255;not null"`
	ProductSKU  string          `json:"productSku" gorm:"size:100"`
	Quantity    int             `json:"quantity" gorm:"not null"`
	Price       decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
	Subtotal    decimal.Decimal `json:"subtotal" gorm:"type:decimal(12,2);not null"`
	CreatedAt   time.Time       `json:"createdAt" gorm:"autoCreateTime"`
}

// NewOrderNumber returns ORD-<epoch-ms>-<4 random digits>.
func NewOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%d-%04d", now.UnixMilli(), 1000+rand.IntN(9000))
}

func (o *Order) Deleted() bool {
	return o.DeletedAt != nil
}

// OwnedBy reports whether userID may see or change the order. A nil userID
// skips the ownership check.
func (o *Order) OwnedBy(userID *uint64) bool {
	if userID == nil {
		return true
	}
	return o.UserID != nil && *o.UserID == *userID
}

// Snapshot returns a deep copy safe to hand to event subscribers.
func (o *Order) Snapshot() Order {
	c := *o
	if o.Items != nil {
		c.Items = make([]OrderItem, len(o.Items))
		copy(c.Items, o.Items)
	}
	c.UserID = copyPtr(o.UserID)
	c.TrackingNumber = copyPtr(o.TrackingNumber)
	c.ShippedAt = copyPtr(o.ShippedAt)
	c.DeliveredAt = copyPtr(o.DeliveredAt)
	c.CancelledAt = copyPtr(o.CancelledAt)
	c.DeletedAt = copyPtr(o.DeletedAt)
	return c
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
