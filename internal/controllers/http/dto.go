package http

import "order-pipeline/internal/domain"

type AddressRequest struct {
	FirstName  string `json:"firstName" binding:"required"`
	LastName   string `json:"lastName" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	Phone      string `json:"phone"`
	Address1   string `json:"address1" binding:"required"`
	Address2   string `json:"address2"`
	City       string `json:"city" binding:"required"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode" binding:"required"`
	Country    string `json:"country" binding:"required"`
}

func (a AddressRequest) toDomain() domain.Address {
	return domain.Address{
		FirstName:  a.FirstName,
		LastName:   a.LastName,
		Email:      a.Email,
		Phone:      a.Phone,
		Address1:   a.Address1,
		Address2:   a.Address2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

type OrderItemRequest struct {
	ProductID uint64 `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

type PaymentDetailsRequest struct {
	Method string `json:"method" binding:"required"`
}

type CreateOrderRequest struct {
	Items           []OrderItemRequest    `json:"items" binding:"required,min=1,dive"`
	ShippingAddress AddressRequest        `json:"shippingAddress" binding:"required"`
	BillingAddress  *AddressRequest       `json:"billingAddress"`
	PaymentDetails  PaymentDetailsRequest `json:"paymentDetails" binding:"required"`
	PaymentMethod   string                `json:"paymentMethod"`
	Notes           string                `json:"notes"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

type UpdateStatusRequest struct {
	Status         string  `json:"status" binding:"required"`
	TrackingNumber *string `json:"trackingNumber"`
	PaymentStatus  *string `json:"paymentStatus"`
}

type ListOrdersQuery struct {
	Status string `form:"status"`
	Page   int    `form:"page"`
	Limit  int    `form:"limit"`
}

type JobAcceptedResponse struct {
	JobID string `json:"jobId"`
}
