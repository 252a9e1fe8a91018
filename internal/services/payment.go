package services

import (
	"context"
	"errors"

	"order-pipeline/internal/domain"
)

// ErrPaymentDeclined is returned by a PaymentProcessor when the payment was
// refused. Any other capture error is treated as an outage.
var ErrPaymentDeclined = errors.New("payment declined")

type PaymentProcessor interface {
	Capture(ctx context.Context, order *domain.Order) error
}

// ApprovingPaymentProcessor accepts every capture.
type ApprovingPaymentProcessor struct{}

func (ApprovingPaymentProcessor) Capture(ctx context.Context, order *domain.Order) error {
	return nil
}
