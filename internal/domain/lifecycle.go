package domain

import (
	"fmt"
	"strings"
	"time"
)

// Cancel moves the order to cancelled. Delivered, refunded, completed and
// already cancelled orders cannot be cancelled.
func (o *Order) Cancel(reason string, now time.Time) error {
	switch o.Status {
	case StatusCancelled:
		return fmt.Errorf("%w: order %s is already cancelled", ErrInvalidState, o.OrderNumber)
	case StatusDelivered, StatusRefunded, StatusSuccess:
		return fmt.Errorf("%w: order %s is %s and cannot be cancelled", ErrInvalidState, o.OrderNumber, o.Status)
	}

	o.Status = StatusCancelled
	o.CancelledAt = &now
	if reason = strings.TrimSpace(reason); reason != "" {
		line := "Cancellation reason: " + reason
		if o.Notes == "" {
			o.Notes = line
		} else {
			o.Notes += "\n" + line
		}
	}
	return nil
}

// PaymentConfirmable reports whether a payment may be captured for the
// order.
func (o *Order) PaymentConfirmable() error {
	if o.PaymentStatus == PaymentPaid {
		return fmt.Errorf("%w: payment for order %s is already confirmed", ErrInvalidState, o.OrderNumber)
	}
	if o.Status == StatusCancelled {
		return fmt.Errorf("%w: order %s is cancelled", ErrInvalidState, o.OrderNumber)
	}
	return nil
}

// ConfirmPayment records a captured payment and starts processing.
func (o *Order) ConfirmPayment() error {
	if err := o.PaymentConfirmable(); err != nil {
		return err
	}
	o.PaymentStatus = PaymentPaid
	o.Status = StatusProcessing
	return nil
}

func (o *Order) FailPayment() {
	o.PaymentStatus = PaymentFailed
}

// StatusUpdate is the patch applied by UpdateStatus. Nil fields are left
// untouched.
type StatusUpdate struct {
	Status         OrderStatus
	TrackingNumber *string
	PaymentStatus  *PaymentStatus
}

// UpdateStatus applies the patch and returns the previous status. ShippedAt
// and DeliveredAt are stamped on the first transition only.
func (o *Order) UpdateStatus(u StatusUpdate, now time.Time) (OrderStatus, error) {
	if !u.Status.Valid() {
		return "", fmt.Errorf("%w: unknown order status %q", ErrValidation, u.Status)
	}
	if u.PaymentStatus != nil && !u.PaymentStatus.Valid() {
		return "", fmt.Errorf("%w: unknown payment status %q", ErrValidation, *u.PaymentStatus)
	}
	if o.Status == StatusCancelled && u.Status != StatusCancelled {
		return "", fmt.Errorf("%w: order %s is cancelled", ErrInvalidState, o.OrderNumber)
	}

	old := o.Status
	o.Status = u.Status
	if u.TrackingNumber != nil {
		tn := *u.TrackingNumber
		o.TrackingNumber = &tn
	}
	if u.PaymentStatus != nil {
		o.PaymentStatus = *u.PaymentStatus
	}

	switch u.Status {
	case StatusShipped:
		if o.ShippedAt == nil {
			o.ShippedAt = &now
		}
	case StatusDelivered:
		if o.DeliveredAt == nil {
			o.DeliveredAt = &now
		}
	case StatusCancelled:
		if o.CancelledAt == nil {
			o.CancelledAt = &now
		}
	}
	return old, nil
}
