package dispatch

import "order-pipeline/internal/domain"

// Idempotency keys are derived from business identifiers only, so the same
// logical operation always maps to the same key.

func SyncOrderKey(orderNumber string) string {
	return "sync-order-" + orderNumber
}

func UpdateOrderStatusKey(orderNumber string, status domain.OrderStatus, trackingNumber *string) string {
	key := "update-order-status-" + orderNumber + "-" + string(status)
	if trackingNumber != nil && *trackingNumber != "" {
		key += "-" + *trackingNumber
	}
	return key
}

func CancelOrderKey(orderNumber string) string {
	return "cancel-order-" + orderNumber
}

func DeductInventoryKey(orderNumber string) string {
	return "deduct-inventory-" + orderNumber
}
