package processors

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"order-pipeline/internal/domain"
	"order-pipeline/internal/infra"
	"order-pipeline/internal/queue"
)

const (
	QueueOrderSync       = "order-sync"
	QueueInventorySync   = "inventory-sync"
	QueueEmail           = "email"
	QueueProductCreation = "product-creation"
)

const (
	JobSyncOrder         = "sync-order"
	JobUpdateOrderStatus = "update-order-status"
	JobCancelOrder       = "cancel-order"
	JobDeductInventory   = "deduct-inventory"
	JobOrderConfirmation = "order-confirmation"
	JobCreateProduct     = "create-product"
	JobUpdateProduct     = "update-product"
)

// Payload is the decoded body of a job. JobName ties each variant to the job
// name it is stored under.
type Payload interface {
	JobName() string
}

type SyncOrderPayload struct {
	OrderID     uint64 `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
}

type UpdateOrderStatusPayload struct {
	OrderNumber    string  `json:"orderNumber"`
	Status         string  `json:"status"`
	TrackingNumber *string `json:"trackingNumber,omitempty"`
	PaymentStatus  *string `json:"paymentStatus,omitempty"`
}

type CancelOrderPayload struct {
	OrderNumber string `json:"orderNumber"`
	Reason      string `json:"reason,omitempty"`
}

type InventoryLine struct {
	ProductID uint64 `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type DeductInventoryPayload struct {
	OrderNumber string          `json:"orderNumber"`
	Items       []InventoryLine `json:"items"`
}

type EmailLine struct {
	ProductName string          `json:"productName"`
	ProductSKU  string          `json:"productSku,omitempty"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// OrderConfirmationPayload carries everything the confirmation template
// renders, so the email processor never reads the order back.
type OrderConfirmationPayload struct {
	OrderNumber     string          `json:"orderNumber"`
	To              string          `json:"to"`
	CustomerName    string          `json:"customerName"`
	Items           []EmailLine     `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tax             decimal.Decimal `json:"tax"`
	Shipping        decimal.Decimal `json:"shipping"`
	Discount        decimal.Decimal `json:"discount"`
	Total           decimal.Decimal `json:"total"`
	ShippingAddress domain.Address  `json:"shippingAddress"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// ProductUpsertPayload creates a product when ProductID is nil and updates
// it otherwise. Fields is sparse: only keys the caller set are present.
type ProductUpsertPayload struct {
	ProductID *uint64        `json:"productId,omitempty"`
	Fields    map[string]any `json:"fields"`
	Image     *infra.Upload  `json:"image,omitempty"`
}

func (SyncOrderPayload) JobName() string         { return JobSyncOrder }
func (UpdateOrderStatusPayload) JobName() string { return JobUpdateOrderStatus }
func (CancelOrderPayload) JobName() string       { return JobCancelOrder }
func (DeductInventoryPayload) JobName() string   { return JobDeductInventory }
func (OrderConfirmationPayload) JobName() string { return JobOrderConfirmation }

func (p ProductUpsertPayload) JobName() string {
	if p.ProductID == nil {
		return JobCreateProduct
	}
	return JobUpdateProduct
}

// Decode returns the payload variant for job.Name. An unknown name or a body
// that does not fit the variant is unrecoverable.
func Decode(job *queue.Job) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch job.Name {
	case JobSyncOrder:
		p, err = decodeAs[SyncOrderPayload](job)
	case JobUpdateOrderStatus:
		p, err = decodeAs[UpdateOrderStatusPayload](job)
	case JobCancelOrder:
		p, err = decodeAs[CancelOrderPayload](job)
	case JobDeductInventory:
		p, err = decodeAs[DeductInventoryPayload](job)
	case JobOrderConfirmation:
		p, err = decodeAs[OrderConfirmationPayload](job)
	case JobCreateProduct, JobUpdateProduct:
		p, err = decodeAs[ProductUpsertPayload](job)
	default:
		return nil, queue.Unrecoverable(fmt.Errorf("%w %q", queue.ErrUnknownJobName, job.Name))
	}
	if err != nil {
		return nil, queue.Unrecoverable(err)
	}
	return p, nil
}

func decodeAs[T Payload](job *queue.Job) (Payload, error) {
	var v T
	if err := job.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
