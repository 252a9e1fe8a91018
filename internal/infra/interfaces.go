package infra

import "context"

type ProductClientInterface interface {
	GetProductById(ctx context.Context, id uint64) (*ProductInfo, error)
	GetProductsBatch(ctx context.Context, ids []uint64) ([]ProductInfo, error)
}

type InventoryClientInterface interface {
	DeductInventoryForOrder(ctx context.Context, req DeductInventoryRequest, idempotencyKey string) error
}

type OrderSyncClientInterface interface {
	SyncOrder(ctx context.Context, req OrderSyncRequest, idempotencyKey string) error
	UpdateOrderStatus(ctx context.Context, orderNumber string, req OrderStatusRequest, idempotencyKey string) error
	CancelOrder(ctx context.Context, orderNumber string, req CancelOrderRequest, idempotencyKey string) error
}

type ProductWriterInterface interface {
	CreateProduct(ctx context.Context, form ProductForm) (*ProductInfo, error)
	UpdateProduct(ctx context.Context, id uint64, form ProductForm) (*ProductInfo, error)
}

var (
	_ ProductClientInterface   = (*AdminClient)(nil)
	_ InventoryClientInterface = (*AdminClient)(nil)
	_ OrderSyncClientInterface = (*AdminClient)(nil)
	_ ProductWriterInterface   = (*AdminClient)(nil)
)
