package processors

import (
	"errors"

	"go.uber.org/zap"

	"order-pipeline/internal/infra"
	"order-pipeline/internal/infra/email"
	"order-pipeline/internal/queue"
)

type Deps struct {
	OrderSync infra.OrderSyncClientInterface
	Inventory infra.InventoryClientInterface
	Products  infra.ProductWriterInterface
	Orders    OrderReader
	Email     email.Sender
	Logger    *zap.Logger
}

// Register binds every processor to its queue and declares the job names
// each one accepts.
func Register(reg *queue.Registry, d Deps) error {
	return errors.Join(
		reg.Register(QueueOrderSync,
			NewOrderSyncProcessor(d.OrderSync, d.Orders, d.Logger.Named("order-sync")),
			JobSyncOrder, JobUpdateOrderStatus, JobCancelOrder),
		reg.Register(QueueInventorySync,
			NewInventorySyncProcessor(d.Inventory, d.Logger.Named("inventory-sync")),
			JobDeductInventory),
		reg.Register(QueueEmail,
			NewEmailProcessor(d.Email, d.Logger.Named("email")),
			JobOrderConfirmation),
		reg.Register(QueueProductCreation,
			NewProductProcessor(d.Products, d.Logger.Named("product")),
			JobCreateProduct, JobUpdateProduct),
	)
}
