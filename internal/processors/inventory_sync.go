package processors

import (
	"context"

	"go.uber.org/zap"

	"order-pipeline/internal/infra"
	"order-pipeline/internal/queue"
)

type InventorySyncProcessor struct {
	client infra.InventoryClientInterface
	logger *zap.Logger
}

func NewInventorySyncProcessor(client infra.InventoryClientInterface, logger *zap.Logger) *InventorySyncProcessor {
	return &InventorySyncProcessor{client: client, logger: logger}
}

func (p *InventorySyncProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Name != JobDeductInventory {
		return unknownJob(QueueInventorySync, job)
	}
	payload, err := Decode(job)
	if err != nil {
		return err
	}
	pl := payload.(DeductInventoryPayload)
	if len(pl.Items) == 0 {
		return queue.Unrecoverablef("order %s has no items to deduct", pl.OrderNumber)
	}

	req := infra.DeductInventoryRequest{
		OrderNumber: pl.OrderNumber,
		Items:       make([]infra.InventoryItem, 0, len(pl.Items)),
	}
	for _, it := range pl.Items {
		req.Items = append(req.Items, infra.InventoryItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	if err := p.client.DeductInventoryForOrder(ctx, req, job.IdempotencyKey); err != nil {
		return classify(err)
	}
	p.logger.Info("inventory deducted",
		zap.String("order_number", pl.OrderNumber),
		zap.Int("lines", len(req.Items)))
	return nil
}
