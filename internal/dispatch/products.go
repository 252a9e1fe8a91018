package dispatch

import (
	"context"

	"order-pipeline/internal/infra"
	"order-pipeline/internal/processors"
	"order-pipeline/internal/queue"
)

// ProductIntake queues product writes for the admin service. Product jobs
// carry no idempotency key.
type ProductIntake struct {
	queue queue.Enqueuer
}

func NewProductIntake(enq queue.Enqueuer) *ProductIntake {
	return &ProductIntake{queue: enq}
}

func (p *ProductIntake) Create(ctx context.Context, fields map[string]any, image *infra.Upload) (string, error) {
	return p.enqueue(ctx, processors.ProductUpsertPayload{Fields: fields, Image: image})
}

func (p *ProductIntake) Update(ctx context.Context, productID uint64, fields map[string]any, image *infra.Upload) (string, error) {
	return p.enqueue(ctx, processors.ProductUpsertPayload{ProductID: &productID, Fields: fields, Image: image})
}

func (p *ProductIntake) enqueue(ctx context.Context, payload processors.ProductUpsertPayload) (string, error) {
	q := processors.QueueProductCreation
	return p.queue.Enqueue(ctx, q, payload.JobName(), payload, Policy(q, ""))
}
