package processors

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"order-pipeline/internal/infra/email"
	"order-pipeline/internal/queue"
)

type EmailProcessor struct {
	sender email.Sender
	logger *zap.Logger
}

func NewEmailProcessor(sender email.Sender, logger *zap.Logger) *EmailProcessor {
	return &EmailProcessor{sender: sender, logger: logger}
}

func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Name != JobOrderConfirmation {
		return unknownJob(QueueEmail, job)
	}
	payload, err := Decode(job)
	if err != nil {
		return err
	}
	pl := payload.(OrderConfirmationPayload)
	if pl.To == "" {
		return queue.Unrecoverablef("order %s has no recipient address", pl.OrderNumber)
	}

	subject := "Order Confirmation - " + pl.OrderNumber
	if err := p.sender.Send(ctx, pl.To, subject, email.TemplateOrderConfirmation, pl); err != nil {
		if errors.Is(err, email.ErrUnknownTemplate) {
			return queue.Unrecoverable(err)
		}
		return queue.Transient(err)
	}
	p.logger.Info("confirmation email sent", zap.String("order_number", pl.OrderNumber))
	return nil
}
