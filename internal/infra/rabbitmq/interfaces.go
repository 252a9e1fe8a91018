package rabbitmq

import "order-pipeline/internal/infra"

var _ infra.MessagePublisher = (*Publisher)(nil)
