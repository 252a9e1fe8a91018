package dispatch

import (
	"time"

	"order-pipeline/internal/processors"
	"order-pipeline/internal/queue"
)

var policies = map[string]queue.Options{
	processors.QueueOrderSync: {
		MaxAttempts: 5,
		Backoff:     queue.Backoff{Type: queue.BackoffExponential, Delay: 2 * time.Second},
	},
	processors.QueueInventorySync: {
		MaxAttempts: 5,
		Backoff:     queue.Backoff{Type: queue.BackoffExponential, Delay: 2 * time.Second},
	},
	processors.QueueEmail: {
		MaxAttempts: 3,
		Backoff:     queue.Backoff{Type: queue.BackoffExponential, Delay: 5 * time.Second},
	},
	processors.QueueProductCreation: {
		MaxAttempts: 3,
		Backoff:     queue.Backoff{Type: queue.BackoffExponential, Delay: 5 * time.Second},
	},
}

// Policy returns the retry settings for a queue with the given idempotency
// key. Unknown queues get a single attempt.
func Policy(queueName, key string) queue.Options {
	opts, ok := policies[queueName]
	if !ok {
		opts = queue.Options{MaxAttempts: 1}
	}
	opts.IdempotencyKey = key
	return opts
}

// Routes lists every (queue, job) pair this package can enqueue. Startup
// fails unless each has a processor.
func Routes() []queue.Route {
	return []queue.Route{
		{Queue: processors.QueueOrderSync, Job: processors.JobSyncOrder},
		{Queue: processors.QueueOrderSync, Job: processors.JobUpdateOrderStatus},
		{Queue: processors.QueueOrderSync, Job: processors.JobCancelOrder},
		{Queue: processors.QueueInventorySync, Job: processors.JobDeductInventory},
		{Queue: processors.QueueEmail, Job: processors.JobOrderConfirmation},
		{Queue: processors.QueueProductCreation, Job: processors.JobCreateProduct},
		{Queue: processors.QueueProductCreation, Job: processors.JobUpdateProduct},
	}
}
