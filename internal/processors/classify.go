package processors

import (
	"errors"

	"order-pipeline/internal/infra"
	"order-pipeline/internal/queue"
)

// classify sorts a gateway failure into unrecoverable or transient. A 4xx
// answer other than 408/429 can never succeed on retry. Everything else,
// including a 2xx answer with success=false, is retried.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if queue.IsUnrecoverable(err) || queue.IsTransient(err) {
		return err
	}
	var apiErr *infra.APIError
	if errors.As(err, &apiErr) && apiErr.Permanent() {
		return queue.Unrecoverable(err)
	}
	return queue.Transient(err)
}

func unknownJob(queueName string, job *queue.Job) error {
	return queue.Unrecoverablef("%w %q on queue %s", queue.ErrUnknownJobName, job.Name, queueName)
}
