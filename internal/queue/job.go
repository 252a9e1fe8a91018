package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

type State string

const (
	StateWaiting   State = "waiting"
	StateDelayed   State = "delayed"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateDead      State = "dead"
)

type BackoffType string

const (
	BackoffFixed       BackoffType = "fixed"
	BackoffExponential BackoffType = "exponential"
)

type Backoff struct {
	Type  BackoffType   `json:"type"`
	Delay time.Duration `json:"delay"`
}

// Next returns the wait before the retry that follows the given attempt
// (1-based). Exponential backoff doubles the base delay per attempt.
func (b Backoff) Next(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if b.Type != BackoffExponential {
		return b.Delay
	}
	shift := attempt - 1
	if shift > 20 {
		shift = 20
	}
	return b.Delay * time.Duration(1<<shift)
}

// Options control how a job is enqueued.
type Options struct {
	IdempotencyKey string
	MaxAttempts    int
	Backoff        Backoff
}

type Job struct {
	ID             string          `json:"id"`
	Queue          string          `json:"queue"`
	Name           string          `json:"name"`
	IdempotencyKey string          `json:"idempotencyKey,omitempty"`
	Payload        json.RawMessage `json:"payload"`
	Attempts       int             `json:"attempts"`
	MaxAttempts    int             `json:"maxAttempts"`
	Backoff        Backoff         `json:"backoff"`
	State          State           `json:"state"`
	LastError      string          `json:"lastError,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	FinishedAt     *time.Time      `json:"finishedAt,omitempty"`

	// lease identifies the reservation that handed out this copy of the job.
	lease string
}

// Decode unmarshals the payload into v.
func (j *Job) Decode(v any) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return fmt.Errorf("decode payload of job %s (%s): %w", j.ID, j.Name, err)
	}
	return nil
}

// Enqueuer is the port event subscribers use to schedule work.
type Enqueuer interface {
	Enqueue(ctx context.Context, queue, name string, payload any, opts Options) (string, error)
	// EnqueueUnique also reports whether a new job was stored. It is false
	// when opts.IdempotencyKey matched a job the queue still holds.
	EnqueueUnique(ctx context.Context, queue, name string, payload any, opts Options) (string, bool, error)
}

// Store is the persistence the worker pool drives.
type Store interface {
	// Reserve leases the next ready job, or returns nil, nil when the queue
	// is empty.
	Reserve(ctx context.Context, queue string) (*Job, error)
	// Complete, Retry and Bury fail with ErrLeaseLost when the job was
	// handed to another worker after its lease expired.
	Complete(ctx context.Context, job *Job) error
	Retry(ctx context.Context, job *Job, delay time.Duration) error
	Bury(ctx context.Context, job *Job) error
}
