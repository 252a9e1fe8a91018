package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

type Processor interface {
	Process(ctx context.Context, job *Job) error
}

type ProcessorFunc func(ctx context.Context, job *Job) error

func (f ProcessorFunc) Process(ctx context.Context, job *Job) error { return f(ctx, job) }

// Route names one job a queue is expected to run.
type Route struct {
	Queue string
	Job   string
}

func (r Route) String() string { return r.Queue + "/" + r.Job }

type registration struct {
	processor Processor
	jobs      map[string]struct{}
}

// Registry maps (queue, job name) to the processor that runs it. It is
// filled once at startup and read-only afterwards.
type Registry struct {
	queues map[string]*registration
}

func NewRegistry() *Registry {
	return &Registry{queues: make(map[string]*registration)}
}

// Register binds p as the processor for queue and declares the job names
// it handles.
func (r *Registry) Register(queue string, p Processor, jobNames ...string) error {
	if _, ok := r.queues[queue]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateQueue, queue)
	}
	if len(jobNames) == 0 {
		return fmt.Errorf("queue %s: at least one job name is required", queue)
	}
	reg := &registration{processor: p, jobs: make(map[string]struct{}, len(jobNames))}
	for _, name := range jobNames {
		reg.jobs[name] = struct{}{}
	}
	r.queues[queue] = reg
	return nil
}

// Lookup returns the processor for a job, or an error when the queue has
// no processor or the job name is not declared for it.
func (r *Registry) Lookup(queue, jobName string) (Processor, error) {
	reg, ok := r.queues[queue]
	if !ok {
		return nil, fmt.Errorf("%w for queue %s", ErrNoProcessor, queue)
	}
	if _, ok := reg.jobs[jobName]; !ok {
		return nil, fmt.Errorf("%w %q on queue %s", ErrUnknownJobName, jobName, queue)
	}
	return reg.processor, nil
}

// Require fails unless every route has a processor.
func (r *Registry) Require(routes ...Route) error {
	var errs []error
	for _, rt := range routes {
		if _, err := r.Lookup(rt.Queue, rt.Job); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) Queues() []string {
	out := make([]string, 0, len(r.queues))
	for q := range r.queues {
		out = append(out, q)
	}
	sort.Strings(out)
	return out
}
