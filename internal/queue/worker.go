package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type WorkerOptions struct {
	Concurrency  int
	PollInterval time.Duration
}

// Worker drains one queue with a fixed number of goroutines. Each goroutine
// runs at most one job at a time.
type Worker struct {
	queue        string
	store        Store
	registry     *Registry
	concurrency  int
	pollInterval time.Duration
	logger       *zap.Logger
	metrics      *Metrics
}

func NewWorker(queue string, store Store, registry *Registry, opts WorkerOptions, logger *zap.Logger, metrics *Metrics) (*Worker, error) {
	if _, ok := registry.queues[queue]; !ok {
		return nil, fmt.Errorf("%w for queue %s", ErrNoProcessor, queue)
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	return &Worker{
		queue:        queue,
		store:        store,
		registry:     registry,
		concurrency:  opts.Concurrency,
		pollInterval: opts.PollInterval,
		logger:       logger.With(zap.String("queue", queue)),
		metrics:      metrics,
	}, nil
}

// Run blocks until ctx is cancelled. Jobs already running when ctx ends are
// allowed to finish.
func (w *Worker) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		g.Go(func() error {
			w.loop(gctx)
			return nil
		})
	}
	w.logger.Info("worker started", zap.Int("concurrency", w.concurrency))
	err := g.Wait()
	w.logger.Info("worker stopped")
	return err
}

func (w *Worker) loop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		ok, err := w.ProcessNext(ctx)
		if err != nil {
			w.logger.Error("queue operation failed", zap.Error(err))
		}
		if ok && err == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.pollInterval):
		}
	}
}

// ProcessNext reserves and runs a single job. It reports whether a job was
// found. The returned error is about the queue itself; job failures are
// handled by the retry policy.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	job, err := w.store.Reserve(ctx, w.queue)
	if err != nil || job == nil {
		return false, err
	}

	// In-flight jobs are not cancelled mid-call.
	runCtx := context.WithoutCancel(ctx)

	job.Attempts++
	start := time.Now()
	procErr := w.run(runCtx, job)
	took := time.Since(start)

	log := w.logger.With(
		zap.String("job_id", job.ID),
		zap.String("job_name", job.Name),
		zap.Int("attempt", job.Attempts),
		zap.Int("max_attempts", job.MaxAttempts),
	)

	if procErr == nil {
		job.LastError = ""
		w.metrics.observe(w.queue, OutcomeCompleted, took)
		log.Debug("job completed", zap.Duration("took", took))
		return true, w.settle(log, w.store.Complete(runCtx, job))
	}

	job.LastError = procErr.Error()
	if IsUnrecoverable(procErr) || job.Attempts >= job.MaxAttempts {
		w.metrics.observe(w.queue, OutcomeDead, took)
		log.Error("job dead-lettered",
			zap.Bool("unrecoverable", IsUnrecoverable(procErr)),
			zap.Error(procErr))
		return true, w.settle(log, w.store.Bury(runCtx, job))
	}

	delay := job.Backoff.Next(job.Attempts)
	w.metrics.observe(w.queue, OutcomeRetried, took)
	log.Warn("job failed, will retry", zap.Duration("retry_in", delay), zap.Error(procErr))
	return true, w.settle(log, w.store.Retry(runCtx, job, delay))
}

// settle drops the outcome of a run whose lease expired mid-flight. The
// job already belongs to whichever worker reserved it next.
func (w *Worker) settle(log *zap.Logger, err error) error {
	if errors.Is(err, ErrLeaseLost) {
		log.Warn("job lease lost, outcome discarded")
		return nil
	}
	return err
}

func (w *Worker) run(ctx context.Context, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processor panic: %v", r)
		}
	}()

	p, err := w.registry.Lookup(job.Queue, job.Name)
	if err != nil {
		if errors.Is(err, ErrUnknownJobName) || errors.Is(err, ErrNoProcessor) {
			return Unrecoverable(err)
		}
		return err
	}
	return p.Process(ctx, job)
}

// Pool runs several workers until the context ends.
type Pool struct {
	workers []*Worker
}

func NewPool(workers ...*Worker) *Pool {
	return &Pool{workers: workers}
}

func (p *Pool) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range p.workers {
		g.Go(func() error { return w.Run(gctx) })
	}
	return g.Wait()
}
