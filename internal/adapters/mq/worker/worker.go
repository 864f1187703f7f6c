// Package worker drains the submission queue, scores scale payloads and
// writes records to the case store.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/caretrack/internal/adapters/mq/queue"
	"github.com/okian/caretrack/internal/domain/model"
	"github.com/okian/caretrack/pkg/logger"
	"github.com/okian/caretrack/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 4 // multiplier for runtime.NumCPU()
	metricsUpdateInterval   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Scoring outcomes reported to metrics.
const (
	outcomeScored  = "scored"
	outcomeSkipped    = "skipped"
	outcomeFailed     = "failed"
	outcomeOutOfRange = "out_of_range"
)

// Store receives processed records.
type Store interface {
	UpsertEvent(ctx context.Context, caseID string, e model.CaseEvent) (string, bool, error)
	UpsertScale(ctx context.Context, caseID string, r model.ScaleRecord) (string, bool, error)
	RetainScale(ctx context.Context, caseID string, r model.ScaleRecord) (string, bool, error)
}

// Scorer fills scale totals from payloads.
type Scorer interface {
	Apply(rec model.ScaleRecord) (model.ScaleRecord, error)
}

// Queue defines how workers receive submissions.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Submission
}

// Worker processes submissions from a queue.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue drains.
	Run(ctx context.Context)

	// Shutdown stops the worker and waits for it to exit.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue  Queue
	scorer Scorer
	store  Store
	name   string

	shutdown chan struct{}
	done     chan struct{}
	active   *atomic.Int64

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options. A nil
// scorer stores scale records as submitted.
func NewInMemoryWorker(q Queue, scorer Scorer, store Store, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		scorer:   scorer,
		store:    store,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		active:   &atomic.Int64{},
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	subs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case s, ok := <-subs:
			if !ok {
				return
			}
			w.active.Add(1)
			if err := w.process(ctx, s); err != nil {
				w.logger.Error(ctx, "error processing submission", logger.Error(err))
			}
			w.active.Add(-1)
		}
	}
}

// Shutdown stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process stores one submission. Scale payloads are scored first. When
// scoring fails the record is still stored, and a record submitted without a
// total keeps the total already stored under its id.
func (w *InMemoryWorker) process(ctx context.Context, s queue.Submission) error { //nolint:gocritic // hugeParam: Submission is passed by value for channel semantics
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	var err error
	switch s.Kind {
	case queue.KindEvent:
		_, _, err = w.store.UpsertEvent(ctx, s.CaseID, s.Event)
	case queue.KindScale:
		rec, ok := w.score(ctx, s)
		if ok {
			_, _, err = w.store.UpsertScale(ctx, s.CaseID, rec)
		} else {
			_, _, err = w.store.RetainScale(ctx, s.CaseID, rec)
		}
	default:
		err = fmt.Errorf("%w: unknown kind %q", queue.ErrInvalidSubmission, s.Kind)
	}
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "store_error")
		return fmt.Errorf("failed to store %s %s for case %s: %w", s.Kind, s.RecordID(), s.CaseID, err)
	}
	return nil
}

// score applies the scorer to a scale submission. ok is false when the
// payload could not be scored.
func (w *InMemoryWorker) score(ctx context.Context, s queue.Submission) (model.ScaleRecord, bool) { //nolint:gocritic // hugeParam: see process
	rec := s.Scale
	if w.scorer == nil {
		return rec, true
	}

	scaleType := string(rec.Type())
	scored, err := w.scorer.Apply(rec)
	switch {
	case err == nil:
		if _, valid := scored.Score(); !valid {
			metrics.RecordScoring(scaleType, outcomeOutOfRange)
			w.logger.Warn(ctx, "scored total outside the scale range, analyses will ignore it",
				logger.String("case_id", s.CaseID),
				logger.String("scale_id", rec.ID),
				logger.Float64("total", *scored.TotalScore),
			)
			return scored, true
		}
		metrics.RecordScoring(scaleType, outcomeScored)
		return scored, true
	case errors.Is(err, model.ErrNoPayload), errors.Is(err, model.ErrUnsupportedScale):
		metrics.RecordScoring(scaleType, outcomeSkipped)
		return rec, true
	default:
		metrics.RecordScoring(scaleType, outcomeFailed)
		metrics.RecordErrorByComponent("worker", "scoring_error")
		w.logger.Warn(ctx, "scoring failed, keeping the previous total",
			logger.String("case_id", s.CaseID),
			logger.String("scale_id", rec.ID),
			logger.Error(err),
		)
		return rec, false
	}
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	active  *atomic.Int64

	shutdown chan struct{}

	logger logger.Logger
}

// NewPool creates a worker pool. A workerCount below one sizes the pool
// from the CPU count.
func NewPool(workerCount int, q Queue, scorer Scorer, store Store, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	p := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    q,
		active:   &atomic.Int64{},
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		workerOpts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		w := NewInMemoryWorker(q, scorer, store, workerOpts...)
		w.active = p.active
		p.workers[i] = w
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)

	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Active returns the number of submissions being processed right now.
func (p *Pool) Active() int {
	return int(p.active.Load())
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	go p.startMetricsUpdater(ctx)
}

func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			metrics.UpdateWorkerActiveCount(p.Active())
		}
	}
}

// Shutdown closes the queue and waits for the workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}

	select {
	case <-p.shutdown:
	default:
		close(p.shutdown)
	}
	metrics.UpdateWorkerActiveCount(0)

	if timedOut {
		return fmt.Errorf("worker pool shutdown timed out: %w", shutdownCtx.Err())
	}
	return nil
}
