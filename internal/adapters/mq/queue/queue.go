// Package queue defines the contract for enqueuing and consuming submissions.
//
// Submissions are case records posted to the service; workers score and
// store them asynchronously.
package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/okian/caretrack/internal/domain/model"
	"github.com/okian/caretrack/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 10000
)

// Kind names the record type of a submission.
type Kind string

// Submission kinds.
const (
	KindEvent Kind = "event"
	KindScale Kind = "scale"
)

// Submission is one record posted for a case.
type Submission struct {
	CaseID      string
	Kind        Kind
	Event       model.CaseEvent
	Scale       model.ScaleRecord
	Fingerprint string
	EnqueuedAt  time.Time
}

// Validate reports whether the submission can be processed.
func (s Submission) Validate() error {
	if strings.TrimSpace(s.CaseID) == "" {
		return fmt.Errorf("%w: missing case id", ErrInvalidSubmission)
	}
	switch s.Kind {
	case KindEvent, KindScale:
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidSubmission, s.Kind)
	}
}

// RecordID returns the id of the carried record.
func (s Submission) RecordID() string {
	if s.Kind == KindScale {
		return s.Scale.ID
	}
	return s.Event.ID
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a submission to the queue.
	// Returns false if the queue is full or closed.
	Enqueue(ctx context.Context, s Submission) bool

	// Dequeue returns a channel that will receive submissions as they become available.
	// The channel will be closed when the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Submission

	// Len returns the current number of queued submissions.
	Len(ctx context.Context) int

	// Close stops accepting submissions.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	items    chan Submission
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.items = make(chan Submission, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0.0)

	return q
}

// Capacity returns the configured capacity.
func (q *InMemoryQueue) Capacity() int {
	return q.capacity
}

// Enqueue adds a submission to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, s Submission) bool { //nolint:gocritic // hugeParam: passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return false
	}
	if s.EnqueuedAt.IsZero() {
		s.EnqueuedAt = time.Now()
	}

	select {
	case <-ctx.Done():
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return false
	default:
	}

	select {
	case q.items <- s:
		metrics.RecordQueueEnqueue()
		q.updateGauges()
		return true
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return false
	}
}

// Dequeue returns a channel that will receive submissions as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Submission {
	out := make(chan Submission)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case s, ok := <-q.items:
				if !ok {
					return
				}
				select {
				case out <- s:
					metrics.RecordQueueDequeue()
					metrics.RecordQueueProcessingLatency(float64(time.Since(s.EnqueuedAt).Milliseconds()))
					q.updateGauges()
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Len returns the current number of queued submissions.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	return len(q.items)
}

// Close stops accepting submissions. Already queued ones are still delivered.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.items)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

func (q *InMemoryQueue) updateGauges() {
	size := len(q.items)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}
