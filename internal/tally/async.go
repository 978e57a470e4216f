package tally

import (
	"context"
	"errors"
	"sync"

	"sentiment-api/internal/shared/metrics"
	"sentiment-api/internal/shared/telemetry"
)

var (
	// ErrQueueFull is returned when the write queue has no room left.
	ErrQueueFull = errors.New("tally queue full")
	// ErrRecorderClosed is returned for writes after Close.
	ErrRecorderClosed = errors.New("tally recorder closed")
)

const defaultQueueSize = 1024

// AsyncRecorder hands tally writes to a single background worker. Record
// never waits on storage; when the queue is full the write is dropped.
type AsyncRecorder struct {
	svc   *Service
	queue chan string
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewAsyncRecorder starts the worker. Call Close to drain and stop it.
func NewAsyncRecorder(svc *Service, size int) *AsyncRecorder {
	if size <= 0 {
		size = defaultQueueSize
	}
	r := &AsyncRecorder{
		svc:   svc,
		queue: make(chan string, size),
		done:  make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *AsyncRecorder) Record(_ context.Context, sentiment string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrRecorderClosed
	}
	select {
	case r.queue <- sentiment:
		return nil
	default:
		metrics.IncTallyFailure("queue_full")
		return ErrQueueFull
	}
}

// Close stops accepting writes and waits for queued ones until ctx ends.
func (r *AsyncRecorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *AsyncRecorder) run() {
	defer close(r.done)
	for sentiment := range r.queue {
		if err := r.svc.Record(context.Background(), sentiment); err != nil {
			telemetry.Warn("tally.record_failed", map[string]any{
				"sentiment": sentiment,
				"error":     err,
			})
		}
	}
}
