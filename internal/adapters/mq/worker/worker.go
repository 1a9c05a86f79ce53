// Package worker runs the post-attempt pipeline: per-language typing metrics
// and live feed delivery.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/keystride/keystride/internal/adapters/mq/queue"
	"github.com/keystride/keystride/pkg/logger"
	"github.com/keystride/keystride/pkg/metrics"
)

const (
	defaultWorkerMultiplier = 2
	poolShutdownTimeout     = 30 * time.Second
)

// Event is what workers read off the queue.
type Event = queue.Event

// Publisher delivers processed events to live listeners and reports how
// many received them.
type Publisher interface {
	Publish(ctx context.Context, e Event) int
}

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Worker processes attempt events.
type Worker interface {
	// Run consumes events until ctx is done, Shutdown is called, or the
	// queue is closed and drained.
	Run(ctx context.Context)

	// Shutdown stops the worker and waits for Run to return.
	Shutdown(ctx context.Context) error
}

// Stats counts events handled by a worker or pool.
type Stats struct {
	Workers   int   `json:"workers"`
	Active    int64 `json:"active"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}

type counters struct {
	active    atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	publisher Publisher
	name      string
	stats     *counters

	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker reading from q and publishing to pub.
func NewInMemoryWorker(q Queue, pub Publisher, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		publisher: pub,
		name:      "worker",
		stats:     &counters{},
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	events := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := w.processEvent(ctx, e); err != nil {
				w.logger.Error(ctx, "error processing attempt event", logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker without draining the queue.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stop()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) stop() {
	w.stopOnce.Do(func() { close(w.shutdown) })
}

// Stats returns the worker's counters.
func (w *InMemoryWorker) Stats() Stats {
	return Stats{
		Workers:   1,
		Active:    w.stats.active.Load(),
		Processed: w.stats.processed.Load(),
		Failed:    w.stats.failed.Load(),
	}
}

func (w *InMemoryWorker) processEvent(ctx context.Context, e Event) error { //nolint:gocritic // hugeParam: events travel by value
	start := time.Now()
	metrics.UpdateWorkerActiveCount(int(w.stats.active.Add(1)))
	defer func() {
		metrics.UpdateWorkerActiveCount(int(w.stats.active.Add(-1)))
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	if e.UserID == "" || e.AttemptID == 0 {
		w.stats.failed.Add(1)
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "invalid_event")
		return fmt.Errorf("%w: attempt %d user %q", ErrInvalidEvent, e.AttemptID, e.UserID)
	}

	m := e.Metrics
	metrics.RecordAttempt(e.Lang, m.WPM, m.CPM, m.CER, m.ErrorHeatmap.Misses())

	delivered := 0
	if w.publisher != nil {
		delivered = w.publisher.Publish(ctx, e)
	}
	w.stats.processed.Add(1)

	w.logger.Debug(ctx, "attempt event processed",
		logger.Int64("attempt_id", e.AttemptID),
		logger.String("user_id", e.UserID),
		logger.Int("delivered", delivered),
	)
	return nil
}

// Pool manages a set of workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	stats   *counters
	logger  logger.Logger
}

// NewPool creates workerCount workers. A count below one picks a default
// based on the CPU count.
func NewPool(workerCount int, q Queue, pub Publisher) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		stats:   &counters{},
		logger:  logger.Named("worker-pool"),
	}
	for i := range p.workers {
		w := NewInMemoryWorker(q, pub, WithName("worker-"+strconv.Itoa(i)))
		w.stats = p.stats
		p.workers[i] = w
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	return p
}

// Start runs every worker in its own goroutine.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Stats returns counters aggregated over the pool.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   len(p.workers),
		Active:    p.stats.active.Load(),
		Processed: p.stats.processed.Load(),
		Failed:    p.stats.failed.Load(),
	}
}

// Shutdown closes the queue and lets workers drain it. Workers still busy
// when ctx expires, or after poolShutdownTimeout, are stopped.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	drainCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	timedOut := 0
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-drainCtx.Done():
			timedOut++
			p.logger.Warn(ctx, "worker drain timed out", logger.Int("worker_id", i))
			w.stop()
		}
	}
	if timedOut > 0 {
		return fmt.Errorf("worker pool shutdown: %d workers did not drain: %w", timedOut, drainCtx.Err())
	}
	return nil
}
