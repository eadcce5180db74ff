// Package pool presents a single logical execution channel backed by a
// bounded, lazily-grown set of workers sharing an outbound request queue
// and an inbound result queue.
package pool

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/seantiz/quill/internal/model"
	"github.com/seantiz/quill/internal/queue"
	"github.com/seantiz/quill/internal/worker"
)

// ErrPoolClosed is returned by Enqueue after Shutdown.
var ErrPoolClosed = errors.New("pool is shut down")

// ErrUnmatchedResult is returned by Drain when an inbound envelope has no
// registered callback. It indicates a correlation bug and is never
// swallowed.
var ErrUnmatchedResult = errors.New("result with no registered callback")

// Callback receives the payload of one completed request.
type Callback func(model.Payload)

// Pool owns the worker lifecycle and the two shared queues. The first
// worker is created eagerly at construction; further workers are created
// on demand, one per enqueue that finds every existing worker busy, up to
// the limit. Workers are never removed before Shutdown.
//
// Enqueue and Drain are called from the controller context; both are
// non-blocking. Workers block on their own queue pop only.
type Pool struct {
	factory  worker.Factory
	limit    int
	requests *queue.FIFO[model.Request]
	results  *queue.FIFO[model.Result]
	logger   *slog.Logger

	mu      sync.Mutex
	workers []worker.Worker
	closed  bool

	shutdownOnce sync.Once
}

// New creates a pool with the given worker factory and a positive worker
// limit, spawning the first worker immediately.
func New(factory worker.Factory, limit int, logger *slog.Logger) (*Pool, error) {
	if limit < 1 {
		return nil, fmt.Errorf("worker limit must be positive, got %d", limit)
	}

	p := &Pool{
		factory:  factory,
		limit:    limit,
		requests: queue.New[model.Request](),
		results:  queue.New[model.Result](),
		logger:   logger,
	}

	w, err := factory(p.requests, p.results)
	if err != nil {
		p.requests.Close()
		p.results.Close()
		return nil, fmt.Errorf("create first worker: %w", err)
	}
	p.workers = append(p.workers, w)
	workersGauge.Set(1)

	return p, nil
}

// Enqueue appends the request to the outbound queue and grows the pool by
// one worker when every existing worker is busy and the limit allows it.
// Growth is demand-driven; the pool never spawns ahead of need.
func (p *Pool) Enqueue(req model.Request) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}

	p.requests.Push(req)
	requestsEnqueued.Inc()
	queueDepth.Set(float64(p.requests.Len()))

	if len(p.workers) < p.limit && p.allBusy() {
		w, err := p.factory(p.requests, p.results)
		if err != nil {
			// The request is already queued; existing workers will get
			// to it. Growth just failed this round.
			p.logger.Error("spawn worker", "error", err, "workers", len(p.workers))
			return nil
		}
		p.workers = append(p.workers, w)
		workersGauge.Set(float64(len(p.workers)))
		p.logger.Debug("pool grew", "workers", len(p.workers), "limit", p.limit)
	}

	return nil
}

// allBusy reports whether every worker is executing. Caller holds p.mu.
func (p *Pool) allBusy() bool {
	for _, w := range p.workers {
		if !w.Busy() {
			return false
		}
	}
	return true
}

// Drain pops completed envelopes until the inbound queue is empty. For
// each envelope it resolves the callback through take — which must remove
// the entry it returns — and invokes it. An envelope whose id resolves to
// no entry stops the drain with ErrUnmatchedResult.
func (p *Pool) Drain(take func(id uint64) (Callback, bool)) (int, error) {
	drained := 0
	for {
		res, ok := p.results.TryPop()
		if !ok {
			queueDepth.Set(float64(p.requests.Len()))
			return drained, nil
		}
		cb, ok := take(res.ID)
		if !ok {
			return drained, fmt.Errorf("%w: id %d", ErrUnmatchedResult, res.ID)
		}
		cb(res.Payload)
		drained++
		resultsDrained.Inc()
	}
}

// Load returns pending outbound work divided by the worker limit: an
// advisory saturation metric, not a backpressure mechanism.
func (p *Pool) Load() float64 {
	load := float64(p.requests.Len()) / float64(p.limit)
	saturation.Set(load)
	return load
}

// Pending returns the number of requests waiting on the outbound queue.
func (p *Pool) Pending() int { return p.requests.Len() }

// WorkerCount returns the number of workers created so far.
func (p *Pool) WorkerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// Limit returns the configured worker limit.
func (p *Pool) Limit() int { return p.limit }

// ConnectionEstablished reports the first worker's connection state.
// Only the first worker is guaranteed to exist at construction time, so
// pool-level status is read from it alone.
func (p *Pool) ConnectionEstablished() bool { return p.firstWorker().ConnectionEstablished() }

// HasConnectionError reports the first worker's connection error state.
func (p *Pool) HasConnectionError() bool { return p.firstWorker().HasConnectionError() }

// LastConnectionError returns the first worker's connection error message.
func (p *Pool) LastConnectionError() string { return p.firstWorker().LastConnectionError() }

func (p *Pool) firstWorker() worker.Worker {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workers[0]
}

// Shutdown stops all workers and blocks until they have terminated. Safe
// to call more than once; only the first call does the work.
func (p *Pool) Shutdown() {
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		workers := make([]worker.Worker, len(p.workers))
		copy(workers, p.workers)
		p.mu.Unlock()

		for _, w := range workers {
			w.RequestStop()
		}
		// Closing the request queue wakes workers blocked on pop.
		p.requests.Close()
		for _, w := range workers {
			w.Join()
		}
		p.results.Close()

		p.logger.Debug("pool shut down", "workers", len(workers))
	})
}
