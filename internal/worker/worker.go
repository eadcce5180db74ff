// Package worker defines the execution-worker contract consumed by the
// pool, and provides the SQLite implementation. A worker owns its own
// backend connection, pulls requests from the shared outbound queue, and
// pushes exactly one result envelope per request — on success and on
// failure alike.
package worker

import (
	"github.com/seantiz/quill/internal/model"
	"github.com/seantiz/quill/internal/queue"
)

// Worker is one independent execution context bound to the shared queues.
type Worker interface {
	// Busy reports whether the worker is currently executing a request.
	Busy() bool

	// RequestStop asks the worker to exit after its current request.
	// The worker may stay blocked on the outbound queue until the queue
	// is closed.
	RequestStop()

	// Join blocks until the worker loop has terminated.
	Join()

	// ConnectionEstablished reports whether the backend connection came up.
	ConnectionEstablished() bool

	// HasConnectionError reports whether connecting to the backend failed.
	HasConnectionError() bool

	// LastConnectionError returns the connection failure message, or ""
	// when the connection is healthy.
	LastConnectionError() string
}

// Factory creates a worker bound to the given request and result queues.
// The pool calls it once at construction and again on each growth step.
type Factory func(requests *queue.FIFO[model.Request], results *queue.FIFO[model.Result]) (Worker, error)
