// Package queue provides the concurrent FIFO shared between the controller
// and the execution workers. Push and TryPop never block, so the controller
// side stays non-blocking; Pop blocks and is meant for worker loops.
package queue

import "sync"

// FIFO is an unbounded first-in-first-out queue safe for concurrent use.
// Closing the queue wakes all blocked Pop calls; items already queued can
// still be popped after Close.
type FIFO[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []T
	closed bool
}

// New creates an empty queue.
func New[T any]() *FIFO[T] {
	q := &FIFO[T]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends v to the tail. It reports false if the queue is closed,
// in which case v is dropped.
func (q *FIFO[T]) Push(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, v)
	q.cond.Signal()
	return true
}

// Pop removes and returns the head, blocking while the queue is empty.
// It reports false only when the queue is closed and drained.
func (q *FIFO[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	return q.pop(), true
}

// TryPop removes and returns the head without blocking. It reports false
// when the queue is currently empty.
func (q *FIFO[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	return q.pop(), true
}

// pop removes the head. Caller holds q.mu and has checked non-empty.
func (q *FIFO[T]) pop() T {
	v := q.items[0]
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return v
}

// Len returns the number of queued items.
func (q *FIFO[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close marks the queue closed and wakes all blocked Pop calls. Safe to
// call more than once.
func (q *FIFO[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
