package ingest

import "sync"

type pushResult int

const (
	pushed pushResult = iota
	pushFull
	pushClosed
)

// boundedQueue is a fixed size FIFO ring buffer.  It is safe for any number of producers and a single consumer.
// Producers are never made to wait: callers that want to block select on spaceSignal and try again.
type boundedQueue[T any] struct {
	mu     sync.Mutex
	items  []T
	head   int
	count  int
	closed bool

	// Receives a token whenever a push leaves at least readyAt items queued
	readyAt int
	ready   chan struct{}
	// Closed and replaced every time items are removed or the queue is closed
	space chan struct{}
}

func newBoundedQueue[T any](capacity int, readyAt int) *boundedQueue[T] {
	return &boundedQueue[T]{
		items:   make([]T, capacity),
		readyAt: readyAt,
		ready:   make(chan struct{}, 1),
		space:   make(chan struct{}),
	}
}

func (q *boundedQueue[T]) push(item T) pushResult {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return pushClosed
	}
	if q.count == len(q.items) {
		q.mu.Unlock()
		return pushFull
	}
	q.items[(q.head+q.count)%len(q.items)] = item
	q.count++
	reachedThreshold := q.count >= q.readyAt
	q.mu.Unlock()

	if reachedThreshold {
		select {
		case q.ready <- struct{}{}:
		default:
		}
	}
	return pushed
}

// drain removes up to limit items from the front of the queue without waiting for more to arrive.
func (q *boundedQueue[T]) drain(limit int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.count
	if limit < n {
		n = limit
	}
	if n == 0 {
		return nil
	}

	var zero T
	out := make([]T, n)
	for i := range out {
		out[i] = q.items[q.head]
		// Release the reference so the sink owns the only copy
		q.items[q.head] = zero
		q.head = (q.head + 1) % len(q.items)
	}
	q.count -= n
	q.wakeWaiters()
	return out
}

// close rejects all future pushes and wakes any producer waiting for space.  Items already queued can
// still be drained.
func (q *boundedQueue[T]) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.wakeWaiters()
}

// must be called with mu held
func (q *boundedQueue[T]) wakeWaiters() {
	close(q.space)
	q.space = make(chan struct{})
}

func (q *boundedQueue[T]) spaceSignal() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.space
}

func (q *boundedQueue[T]) readySignal() <-chan struct{} {
	return q.ready
}

func (q *boundedQueue[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

func (q *boundedQueue[T]) capacity() int {
	return len(q.items)
}
