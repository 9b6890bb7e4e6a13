package workqueue

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrInvalidCapacity is returned by New for a capacity below 1.
	ErrInvalidCapacity = errors.New("workqueue: capacity must be at least 1")

	// ErrEmptyItem is returned by Push for the empty string.
	ErrEmptyItem = errors.New("workqueue: empty item")

	// ErrDraining is returned by Push once Drain has been called.
	ErrDraining = errors.New("workqueue: queue is draining")
)

// Queue is a fixed-capacity, thread-safe FIFO of work item names.
//
// Push blocks while the queue is full. Pop blocks while the queue is empty,
// unless the queue is draining, in which case it returns immediately.
//
// Storage is a ring buffer allocated once in New; push and pop are O(1).
type Queue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []string
	head     int // index of the oldest item
	size     int // number of live items
	draining bool
}

// New creates an empty queue holding at most capacity items.
func New(capacity int) (*Queue, error) {
	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}
	q := &Queue{items: make([]string, capacity)}
	q.cond = sync.NewCond(&q.mu)
	return q, nil
}

// Push appends item to the back of the queue.
//
// Thread-safe: may be called from any goroutine, concurrently with Pop.
// Blocks while the queue is at capacity. Returns ErrEmptyItem for "",
// ErrDraining if Drain was called before or while waiting, and ctx.Err() if
// ctx ends while waiting for space.
func (q *Queue) Push(ctx context.Context, item string) error {
	if item == "" {
		return ErrEmptyItem
	}

	stop := context.AfterFunc(ctx, q.wake)
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if q.draining {
			return ErrDraining
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if q.size < len(q.items) {
			break
		}
		q.cond.Wait()
	}

	tail := (q.head + q.size) % len(q.items)
	q.items[tail] = item
	q.size++
	q.cond.Broadcast()
	return nil
}

// Pop removes and returns the front item.
//
// Thread-safe: any number of consumers may Pop concurrently; each item is
// returned to exactly one of them.
// Blocks while the queue is empty. Returns ("", false) once the queue is
// draining and empty, or when ctx ends. Items still buffered when ctx ends
// stay in the queue.
func (q *Queue) Pop(ctx context.Context) (string, bool) {
	stop := context.AfterFunc(ctx, q.wake)
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if ctx.Err() != nil {
			return "", false
		}
		if q.size > 0 {
			break
		}
		if q.draining {
			return "", false
		}
		q.cond.Wait()
	}

	item := q.items[q.head]
	q.items[q.head] = "" // release the slot's reference
	q.head = (q.head + 1) % len(q.items)
	q.size--
	q.cond.Broadcast()
	return item, true
}

// Drain marks the queue as receiving no further input and wakes every
// blocked caller. Items already buffered remain poppable. Safe to call more
// than once, from any goroutine.
func (q *Queue) Drain() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.draining {
		return
	}
	q.draining = true
	q.cond.Broadcast()
}

// Draining reports whether Drain has been called. Once true it stays true.
//
// Thread-safe.
func (q *Queue) Draining() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.draining
}

// Len returns the number of buffered items.
//
// Thread-safe, but the value is a snapshot: concurrent Push and Pop calls
// may change it before the caller acts on it.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Cap returns the fixed capacity. It never changes, so no lock is taken.
func (q *Queue) Cap() int {
	return len(q.items)
}

// wake broadcasts under the lock so a waiter that has checked ctx but not yet
// entered Wait cannot miss the wakeup.
func (q *Queue) wake() {
	q.mu.Lock()
	q.cond.Broadcast()
	q.mu.Unlock()
}
