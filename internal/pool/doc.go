// Package pool runs a fixed number of workers over a bounded work queue.
//
// The producer submits items, calls Drain once the last item is in, and then
// Wait. Workers blocked in Pop are woken by the queue's broadcast and exit
// once the queue is draining and empty, so Wait returns in finite time for
// any number of queued items.
//
// Item failures are the handler's business. Only a handler panic is treated
// as a fault of the pool itself; it halts the run and is reported by Wait.
package pool
