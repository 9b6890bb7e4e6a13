// Package workqueue implements the bounded FIFO that connects the directory
// producer to the worker pool.
//
// The queue owns every item between Push and Pop. Exactly one consumer
// receives each item; ownership moves to that consumer on Pop.
//
// SYNCHRONIZATION:
//
// A single mutex guards the ring buffer and the draining flag. One condition
// variable carries every wakeup ("became non-empty", "became non-full",
// "entered draining", "context ended"). All signalling uses Broadcast so a
// waiter can never be stranded by a wakeup delivered to the wrong side, and
// every waiter re-checks its predicate in a loop after waking.
//
// Draining is one-way: once Drain is called no new items are accepted, and Pop
// reports false as soon as the buffer is empty.
package workqueue
