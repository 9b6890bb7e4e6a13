package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/jeremiahlee314/CalcProject/internal/workqueue"
)

// ErrInvalidWorkers is returned by New for a worker count below 1.
var ErrInvalidWorkers = errors.New("pool: worker count must be at least 1")

// State is the lifecycle stage of a Pool.
type State int32

const (
	Running State = iota
	Draining
	Terminated
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Handler processes one dequeued item. It runs on a worker goroutine and
// owns item exclusively.
type Handler func(ctx context.Context, item string)

// PanicError is a handler panic recovered by a worker. It is a pool-level
// fault: the pool stops handing out further items once one is recorded.
type PanicError struct {
	Worker int
	Item   string
	Value  any
	Stack  []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("worker %d panicked on %q: %v", e.Worker, e.Item, e.Value)
}

// Pool is a fixed set of worker goroutines consuming a workqueue.Queue.
//
// Lifecycle:
//   - New starts the workers in state Running
//   - Drain (or Shutdown) moves to Draining; no more items are accepted
//   - Wait joins every worker and moves to Terminated
//
// Workers never interrupt a handler mid-item. Cancelling the parent context
// stops workers from taking further items.
type Pool struct {
	queue   *workqueue.Queue
	handler Handler
	logger  *slog.Logger
	workers int

	ctx    context.Context
	cancel context.CancelCauseFunc
	state  atomic.Int32
	wg     sync.WaitGroup

	mu     sync.Mutex
	faults []error
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the logger used for worker diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) {
		p.logger = l
	}
}

// New starts workers goroutines that pop from q and run handler.
func New(ctx context.Context, q *workqueue.Queue, workers int, handler Handler, opts ...Option) (*Pool, error) {
	if workers < 1 {
		return nil, ErrInvalidWorkers
	}
	if q == nil || handler == nil {
		return nil, errors.New("pool: queue and handler are required")
	}

	p := &Pool{
		queue:   q,
		handler: handler,
		logger:  slog.Default(),
		workers: workers,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.ctx, p.cancel = context.WithCancelCause(ctx)

	p.wg.Add(workers)
	for id := 0; id < workers; id++ {
		go p.work(id)
	}
	p.logger.Debug("pool started", "workers", workers, "queue_capacity", q.Cap())
	return p, nil
}

// Submit hands item to the queue, blocking while it is full.
//
// Thread-safe: several producers may Submit concurrently. Blocks until the
// queue has room, Drain is called, or the pool context ends.
//
// Returns workqueue.ErrDraining after Drain. Once the pool context has
// ended (a fault, Wait returning, or the parent context ending) it returns
// the context's cause instead.
func (p *Pool) Submit(item string) error {
	if err := p.queue.Push(p.ctx, item); err != nil {
		if cause := context.Cause(p.ctx); cause != nil {
			return cause
		}
		return err
	}
	return nil
}

// Drain signals that no more items will be submitted. Workers finish the
// buffered items and then exit. Safe to call more than once and from any
// goroutine; it never blocks.
func (p *Pool) Drain() {
	if p.state.CompareAndSwap(int32(Running), int32(Draining)) {
		p.logger.Debug("pool draining", "pending", p.queue.Len())
	}
	p.queue.Drain()
}

// Wait blocks until every worker has exited, then marks the pool
// Terminated. It returns the joined pool faults, if any. Calling it again
// after it returned is harmless and yields the same faults.
//
// Wait does not drain the queue itself; without a prior Drain it returns
// only once the parent context ends.
func (p *Pool) Wait() error {
	p.wg.Wait()
	p.state.Store(int32(Terminated))
	p.cancel(nil)

	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Join(p.faults...)
}

// Shutdown drains the pool and waits for it to terminate.
func (p *Pool) Shutdown() error {
	p.Drain()
	return p.Wait()
}

// State returns the current lifecycle state.
//
// Thread-safe: read atomically, so it may be polled while workers run. The
// state only moves forward, Running to Draining to Terminated.
func (p *Pool) State() State {
	return State(p.state.Load())
}

// Workers returns the fixed number of workers.
func (p *Pool) Workers() int {
	return p.workers
}

type workerKey struct{}

// WorkerID returns the ID of the worker running the handler that received
// ctx. IDs run from 0 to Workers()-1.
func WorkerID(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(workerKey{}).(int)
	return id, ok
}

func (p *Pool) work(id int) {
	defer p.wg.Done()
	log := p.logger.With("worker", id)
	ctx := context.WithValue(p.ctx, workerKey{}, id)

	for {
		item, ok := p.queue.Pop(p.ctx)
		if !ok {
			log.Debug("worker exiting", "cause", context.Cause(p.ctx))
			return
		}
		if err := p.run(ctx, id, item); err != nil {
			log.Error("worker fault", "item", item, "error", err)
			p.fault(err)
			return
		}
	}
}

func (p *Pool) run(ctx context.Context, id int, item string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Worker: id, Item: item, Value: r, Stack: debug.Stack()}
		}
	}()
	p.handler(ctx, item)
	return nil
}

// fault records err and cancels the pool so every worker stops taking
// items and Submit fails.
func (p *Pool) fault(err error) {
	p.mu.Lock()
	p.faults = append(p.faults, err)
	p.mu.Unlock()
	p.cancel(err)
	p.queue.Drain()
	p.state.CompareAndSwap(int32(Running), int32(Draining))
}
