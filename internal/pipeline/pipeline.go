// Package pipeline wires a directory of equation files through the work
// queue and worker pool, and collects per-file outcomes into a Summary.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jeremiahlee314/CalcProject/internal/ledger"
	"github.com/jeremiahlee314/CalcProject/internal/metrics"
	"github.com/jeremiahlee314/CalcProject/internal/pool"
	"github.com/jeremiahlee314/CalcProject/internal/processor"
	"github.com/jeremiahlee314/CalcProject/internal/workqueue"
)

const (
	DefaultWorkers       = 4
	DefaultQueueCapacity = 50

	// readDirBatch bounds how many directory entries are held at once.
	readDirBatch = 64
)

// Options configure a run. InputDir and OutputDir are required.
type Options struct {
	InputDir      string
	OutputDir     string
	Workers       int
	QueueCapacity int
	FileMode      fs.FileMode

	// Watch keeps the run alive after the initial enumeration, submitting
	// files created in InputDir until ctx ends.
	Watch bool

	// Settle is how long a watched file must stay quiet before it is
	// submitted. Defaults to DefaultSettle.
	Settle time.Duration

	// Ledger, when set, receives the run and every file outcome.
	Ledger *ledger.Ledger

	// MetricsFile, when set, is replaced with a Prometheus textfile at the
	// end of the run.
	MetricsFile string

	Logger *slog.Logger
	RunIDs RunIDGenerator
	Now    func() time.Time
}

func (o *Options) setDefaults() {
	if o.Workers == 0 {
		o.Workers = DefaultWorkers
	}
	if o.QueueCapacity == 0 {
		o.QueueCapacity = DefaultQueueCapacity
	}
	if o.FileMode == 0 {
		o.FileMode = processor.DefaultFileMode
	}
	if o.Settle == 0 {
		o.Settle = DefaultSettle
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.RunIDs == nil {
		o.RunIDs = UUIDv7Generator{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Run processes every regular file in opts.InputDir with a pool of
// opts.Workers workers and returns once the pool has terminated.
//
// Per-file failures are counted in the Summary, never returned. The error
// is non-nil only for unusable options or directories, or when the pool
// itself faulted. Cancelling ctx stops enumeration (or watching); files
// already queued are still processed before Run returns.
func Run(ctx context.Context, opts Options) (Summary, error) {
	opts.setDefaults()

	if opts.Workers < 1 {
		return Summary{}, fmt.Errorf("%w: %d", pool.ErrInvalidWorkers, opts.Workers)
	}
	if err := prepareDirs(opts.InputDir, opts.OutputDir); err != nil {
		return Summary{}, err
	}

	q, err := workqueue.New(opts.QueueCapacity)
	if err != nil {
		return Summary{}, err
	}

	var w *watcher
	if opts.Watch {
		// Subscribe before enumerating so no file falls between the two.
		if w, err = newWatcher(opts.InputDir, opts.Settle, opts.Logger); err != nil {
			return Summary{}, fmt.Errorf("watch %s: %w", opts.InputDir, err)
		}
		defer w.Close()
	}

	sum := Summary{RunID: opts.RunIDs.Generate(), Workers: opts.Workers, StartedAt: opts.Now()}
	log := opts.Logger.With("run_id", sum.RunID)

	// Bookkeeping must outlive a cancelled ctx.
	bg := context.WithoutCancel(ctx)

	led := opts.Ledger
	if led != nil {
		err := led.BeginRun(bg, ledger.Run{
			ID:        sum.RunID,
			InputDir:  opts.InputDir,
			OutputDir: opts.OutputDir,
			Workers:   opts.Workers,
			StartedAt: sum.StartedAt,
		})
		if err != nil {
			log.Warn("ledger disabled for this run", "error", err)
			led = nil
		}
	}

	// One processor per worker so file diagnostics carry the worker ID.
	procs := make([]*processor.Processor, opts.Workers)
	for i := range procs {
		procs[i] = &processor.Processor{
			InputDir:  opts.InputDir,
			OutputDir: opts.OutputDir,
			FileMode:  opts.FileMode,
			Logger:    log.With("worker", i),
		}
	}

	results := make(chan processor.Outcome, opts.Workers)
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		var seq int64
		for out := range results {
			seq++
			sum.add(out)
			if led != nil {
				if err := led.RecordFile(bg, fileResult(sum.RunID, seq, out)); err != nil {
					log.Warn("ledger write failed", "file", out.Name, "error", err)
				}
			}
		}
	}()

	// The pool only stops through Drain; a cancelled ctx must not strand
	// queued files.
	p, err := pool.New(bg, q, opts.Workers, func(ctx context.Context, name string) {
		id, _ := pool.WorkerID(ctx)
		results <- procs[id].Process(name)
	}, pool.WithLogger(log))
	if err != nil {
		close(results)
		<-collected
		return Summary{}, err
	}

	log.Info("run started",
		"input", opts.InputDir,
		"output", opts.OutputDir,
		"workers", opts.Workers,
		"queue_capacity", opts.QueueCapacity,
		"watch", opts.Watch,
	)

	sub := &submitter{pool: p, seen: make(map[string]struct{}), log: log}
	err = enumerate(ctx, opts.InputDir, sub)
	if err == nil && w != nil {
		err = w.run(ctx, sub)
	}
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		sum.Interrupted = !opts.Watch
		err = nil
	case errors.Is(err, errPoolStopped):
		err = nil // reported by Wait
	}

	p.Drain()
	poolErr := p.Wait()
	close(results)
	<-collected

	sum.FinishedAt = opts.Now()
	if poolErr != nil {
		sum.PoolError = poolErr
		log.Error("pool fault", "error", poolErr)
	}

	finish(bg, log, opts, led, sum)

	if err != nil {
		return sum, err
	}
	if poolErr != nil {
		return sum, fmt.Errorf("worker pool: %w", poolErr)
	}
	return sum, nil
}

// finish records the run's totals. Failures here are logged, not returned.
func finish(ctx context.Context, log *slog.Logger, opts Options, led *ledger.Ledger, sum Summary) {
	if led != nil {
		if err := led.FinishRun(ctx, sum.RunID, sum.FinishedAt, sum.totals()); err != nil {
			log.Warn("ledger finish failed", "error", err)
		}
	}
	if opts.MetricsFile != "" {
		if err := metrics.WriteTextfile(opts.MetricsFile, sum.snapshot()); err != nil {
			log.Warn("metrics textfile not written", "path", opts.MetricsFile, "error", err)
		}
	}
	log.Info("run finished",
		"files", sum.Files,
		"processed", sum.Processed,
		"failed", sum.Failed,
		"equations", sum.Equations,
		"duration", sum.Duration(),
	)
}

func prepareDirs(in, out string) error {
	info, err := os.Stat(in)
	if err != nil {
		return fmt.Errorf("input directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("input directory: %s is not a directory", in)
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return fmt.Errorf("output directory: %w", err)
	}
	outInfo, err := os.Stat(out)
	if err != nil {
		return fmt.Errorf("output directory: %w", err)
	}
	if os.SameFile(info, outInfo) {
		return fmt.Errorf("%w: %s and %s", ErrSameDirectory, in, out)
	}
	return nil
}

// ErrSameDirectory is returned when the output directory resolves to the
// input directory. Writing there would truncate the input files.
var ErrSameDirectory = errors.New("output directory is the input directory")

// errPoolStopped means the pool refused further items.
var errPoolStopped = errors.New("pool stopped accepting work")

// submitter hands names to the pool at most once each.
type submitter struct {
	pool *pool.Pool
	seen map[string]struct{}
	log  *slog.Logger
}

func (s *submitter) submit(name string) error {
	if _, dup := s.seen[name]; dup {
		return nil
	}
	s.seen[name] = struct{}{}

	if err := s.pool.Submit(name); err != nil {
		s.log.Debug("submit refused", "file", name, "error", err)
		return fmt.Errorf("%w: %v", errPoolStopped, err)
	}
	s.log.Debug("file queued", "file", name)
	return nil
}

// enumerate streams the entries of dir in batches and submits every
// regular file. Directory reads never hold more than readDirBatch entries.
func enumerate(ctx context.Context, dir string, sub *submitter) error {
	f, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("open input directory: %w", err)
	}
	defer f.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		entries, err := f.ReadDir(readDirBatch)
		for _, e := range entries {
			if !isRegular(dir, e) {
				sub.log.Debug("skipping non-regular entry", "file", e.Name(), "type", e.Type().String())
				continue
			}
			if err := sub.submit(e.Name()); err != nil {
				return err
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input directory: %w", err)
		}
	}
}

// isRegular reports whether e is a regular file, following symlinks.
func isRegular(dir string, e fs.DirEntry) bool {
	if e.Type().IsRegular() {
		return true
	}
	if e.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(dir, e.Name()))
	return err == nil && info.Mode().IsRegular()
}
