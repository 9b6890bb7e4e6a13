package pipeline

import (
	"math"
	"time"

	"github.com/jeremiahlee314/CalcProject/internal/ledger"
	"github.com/jeremiahlee314/CalcProject/internal/metrics"
	"github.com/jeremiahlee314/CalcProject/internal/processor"
)

// Summary aggregates the outcomes of one run.
type Summary struct {
	RunID      string
	Workers    int
	StartedAt  time.Time
	FinishedAt time.Time

	Files     int
	Processed int
	Failed    int
	ByStatus  map[processor.Status]int

	Equations uint64
	Solved    uint64
	Unsolved  uint64

	// Failures lists every file that did not reach StatusProcessed, in the
	// order the outcomes arrived.
	Failures []processor.Outcome

	// Interrupted is set when the context ended before enumeration was
	// complete. Files already queued were still processed.
	Interrupted bool

	// PoolError is the pool fault that halted the run, if any.
	PoolError error
}

// Duration is the wall time of the run.
func (s Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

func (s *Summary) add(out processor.Outcome) {
	if s.ByStatus == nil {
		s.ByStatus = make(map[processor.Status]int)
	}
	s.Files++
	s.ByStatus[out.Status]++
	if out.Status.Failed() {
		s.Failed++
		s.Failures = append(s.Failures, out)
	} else {
		s.Processed++
	}
	s.Equations += out.Equations
	s.Solved += out.Solved
	s.Unsolved += out.Unsolved
}

func (s Summary) totals() ledger.Totals {
	t := ledger.Totals{
		Files:     int64(s.Files),
		Processed: int64(s.Processed),
		Failed:    int64(s.Failed),
		Equations: int64(s.Equations),
		Solved:    int64(s.Solved),
		Unsolved:  int64(s.Unsolved),
	}
	if s.PoolError != nil {
		t.PoolError = s.PoolError.Error()
	}
	return t
}

func (s Summary) snapshot() metrics.Snapshot {
	files := make(map[string]uint64, len(s.ByStatus))
	for st, n := range s.ByStatus {
		files[string(st)] = uint64(n)
	}
	snap := metrics.Snapshot{
		RunID:    s.RunID,
		Workers:  s.Workers,
		Duration: s.Duration(),
		Finished: s.FinishedAt,
		Files:    files,
		Solved:   s.Solved,
		Unsolved: s.Unsolved,
	}
	if s.PoolError != nil {
		snap.PoolFaults = 1
	}
	return snap
}

func fileResult(runID string, seq int64, out processor.Outcome) ledger.FileResult {
	fr := ledger.FileResult{
		RunID:     runID,
		Seq:       seq,
		Name:      out.Name,
		Status:    string(out.Status),
		Declared:  clampInt64(out.Declared),
		Equations: int64(out.Equations),
		Solved:    int64(out.Solved),
		Unsolved:  int64(out.Unsolved),
		Duration:  out.Duration,
	}
	if out.Err != nil {
		fr.Error = out.Err.Error()
	}
	return fr
}

// clampInt64 bounds a header-declared count, which is arbitrary input,
// to what SQLite can store.
func clampInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}
