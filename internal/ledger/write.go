package ledger

import (
	"context"
	"fmt"
	"time"
)

// timeLayout is fixed-width so that text order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// Run is one invocation of the pipeline.
type Run struct {
	ID         string
	InputDir   string
	OutputDir  string
	Workers    int
	StartedAt  time.Time
	FinishedAt time.Time // zero until FinishRun
	Totals
}

// Totals are the aggregate counts of a finished run.
type Totals struct {
	Files     int64
	Processed int64
	Failed    int64
	Equations int64
	Solved    int64
	Unsolved  int64
	PoolError string
}

// Finished reports whether FinishRun was recorded for the run.
func (r Run) Finished() bool { return !r.FinishedAt.IsZero() }

// FileResult is the outcome of one input file within a run.
type FileResult struct {
	RunID     string
	Seq       int64
	Name      string
	Status    string
	Declared  int64
	Equations int64
	Solved    int64
	Unsolved  int64
	Error     string
	Duration  time.Duration
}

// BeginRun inserts the run row. Inserting an existing ID is a no-op.
func (l *Ledger) BeginRun(ctx context.Context, run Run) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO runs (id, input_dir, output_dir, workers, started_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.InputDir,
		run.OutputDir,
		run.Workers,
		formatTime(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// RecordFile inserts one file outcome. The run must exist. A second record
// for the same (run, name) is ignored.
func (l *Ledger) RecordFile(ctx context.Context, fr FileResult) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO file_results
		(run_id, seq, name, status, declared, equations, solved, unsolved, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, name) DO NOTHING
	`,
		fr.RunID,
		fr.Seq,
		fr.Name,
		fr.Status,
		fr.Declared,
		fr.Equations,
		fr.Solved,
		fr.Unsolved,
		fr.Error,
		fr.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("record file %s: %w", fr.Name, err)
	}
	return nil
}

// FinishRun stores the totals and finish time of a run.
func (l *Ledger) FinishRun(ctx context.Context, id string, finishedAt time.Time, t Totals) error {
	res, err := l.db.ExecContext(ctx, `
		UPDATE runs
		SET finished_at = ?, files = ?, processed = ?, failed = ?,
		    equations = ?, solved = ?, unsolved = ?, pool_error = ?
		WHERE id = ?
	`,
		formatTime(finishedAt),
		t.Files,
		t.Processed,
		t.Failed,
		t.Equations,
		t.Solved,
		t.Unsolved,
		t.PoolError,
		id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run: %w: %s", ErrRunNotFound, id)
	}
	return nil
}
