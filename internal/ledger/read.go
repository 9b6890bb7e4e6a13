package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrRunNotFound is returned when a run ID is not in the ledger.
var ErrRunNotFound = errors.New("run not found")

const runColumns = `
	id, input_dir, output_dir, workers, started_at, finished_at,
	files, processed, failed, equations, solved, unsolved, pool_error`

// ListRuns returns up to limit runs, newest first. A limit below 1 means no
// limit. Returns an empty slice (not nil) when there are no runs.
func (l *Ledger) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit < 1 {
		limit = -1 // SQLite: no limit
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun returns one run by ID, or ErrRunNotFound.
func (l *Ledger) ReadRun(ctx context.Context, id string) (Run, error) {
	row := l.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return r, err
}

// ReadFiles returns the file results of a run in the order they were
// recorded. Returns an empty slice (not nil) for a run without files.
func (l *Ledger) ReadFiles(ctx context.Context, runID string) ([]FileResult, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT run_id, seq, name, status, declared, equations, solved, unsolved, error, duration_ms
		FROM file_results
		WHERE run_id = ?
		ORDER BY seq ASC, name COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query file results: %w", err)
	}
	defer rows.Close()

	files := []FileResult{}
	for rows.Next() {
		var (
			fr FileResult
			ms int64
		)
		if err := rows.Scan(&fr.RunID, &fr.Seq, &fr.Name, &fr.Status, &fr.Declared,
			&fr.Equations, &fr.Solved, &fr.Unsolved, &fr.Error, &ms); err != nil {
			return nil, fmt.Errorf("scan file result: %w", err)
		}
		fr.Duration = time.Duration(ms) * time.Millisecond
		files = append(files, fr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate file results: %w", err)
	}
	return files, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r        Run
		started  string
		finished sql.NullString
	)
	err := s.Scan(&r.ID, &r.InputDir, &r.OutputDir, &r.Workers, &started, &finished,
		&r.Files, &r.Processed, &r.Failed, &r.Equations, &r.Solved, &r.Unsolved, &r.PoolError)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	if r.StartedAt, err = parseTime(started); err != nil {
		return Run{}, fmt.Errorf("run %s: started_at: %w", r.ID, err)
	}
	if finished.Valid {
		if r.FinishedAt, err = parseTime(finished.String); err != nil {
			return Run{}, fmt.Errorf("run %s: finished_at: %w", r.ID, err)
		}
	}
	return r, nil
}
