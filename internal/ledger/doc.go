// Package ledger is the SQLite history of threadcalc runs.
//
// Each run gets one row in runs, keyed by its run ID, and one row per input
// file in file_results. Writes come from a single collector goroutine, never
// from workers.
//
// # Idempotency
//
// BeginRun and RecordFile use ON CONFLICT DO NOTHING, so replaying the same
// run ID or file name is harmless. FinishRun overwrites the totals.
//
// # Ordering
//
// ListRuns orders by started_at DESC, id DESC. ReadFiles orders by seq, the
// order in which the collector saw outcomes, with name as a tie-breaker.
//
// # Database Configuration
//
//   - WAL mode: history reads while a run writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
package ledger
