package ledger

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremiahlee314/CalcProject/internal/testutil"
)

func createTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestOpen_CreatesDatabaseWithPragmas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := Open(path)
	require.NoError(t, err)
	defer l.Close()

	_, err = os.Stat(path)
	require.NoError(t, err)

	mode, err := l.pragma("journal_mode")
	require.NoError(t, err)
	assert.Equal(t, "wal", mode)

	fk, err := l.pragma("foreign_keys")
	require.NoError(t, err)
	assert.Equal(t, "1", fk)

	version, err := l.pragma("user_version")
	require.NoError(t, err)
	assert.Equal(t, "1", version)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	for i := 0; i < 3; i++ {
		l, err := Open(path)
		require.NoError(t, err, "iteration %d", i)
		require.NoError(t, l.Close())
	}
}

func TestOpen_MigratesVersionZeroDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(schemaSQL)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	l, err := Open(path)
	require.NoError(t, err)
	defer l.Close()

	var n int
	require.NoError(t, l.db.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master
		WHERE type = 'index' AND name = 'idx_file_results_status'
	`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestRunLifecycle(t *testing.T) {
	l := createTestLedger(t)
	ctx := context.Background()
	clock := testutil.NewDeterministicClock(time.Second)

	run := Run{ID: "run-1", InputDir: "/in", OutputDir: "/out", Workers: 4, StartedAt: clock.Now()}
	require.NoError(t, l.BeginRun(ctx, run))

	got, err := l.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, testutil.Epoch, got.StartedAt)
	assert.False(t, got.Finished())
	assert.Equal(t, 4, got.Workers)

	require.NoError(t, l.RecordFile(ctx, FileResult{
		RunID: "run-1", Seq: 1, Name: "b.bin", Status: "processed",
		Declared: 2, Equations: 2, Solved: 2, Duration: 1500 * time.Millisecond,
	}))
	require.NoError(t, l.RecordFile(ctx, FileResult{
		RunID: "run-1", Seq: 2, Name: "a.bin", Status: "truncated",
		Declared: 3, Equations: 2, Solved: 1, Unsolved: 1, Error: "malformed equation",
	}))

	finished := clock.Now()
	require.NoError(t, l.FinishRun(ctx, "run-1", finished, Totals{
		Files: 2, Processed: 1, Failed: 1, Equations: 4, Solved: 3, Unsolved: 1,
	}))

	got, err = l.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, got.Finished())
	assert.Equal(t, finished, got.FinishedAt)
	assert.Equal(t, Totals{Files: 2, Processed: 1, Failed: 1, Equations: 4, Solved: 3, Unsolved: 1}, got.Totals)

	files, err := l.ReadFiles(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "b.bin", files[0].Name, "ordered by seq, not name")
	assert.Equal(t, 1500*time.Millisecond, files[0].Duration)
	assert.Equal(t, "malformed equation", files[1].Error)
}

func TestRecordFile_Idempotent(t *testing.T) {
	l := createTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.BeginRun(ctx, Run{ID: "r", StartedAt: testutil.Epoch}))

	fr := FileResult{RunID: "r", Seq: 1, Name: "x.bin", Status: "processed"}
	require.NoError(t, l.RecordFile(ctx, fr))
	fr.Status = "skipped"
	require.NoError(t, l.RecordFile(ctx, fr))

	files, err := l.ReadFiles(ctx, "r")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "processed", files[0].Status, "first write wins")
}

func TestRecordFile_UnknownRun(t *testing.T) {
	l := createTestLedger(t)
	err := l.RecordFile(context.Background(), FileResult{RunID: "ghost", Name: "x.bin", Status: "processed"})
	assert.Error(t, err, "foreign key must reject files of unknown runs")
}

func TestBeginRun_Idempotent(t *testing.T) {
	l := createTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.BeginRun(ctx, Run{ID: "r", InputDir: "first", StartedAt: testutil.Epoch}))
	require.NoError(t, l.BeginRun(ctx, Run{ID: "r", InputDir: "second", StartedAt: testutil.Epoch}))

	got, err := l.ReadRun(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, "first", got.InputDir)
}

func TestFinishRun_UnknownRun(t *testing.T) {
	l := createTestLedger(t)
	err := l.FinishRun(context.Background(), "ghost", testutil.Epoch, Totals{})
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestReadRun_NotFound(t *testing.T) {
	l := createTestLedger(t)
	_, err := l.ReadRun(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListRuns_NewestFirstWithLimit(t *testing.T) {
	l := createTestLedger(t)
	ctx := context.Background()
	clock := testutil.NewDeterministicClock(time.Minute)

	for _, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, l.BeginRun(ctx, Run{ID: id, StartedAt: clock.Now()}))
	}

	runs, err := l.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{"r3", "r2", "r1"}, []string{runs[0].ID, runs[1].ID, runs[2].ID})

	runs, err = l.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
	assert.Equal(t, "r3", runs[0].ID)
}

func TestListRuns_Empty(t *testing.T) {
	l := createTestLedger(t)
	runs, err := l.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestTimeLayout_SortsLexically(t *testing.T) {
	a := formatTime(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	b := formatTime(time.Date(2024, 1, 1, 0, 0, 0, 100, time.UTC))
	assert.Less(t, a, b)

	parsed, err := parseTime(b)
	require.NoError(t, err)
	assert.Equal(t, 100, parsed.Nanosecond())
}
