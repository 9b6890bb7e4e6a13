package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremiahlee314/CalcProject/internal/calc"
	"github.com/jeremiahlee314/CalcProject/internal/equation"
	"github.com/jeremiahlee314/CalcProject/internal/ledger"
	"github.com/jeremiahlee314/CalcProject/internal/processor"
	tu "github.com/jeremiahlee314/CalcProject/internal/testutil"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func baseOptions(t *testing.T) Options {
	t.Helper()
	return Options{
		InputDir:  t.TempDir(),
		OutputDir: filepath.Join(t.TempDir(), "out"),
		Logger:    quiet,
	}
}

func TestRun_SingleEquationEndToEnd(t *testing.T) {
	opts := baseOptions(t)
	hdr := equation.FileHeader{Magic: 0xCAFEF00D, Count: 1, Offset: equation.HeaderSize}
	tu.WriteUnsolved(t, opts.InputDir, "eq.bin", hdr, tu.Eq(1, 10, uint8(calc.OpAdd), 5))

	sum, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Files)
	assert.Equal(t, 1, sum.Processed)

	outHdr, solved := tu.ReadSolved(t, filepath.Join(opts.OutputDir, "eq.bin"))
	assert.Equal(t, uint32(0xCAFEF00D), outHdr.Magic)
	assert.True(t, outHdr.Processed())
	require.Len(t, solved, 1)
	assert.Equal(t, equation.SolvedEquation{ID: 1, Flags: 1, Type: 1, Solution: 15}, solved[0])
}

func TestRun_EmptyDirectoryTerminatesForAnyWorkerCount(t *testing.T) {
	for _, workers := range []int{1, 3, 16} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			opts := baseOptions(t)
			opts.Workers = workers

			done := make(chan struct{})
			var sum Summary
			var err error
			go func() {
				sum, err = Run(context.Background(), opts)
				close(done)
			}()

			select {
			case <-done:
			case <-time.After(5 * time.Second):
				t.Fatal("run did not terminate")
			}
			require.NoError(t, err)
			assert.Zero(t, sum.Files)
			assert.DirExists(t, opts.OutputDir)
		})
	}
}

func TestRun_ManyFilesFewWorkers(t *testing.T) {
	opts := baseOptions(t)
	opts.Workers = 3
	opts.QueueCapacity = 2

	const files = 40
	for i := 0; i < files; i++ {
		tu.WriteUnsolved(t, opts.InputDir, fmt.Sprintf("f%02d.bin", i), tu.Header(2),
			tu.Eq(1, uint64(i), uint8(calc.OpMul), 2),
			tu.Eq(2, uint64(i), uint8(calc.OpXor), uint64(i)),
		)
	}

	sum, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, files, sum.Files)
	assert.Equal(t, files, sum.ByStatus[processor.StatusProcessed])
	assert.Equal(t, uint64(2*files), sum.Solved)

	for i := 0; i < files; i++ {
		_, solved := tu.ReadSolved(t, filepath.Join(opts.OutputDir, fmt.Sprintf("f%02d.bin", i)))
		require.Len(t, solved, 2)
		assert.Equal(t, uint64(2*i), solved[0].Solution)
		assert.Equal(t, uint64(0), solved[1].Solution)
	}
}

func TestRun_FileFailuresAreCountedNotReturned(t *testing.T) {
	opts := baseOptions(t)
	tu.WriteUnsolved(t, opts.InputDir, "good.bin", tu.Header(1), tu.Eq(1, 1, uint8(calc.OpAdd), 1))
	tu.WriteRaw(t, opts.InputDir, "bad-header.bin", []byte{1, 2, 3})
	short := tu.EncodeUnsolved(tu.Header(3), tu.Eq(1, 1, uint8(calc.OpAdd), 1), tu.Eq(2, 2, uint8(calc.OpAdd), 2))
	tu.WriteRaw(t, opts.InputDir, "short.bin", short)
	require.NoError(t, os.Mkdir(filepath.Join(opts.InputDir, "subdir"), 0o755))

	sum, err := Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Files, "subdirectory is not a work item")
	assert.Equal(t, 1, sum.Processed)
	assert.Equal(t, 2, sum.Failed)
	assert.Equal(t, 1, sum.ByStatus[processor.StatusMalformedHeader])
	assert.Equal(t, 1, sum.ByStatus[processor.StatusTruncated])
	assert.Len(t, sum.Failures, 2)

	assert.NoFileExists(t, filepath.Join(opts.OutputDir, "bad-header.bin"))
	assert.NoDirExists(t, filepath.Join(opts.OutputDir, "subdir"))
	_, solved := tu.ReadSolved(t, filepath.Join(opts.OutputDir, "short.bin"))
	assert.Len(t, solved, 2)
}

func TestRun_FailureLogCarriesRunWorkerAndFile(t *testing.T) {
	opts := baseOptions(t)
	var buf bytes.Buffer
	opts.Logger = slog.New(slog.NewTextHandler(&buf, nil))
	opts.RunIDs = NewFixedGenerator("run-log")
	opts.Workers = 1
	tu.WriteRaw(t, opts.InputDir, "bad.bin", []byte{0xFF})

	_, err := Run(context.Background(), opts)
	require.NoError(t, err)

	logs := buf.String()
	assert.Contains(t, logs, "msg=\"file failed\"")
	assert.Contains(t, logs, "run_id=run-log")
	assert.Contains(t, logs, "worker=0")
	assert.Contains(t, logs, "file=bad.bin")
}

func TestRun_SymlinkToFileIsProcessed(t *testing.T) {
	opts := baseOptions(t)
	target := tu.WriteUnsolved(t, t.TempDir(), "real.bin", tu.Header(1), tu.Eq(1, 2, uint8(calc.OpAdd), 2))
	require.NoError(t, os.Symlink(target, filepath.Join(opts.InputDir, "link.bin")))

	sum, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Processed)
	assert.FileExists(t, filepath.Join(opts.OutputDir, "link.bin"))
}

func TestRun_InvalidInputs(t *testing.T) {
	opts := baseOptions(t)
	opts.InputDir = filepath.Join(opts.InputDir, "missing")
	_, err := Run(context.Background(), opts)
	assert.Error(t, err)

	opts = baseOptions(t)
	opts.Workers = -1
	_, err = Run(context.Background(), opts)
	assert.Error(t, err)
}

func TestRun_RefusesOutputThatIsTheInput(t *testing.T) {
	in := t.TempDir()
	data := tu.EncodeUnsolved(tu.Header(1), tu.Eq(1, 2, uint8(calc.OpAdd), 3))
	path := tu.WriteRaw(t, in, "a.bin", data)

	alias := filepath.Join(t.TempDir(), "alias")
	require.NoError(t, os.Symlink(in, alias))

	for _, out := range []string{in, alias, filepath.Join(in, ".")} {
		t.Run(out, func(t *testing.T) {
			_, err := Run(context.Background(), Options{InputDir: in, OutputDir: out, Logger: quiet})
			require.ErrorIs(t, err, ErrSameDirectory)

			got, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, data, got, "input file must be untouched")
		})
	}
}

func TestRun_RecordsLedgerAndMetrics(t *testing.T) {
	opts := baseOptions(t)
	led, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer led.Close()

	clock := tu.NewDeterministicClock(2 * time.Second)
	opts.Ledger = led
	opts.MetricsFile = filepath.Join(t.TempDir(), "threadcalc.prom")
	opts.RunIDs = NewFixedGenerator("run-fixed")
	opts.Now = clock.Now

	tu.WriteUnsolved(t, opts.InputDir, "a.bin", tu.Header(2),
		tu.Eq(1, 7, uint8(calc.OpDiv), 0),
		tu.Eq(2, 7, uint8(calc.OpDiv), 7),
	)
	tu.WriteRaw(t, opts.InputDir, "b.bin", nil)

	sum, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, "run-fixed", sum.RunID)
	assert.Equal(t, 2*time.Second, sum.Duration())

	ctx := context.Background()
	run, err := led.ReadRun(ctx, "run-fixed")
	require.NoError(t, err)
	assert.True(t, run.Finished())
	assert.Equal(t, tu.Epoch, run.StartedAt)
	assert.Equal(t, ledger.Totals{Files: 2, Processed: 1, Failed: 1, Equations: 2, Solved: 1, Unsolved: 1}, run.Totals)

	files, err := led.ReadFiles(ctx, "run-fixed")
	require.NoError(t, err)
	require.Len(t, files, 2)
	byName := map[string]ledger.FileResult{}
	for _, f := range files {
		byName[f.Name] = f
	}
	assert.Equal(t, "processed", byName["a.bin"].Status)
	assert.Equal(t, "malformed_header", byName["b.bin"].Status)
	assert.NotEmpty(t, byName["b.bin"].Error)

	data, err := os.ReadFile(opts.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `threadcalc_files_total{run_id="run-fixed",status="malformed_header"} 1`)
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	opts := baseOptions(t)
	tu.WriteUnsolved(t, opts.InputDir, "a.bin", tu.Header(0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := Run(ctx, opts)
	require.NoError(t, err)
	assert.True(t, sum.Interrupted)
	assert.Zero(t, sum.Files)
}

func TestRun_WatchPicksUpNewFiles(t *testing.T) {
	opts := baseOptions(t)
	opts.Watch = true
	opts.Settle = 20 * time.Millisecond
	tu.WriteUnsolved(t, opts.InputDir, "early.bin", tu.Header(1), tu.Eq(1, 1, uint8(calc.OpAdd), 1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type result struct {
		sum Summary
		err error
	}
	done := make(chan result, 1)
	go func() {
		sum, err := Run(ctx, opts)
		done <- result{sum, err}
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(opts.OutputDir, "early.bin"))
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	tu.WriteUnsolved(t, opts.InputDir, "late.bin", tu.Header(1), tu.Eq(1, 20, uint8(calc.OpSub), 30))

	require.Eventually(t, func() bool {
		info, err := os.Stat(filepath.Join(opts.OutputDir, "late.bin"))
		return err == nil && info.Size() == equation.HeaderSize+equation.SolvedSize
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	var res result
	select {
	case res = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("watch run did not stop after cancel")
	}
	require.NoError(t, res.err)
	assert.False(t, res.sum.Interrupted, "cancel is the normal end of a watch run")
	assert.Equal(t, 2, res.sum.Files)

	_, solved := tu.ReadSolved(t, filepath.Join(opts.OutputDir, "late.bin"))
	require.Len(t, solved, 1)
	assert.Equal(t, int64(-10), solved[0].Signed())
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("a", "b")
	assert.Equal(t, "a", g.Generate())
	assert.Equal(t, "b", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}

func TestUUIDv7Generator(t *testing.T) {
	var g UUIDv7Generator
	a, b := g.Generate(), g.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
	assert.Equal(t, byte('7'), a[14], "version nibble")
}
