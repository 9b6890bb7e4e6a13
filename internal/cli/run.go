package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremiahlee314/CalcProject/internal/config"
	"github.com/jeremiahlee314/CalcProject/internal/ledger"
	"github.com/jeremiahlee314/CalcProject/internal/pipeline"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Threads       string
	QueueCapacity int
	Watch         bool
	Database      string
	MetricsFile   string
	ConfigPath    string

	// RunIDs overrides the run ID generator (for testing).
	RunIDs pipeline.RunIDGenerator
	// Now overrides the clock (for testing).
	Now func() time.Time
}

// RunResult is the JSON payload of a finished run.
type RunResult struct {
	RunID       string            `json:"run_id"`
	Workers     int               `json:"workers"`
	Files       int               `json:"files"`
	Processed   int               `json:"processed"`
	Failed      int               `json:"failed"`
	ByStatus    map[string]int    `json:"by_status,omitempty"`
	Equations   uint64            `json:"equations"`
	Solved      uint64            `json:"solved"`
	Unsolved    uint64            `json:"unsolved"`
	DurationMS  int64             `json:"duration_ms"`
	Interrupted bool              `json:"interrupted,omitempty"`
	Failures    []FailureResult   `json:"failures,omitempty"`
	Warnings    []string          `json:"warnings,omitempty"`
	Config      map[string]string `json:"config,omitempty"`
}

// FailureResult describes one file that was not fully processed.
type FailureResult struct {
	File   string `json:"file"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <input_dir> <output_dir>",
		Short: "Solve every equation file in a directory",
		Long: `Solve every regular file in <input_dir> and write the results to
<output_dir>, which is created if missing.

Settings come from flags, then threadcalc.yaml (or --config), then
built-in defaults. An invalid -n falls back to 4 threads with a warning.

Examples:
  threadcalc run ./unsolved ./solved -n 8
  threadcalc run ./unsolved ./solved --db ./threadcalc.db --metrics-file ./threadcalc.prom
  threadcalc run ./inbox ./solved --watch`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(opts, args[0], args[1], cmd)
		},
	}
	bindRunFlags(cmd, opts)
	return cmd
}

func bindRunFlags(cmd *cobra.Command, opts *RunOptions) {
	f := cmd.Flags()
	f.StringVarP(&opts.Threads, "threads", "n", "", fmt.Sprintf("worker thread count (default %d)", config.DefaultThreads))
	f.IntVar(&opts.QueueCapacity, "queue-capacity", config.DefaultQueueCapacity, "work queue capacity")
	f.BoolVar(&opts.Watch, "watch", false, "keep running and process files created in the input directory")
	f.StringVar(&opts.Database, "db", "", "record the run in this SQLite ledger")
	f.StringVar(&opts.MetricsFile, "metrics-file", "", "write a Prometheus textfile here when the run ends")
	f.StringVar(&opts.ConfigPath, "config", "", "config file (default ./threadcalc.yaml if present)")
}

func runPipeline(opts *RunOptions, inputDir, outputDir string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	cwd, _ := os.Getwd()
	flags := cmd.Flags()
	eff, err := config.Resolve(config.CLIArgs{
		InputDir:         inputDir,
		OutputDir:        outputDir,
		Threads:          opts.Threads,
		ThreadsSet:       flags.Changed("threads"),
		QueueCapacity:    opts.QueueCapacity,
		QueueCapacitySet: flags.Changed("queue-capacity"),
		Watch:            opts.Watch,
		WatchSet:         flags.Changed("watch"),
		Database:         opts.Database,
		MetricsFile:      opts.MetricsFile,
		ConfigPath:       opts.ConfigPath,
		Cwd:              cwd,
	})
	if err != nil {
		_ = out.Error(CodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	log := opts.newLogger(cmd.ErrOrStderr(), eff.LogFormat, eff.LogLevel)
	if eff.ConfigPath != "" {
		log.Debug("config loaded", "path", eff.ConfigPath)
	}
	for _, w := range eff.Warnings {
		log.Warn(w)
	}

	if err := eff.CheckDirs(); err != nil {
		_ = out.Error(CodeDirectory, err.Error(), nil)
		return WrapExitError(ExitCommandError, "unusable directories", err)
	}

	var led *ledger.Ledger
	if eff.Database != "" {
		led, err = ledger.Open(eff.Database)
		if err != nil {
			_ = out.Error(CodeLedger, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open ledger", err)
		}
		defer func() {
			if cerr := led.Close(); cerr != nil {
				log.Error("error closing ledger", "error", cerr)
			}
		}()
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum, err := pipeline.Run(ctx, pipeline.Options{
		InputDir:      eff.InputDir,
		OutputDir:     eff.OutputDir,
		Workers:       eff.Threads,
		QueueCapacity: eff.QueueCapacity,
		FileMode:      eff.FileMode,
		Watch:         eff.Watch,
		Ledger:        led,
		MetricsFile:   eff.MetricsFile,
		Logger:        log,
		RunIDs:        opts.RunIDs,
		Now:           opts.Now,
	})
	if err != nil {
		if sum.PoolError != nil {
			_ = out.Error(CodePool, err.Error(), runResult(sum, eff))
			return WrapExitError(ExitFailure, "worker pool fault", err)
		}
		_ = out.Error(CodeDirectory, err.Error(), nil)
		return WrapExitError(ExitCommandError, "run failed", err)
	}

	if out.JSON() {
		return out.SuccessRun(sum.RunID, runResult(sum, eff))
	}
	printSummary(out, sum)
	return nil
}

func runResult(sum pipeline.Summary, eff config.Effective) RunResult {
	res := RunResult{
		RunID:       sum.RunID,
		Workers:     sum.Workers,
		Files:       sum.Files,
		Processed:   sum.Processed,
		Failed:      sum.Failed,
		Equations:   sum.Equations,
		Solved:      sum.Solved,
		Unsolved:    sum.Unsolved,
		DurationMS:  sum.Duration().Milliseconds(),
		Interrupted: sum.Interrupted,
		Warnings:    eff.Warnings,
	}
	if len(sum.ByStatus) > 0 {
		res.ByStatus = make(map[string]int, len(sum.ByStatus))
		for st, n := range sum.ByStatus {
			res.ByStatus[string(st)] = n
		}
	}
	for _, f := range sum.Failures {
		fr := FailureResult{File: f.Name, Status: string(f.Status)}
		if f.Err != nil {
			fr.Error = f.Err.Error()
		}
		res.Failures = append(res.Failures, fr)
	}
	sort.Slice(res.Failures, func(i, j int) bool { return res.Failures[i].File < res.Failures[j].File })
	if eff.ConfigPath != "" {
		res.Config = map[string]string{"path": eff.ConfigPath}
	}
	return res
}

func printSummary(out *OutputFormatter, sum pipeline.Summary) {
	out.Textf("Run %s finished in %v with %d workers.", sum.RunID, sum.Duration().Round(time.Millisecond), sum.Workers)
	out.Textf("Files:     %d processed, %d failed (%d total)", sum.Processed, sum.Failed, sum.Files)
	out.Textf("Equations: %d solved, %d unsolved (%d total)", sum.Solved, sum.Unsolved, sum.Equations)
	if sum.Interrupted {
		out.Textf("Interrupted before every file was queued.")
	}
	if len(sum.Failures) == 0 {
		return
	}
	out.Textf("")
	out.Textf("Failed files:")
	for _, f := range runResult(sum, config.Effective{}).Failures {
		out.Textf("  %s: %s", f.File, f.Status)
		if f.Error != "" && out.Verbose {
			out.Textf("    %s", f.Error)
		}
	}
}
