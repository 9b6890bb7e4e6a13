package cli

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremiahlee314/CalcProject/internal/ledger"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	RunID    string
	Limit    int
}

// HistoryRun is one run in history output.
type HistoryRun struct {
	ID         string     `json:"id"`
	InputDir   string     `json:"input_dir"`
	OutputDir  string     `json:"output_dir"`
	Workers    int        `json:"workers"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Files      int64      `json:"files"`
	Processed  int64      `json:"processed"`
	Failed     int64      `json:"failed"`
	Equations  int64      `json:"equations"`
	Solved     int64      `json:"solved"`
	Unsolved   int64      `json:"unsolved"`
	PoolError  string     `json:"pool_error,omitempty"`
}

// HistoryFile is one file result in history output.
type HistoryFile struct {
	Seq        int64  `json:"seq"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	Declared   int64  `json:"declared"`
	Equations  int64  `json:"equations"`
	Solved     int64  `json:"solved"`
	Unsolved   int64  `json:"unsolved"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// HistoryDetail is a single run with its files.
type HistoryDetail struct {
	Run   HistoryRun    `json:"run"`
	Files []HistoryFile `json:"files"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show runs recorded in a ledger",
		Long: `List the runs recorded in a ledger database, newest first, or show
the per-file results of one run.

Examples:
  threadcalc history --db ./threadcalc.db
  threadcalc history --db ./threadcalc.db --limit 5
  threadcalc history --db ./threadcalc.db --run 0192f3c4-... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the ledger database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show the files of this run")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs to list (0 = all)")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Opening creates a database, which is never what a reader wants.
	if _, err := os.Stat(opts.Database); err != nil {
		_ = out.Error(CodeLedger, err.Error(), nil)
		return WrapExitError(ExitCommandError, "ledger not found", err)
	}
	led, err := ledger.Open(opts.Database)
	if err != nil {
		_ = out.Error(CodeLedger, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open ledger", err)
	}
	defer led.Close()

	if opts.RunID != "" {
		return showRun(ctx, out, led, opts.RunID)
	}

	runs, err := led.ListRuns(ctx, opts.Limit)
	if err != nil {
		_ = out.Error(CodeLedger, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	list := make([]HistoryRun, len(runs))
	for i, r := range runs {
		list[i] = historyRun(r)
	}

	if out.JSON() {
		return out.Success(list)
	}
	if len(list) == 0 {
		out.Textf("No runs recorded in %s", opts.Database)
		return nil
	}
	out.Textf("%-36s  %-20s  %7s  %6s  %6s  %10s", "RUN", "STARTED", "WORKERS", "FILES", "FAILED", "EQUATIONS")
	for _, r := range list {
		started := r.StartedAt.UTC().Format(time.DateTime)
		if r.FinishedAt == nil {
			started += "*"
		}
		out.Textf("%-36s  %-20s  %7d  %6d  %6d  %10d", r.ID, started, r.Workers, r.Files, r.Failed, r.Equations)
	}
	return nil
}

func showRun(ctx context.Context, out *OutputFormatter, led *ledger.Ledger, id string) error {
	run, err := led.ReadRun(ctx, id)
	if errors.Is(err, ledger.ErrRunNotFound) {
		_ = out.Error(CodeLedger, err.Error(), nil)
		return WrapExitError(ExitFailure, "no such run", err)
	}
	if err != nil {
		_ = out.Error(CodeLedger, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}
	files, err := led.ReadFiles(ctx, id)
	if err != nil {
		_ = out.Error(CodeLedger, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read files", err)
	}

	detail := HistoryDetail{Run: historyRun(run), Files: make([]HistoryFile, len(files))}
	for i, f := range files {
		detail.Files[i] = HistoryFile{
			Seq:        f.Seq,
			Name:       f.Name,
			Status:     f.Status,
			Declared:   f.Declared,
			Equations:  f.Equations,
			Solved:     f.Solved,
			Unsolved:   f.Unsolved,
			Error:      f.Error,
			DurationMS: f.Duration.Milliseconds(),
		}
	}

	if out.JSON() {
		return out.SuccessRun(run.ID, detail)
	}

	r := detail.Run
	out.Textf("Run:       %s", r.ID)
	out.Textf("Input:     %s", r.InputDir)
	out.Textf("Output:    %s", r.OutputDir)
	out.Textf("Workers:   %d", r.Workers)
	out.Textf("Started:   %s", r.StartedAt.UTC().Format(time.RFC3339))
	if r.FinishedAt != nil {
		out.Textf("Finished:  %s", r.FinishedAt.UTC().Format(time.RFC3339))
	} else {
		out.Textf("Finished:  (not recorded)")
	}
	out.Textf("Files:     %d processed, %d failed (%d total)", r.Processed, r.Failed, r.Files)
	out.Textf("Equations: %d solved, %d unsolved (%d total)", r.Solved, r.Unsolved, r.Equations)
	if r.PoolError != "" {
		out.Textf("Pool:      %s", r.PoolError)
	}
	out.Textf("")
	out.Textf("%4s  %-32s  %-16s  %10s  %10s", "SEQ", "FILE", "STATUS", "SOLVED", "UNSOLVED")
	for _, f := range detail.Files {
		out.Textf("%4d  %-32s  %-16s  %10d  %10d", f.Seq, f.Name, f.Status, f.Solved, f.Unsolved)
		if f.Error != "" && out.Verbose {
			out.Textf("      %s", f.Error)
		}
	}
	return nil
}

func historyRun(r ledger.Run) HistoryRun {
	h := HistoryRun{
		ID:        r.ID,
		InputDir:  r.InputDir,
		OutputDir: r.OutputDir,
		Workers:   r.Workers,
		StartedAt: r.StartedAt,
		Files:     r.Files,
		Processed: r.Processed,
		Failed:    r.Failed,
		Equations: r.Equations,
		Solved:    r.Solved,
		Unsolved:  r.Unsolved,
		PoolError: r.PoolError,
	}
	if r.Finished() {
		t := r.FinishedAt
		h.FinishedAt = &t
	}
	return h
}
