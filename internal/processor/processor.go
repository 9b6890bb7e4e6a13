package processor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jeremiahlee314/CalcProject/internal/calc"
	"github.com/jeremiahlee314/CalcProject/internal/equation"
)

// DefaultFileMode is applied to every output file.
const DefaultFileMode fs.FileMode = 0o644

// Status is the file-level result of processing one input file.
type Status string

const (
	// StatusProcessed means every declared equation was read and written.
	StatusProcessed Status = "processed"

	// StatusSkipped means an input or output file could not be opened or
	// prepared. No output is left behind.
	StatusSkipped Status = "skipped"

	// StatusMalformedHeader means the header was short or inconsistent.
	// No output is left behind.
	StatusMalformedHeader Status = "malformed_header"

	// StatusTruncated means the equation stream ended before the declared
	// count. Output up to the last complete record is kept.
	StatusTruncated Status = "truncated"

	// StatusWriteFailed means writing or closing the output failed part way.
	StatusWriteFailed Status = "write_failed"
)

// Failed reports whether s is anything other than StatusProcessed.
func (s Status) Failed() bool { return s != StatusProcessed }

// Outcome summarizes the processing of one file.
type Outcome struct {
	Name      string
	Status    Status
	Declared  uint64 // equation count from the header
	Equations uint64 // complete records read
	Solved    uint64
	Unsolved  uint64
	Err       error
	Duration  time.Duration
}

// Processor solves equation files from InputDir into OutputDir. It holds no
// mutable state and is safe for concurrent use by many workers.
type Processor struct {
	InputDir  string
	OutputDir string
	FileMode  fs.FileMode
	Logger    *slog.Logger
}

// Process solves the input file called name and writes the output file of
// the same name. It never panics on bad input; every failure is reported in
// the returned Outcome.
func (p *Processor) Process(name string) Outcome {
	start := time.Now()
	log := p.logger().With("file", name)

	out := p.process(name, log)
	out.Name = name
	out.Duration = time.Since(start)

	switch out.Status {
	case StatusProcessed:
		log.Debug("file processed",
			"equations", out.Equations,
			"solved", out.Solved,
			"unsolved", out.Unsolved,
			"duration", out.Duration,
		)
	default:
		log.Warn("file failed",
			"status", out.Status,
			"equations", out.Equations,
			"declared", out.Declared,
			"error", out.Err,
		)
	}
	return out
}

func (p *Processor) process(name string, log *slog.Logger) Outcome {
	inPath := filepath.Join(p.InputDir, name)
	outPath := filepath.Join(p.OutputDir, name)

	in, err := os.OpenFile(inPath, os.O_RDONLY, 0)
	if err != nil {
		return Outcome{Status: StatusSkipped, Err: fmt.Errorf("open input: %w", err)}
	}
	defer in.Close()

	mode := p.FileMode
	if mode == 0 {
		mode = DefaultFileMode
	}

	out, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return Outcome{Status: StatusSkipped, Err: fmt.Errorf("create output: %w", err)}
	}
	// OpenFile's mode is filtered by the umask and ignored for existing files.
	if err := out.Chmod(mode); err != nil {
		discard(out, outPath)
		return Outcome{Status: StatusSkipped, Err: fmt.Errorf("chmod output: %w", err)}
	}

	hdr, err := equation.ReadHeader(in)
	if err != nil {
		discard(out, outPath)
		return Outcome{Status: StatusMalformedHeader, Err: err}
	}

	result := Outcome{Status: StatusProcessed, Declared: hdr.Count}

	solvedHdr := hdr
	solvedHdr.Flags = equation.FlagProcessed
	if _, err := out.Write(equation.EncodeHeader(solvedHdr)); err != nil {
		discard(out, outPath)
		result.Status = StatusWriteFailed
		result.Err = fmt.Errorf("write header: %w", err)
		return result
	}

	if _, err := in.Seek(int64(hdr.Offset), io.SeekStart); err != nil {
		discard(out, outPath)
		result.Status = StatusSkipped
		result.Err = fmt.Errorf("seek to records: %w", err)
		return result
	}

	r := bufio.NewReader(in)
	buf := make([]byte, equation.UnsolvedSize)
	rec := make([]byte, 0, equation.SolvedSize)

	for i := uint64(0); i < hdr.Count; i++ {
		eq, err := equation.ReadEquation(r, buf)
		if err != nil {
			result.Status = StatusTruncated
			result.Err = fmt.Errorf("record %d of %d: %w", i+1, hdr.Count, err)
			break
		}
		result.Equations++

		solved, err := Solve(eq)
		if err != nil {
			result.Unsolved++
			log.Info("equation unsolved", "eqid", eq.ID, "error", err)
		} else {
			result.Solved++
		}

		rec = equation.AppendSolved(rec[:0], solved)
		if _, err := out.Write(rec); err != nil {
			result.Status = StatusWriteFailed
			result.Err = fmt.Errorf("write record %d: %w", eq.ID, err)
			break
		}
	}

	if err := out.Close(); err != nil && result.Err == nil {
		result.Status = StatusWriteFailed
		result.Err = fmt.Errorf("close output: %w", err)
	}
	return result
}

// Solve classifies and evaluates one record. On failure the record is
// unsolved (flags 0) and carries the type of the operator's category, which
// is unsigned for an invalid code; the error says why.
func Solve(eq equation.UnsolvedEquation) (equation.SolvedEquation, error) {
	s := equation.SolvedEquation{ID: eq.ID, Flags: equation.FlagUnsolved}

	op := calc.Operator(eq.Operator)
	if op.Category() == calc.CategorySigned {
		s.Type = equation.TypeSigned
	}

	r, err := calc.Solve(eq.Operand1, op, eq.Operand2)
	if err != nil {
		return s, err
	}
	s.Flags = equation.FlagSolved
	s.Solution = r.Value
	return s, nil
}

func discard(f *os.File, path string) {
	f.Close()
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("could not remove partial output", "path", path, "error", err)
	}
}

func (p *Processor) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
