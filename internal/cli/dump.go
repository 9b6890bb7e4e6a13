package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jeremiahlee314/CalcProject/internal/calc"
	"github.com/jeremiahlee314/CalcProject/internal/equation"
	"github.com/jeremiahlee314/CalcProject/internal/fixture"
)

// DumpOptions holds flags for the dump command.
type DumpOptions struct {
	*RootOptions
	Limit int
}

// DumpResult is the decoded content of an equation file.
type DumpResult struct {
	File      string       `json:"file"`
	Header    DumpHeader   `json:"header"`
	Kind      string       `json:"kind"` // "unsolved" or "solved"
	Records   []DumpRecord `json:"records"`
	Present   uint64       `json:"present"`
	Truncated bool         `json:"truncated,omitempty"`
}

// DumpHeader is the decoded file header.
type DumpHeader struct {
	Magic      uint32 `json:"magic"`
	FileID     uint64 `json:"file_id"`
	Count      uint64 `json:"count"`
	Flags      uint8  `json:"flags"`
	Offset     uint32 `json:"offset"`
	OptHeaders uint16 `json:"optional_headers"`
}

// DumpRecord is one record; unsolved and solved records fill different
// fields.
type DumpRecord struct {
	ID       uint32 `json:"id"`
	Flags    uint8  `json:"flags"`
	Operand1 string `json:"operand1,omitempty"`
	Operator string `json:"operator,omitempty"`
	Operand2 string `json:"operand2,omitempty"`
	Type     string `json:"type,omitempty"`
	Solution string `json:"solution,omitempty"`
}

// NewDumpCommand creates the dump command.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DumpOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dump <file>",
		Short: "Decode an equation file",
		Long: `Decode and print the header and records of an equation file.

Files whose header has the processed flag are read as solved files,
anything else as unsolved input. Missing records are reported rather
than treated as an error.

Examples:
  threadcalc dump ./unsolved/basic.bin
  threadcalc dump ./solved/basic.bin --format json
  threadcalc dump ./solved/big.bin --limit 20`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "print at most this many records (0 = all)")

	return cmd
}

func runDump(opts *DumpOptions, path string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	res, err := dumpFile(path, opts.Limit)
	if err != nil {
		_ = out.Error(CodeFile, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to decode file", err)
	}

	if out.JSON() {
		return out.Success(res)
	}
	writeDumpText(cmd.OutOrStdout(), res)
	return nil
}

// dumpFile decodes the file at path, keeping at most limit records when
// limit is positive. Truncation of the record stream is not an error.
func dumpFile(path string, limit int) (DumpResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return DumpResult{}, err
	}
	defer f.Close()
	r := bufio.NewReader(f)

	h, err := equation.ReadHeader(r)
	if err != nil {
		return DumpResult{}, err
	}
	res := DumpResult{
		File: filepath.Base(path),
		Header: DumpHeader{
			Magic:      h.Magic,
			FileID:     h.FileID,
			Count:      h.Count,
			Flags:      h.Flags,
			Offset:     h.Offset,
			OptHeaders: h.OptHeaders,
		},
		Records: []DumpRecord{},
	}

	keep := func() bool { return limit <= 0 || len(res.Records) < limit }

	if h.Processed() {
		res.Kind = "solved"
		for res.Present < h.Count {
			s, err := equation.ReadSolved(r)
			if err != nil {
				res.Truncated = true
				break
			}
			res.Present++
			if keep() {
				res.Records = append(res.Records, solvedRecord(s))
			}
		}
		return res, nil
	}

	res.Kind = "unsolved"
	if gap := int64(h.Offset) - equation.HeaderSize; gap > 0 {
		if _, err := io.CopyN(io.Discard, r, gap); err != nil {
			res.Truncated = h.Count > 0
			return res, nil
		}
	}
	buf := make([]byte, equation.UnsolvedSize)
	for res.Present < h.Count {
		eq, err := equation.ReadEquation(r, buf)
		if err != nil {
			res.Truncated = true
			break
		}
		res.Present++
		if keep() {
			res.Records = append(res.Records, unsolvedRecord(eq))
		}
	}
	return res, nil
}

func unsolvedRecord(eq equation.UnsolvedEquation) DumpRecord {
	op := calc.Operator(eq.Operator)
	return DumpRecord{
		ID:       eq.ID,
		Flags:    eq.Flags,
		Operand1: formatOperand(op, eq.Operand1),
		Operator: op.String(),
		Operand2: formatOperand(op, eq.Operand2),
	}
}

func solvedRecord(s equation.SolvedEquation) DumpRecord {
	rec := DumpRecord{ID: s.ID, Flags: s.Flags, Type: "unsigned", Solution: "-"}
	if s.Type == equation.TypeSigned {
		rec.Type = "signed"
	}
	if s.Flags == equation.FlagSolved {
		rec.Solution = fixture.FormatSolution(s)
	}
	return rec
}

// formatOperand prints v the way op's solver reads it.
func formatOperand(op calc.Operator, v uint64) string {
	switch op.Category() {
	case calc.CategorySigned:
		return strconv.FormatInt(int64(v), 10)
	case calc.CategoryUnsigned:
		return strconv.FormatUint(v, 10)
	default:
		return fmt.Sprintf("0x%X", v)
	}
}

func writeDumpText(w io.Writer, res DumpResult) {
	h := res.Header
	state := "unprocessed"
	if h.Flags&equation.FlagProcessed != 0 {
		state = "processed"
	}
	fmt.Fprintf(w, "%-10s %s\n", "file", res.File)
	fmt.Fprintf(w, "%-10s 0x%08X\n", "magic", h.Magic)
	fmt.Fprintf(w, "%-10s 0x%016X\n", "file_id", h.FileID)
	fmt.Fprintf(w, "%-10s %d\n", "count", h.Count)
	fmt.Fprintf(w, "%-10s 0x%02X (%s)\n", "flags", h.Flags, state)
	fmt.Fprintf(w, "%-10s %d\n", "offset", h.Offset)
	fmt.Fprintf(w, "%-10s %d\n", "opt_hdrs", h.OptHeaders)
	fmt.Fprintln(w)

	if res.Kind == "solved" {
		fmt.Fprintf(w, "%-6s %-8s %-8s %s\n", "EQID", "STATUS", "TYPE", "SOLUTION")
		for _, r := range res.Records {
			status := "unsolved"
			if r.Flags == equation.FlagSolved {
				status = "solved"
			}
			fmt.Fprintf(w, "%-6d %-8s %-8s %s\n", r.ID, status, r.Type, r.Solution)
		}
	} else {
		fmt.Fprintf(w, "%-6s %-5s %-21s %-4s %s\n", "EQID", "FLAGS", "OPERAND1", "OP", "OPERAND2")
		for _, r := range res.Records {
			fmt.Fprintf(w, "%-6d %-5d %-21s %-4s %s\n", r.ID, r.Flags, r.Operand1, r.Operator, r.Operand2)
		}
	}

	if shown := uint64(len(res.Records)); shown < res.Present {
		fmt.Fprintf(w, "... %d more\n", res.Present-shown)
	}
	if res.Truncated {
		fmt.Fprintf(w, "truncated: %d of %d records present\n", res.Present, h.Count)
	}
}
