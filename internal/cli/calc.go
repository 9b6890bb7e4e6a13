package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeremiahlee314/CalcProject/internal/calc"
	"github.com/jeremiahlee314/CalcProject/internal/fixture"
)

// CalcResult is the JSON payload of the calc command.
type CalcResult struct {
	Operand1 string `json:"operand1"`
	Operator string `json:"operator"`
	Operand2 string `json:"operand2"`
	Type     string `json:"type"`
	Solution string `json:"solution"`
	Raw      uint64 `json:"raw"`
}

// NewCalcCommand creates the calc command.
func NewCalcCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calc <operand1> <operator> <operand2>",
		Short: "Solve a single equation",
		Long: `Solve one equation with the same engine used for files.

Operands accept decimal, 0x hex, 0o octal and 0b binary literals; a
leading "-" stores the two's complement. The operator is a symbol or a
numeric code. Put "--" before a negative first operand.

Operators: ` + strings.Join(calc.Symbols(), " ") + `

Examples:
  threadcalc calc 5 + 7
  threadcalc calc 0x8000000000000000 '<<<' 1
  threadcalc calc -- -20 / 3`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCalc(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runCalc(opts *RootOptions, args []string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	a, err := fixture.ParseOperand(args[0])
	if err != nil {
		_ = out.Error(CodeUsage, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid operand1", err)
	}
	op, err := parseOperatorArg(args[1])
	if err != nil {
		_ = out.Error(CodeUsage, err.Error(), map[string]any{"operators": calc.Symbols()})
		return WrapExitError(ExitCommandError, "invalid operator", err)
	}
	b, err := fixture.ParseOperand(args[2])
	if err != nil {
		_ = out.Error(CodeUsage, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid operand2", err)
	}

	res, err := calc.Solve(uint64(a), op, uint64(b))
	if err != nil {
		_ = out.Error(CodeUnsolved, err.Error(), nil)
		return WrapExitError(ExitFailure, "unsolved", err)
	}

	if out.JSON() {
		return out.Success(CalcResult{
			Operand1: args[0],
			Operator: op.String(),
			Operand2: args[2],
			Type:     res.Category.String(),
			Solution: res.String(),
			Raw:      res.Value,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s = %s\n", args[0], op, args[2], res)
	out.VerboseLog("type=%s raw=0x%016X", res.Category, res.Value)
	return nil
}

// parseOperatorArg accepts a symbol or a decimal operator code.
func parseOperatorArg(s string) (calc.Operator, error) {
	if n, err := strconv.ParseUint(s, 10, 8); err == nil {
		return calc.Operator(n), nil
	}
	return calc.ParseOperator(s)
}
