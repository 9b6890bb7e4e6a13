// Package fixture describes equation files in YAML.
//
// A fixture lists header fields and equations in readable form and can be
// encoded to the binary input format. Each equation may carry an expected
// result that is checked against the solved output with Verify.
//
//	name: basic
//	file_id: 0x10
//	equations:
//	  - id: 1
//	    operand1: 10
//	    operator: "+"
//	    operand2: 5
//	    expect: {solved: true, type: signed, solution: 15}
package fixture

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jeremiahlee314/CalcProject/internal/calc"
	"github.com/jeremiahlee314/CalcProject/internal/equation"
)

// Fixture is one equation file.
type Fixture struct {
	// Name identifies the fixture in messages.
	Name string `yaml:"name,omitempty"`

	// Description explains what the fixture exercises.
	Description string `yaml:"description,omitempty"`

	// Magic defaults to equation.DefaultMagic.
	Magic *Operand `yaml:"magic,omitempty"`

	FileID Operand `yaml:"file_id,omitempty"`

	// Offset of the first record. Defaults to equation.HeaderSize; any gap
	// after the header is zero-filled.
	Offset uint32 `yaml:"offset,omitempty"`

	OptionalHeaders uint16 `yaml:"optional_headers,omitempty"`

	// Count overrides the declared equation count. Defaults to the number
	// of equations, so a larger value describes a truncated file.
	Count *uint64 `yaml:"count,omitempty"`

	Equations []Equation `yaml:"equations"`
}

// Equation is one unsolved record.
type Equation struct {
	ID       uint32   `yaml:"id"`
	Operand1 Operand  `yaml:"operand1"`
	Operator Operator `yaml:"operator"`
	Operand2 Operand  `yaml:"operand2"`

	// Expect, if present, is checked by Verify.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect is the expected solved record. Omitted fields are not checked.
type Expect struct {
	Solved   *bool    `yaml:"solved,omitempty"`
	Type     string   `yaml:"type,omitempty"` // "signed" or "unsigned"
	Solution *Operand `yaml:"solution,omitempty"`
}

// Operand is a 64-bit value written as a signed, unsigned, hex, octal or
// binary literal. Negative values are stored as two's complement.
type Operand uint64

// UnmarshalYAML implements yaml.Unmarshaler.
func (o *Operand) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: operand must be a scalar", node.Line)
	}
	v, err := ParseOperand(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*o = v
	return nil
}

// MarshalYAML implements yaml.Marshaler, writing values with the high bit
// set as hex.
func (o Operand) MarshalYAML() (any, error) {
	if int64(o) < 0 {
		return fmt.Sprintf("0x%X", uint64(o)), nil
	}
	return uint64(o), nil
}

// ParseOperand parses s with Go literal syntax; a leading "-" selects a
// signed parse.
func ParseOperand(s string) (Operand, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") {
		i, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return 0, fmt.Errorf("operand %q: %w", s, err)
		}
		return Operand(i), nil
	}
	u, err := strconv.ParseUint(strings.TrimPrefix(s, "+"), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("operand %q: %w", s, err)
	}
	return Operand(u), nil
}

// Operator is an operator code written either as a symbol ("+", "<<<") or
// as a raw integer code. Raw codes may be invalid on purpose.
type Operator uint8

// UnmarshalYAML implements yaml.Unmarshaler.
func (op *Operator) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: operator must be a scalar", node.Line)
	}
	if node.Tag == "!!int" {
		n, err := strconv.ParseUint(node.Value, 0, 8)
		if err != nil {
			return fmt.Errorf("line %d: operator code %q: %w", node.Line, node.Value, err)
		}
		*op = Operator(n)
		return nil
	}
	code, err := calc.ParseOperator(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*op = Operator(code)
	return nil
}

// MarshalYAML writes valid codes as symbols and invalid ones as integers.
func (op Operator) MarshalYAML() (any, error) {
	if c := calc.Operator(op); c.Valid() {
		return c.String(), nil
	}
	return int(op), nil
}

// Load reads and parses a fixture file.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a fixture, rejecting unknown fields.
func Parse(data []byte) (*Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("invalid fixture: %w", err)
	}
	return &f, nil
}

// Marshal renders f as YAML.
func (f *Fixture) Marshal() ([]byte, error) {
	return yaml.Marshal(f)
}

func (f *Fixture) validate() error {
	if f.Offset != 0 && f.Offset < equation.HeaderSize {
		return fmt.Errorf("offset %d is inside the %d-byte header", f.Offset, equation.HeaderSize)
	}
	for i, eq := range f.Equations {
		if eq.Expect == nil {
			continue
		}
		switch eq.Expect.Type {
		case "", "signed", "unsigned":
		default:
			return fmt.Errorf("equations[%d]: expect.type must be signed or unsigned, got %q", i, eq.Expect.Type)
		}
	}
	return nil
}

// Header returns the binary header the fixture describes.
func (f *Fixture) Header() equation.FileHeader {
	h := equation.FileHeader{
		Magic:      equation.DefaultMagic,
		FileID:     uint64(f.FileID),
		Count:      uint64(len(f.Equations)),
		Offset:     f.Offset,
		OptHeaders: f.OptionalHeaders,
	}
	if f.Magic != nil {
		h.Magic = uint32(*f.Magic)
	}
	if f.Count != nil {
		h.Count = *f.Count
	}
	if h.Offset == 0 {
		h.Offset = equation.HeaderSize
	}
	return h
}

// Records returns the unsolved records in order.
func (f *Fixture) Records() []equation.UnsolvedEquation {
	out := make([]equation.UnsolvedEquation, len(f.Equations))
	for i, eq := range f.Equations {
		out[i] = equation.UnsolvedEquation{
			ID:       eq.ID,
			Operand1: uint64(eq.Operand1),
			Operator: uint8(eq.Operator),
			Operand2: uint64(eq.Operand2),
		}
	}
	return out
}

// Encode returns the unsolved file bytes.
func (f *Fixture) Encode() []byte {
	h := f.Header()
	b := equation.EncodeHeader(h)
	if gap := int(h.Offset) - len(b); gap > 0 {
		b = append(b, make([]byte, gap)...)
	}
	for _, r := range f.Records() {
		b = equation.AppendUnsolved(b, r)
	}
	return b
}

// WriteFile writes the encoded fixture to path.
func (f *Fixture) WriteFile(path string, mode fs.FileMode) error {
	if err := os.WriteFile(path, f.Encode(), mode); err != nil {
		return fmt.Errorf("write fixture: %w", err)
	}
	return nil
}

// Verify checks solved records against the equations' expectations. The
// record count must match the number of equations. All mismatches are
// reported together.
func (f *Fixture) Verify(solved []equation.SolvedEquation) error {
	var errs []error
	if len(solved) != len(f.Equations) {
		errs = append(errs, fmt.Errorf("got %d solved records, want %d", len(solved), len(f.Equations)))
	}

	for i := 0; i < len(solved) && i < len(f.Equations); i++ {
		eq, got := f.Equations[i], solved[i]
		if got.ID != eq.ID {
			errs = append(errs, fmt.Errorf("record %d: id %d, want %d", i, got.ID, eq.ID))
			continue
		}
		if eq.Expect == nil {
			continue
		}
		if want := eq.Expect.Solved; want != nil && (got.Flags == equation.FlagSolved) != *want {
			errs = append(errs, fmt.Errorf("eqid %d: solved=%t, want %t", eq.ID, got.Flags == equation.FlagSolved, *want))
		}
		if want := eq.Expect.Type; want != "" && typeName(got.Type) != want {
			errs = append(errs, fmt.Errorf("eqid %d: type %s, want %s", eq.ID, typeName(got.Type), want))
		}
		if want := eq.Expect.Solution; want != nil && got.Solution != uint64(*want) {
			errs = append(errs, fmt.Errorf("eqid %d: solution %s, want %s",
				eq.ID, FormatSolution(got), FormatSolution(equation.SolvedEquation{Type: got.Type, Solution: uint64(*want)})))
		}
	}
	return errors.Join(errs...)
}

// FormatSolution renders a solution according to its type tag.
func FormatSolution(s equation.SolvedEquation) string {
	if s.Type == equation.TypeSigned {
		return strconv.FormatInt(s.Signed(), 10)
	}
	return strconv.FormatUint(s.Solution, 10)
}

func typeName(t uint8) string {
	if t == equation.TypeSigned {
		return "signed"
	}
	return "unsigned"
}

// Random builds a fixture of n equations from a seeded generator, so the
// same seed always yields the same file. Roughly one equation in ten uses
// an invalid operator or a zero divisor.
func Random(n int, seed uint64) *Fixture {
	r := rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))
	f := &Fixture{
		Name:   fmt.Sprintf("random-%d", seed),
		FileID: Operand(r.Uint64()),
	}
	for i := 0; i < n; i++ {
		eq := Equation{ID: uint32(i + 1)}
		switch roll := r.IntN(10); {
		case roll == 0:
			eq.Operator = Operator(13 + r.IntN(243))
			eq.Operand1 = Operand(r.Uint64())
			eq.Operand2 = Operand(r.Uint64())
		case roll == 1:
			eq.Operator = Operator(calc.OpDiv + calc.Operator(r.IntN(2)))
			eq.Operand1 = Operand(r.Uint64())
		default:
			eq.Operator = Operator(1 + r.IntN(12))
			eq.Operand1 = Operand(r.Int64N(1<<32) - 1<<31)
			eq.Operand2 = Operand(r.Int64N(1<<32) - 1<<31)
			if c := calc.Operator(eq.Operator); c.Category() == calc.CategoryUnsigned {
				eq.Operand1 = Operand(r.Uint64())
				eq.Operand2 = Operand(r.Uint64N(64))
			}
		}
		f.Equations = append(f.Equations, eq)
	}
	return f
}
