package cli

import (
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremiahlee314/CalcProject/internal/calc"
	"github.com/jeremiahlee314/CalcProject/internal/fixture"
	"github.com/jeremiahlee314/CalcProject/internal/processor"
	tu "github.com/jeremiahlee314/CalcProject/internal/testutil"
)

const mixedFixture = `
name: mixed
file_id: 0x2A
equations:
  - {id: 1, operand1: 5, operator: "+", operand2: 7}
  - {id: 2, operand1: 20, operator: "-", operand2: 30}
  - {id: 3, operand1: 9, operator: "/", operand2: 0}
  - {id: 4, operand1: 0x7FFFFFFFFFFFFFFF, operator: "+", operand2: 1}
  - {id: 5, operand1: 0x8000000000000000, operator: "<<<", operand2: 1}
  - {id: 6, operand1: 1, operator: 99, operand2: 1}
`

// mixedFiles writes the mixed fixture as in/mixed.bin and its solved form
// as out/mixed.bin, returning both paths.
func mixedFiles(t *testing.T) (string, string) {
	t.Helper()
	fx, err := fixture.Parse([]byte(mixedFixture))
	require.NoError(t, err)

	in, out := t.TempDir(), t.TempDir()
	require.NoError(t, fx.WriteFile(filepath.Join(in, "mixed.bin"), 0o644))

	p := &processor.Processor{InputDir: in, OutputDir: out, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	require.Equal(t, processor.StatusProcessed, p.Process("mixed.bin").Status)
	return filepath.Join(in, "mixed.bin"), filepath.Join(out, "mixed.bin")
}

func TestDump_Golden(t *testing.T) {
	unsolved, solved := mixedFiles(t)
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	stdout, _, err := execute(t, "dump", unsolved)
	require.NoError(t, err)
	g.Assert(t, "dump_unsolved", []byte(stdout))

	stdout, _, err = execute(t, "dump", solved)
	require.NoError(t, err)
	g.Assert(t, "dump_solved", []byte(stdout))
}

func TestDump_JSON(t *testing.T) {
	_, solved := mixedFiles(t)

	stdout, _, err := execute(t, "dump", solved, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data DumpResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	res := resp.Data
	assert.Equal(t, "solved", res.Kind)
	assert.Equal(t, uint64(6), res.Present)
	assert.False(t, res.Truncated)
	require.Len(t, res.Records, 6)
	assert.Equal(t, DumpRecord{ID: 2, Flags: 1, Type: "signed", Solution: "-10"}, res.Records[1])
	assert.Equal(t, DumpRecord{ID: 6, Flags: 0, Type: "unsigned", Solution: "-"}, res.Records[5])
}

func TestDump_TruncatedAndLimit(t *testing.T) {
	dir := t.TempDir()
	path := tu.WriteUnsolved(t, dir, "short.bin", tu.Header(3),
		tu.Eq(1, 1, uint8(calc.OpAdd), 1),
		tu.Eq(2, 2, uint8(calc.OpAdd), 2),
	)

	stdout, _, err := execute(t, "dump", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "truncated: 2 of 3 records present\n")

	stdout, _, err = execute(t, "dump", path, "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "... 1 more\n")
}

func TestDump_OffsetGapIsSkipped(t *testing.T) {
	hdr := tu.Header(1)
	hdr.Offset += 9
	path := tu.WriteUnsolved(t, t.TempDir(), "gap.bin", hdr, tu.Eq(7, 3, uint8(calc.OpMul), 4))

	res, err := dumpFile(path, 0)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, uint32(7), res.Records[0].ID)
	assert.Equal(t, "*", res.Records[0].Operator)
}

func TestDump_Errors(t *testing.T) {
	_, _, err := execute(t, "dump", filepath.Join(t.TempDir(), "missing.bin"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	path := tu.WriteRaw(t, t.TempDir(), "tiny.bin", []byte{1, 2, 3})
	_, stderr, err := execute(t, "dump", path)
	require.Error(t, err)
	assert.Contains(t, stderr, "malformed header")
}
