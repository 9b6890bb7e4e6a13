// Package testutil provides helpers shared by tests across packages.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jeremiahlee314/CalcProject/internal/equation"
)

// Header returns a header for count records starting right after it.
func Header(count uint64) equation.FileHeader {
	return equation.FileHeader{
		Magic:  equation.DefaultMagic,
		FileID: 1,
		Count:  count,
		Offset: equation.HeaderSize,
	}
}

// Eq builds an unsolved record.
func Eq(id uint32, a uint64, op uint8, b uint64) equation.UnsolvedEquation {
	return equation.UnsolvedEquation{ID: id, Operand1: a, Operator: op, Operand2: b}
}

// EncodeUnsolved returns the bytes of a complete unsolved file. Any gap
// between the header and hdr.Offset is zero-filled.
func EncodeUnsolved(hdr equation.FileHeader, eqs ...equation.UnsolvedEquation) []byte {
	b := equation.EncodeHeader(hdr)
	if gap := int(hdr.Offset) - len(b); gap > 0 {
		b = append(b, make([]byte, gap)...)
	}
	for _, eq := range eqs {
		b = equation.AppendUnsolved(b, eq)
	}
	return b
}

// WriteUnsolved writes an unsolved file to dir/name and returns its path.
func WriteUnsolved(t *testing.T, dir, name string, hdr equation.FileHeader, eqs ...equation.UnsolvedEquation) string {
	t.Helper()
	return WriteRaw(t, dir, name, EncodeUnsolved(hdr, eqs...))
}

// WriteRaw writes arbitrary bytes to dir/name and returns its path.
func WriteRaw(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// ReadSolved reads a solved file and decodes its header and every complete
// record after the header. Trailing partial bytes fail the test.
func ReadSolved(t *testing.T, path string) (equation.FileHeader, []equation.SolvedEquation) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	r := bytes.NewReader(data)
	hdr, err := equation.ReadHeader(r)
	require.NoError(t, err)

	require.Zero(t, r.Len()%equation.SolvedSize, "trailing partial record in %s", path)
	var out []equation.SolvedEquation
	for r.Len() > 0 {
		s, err := equation.ReadSolved(r)
		require.NoError(t, err)
		out = append(out, s)
	}
	return hdr, out
}
