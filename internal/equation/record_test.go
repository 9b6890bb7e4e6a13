package equation

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeader_RoundTrip(t *testing.T) {
	h := FileHeader{
		Magic:      DefaultMagic,
		FileID:     0x0102030405060708,
		Count:      3,
		Flags:      0,
		Offset:     HeaderSize + 5,
		OptHeaders: 1,
	}

	b := EncodeHeader(h)
	require.Len(t, b, HeaderSize)

	got, err := DecodeHeader(b)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestHeader_LittleEndianLayout(t *testing.T) {
	h := FileHeader{Magic: 0x11223344, FileID: 1, Count: 2, Flags: 1, Offset: 27, OptHeaders: 0x0A0B}
	b := EncodeHeader(h)

	assert.Equal(t, []byte{0x44, 0x33, 0x22, 0x11}, b[0:4], "magic")
	assert.Equal(t, byte(1), b[4], "file id low byte")
	assert.Equal(t, byte(2), b[12], "count low byte")
	assert.Equal(t, byte(1), b[20], "flags")
	assert.Equal(t, []byte{27, 0, 0, 0}, b[21:25], "offset")
	assert.Equal(t, []byte{0x0B, 0x0A}, b[25:27], "optional header count")
}

func TestUnsolved_RoundTrip(t *testing.T) {
	eq := UnsolvedEquation{
		ID:       42,
		Flags:    7,
		Operand1: 0xFFFFFFFFFFFFFFFF,
		Operator: 11,
		Operand2: 63,
		Padding:  [PaddingSize]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
	}

	b := EncodeUnsolved(eq)
	require.Len(t, b, UnsolvedSize)

	got, err := DecodeEquation(b)
	require.NoError(t, err)
	assert.Equal(t, eq, got)
}

func TestSolved_RoundTrip(t *testing.T) {
	s := SolvedEquation{ID: 9, Flags: FlagSolved, Type: TypeSigned, Solution: uint64(0xFFFFFFFFFFFFFFF1)}

	b := EncodeSolved(s)
	require.Len(t, b, SolvedSize)

	got, err := DecodeSolved(b)
	require.NoError(t, err)
	assert.Equal(t, s, got)
	assert.Equal(t, int64(-15), got.Signed())
}

func TestDecode_ShortInput(t *testing.T) {
	tests := []struct {
		name   string
		decode func([]byte) error
		size   int
		check  func(error) bool
	}{
		{"header", func(b []byte) error { _, err := DecodeHeader(b); return err }, HeaderSize, IsMalformedHeader},
		{"equation", func(b []byte) error { _, err := DecodeEquation(b); return err }, UnsolvedSize, IsMalformedEquation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.decode(make([]byte, tt.size-1))
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error kind: %v", err)

			var me *MalformedError
			require.True(t, errors.As(err, &me))
			assert.Equal(t, tt.size-1, me.Got)
			assert.Equal(t, tt.size, me.Want)
		})
	}
}

func TestHeader_Validate_OffsetInsideHeader(t *testing.T) {
	h := FileHeader{Count: 1, Offset: HeaderSize - 1}
	err := h.Validate()
	require.Error(t, err)
	assert.True(t, IsMalformedHeader(err))

	h.Offset = HeaderSize
	assert.NoError(t, h.Validate())
}

func TestReadHeader_Truncated(t *testing.T) {
	b := EncodeHeader(FileHeader{Count: 1, Offset: HeaderSize})
	_, err := ReadHeader(bytes.NewReader(b[:10]))
	require.Error(t, err)
	assert.True(t, IsMalformedHeader(err))
	assert.Contains(t, err.Error(), "read 10 of 27 bytes")
}

func TestReadHeader_RejectsBadOffset(t *testing.T) {
	b := EncodeHeader(FileHeader{Count: 1, Offset: 4})
	_, err := ReadHeader(bytes.NewReader(b))
	assert.True(t, IsMalformedHeader(err))
}

func TestReadEquation_StreamsRecords(t *testing.T) {
	var stream []byte
	for i := uint32(1); i <= 2; i++ {
		stream = AppendUnsolved(stream, UnsolvedEquation{ID: i, Operand1: uint64(i), Operator: 1, Operand2: 1})
	}
	stream = append(stream, 0xAA, 0xBB) // trailing partial record

	r := bytes.NewReader(stream)
	buf := make([]byte, UnsolvedSize)

	for i := uint32(1); i <= 2; i++ {
		eq, err := ReadEquation(r, buf)
		require.NoError(t, err)
		assert.Equal(t, i, eq.ID)
	}

	_, err := ReadEquation(r, buf)
	require.Error(t, err)
	assert.True(t, IsMalformedEquation(err))

	_, err = ReadEquation(r, buf)
	assert.True(t, IsMalformedEquation(err), "EOF is still truncation when records are expected")
}

type failingReader struct{ err error }

func (f failingReader) Read([]byte) (int, error) { return 0, f.err }

func TestReadEquation_WrapsIOError(t *testing.T) {
	ioErr := errors.New("disk on fire")
	_, err := ReadEquation(failingReader{err: ioErr}, make([]byte, UnsolvedSize))
	require.Error(t, err)
	assert.True(t, IsMalformedEquation(err))
	assert.ErrorIs(t, err, ioErr)
	assert.NotErrorIs(t, err, io.EOF)
}

func TestFileHeader_Processed(t *testing.T) {
	assert.False(t, FileHeader{}.Processed())
	assert.True(t, FileHeader{Flags: FlagProcessed}.Processed())
}
