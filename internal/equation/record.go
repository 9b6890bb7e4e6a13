package equation

import (
	"encoding/binary"
	"fmt"
)

// Fixed record sizes in bytes.
const (
	HeaderSize   = 27
	UnsolvedSize = 32
	SolvedSize   = 14
	PaddingSize  = 10
)

// DefaultMagic tags files produced by this tool. Decoding does not check it.
const DefaultMagic uint32 = 0xDD77BB55

// Header flag bits.
const (
	FlagProcessed uint8 = 1
)

// Solved record flags and type tags.
const (
	FlagUnsolved uint8 = 0
	FlagSolved   uint8 = 1

	TypeUnsigned uint8 = 0
	TypeSigned   uint8 = 1
)

// FileHeader is the fixed header at the start of every equation file.
type FileHeader struct {
	Magic      uint32
	FileID     uint64
	Count      uint64 // number of equation records; authoritative terminator
	Flags      uint8
	Offset     uint32 // byte offset from file start to the first record
	OptHeaders uint16
}

// Validate checks the layout invariants of a decoded header.
func (h FileHeader) Validate() error {
	if h.Offset < HeaderSize {
		return &MalformedError{
			Kind:   KindHeader,
			Reason: fmt.Sprintf("offset %d is inside the %d-byte header", h.Offset, HeaderSize),
		}
	}
	return nil
}

// Processed reports whether the header marks a solved file.
func (h FileHeader) Processed() bool {
	return h.Flags&FlagProcessed != 0
}

// UnsolvedEquation is one arithmetic problem as stored in an input file.
type UnsolvedEquation struct {
	ID       uint32
	Flags    uint8
	Operand1 uint64
	Operator uint8
	Operand2 uint64
	Padding  [PaddingSize]byte
}

// SolvedEquation is one result record in an output file.
//
// Solution holds the raw 64 bits; when Type is TypeSigned it is the two's
// complement encoding of an int64.
type SolvedEquation struct {
	ID       uint32
	Flags    uint8
	Type     uint8
	Solution uint64
}

// Signed returns Solution reinterpreted as int64.
func (s SolvedEquation) Signed() int64 {
	return int64(s.Solution)
}

// DecodeHeader decodes the first HeaderSize bytes of b.
func DecodeHeader(b []byte) (FileHeader, error) {
	if len(b) < HeaderSize {
		return FileHeader{}, short(KindHeader, len(b), HeaderSize)
	}
	le := binary.LittleEndian
	return FileHeader{
		Magic:      le.Uint32(b[0:4]),
		FileID:     le.Uint64(b[4:12]),
		Count:      le.Uint64(b[12:20]),
		Flags:      b[20],
		Offset:     le.Uint32(b[21:25]),
		OptHeaders: le.Uint16(b[25:27]),
	}, nil
}

// AppendHeader appends the encoded header to dst.
func AppendHeader(dst []byte, h FileHeader) []byte {
	le := binary.LittleEndian
	dst = le.AppendUint32(dst, h.Magic)
	dst = le.AppendUint64(dst, h.FileID)
	dst = le.AppendUint64(dst, h.Count)
	dst = append(dst, h.Flags)
	dst = le.AppendUint32(dst, h.Offset)
	dst = le.AppendUint16(dst, h.OptHeaders)
	return dst
}

// EncodeHeader returns the HeaderSize-byte encoding of h.
func EncodeHeader(h FileHeader) []byte {
	return AppendHeader(make([]byte, 0, HeaderSize), h)
}

// DecodeEquation decodes the first UnsolvedSize bytes of b.
func DecodeEquation(b []byte) (UnsolvedEquation, error) {
	if len(b) < UnsolvedSize {
		return UnsolvedEquation{}, short(KindEquation, len(b), UnsolvedSize)
	}
	le := binary.LittleEndian
	eq := UnsolvedEquation{
		ID:       le.Uint32(b[0:4]),
		Flags:    b[4],
		Operand1: le.Uint64(b[5:13]),
		Operator: b[13],
		Operand2: le.Uint64(b[14:22]),
	}
	copy(eq.Padding[:], b[22:32])
	return eq, nil
}

// AppendUnsolved appends the encoded unsolved record to dst.
func AppendUnsolved(dst []byte, eq UnsolvedEquation) []byte {
	le := binary.LittleEndian
	dst = le.AppendUint32(dst, eq.ID)
	dst = append(dst, eq.Flags)
	dst = le.AppendUint64(dst, eq.Operand1)
	dst = append(dst, eq.Operator)
	dst = le.AppendUint64(dst, eq.Operand2)
	dst = append(dst, eq.Padding[:]...)
	return dst
}

// EncodeUnsolved returns the UnsolvedSize-byte encoding of eq.
func EncodeUnsolved(eq UnsolvedEquation) []byte {
	return AppendUnsolved(make([]byte, 0, UnsolvedSize), eq)
}

// DecodeSolved decodes the first SolvedSize bytes of b.
func DecodeSolved(b []byte) (SolvedEquation, error) {
	if len(b) < SolvedSize {
		return SolvedEquation{}, short(KindSolved, len(b), SolvedSize)
	}
	le := binary.LittleEndian
	return SolvedEquation{
		ID:       le.Uint32(b[0:4]),
		Flags:    b[4],
		Type:     b[5],
		Solution: le.Uint64(b[6:14]),
	}, nil
}

// AppendSolved appends the encoded solved record to dst.
func AppendSolved(dst []byte, s SolvedEquation) []byte {
	le := binary.LittleEndian
	dst = le.AppendUint32(dst, s.ID)
	dst = append(dst, s.Flags, s.Type)
	dst = le.AppendUint64(dst, s.Solution)
	return dst
}

// EncodeSolved returns the SolvedSize-byte encoding of s.
func EncodeSolved(s SolvedEquation) []byte {
	return AppendSolved(make([]byte, 0, SolvedSize), s)
}
