package equation

import (
	"errors"
	"io"
)

// ReadHeader reads exactly one header from r and validates it.
// A short read yields a MalformedError of KindHeader.
func ReadHeader(r io.Reader) (FileHeader, error) {
	var buf [HeaderSize]byte
	if n, err := io.ReadFull(r, buf[:]); err != nil {
		return FileHeader{}, readErr(KindHeader, n, HeaderSize, err)
	}
	h, err := DecodeHeader(buf[:])
	if err != nil {
		return FileHeader{}, err
	}
	if err := h.Validate(); err != nil {
		return FileHeader{}, err
	}
	return h, nil
}

// ReadEquation reads exactly one unsolved record from r into buf and decodes
// it. buf must hold at least UnsolvedSize bytes and is reused by the caller
// so that only one record is ever buffered.
func ReadEquation(r io.Reader, buf []byte) (UnsolvedEquation, error) {
	buf = buf[:UnsolvedSize]
	if n, err := io.ReadFull(r, buf); err != nil {
		return UnsolvedEquation{}, readErr(KindEquation, n, UnsolvedSize, err)
	}
	return DecodeEquation(buf)
}

// ReadSolved reads exactly one solved record from r.
func ReadSolved(r io.Reader) (SolvedEquation, error) {
	var buf [SolvedSize]byte
	if n, err := io.ReadFull(r, buf[:]); err != nil {
		return SolvedEquation{}, readErr(KindSolved, n, SolvedSize, err)
	}
	return DecodeSolved(buf[:])
}

// readErr maps io.ReadFull failures to MalformedError. EOF and unexpected
// EOF mean truncation; other I/O errors are wrapped so callers can still
// reach them.
func readErr(kind RecordKind, got, want int, err error) error {
	me := short(kind, got, want)
	if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		me.Err = err
	}
	return me
}
