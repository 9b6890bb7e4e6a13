// Package equation translates between in-memory equation records and their
// fixed on-disk layout.
//
// Three packed, little-endian records make up the format:
//
//	FileHeader        magic:u32 file_id:u64 count:u64 flags:u8 offset:u32 opt_headers:u16   (27 bytes)
//	UnsolvedEquation  eqid:u32 flags:u8 operand1:u64 operator:u8 operand2:u64 padding:[10]  (32 bytes)
//	SolvedEquation    eqid:u32 flags:u8 type:u8 solution:u64                                 (14 bytes)
//
// An input file is a FileHeader, optional headers up to Offset, then Count
// unsolved records. A solved file is the header with Flags=FlagProcessed
// followed directly by one solved record per input record.
//
// The codec does layout translation only. It never interprets operator codes
// or computes results. A short read is always malformed: the header's Count is
// the terminator, so running out of bytes early means the file is truncated.
package equation
