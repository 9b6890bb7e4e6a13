// Package processor solves a single equation file.
//
// A Processor reads the input header, writes its copy with the processed
// flag set, then streams records one at a time: decode, classify, solve,
// encode, append. Only one record is buffered at any moment.
//
// Failures are contained at the smallest scope that can absorb them. An
// equation that cannot be solved is written with flags 0. A file that cannot
// be opened, or whose header is malformed, produces no output. A truncated
// stream keeps the records solved so far.
package processor
