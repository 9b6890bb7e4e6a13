package equation

import (
	"errors"
	"fmt"
)

// RecordKind names the record a MalformedError refers to.
type RecordKind string

const (
	KindHeader   RecordKind = "header"
	KindEquation RecordKind = "equation"
	KindSolved   RecordKind = "solved equation"
)

// MalformedError reports a record that could not be decoded, either because
// fewer than its fixed size in bytes were available or because a decoded
// field violates the layout.
type MalformedError struct {
	Kind RecordKind

	// Got and Want are byte counts for short reads; both zero otherwise.
	Got  int
	Want int

	// Reason describes a layout violation when the byte count was fine.
	Reason string

	// Err is the underlying I/O error, if any.
	Err error
}

func (e *MalformedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("malformed %s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("malformed %s: read %d of %d bytes", e.Kind, e.Got, e.Want)
}

func (e *MalformedError) Unwrap() error { return e.Err }

func short(kind RecordKind, got, want int) *MalformedError {
	return &MalformedError{Kind: kind, Got: got, Want: want}
}

// IsMalformedHeader reports whether err is a MalformedError for a header.
func IsMalformedHeader(err error) bool {
	return isKind(err, KindHeader)
}

// IsMalformedEquation reports whether err is a MalformedError for an
// unsolved equation record.
func IsMalformedEquation(err error) bool {
	return isKind(err, KindEquation)
}

func isKind(err error, kind RecordKind) bool {
	var me *MalformedError
	if errors.As(err, &me) {
		return me.Kind == kind
	}
	return false
}
