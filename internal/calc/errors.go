package calc

import (
	"errors"
	"fmt"
)

// Error is an equation-local arithmetic failure.
type Error struct {
	// Code identifies the failure category.
	Code ErrorCode

	// Op is the operator that failed.
	Op Operator

	// Message is a human-readable description.
	Message string
}

// ErrorCode categorizes arithmetic failures.
type ErrorCode string

const (
	// ErrCodeDivisionByZero indicates "/" or "%" with a zero divisor.
	ErrCodeDivisionByZero ErrorCode = "DIVISION_BY_ZERO"

	// ErrCodeOutOfRange indicates a signed result outside int64.
	ErrCodeOutOfRange ErrorCode = "OUT_OF_RANGE"

	// ErrCodeInvalidOperator indicates an operator code outside 1..12.
	ErrCodeInvalidOperator ErrorCode = "INVALID_OPERATOR"
)

func (e *Error) Error() string {
	if e.Op != 0 {
		return fmt.Sprintf("%s: %s (op=%s)", e.Code, e.Message, e.Op)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsDivisionByZero reports whether err is a division by zero.
func IsDivisionByZero(err error) bool {
	return hasCode(err, ErrCodeDivisionByZero)
}

// IsOutOfRange reports whether err is a signed overflow.
func IsOutOfRange(err error) bool {
	return hasCode(err, ErrCodeOutOfRange)
}

// IsInvalidOperator reports whether err is an unknown operator code.
func IsInvalidOperator(err error) bool {
	return hasCode(err, ErrCodeInvalidOperator)
}

func hasCode(err error, code ErrorCode) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

func invalidOperator(op Operator, want Category) *Error {
	msg := fmt.Sprintf("operator code %d is not defined", uint8(op))
	if op.Valid() {
		msg = fmt.Sprintf("operator %s is not a %s operation", op, want)
	}
	return &Error{Code: ErrCodeInvalidOperator, Op: op, Message: msg}
}
