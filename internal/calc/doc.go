// Package calc implements the arithmetic engine.
//
// Operator codes 1 through 5 are signed operations on int64 values, codes 6
// through 12 are bitwise operations on uint64 values. Every failure is a
// *Error scoped to a single equation:
//
//   - DIVISION_BY_ZERO: "/" or "%" with a zero divisor
//   - OUT_OF_RANGE: a signed result that does not fit in int64
//   - INVALID_OPERATOR: a code outside 1..12, or a code sent to the wrong
//     category solver
//
// Results never wrap silently on the signed side. Shift and rotate amounts
// are reduced modulo 64.
package calc
