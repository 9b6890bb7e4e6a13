package calc

import (
	"math"
	"math/bits"
	"strconv"
)

// Result is a solved value together with its interpretation.
type Result struct {
	Category Category
	Value    uint64 // raw bits; two's complement int64 when Category is CategorySigned
}

// Signed returns Value as int64.
func (r Result) Signed() int64 { return int64(r.Value) }

// String formats the value according to its category.
func (r Result) String() string {
	if r.Category == CategorySigned {
		return strconv.FormatInt(r.Signed(), 10)
	}
	return strconv.FormatUint(r.Value, 10)
}

// Solve classifies op and dispatches to the matching solver. Operands are
// the raw 64-bit fields of the record; signed operators reinterpret them as
// int64.
func Solve(op1 uint64, op Operator, op2 uint64) (Result, error) {
	switch op.Category() {
	case CategorySigned:
		v, err := SolveSigned(int64(op1), op, int64(op2))
		if err != nil {
			return Result{}, err
		}
		return Result{Category: CategorySigned, Value: uint64(v)}, nil
	case CategoryUnsigned:
		v, err := SolveUnsigned(op1, op, op2)
		if err != nil {
			return Result{}, err
		}
		return Result{Category: CategoryUnsigned, Value: v}, nil
	default:
		return Result{}, invalidOperator(op, CategoryInvalid)
	}
}

// SolveSigned evaluates a signed operator (codes 1..5).
func SolveSigned(a int64, op Operator, b int64) (int64, error) {
	switch op {
	case OpAdd:
		s := a + b
		// Overflow iff both operands share a sign the sum does not.
		if (a >= 0) == (b >= 0) && (s >= 0) != (a >= 0) {
			return 0, outOfRange(op)
		}
		return s, nil

	case OpSub:
		d := a - b
		if (a >= 0) != (b >= 0) && (d >= 0) != (a >= 0) {
			return 0, outOfRange(op)
		}
		return d, nil

	case OpMul:
		if a == 0 || b == 0 {
			return 0, nil
		}
		p := a * b
		if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) || p/b != a {
			return 0, outOfRange(op)
		}
		return p, nil

	case OpDiv:
		if b == 0 {
			return 0, divByZero(op)
		}
		if a == math.MinInt64 && b == -1 {
			return 0, outOfRange(op)
		}
		return a / b, nil

	case OpMod:
		if b == 0 {
			return 0, divByZero(op)
		}
		if b == -1 {
			return 0, nil
		}
		return a % b, nil
	}
	return 0, invalidOperator(op, CategorySigned)
}

// SolveUnsigned evaluates a bitwise operator (codes 6..12). Shift and rotate
// amounts use only the low six bits of b.
func SolveUnsigned(a uint64, op Operator, b uint64) (uint64, error) {
	n := int(b & 63)
	switch op {
	case OpShl:
		return a << n, nil
	case OpShr:
		return a >> n, nil
	case OpAnd:
		return a & b, nil
	case OpOr:
		return a | b, nil
	case OpXor:
		return a ^ b, nil
	case OpRotl:
		return bits.RotateLeft64(a, n), nil
	case OpRotr:
		return bits.RotateLeft64(a, -n), nil
	}
	return 0, invalidOperator(op, CategoryUnsigned)
}

func outOfRange(op Operator) *Error {
	return &Error{Code: ErrCodeOutOfRange, Op: op, Message: "result does not fit in int64"}
}

func divByZero(op Operator) *Error {
	return &Error{Code: ErrCodeDivisionByZero, Op: op, Message: "divisor is zero"}
}
