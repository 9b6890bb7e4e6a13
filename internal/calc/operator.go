package calc

import "fmt"

// Operator is the on-disk operator code of an equation.
type Operator uint8

const (
	OpAdd Operator = iota + 1
	OpSub
	OpMul
	OpDiv
	OpMod
	OpShl
	OpShr
	OpAnd
	OpOr
	OpXor
	OpRotl
	OpRotr
)

// Category says which solver an operator belongs to.
type Category int

const (
	CategoryInvalid Category = iota
	CategorySigned
	CategoryUnsigned
)

func (c Category) String() string {
	switch c {
	case CategorySigned:
		return "signed"
	case CategoryUnsigned:
		return "unsigned"
	default:
		return "invalid"
	}
}

var symbols = [...]string{
	OpAdd:  "+",
	OpSub:  "-",
	OpMul:  "*",
	OpDiv:  "/",
	OpMod:  "%",
	OpShl:  "<<",
	OpShr:  ">>",
	OpAnd:  "&",
	OpOr:   "|",
	OpXor:  "^",
	OpRotl: "<<<",
	OpRotr: ">>>",
}

// Category classifies op. It must be called before dispatching to a solver.
func (op Operator) Category() Category {
	switch {
	case op >= OpAdd && op <= OpMod:
		return CategorySigned
	case op >= OpShl && op <= OpRotr:
		return CategoryUnsigned
	default:
		return CategoryInvalid
	}
}

// Valid reports whether op is one of the twelve defined codes.
func (op Operator) Valid() bool {
	return op.Category() != CategoryInvalid
}

// String returns the operator symbol, or "op(N)" for an invalid code.
func (op Operator) String() string {
	if !op.Valid() {
		return fmt.Sprintf("op(%d)", uint8(op))
	}
	return symbols[op]
}

// ParseOperator maps a symbol such as "+" or "<<<" to its code.
func ParseOperator(symbol string) (Operator, error) {
	for code, s := range symbols {
		if s != "" && s == symbol {
			return Operator(code), nil
		}
	}
	return 0, &Error{
		Code:    ErrCodeInvalidOperator,
		Message: fmt.Sprintf("unknown operator %q", symbol),
	}
}

// Symbols returns every operator symbol in code order.
func Symbols() []string {
	out := make([]string, 0, len(symbols)-1)
	for _, s := range symbols[OpAdd:] {
		out = append(out, s)
	}
	return out
}
