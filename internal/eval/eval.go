// Package eval implements the IRP expression kernel: arithmetic,
// bitwise, comparison, bitfield, and control constructs on 64-bit
// signed integers, with identifier substitution via a vartable.Table.
package eval

import (
	"fmt"
	"math/bits"

	"github.com/n7dr/irp/internal/ast"
	"github.com/n7dr/irp/internal/vartable"
)

// DomainKind enumerates the ways an evaluation can fail for domain
// reasons (as opposed to a structural mistake like evaluating a
// stream-only node).
type DomainKind int

const (
	DivideByZero DomainKind = iota
	BadShiftAmount
	NonPositiveLog
	UnboundIdentifier
	NotScalar
)

// Error is returned by Eval. Kind classifies the failure; Name holds
// the offending node's identifier when relevant.
type Error struct {
	Kind DomainKind
	Name string
}

func (e *Error) Error() string {
	switch e.Kind {
	case DivideByZero:
		return "division by zero"
	case BadShiftAmount:
		return "shift amount out of range"
	case NonPositiveLog:
		return "log2 of non-positive value"
	case UnboundIdentifier:
		return fmt.Sprintf("unbound identifier %q", e.Name)
	case NotScalar:
		return "expression is not a scalar value"
	default:
		return "domain error"
	}
}

// Order carries the bit-spec order (lsb/msb) that bitfield evaluation
// needs; the expression tree itself does not know the general spec.
type Order = ast.BitOrder

// Eval evaluates expr against vars under the given bit order, forcing
// and caching any lazy identifier bindings it encounters. Variations
// are not resolved here (the stream walker selects the alternative
// for the current pass); a variation node evaluates to a NotScalar
// error.
func Eval(expr *ast.Expr, vars *vartable.Table, order Order) (int64, int, error) {
	switch expr.Kind {
	case ast.KindNumber:
		return expr.Number, 64, nil

	case ast.KindIdentifier:
		return evalIdentifier(expr.Name, vars, order)

	case ast.KindAdd:
		return binArith(expr, vars, order, func(a, b int64) (int64, error) { return a + b, nil })
	case ast.KindSubtract:
		return binArith(expr, vars, order, func(a, b int64) (int64, error) { return a - b, nil })
	case ast.KindMultiply:
		return binArith(expr, vars, order, func(a, b int64) (int64, error) { return a * b, nil })
	case ast.KindDivide:
		return binArith(expr, vars, order, func(a, b int64) (int64, error) {
			if b == 0 {
				return 0, &Error{Kind: DivideByZero}
			}
			return a / b, nil
		})
	case ast.KindModulo:
		return binArith(expr, vars, order, func(a, b int64) (int64, error) {
			if b == 0 {
				return 0, &Error{Kind: DivideByZero}
			}
			return a % b, nil
		})
	case ast.KindPower:
		return binArith(expr, vars, order, func(a, b int64) (int64, error) {
			return ipow(a, b), nil
		})

	case ast.KindBitwiseAnd:
		return binArith(expr, vars, order, func(a, b int64) (int64, error) { return a & b, nil })
	case ast.KindBitwiseOr:
		return binArith(expr, vars, order, func(a, b int64) (int64, error) { return a | b, nil })
	case ast.KindBitwiseXor:
		return binArith(expr, vars, order, func(a, b int64) (int64, error) { return a ^ b, nil })

	case ast.KindShiftLeft:
		return shift(expr, vars, order, true)
	case ast.KindShiftRight:
		return shift(expr, vars, order, false)

	case ast.KindAnd:
		return boolOp(expr, vars, order, func(a, b bool) bool { return a && b })
	case ast.KindOr:
		return boolOp(expr, vars, order, func(a, b bool) bool { return a || b })

	case ast.KindEqual:
		return cmp(expr, vars, order, func(a, b int64) bool { return a == b })
	case ast.KindNotEqual:
		return cmp(expr, vars, order, func(a, b int64) bool { return a != b })
	case ast.KindLess:
		return cmp(expr, vars, order, func(a, b int64) bool { return a < b })
	case ast.KindLessEqual:
		return cmp(expr, vars, order, func(a, b int64) bool { return a <= b })
	case ast.KindMore:
		return cmp(expr, vars, order, func(a, b int64) bool { return a > b })
	case ast.KindMoreEqual:
		return cmp(expr, vars, order, func(a, b int64) bool { return a >= b })

	case ast.KindTernary:
		cv, _, err := Eval(expr.Left, vars, order)
		if err != nil {
			return 0, 0, err
		}
		if cv != 0 {
			return Eval(expr.Right, vars, order)
		}
		return Eval(expr.Third, vars, order)

	case ast.KindNegative:
		v, w, err := Eval(expr.Left, vars, order)
		if err != nil {
			return 0, 0, err
		}
		return -v, w, nil

	case ast.KindComplement:
		v, w, err := Eval(expr.Left, vars, order)
		if err != nil {
			return 0, 0, err
		}
		return complement(v, w), w, nil

	case ast.KindNot:
		v, _, err := Eval(expr.Left, vars, order)
		if err != nil {
			return 0, 0, err
		}
		if v == 0 {
			return 1, 1, nil
		}
		return 0, 1, nil

	case ast.KindBitCount:
		v, _, err := Eval(expr.Left, vars, order)
		if err != nil {
			return 0, 0, err
		}
		return int64(bits.OnesCount64(uint64(v))), 64, nil

	case ast.KindLog2:
		v, _, err := Eval(expr.Left, vars, order)
		if err != nil {
			return 0, 0, err
		}
		if v <= 0 {
			return 0, 0, &Error{Kind: NonPositiveLog}
		}
		return int64(bits.Len64(uint64(v)) - 1), 64, nil

	case ast.KindBitReverse:
		v, _, err := Eval(expr.Left, vars, order)
		if err != nil {
			return 0, 0, err
		}
		return int64(reverseBits(uint64(v), int(expr.Width))), int(expr.Width), nil

	case ast.KindBitField:
		return evalBitField(expr, vars, order)

	case ast.KindInfiniteBitField:
		v, _, err := Eval(expr.Left, vars, order)
		if err != nil {
			return 0, 0, err
		}
		skip, _, err := Eval(expr.Right, vars, order)
		if err != nil {
			return 0, 0, err
		}
		if skip < 0 || skip >= 64 {
			return 0, 0, &Error{Kind: BadShiftAmount}
		}
		return v >> uint(skip), 64, nil

	default:
		return 0, 0, &Error{Kind: NotScalar}
	}
}

func evalIdentifier(name string, vars *vartable.Table, order Order) (int64, int, error) {
	if v, w, ok := vars.Get(name); ok {
		return v, w, nil
	}
	if lazy, ok := vars.PendingExpr(name); ok {
		v, w, err := Eval(lazy, vars, order)
		if err != nil {
			return 0, 0, err
		}
		vars.Force(name, v, w)
		return v, w, nil
	}
	return 0, 0, &Error{Kind: UnboundIdentifier, Name: name}
}

func binArith(e *ast.Expr, vars *vartable.Table, order Order, f func(a, b int64) (int64, error)) (int64, int, error) {
	a, wa, err := Eval(e.Left, vars, order)
	if err != nil {
		return 0, 0, err
	}
	b, wb, err := Eval(e.Right, vars, order)
	if err != nil {
		return 0, 0, err
	}
	v, err := f(a, b)
	if err != nil {
		return 0, 0, err
	}
	w := wa
	if wb > w {
		w = wb
	}
	return v, w, nil
}

func shift(e *ast.Expr, vars *vartable.Table, order Order, left bool) (int64, int, error) {
	a, wa, err := Eval(e.Left, vars, order)
	if err != nil {
		return 0, 0, err
	}
	b, _, err := Eval(e.Right, vars, order)
	if err != nil {
		return 0, 0, err
	}
	if b < 0 || b >= 64 {
		return 0, 0, &Error{Kind: BadShiftAmount}
	}
	if left {
		return a << uint(b), wa, nil
	}
	return a >> uint(b), wa, nil
}

func boolOp(e *ast.Expr, vars *vartable.Table, order Order, f func(a, b bool) bool) (int64, int, error) {
	a, _, err := Eval(e.Left, vars, order)
	if err != nil {
		return 0, 0, err
	}
	b, _, err := Eval(e.Right, vars, order)
	if err != nil {
		return 0, 0, err
	}
	if f(a != 0, b != 0) {
		return 1, 1, nil
	}
	return 0, 1, nil
}

func cmp(e *ast.Expr, vars *vartable.Table, order Order, f func(a, b int64) bool) (int64, int, error) {
	a, _, err := Eval(e.Left, vars, order)
	if err != nil {
		return 0, 0, err
	}
	b, _, err := Eval(e.Right, vars, order)
	if err != nil {
		return 0, 0, err
	}
	if f(a, b) {
		return 1, 1, nil
	}
	return 0, 1, nil
}

// evalBitField computes V:L[:S][~]: V shifted right by S, truncated to
// L bits. The skip "S" always counts from the LSB of V regardless of
// bit order — order only affects which end of the resulting L-bit
// window is considered bit 0 when the field is later walked bit-by-bit
// by the encoder/decoder (handled separately by consumeBits/buildBits).
func evalBitField(e *ast.Expr, vars *vartable.Table, order Order) (int64, int, error) {
	v, _, err := Eval(e.Left, vars, order)
	if err != nil {
		return 0, 0, err
	}
	length, _, err := Eval(e.Right, vars, order)
	if err != nil {
		return 0, 0, err
	}
	var skip int64
	if e.Third != nil {
		skip, _, err = Eval(e.Third, vars, order)
		if err != nil {
			return 0, 0, err
		}
	}
	if length < 0 || length > 64 {
		return 0, 0, &Error{Kind: BadShiftAmount}
	}
	if skip < 0 || skip >= 64 {
		return 0, 0, &Error{Kind: BadShiftAmount}
	}

	field := uint64(v) >> uint(skip)
	if length < 64 {
		field &= (uint64(1) << uint(length)) - 1
	}
	if e.Reverse {
		field = reverseBits(field, int(length))
	}
	return int64(field), int(length), nil
}

func complement(v int64, width int) int64 {
	if width <= 0 || width >= 64 {
		return ^v
	}
	mask := (uint64(1) << uint(width)) - 1
	return int64(uint64(^v) & mask)
}

func reverseBits(v uint64, width int) uint64 {
	var out uint64
	for i := 0; i < width; i++ {
		out <<= 1
		out |= (v >> uint(i)) & 1
	}
	return out
}

func ipow(base, exp int64) int64 {
	if exp < 0 {
		return 0
	}
	var result int64 = 1
	for i := int64(0); i < exp; i++ {
		result *= base
	}
	return result
}
