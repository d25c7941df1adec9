// Package invert implements the symbolic inverse solver: given an
// assignment "X = f(vars)", it derives a closed-form "var = g(X, other
// vars)" used by the NFA builder to recover a parameter from a decoded
// bitfield value without falling back to guess-and-check.
package invert

import "github.com/n7dr/irp/internal/ast"

// PlaceholderName is the identifier the returned expression uses to
// refer to the decoded bitfield's value.
const PlaceholderName = "$value"

func placeholder() *ast.Expr { return &ast.Expr{Kind: ast.KindIdentifier, Name: PlaceholderName} }

// Solve attempts to invert expr with respect to target, returning an
// expression that computes target's value in terms of PlaceholderName
// and any other identifiers expr references. ok is false when no
// closed-form inverse exists (nonlinear in target, target appears more
// than once, or target used as a divisor/exponent/shift amount).
func Solve(expr *ast.Expr, target string) (inverse *ast.Expr, ok bool) {
	if countOccurrences(expr, target) != 1 {
		return nil, false
	}
	return invert(expr, target, placeholder())
}

func countOccurrences(e *ast.Expr, name string) int {
	if e == nil {
		return 0
	}
	n := 0
	if e.Kind == ast.KindIdentifier && e.Name == name {
		n++
	}
	n += countOccurrences(e.Left, name)
	n += countOccurrences(e.Right, name)
	n += countOccurrences(e.Third, name)
	for _, it := range e.Items {
		n += countOccurrences(it, name)
	}
	return n
}

func contains(e *ast.Expr, name string) bool { return countOccurrences(e, name) > 0 }

// invert peels the outermost operation of node off of acc (an
// expression currently known to equal node's value) until it reaches
// the bare target identifier, at which point acc is the answer.
func invert(node *ast.Expr, target string, acc *ast.Expr) (*ast.Expr, bool) {
	if node.Kind == ast.KindIdentifier && node.Name == target {
		return acc, true
	}

	switch node.Kind {
	case ast.KindAdd:
		if contains(node.Left, target) {
			return invert(node.Left, target, bin(ast.KindSubtract, acc, node.Right))
		}
		return invert(node.Right, target, bin(ast.KindSubtract, acc, node.Left))

	case ast.KindSubtract:
		if contains(node.Left, target) {
			return invert(node.Left, target, bin(ast.KindAdd, acc, node.Right))
		}
		// acc = left - target  =>  target = left - acc
		return invert(node.Right, target, bin(ast.KindSubtract, node.Left, acc))

	case ast.KindMultiply:
		if contains(node.Left, target) && !contains(node.Right, target) {
			return invert(node.Left, target, bin(ast.KindDivide, acc, node.Right))
		}
		if contains(node.Right, target) && !contains(node.Left, target) {
			return invert(node.Right, target, bin(ast.KindDivide, acc, node.Left))
		}
		return nil, false

	case ast.KindDivide:
		if contains(node.Left, target) && !contains(node.Right, target) {
			return invert(node.Left, target, bin(ast.KindMultiply, acc, node.Right))
		}
		return nil, false

	case ast.KindBitwiseXor:
		if contains(node.Left, target) && !contains(node.Right, target) {
			return invert(node.Left, target, bin(ast.KindBitwiseXor, acc, node.Right))
		}
		if contains(node.Right, target) && !contains(node.Left, target) {
			return invert(node.Right, target, bin(ast.KindBitwiseXor, acc, node.Left))
		}
		return nil, false

	case ast.KindComplement:
		return invert(node.Left, target, &ast.Expr{Kind: ast.KindComplement, Left: acc})

	case ast.KindNegative:
		return invert(node.Left, target, &ast.Expr{Kind: ast.KindNegative, Left: acc})

	case ast.KindBitReverse:
		return invert(node.Left, target, &ast.Expr{Kind: ast.KindBitReverse, Left: acc, Width: node.Width})

	case ast.KindBitField:
		// Only invertible when it is a plain width-preserving view of
		// target with no skip and no reversal — e.g. "F:8" standing in
		// for the whole of an 8-bit parameter F.
		if node.Third != nil || node.Reverse {
			return nil, false
		}
		return invert(node.Left, target, acc)

	default:
		return nil, false
	}
}

func bin(k ast.Kind, l, r *ast.Expr) *ast.Expr {
	return &ast.Expr{Kind: k, Left: l, Right: r}
}
