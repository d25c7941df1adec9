// Package vartable implements the mutable variable bindings threaded
// through expression evaluation, encoding, and decoding.
package vartable

import "github.com/n7dr/irp/internal/ast"

type binding struct {
	value    int64
	width    int
	hasValue bool
	lazy     *ast.Expr // forced by the evaluator on first use if hasValue is false
}

// Table is a named-value store with optional bit widths and lazy
// expression bindings. The zero value is ready to use.
type Table struct {
	vars map[string]*binding
}

// New returns an empty Table.
func New() *Table {
	return &Table{vars: map[string]*binding{}}
}

// Set stores a concrete value with its declared bit width.
func (t *Table) Set(name string, value int64, width int) {
	t.ensure()
	t.vars[name] = &binding{value: value, width: width, hasValue: true}
}

// SetLazy binds name to an expression that the evaluator forces on
// first use. A lazy binding does not know its width until forced; once
// forced, Get returns the width of the value's evaluation (supplied by the caller via
// Force, since the expression kernel — not this package — knows how
// to evaluate).
func (t *Table) SetLazy(name string, expr *ast.Expr) {
	t.ensure()
	t.vars[name] = &binding{lazy: expr}
}

// Get returns the value and width for name, and whether a concrete (or
// already forced) value is bound. It never forces a lazy expression: a
// lazy binding not yet forced reports false, and callers needing
// forcing use PendingExpr and Force (as eval.Eval does).
func (t *Table) Get(name string) (int64, int, bool) {
	if t.vars == nil {
		return 0, 0, false
	}
	b, ok := t.vars[name]
	if !ok {
		return 0, 0, false
	}
	if !b.hasValue {
		return 0, 0, false
	}
	return b.value, b.width, true
}

// PendingExpr returns the lazy expression bound to name, if any, and
// whether a forced value has already been cached.
func (t *Table) PendingExpr(name string) (*ast.Expr, bool) {
	if t.vars == nil {
		return nil, false
	}
	b, ok := t.vars[name]
	if !ok || b.hasValue {
		return nil, false
	}
	return b.lazy, b.lazy != nil
}

// Force caches value/width for name after its lazy expression has
// been evaluated by the caller.
func (t *Table) Force(name string, value int64, width int) {
	t.ensure()
	b, ok := t.vars[name]
	if !ok {
		b = &binding{}
		t.vars[name] = b
	}
	b.value = value
	b.width = width
	b.hasValue = true
}

// Has reports whether name has any binding, forced or not.
func (t *Table) Has(name string) bool {
	if t.vars == nil {
		return false
	}
	_, ok := t.vars[name]
	return ok
}

// Names returns every bound variable name, for diagnostics.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.vars))
	for n := range t.vars {
		names = append(names, n)
	}
	return names
}

// Fork returns an independent shallow clone: mutations to the clone
// never affect the original, and vice versa.
func (t *Table) Fork() *Table {
	clone := New()
	for name, b := range t.vars {
		cp := *b
		clone.vars[name] = &cp
	}
	return clone
}

func (t *Table) ensure() {
	if t.vars == nil {
		t.vars = map[string]*binding{}
	}
}
