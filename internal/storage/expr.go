package storage

import "github.com/pkg/errors"

// BinOp enumerates the binary operators an Expr can apply (§4.1).
type BinOp int

const (
	OpGt BinOp = iota
	OpLt
	OpGtEq
	OpLtEq
	OpEq
	OpNotEq
	OpAnd
	OpOr
)

func (op BinOp) String() string {
	switch op {
	case OpGt:
		return ">"
	case OpLt:
		return "<"
	case OpGtEq:
		return ">="
	case OpLtEq:
		return "<="
	case OpEq:
		return "="
	case OpNotEq:
		return "!="
	case OpAnd:
		return "AND"
	case OpOr:
		return "OR"
	default:
		return "?"
	}
}

// Expr is the recursive predicate/projection-value tree: Literal, Ident, or
// Binary. It is an empty interface, matching the teacher's own Expr type,
// so the engine's parser can construct nodes without an import cycle back
// into storage.
type Expr interface{}

// Literal holds a constant Value.
type Literal struct{ Val Value }

// Ident refers to a column by name.
type Ident struct{ Col string }

// Binary applies a BinOp to two sub-expressions.
type Binary struct {
	Op          BinOp
	Left, Right Expr
}

// IsNullTest implements the `expr IS [NOT] NULL` predicate sugar. Unlike
// `=`, this always yields a definite Bool, never Null, since it is the only
// way to test for Null directly (§4.1 "Null propagation" means `col = NULL`
// can never match).
type IsNullTest struct {
	Expr Expr
	Not  bool
}

// TypeError reports an expression evaluation failure due to incompatible
// operand types (§7).
type TypeError struct{ Msg string }

func (e *TypeError) Error() string { return e.Msg }

func typeErrf(format string, a ...any) error {
	return &TypeError{Msg: errors.Errorf(format, a...).Error()}
}

// Eval evaluates e against row (interpreted under schema) and returns the
// resulting Value. Evaluation is total: every predicate either yields a
// Value or returns a *TypeError, never a panic (§8).
func Eval(e Expr, schema Schema, row Row) (Value, error) {
	switch ex := e.(type) {
	case *Literal:
		return ex.Val, nil
	case Literal:
		return ex.Val, nil
	case *Ident:
		return evalIdent(ex.Col, schema, row)
	case Ident:
		return evalIdent(ex.Col, schema, row)
	case *Binary:
		return evalBinary(ex, schema, row)
	case Binary:
		return evalBinary(&ex, schema, row)
	case *IsNullTest:
		return evalIsNull(ex, schema, row)
	case IsNullTest:
		return evalIsNull(&ex, schema, row)
	default:
		return nil, typeErrf("unsupported expression node %T", e)
	}
}

func evalIsNull(ex *IsNullTest, schema Schema, row Row) (Value, error) {
	v, err := Eval(ex.Expr, schema, row)
	if err != nil {
		return nil, err
	}
	isNull := v == nil
	if ex.Not {
		return !isNull, nil
	}
	return isNull, nil
}

func evalIdent(col string, schema Schema, row Row) (Value, error) {
	idx := schema.ColIndex(col)
	if idx < 0 {
		return nil, typeErrf("unknown column %q", col)
	}
	return row[idx], nil
}

func evalBinary(ex *Binary, schema Schema, row Row) (Value, error) {
	if ex.Op == OpAnd || ex.Op == OpOr {
		return evalLogical(ex, schema, row)
	}
	lv, err := Eval(ex.Left, schema, row)
	if err != nil {
		return nil, err
	}
	rv, err := Eval(ex.Right, schema, row)
	if err != nil {
		return nil, err
	}
	return evalComparison(ex.Op, lv, rv)
}

// evalLogical implements three-valued AND/OR: Null propagates except that
// `Null And false` = false and `Null Or true` = true (§4.1).
func evalLogical(ex *Binary, schema Schema, row Row) (Value, error) {
	lv, err := Eval(ex.Left, schema, row)
	if err != nil {
		return nil, err
	}
	if err := checkBoolOrNull(lv); err != nil {
		return nil, err
	}
	// Short-circuit cases that don't require evaluating the right operand.
	if ex.Op == OpAnd {
		if b, ok := lv.(bool); ok && !b {
			return false, nil
		}
	}
	if ex.Op == OpOr {
		if b, ok := lv.(bool); ok && b {
			return true, nil
		}
	}
	rv, err := Eval(ex.Right, schema, row)
	if err != nil {
		return nil, err
	}
	if err := checkBoolOrNull(rv); err != nil {
		return nil, err
	}

	lIsNull := lv == nil
	rIsNull := rv == nil
	if ex.Op == OpAnd {
		if lIsNull && rIsNull {
			return nil, nil
		}
		if lIsNull {
			if rb := rv.(bool); !rb {
				return false, nil
			}
			return nil, nil
		}
		if rIsNull {
			if lb := lv.(bool); !lb {
				return false, nil
			}
			return nil, nil
		}
		return lv.(bool) && rv.(bool), nil
	}
	// OpOr
	if lIsNull && rIsNull {
		return nil, nil
	}
	if lIsNull {
		if rb := rv.(bool); rb {
			return true, nil
		}
		return nil, nil
	}
	if rIsNull {
		if lb := lv.(bool); lb {
			return true, nil
		}
		return nil, nil
	}
	return lv.(bool) || rv.(bool), nil
}

func checkBoolOrNull(v Value) error {
	if v == nil {
		return nil
	}
	if _, ok := v.(bool); !ok {
		return typeErrf("AND/OR operand must be BOOLEAN or NULL, got %T", v)
	}
	return nil
}

// evalComparison implements Gt/Lt/GtEq/LtEq/Eq/NotEq with three-valued Null
// propagation and mixed-type rejection (§4.1).
func evalComparison(op BinOp, lv, rv Value) (Value, error) {
	if lv == nil || rv == nil {
		return nil, nil
	}
	switch l := lv.(type) {
	case int64:
		r, ok := rv.(int64)
		if !ok {
			return nil, typeErrf("cannot compare INT with %T", rv)
		}
		return compareOrdered(op, cmpInt64(l, r))
	case string:
		r, ok := rv.(string)
		if !ok {
			return nil, typeErrf("cannot compare VARCHAR with %T", rv)
		}
		return compareOrdered(op, cmpString(l, r))
	case bool:
		r, ok := rv.(bool)
		if !ok {
			return nil, typeErrf("cannot compare BOOLEAN with %T", rv)
		}
		switch op {
		case OpEq:
			return l == r, nil
		case OpNotEq:
			return l != r, nil
		default:
			return nil, typeErrf("operator %s is not defined for BOOLEAN", op)
		}
	default:
		return nil, typeErrf("unsupported value type %T", lv)
	}
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareOrdered(op BinOp, cmp int) (Value, error) {
	switch op {
	case OpGt:
		return cmp > 0, nil
	case OpLt:
		return cmp < 0, nil
	case OpGtEq:
		return cmp >= 0, nil
	case OpLtEq:
		return cmp <= 0, nil
	case OpEq:
		return cmp == 0, nil
	case OpNotEq:
		return cmp != 0, nil
	default:
		return nil, typeErrf("operator %s is not a comparison", op)
	}
}

// Matches reports whether predicate evaluates to Bool(true) against row.
// Null and Bool(false) both exclude the row; any other outcome is an error.
func Matches(predicate Expr, schema Schema, row Row) (bool, error) {
	if predicate == nil {
		return true, nil
	}
	v, err := Eval(predicate, schema, row)
	if err != nil {
		return false, err
	}
	if v == nil {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, typeErrf("predicate must evaluate to BOOLEAN or NULL, got %T", v)
	}
	return b, nil
}

// IndexProbe inspects a predicate's root node and reports whether it is
// eligible for hash-index acceleration: Binary(Eq|NotEq, Ident(indexCol),
// Literal) in either operand order. Nested or multi-operator predicates
// never qualify — only the root shape matters (§4.1 "Index-use gate").
func IndexProbe(predicate Expr, schema Schema) (op BinOp, literal Value, ok bool) {
	b, isBinary := asBinary(predicate)
	if !isBinary || (b.Op != OpEq && b.Op != OpNotEq) {
		return 0, nil, false
	}
	indexCol := schema.IndexColumn()
	if id, isIdent := asIdent(b.Left); isIdent && id.Col == indexCol {
		if lit, isLit := asLiteral(b.Right); isLit {
			return b.Op, lit.Val, true
		}
	}
	if id, isIdent := asIdent(b.Right); isIdent && id.Col == indexCol {
		if lit, isLit := asLiteral(b.Left); isLit {
			return b.Op, lit.Val, true
		}
	}
	return 0, nil, false
}

func asBinary(e Expr) (*Binary, bool) {
	switch v := e.(type) {
	case *Binary:
		return v, true
	case Binary:
		return &v, true
	default:
		return nil, false
	}
}

func asIdent(e Expr) (*Ident, bool) {
	switch v := e.(type) {
	case *Ident:
		return v, true
	case Ident:
		return &v, true
	default:
		return nil, false
	}
}

func asLiteral(e Expr) (*Literal, bool) {
	switch v := e.(type) {
	case *Literal:
		return v, true
	case Literal:
		return &v, true
	default:
		return nil, false
	}
}
