package expr

import (
	"fmt"

	"github.com/infinity-db/queryfilter/internal/blockio"
)

// InvalidColumnError reports a column ordinal that does not exist in
// the DataBlock being evaluated against. It is a structural error: the
// decomposer is supposed to have rewritten every base-table column
// reference to a valid block ordinal before the tree reaches Evaluate.
type InvalidColumnError struct {
	Ordinal    int
	NumColumns int
}

func (e *InvalidColumnError) Error() string {
	return fmt.Sprintf("expr: column ordinal %d out of range [0, %d)", e.Ordinal, e.NumColumns)
}

// Evaluate walks e once per row of block, producing a compact-bit
// boolean column and a null mask of the same length. Column references
// are resolved by ordinal against block.Columns; a column reference
// beyond the block's width panics with *InvalidColumnError (a
// structural error per the package's own contract, to be recovered and
// reported by the caller with segment context it has and this package
// does not).
func Evaluate(e *Expr, block *blockio.DataBlock) (values []bool, nulls []bool) {
	n := block.RowCount
	values = make([]bool, n)
	nulls = make([]bool, n)
	for i := 0; i < n; i++ {
		v, isNull := evalBool(e, block, i)
		values[i] = v
		nulls[i] = isNull
	}
	return values, nulls
}

// evalBool implements SQL three-valued logic for AND/OR/NOT: in AND a
// false operand wins (false, never-null) ahead of a null operand, in OR
// a true operand wins (true, never-null) ahead of a null operand, and
// NOT of null is null, matching standard SQL semantics. Folding null into
// false at the top level (spec's "false or null excludes a row") is the
// caller's job, not this function's — Evaluate reports null faithfully
// so a future tri-valued consumer is possible without revisiting this
// code.
func evalBool(e *Expr, block *blockio.DataBlock, row int) (value bool, isNull bool) {
	switch e.Kind {
	case KindColumn:
		col := column(block, e.Column)
		if col.Type != blockio.TypeBoolean {
			panic(fmt.Sprintf("expr: column %d used as a predicate has type %s, not boolean", e.Column, col.Type))
		}
		if col.IsNull(row) {
			return false, true
		}
		return col.Bools[row], false

	case KindLiteral:
		if e.Literal.Type != ValBool {
			panic("expr: literal used as a predicate is not boolean")
		}
		return e.Literal.Bool, false

	case KindNot:
		v, null := evalBool(&e.Children[0], block, row)
		if null {
			return false, true
		}
		return !v, false

	case KindAnd:
		l, lnull := evalBool(&e.Children[0], block, row)
		if !lnull && !l {
			return false, false
		}
		r, rnull := evalBool(&e.Children[1], block, row)
		if !rnull && !r {
			return false, false
		}
		if lnull || rnull {
			return false, true
		}
		return true, false

	case KindOr:
		l, lnull := evalBool(&e.Children[0], block, row)
		if !lnull && l {
			return true, false
		}
		r, rnull := evalBool(&e.Children[1], block, row)
		if !rnull && r {
			return true, false
		}
		if lnull || rnull {
			return false, true
		}
		return false, false

	case KindCompare:
		lv, lnull := evalValue(&e.Children[0], block, row)
		rv, rnull := evalValue(&e.Children[1], block, row)
		if lnull || rnull {
			return false, true
		}
		return compareValues(e.Op, lv, rv), false

	case KindIn:
		lv, lnull := evalValue(&e.Children[0], block, row)
		if lnull {
			return false, true
		}
		for _, rv := range e.Values {
			if valuesEqual(lv, rv) {
				return true, false
			}
		}
		return false, false

	default:
		panic(fmt.Sprintf("expr: unknown kind %d", e.Kind))
	}
}

func evalValue(e *Expr, block *blockio.DataBlock, row int) (Value, bool) {
	switch e.Kind {
	case KindColumn:
		col := column(block, e.Column)
		if col.IsNull(row) {
			return Value{}, true
		}
		switch col.Type {
		case blockio.TypeBoolean:
			return Value{Type: ValBool, Bool: col.Bools[row]}, false
		case blockio.TypeInt64:
			return Value{Type: ValInt64, I64: col.Int64s[row]}, false
		case blockio.TypeVarchar:
			return Value{Type: ValString, Str: col.Strings[row]}, false
		default:
			panic(fmt.Sprintf("expr: column %d has non-comparable type %s", e.Column, col.Type))
		}
	case KindLiteral:
		return e.Literal, false
	default:
		panic("expr: expected a value-producing expression (a column reference or a literal)")
	}
}

func column(block *blockio.DataBlock, ordinal int) *blockio.ColumnVector {
	if ordinal < 0 || ordinal >= len(block.Columns) {
		panic(&InvalidColumnError{Ordinal: ordinal, NumColumns: len(block.Columns)})
	}
	return &block.Columns[ordinal]
}

func compareValues(op CompareOp, l, r Value) bool {
	if l.Type != r.Type {
		panic(fmt.Sprintf("expr: comparison between mismatched value types %d and %d", l.Type, r.Type))
	}
	switch l.Type {
	case ValInt64:
		switch op {
		case OpEq:
			return l.I64 == r.I64
		case OpNe:
			return l.I64 != r.I64
		case OpLt:
			return l.I64 < r.I64
		case OpLe:
			return l.I64 <= r.I64
		case OpGt:
			return l.I64 > r.I64
		case OpGe:
			return l.I64 >= r.I64
		}
	case ValString:
		switch op {
		case OpEq:
			return l.Str == r.Str
		case OpNe:
			return l.Str != r.Str
		case OpLt:
			return l.Str < r.Str
		case OpLe:
			return l.Str <= r.Str
		case OpGt:
			return l.Str > r.Str
		case OpGe:
			return l.Str >= r.Str
		}
	case ValBool:
		switch op {
		case OpEq:
			return l.Bool == r.Bool
		case OpNe:
			return l.Bool != r.Bool
		}
		panic(fmt.Sprintf("expr: ordering comparison on boolean values is not supported (op %d)", op))
	}
	panic(fmt.Sprintf("expr: unsupported comparison op %d for type %d", op, l.Type))
}

func valuesEqual(l, r Value) bool {
	if l.Type != r.Type {
		return false
	}
	switch l.Type {
	case ValInt64:
		return l.I64 == r.I64
	case ValString:
		return l.Str == r.Str
	case ValBool:
		return l.Bool == r.Bool
	default:
		return false
	}
}
