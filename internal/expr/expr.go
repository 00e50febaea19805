// Package expr provides a tagged-variant boolean expression tree and its
// evaluator. The source system's expression hierarchy uses dynamic
// dispatch and downcasts; this re-architects it as a flat tagged union
// dispatched by a type switch over Kind, with no cycles (expressions are
// always trees) and arguments held by value-with-indirection (a slice of
// child Exprs) rather than pointers to a base class.
package expr

import "fmt"

// Kind tags the variant of an Expr node.
type Kind int

const (
	KindColumn Kind = iota
	KindLiteral
	KindAnd
	KindOr
	KindNot
	KindCompare
	KindIn
)

// CompareOp is the operator of a KindCompare node.
type CompareOp int

const (
	OpEq CompareOp = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

// ValueType mirrors blockio.LogicalType without importing blockio's
// package name directly into every literal; kept numerically compatible
// so callers can convert trivially.
type ValueType int

const (
	ValInvalid ValueType = iota
	ValBool
	ValInt64
	ValString
)

// Value is a literal scalar used in comparisons and IN lists.
type Value struct {
	Type ValueType
	Bool bool
	I64  int64
	Str  string
}

// Expr is one node of a boolean expression tree.
//
//   - KindColumn: Column is the ordinal index into the DataBlock this
//     expression will be evaluated against. The decomposer is
//     responsible for rewriting all base-table column references to
//     block-ordinal indices before the tree reaches the evaluator.
//   - KindLiteral: Literal holds the constant value.
//   - KindAnd, KindOr: Children has exactly 2 entries.
//   - KindNot: Children has exactly 1 entry.
//   - KindCompare: Children has exactly 2 entries (left, right); Op
//     selects the comparator.
//   - KindIn: Children has exactly 1 entry, the left (column) operand.
//     Values holds the right-hand side as a pure value set — per the
//     decomposer's contract a column reference must never appear on the
//     right side of IN; ColumnRefs walks only Children[0] for this
//     reason.
type Expr struct {
	Kind     Kind
	Column   int
	Literal  Value
	Op       CompareOp
	Children []Expr
	Values   []Value
}

// Column constructs a column-reference node.
func Column(ordinal int) Expr { return Expr{Kind: KindColumn, Column: ordinal} }

// Lit constructs a literal node.
func Lit(v Value) Expr { return Expr{Kind: KindLiteral, Literal: v} }

// And constructs a conjunction node.
func And(l, r Expr) Expr { return Expr{Kind: KindAnd, Children: []Expr{l, r}} }

// Or constructs a disjunction node.
func Or(l, r Expr) Expr { return Expr{Kind: KindOr, Children: []Expr{l, r}} }

// Not constructs a negation node.
func Not(e Expr) Expr { return Expr{Kind: KindNot, Children: []Expr{e}} }

// Compare constructs a binary comparison node.
func Compare(op CompareOp, l, r Expr) Expr {
	return Expr{Kind: KindCompare, Op: op, Children: []Expr{l, r}}
}

// In constructs a membership test of the left operand against a pure
// value set. right is a []Value, so it cannot hold a column reference;
// ColumnRefs walks only left.
func In(left Expr, right []Value) Expr {
	return Expr{Kind: KindIn, Children: []Expr{left}, Values: right}
}

// ColumnRefs appends every column ordinal referenced anywhere in e to
// out and returns the result. For KindIn it walks only the left operand
// (Children[0]); the right side of IN is a pure value set (Values) and
// holds no column references to scan.
func ColumnRefs(e *Expr, out []int) []int {
	switch e.Kind {
	case KindColumn:
		return append(out, e.Column)
	case KindLiteral:
		return out
	case KindNot:
		return ColumnRefs(&e.Children[0], out)
	case KindAnd, KindOr, KindCompare:
		out = ColumnRefs(&e.Children[0], out)
		out = ColumnRefs(&e.Children[1], out)
		return out
	case KindIn:
		return ColumnRefs(&e.Children[0], out)
	default:
		panic(fmt.Sprintf("expr: unknown kind %d", e.Kind))
	}
}
