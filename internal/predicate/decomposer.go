package predicate

import (
	"github.com/cockroachdb/errors"
	"github.com/infinity-db/queryfilter/internal/bitmask"
	"github.com/infinity-db/queryfilter/internal/expr"
)

// CoarseEvaluator answers "may segment s contain a match" from its
// summary alone. True means "must check further"; false means "skip
// entirely, safely".
type CoarseEvaluator func(summary *SegmentSummary) bool

// IndexEvaluator evaluates the index-eligible conjuncts against segment
// s's secondary indexes, returning a Bitmask whose domain is exactly
// segmentRowCount.
type IndexEvaluator func(ctx IndexContext, segmentID uint32, segmentRowCount uint32) (*bitmask.Bitmask, error)

// IndexContext is the minimal slice of a transaction the index
// evaluator needs. Declared locally (rather than importing the public
// queryfilter package's Txn type) so predicate stays a leaf package;
// queryfilter's concrete Txn satisfies this structurally.
type IndexContext interface {
	BeginTS() uint64
}

// IndexLookup is the external secondary-index collaborator: given an
// indexed column, an operator, and a value, it returns the matching
// rows of one segment as a Bitmask. Index construction and storage are
// out of this core's scope (spec §1); this is the minimal declared
// interface the core needs to consume an index.
type IndexLookup interface {
	// Indexed reports whether column has a secondary index this lookup
	// can answer exactly for operator op.
	Indexed(column uint32, op expr.CompareOp) bool
	// Evaluate returns the bitmask of rows in segmentID (domain
	// segmentRowCount) for which `column op value` holds, per the index.
	Evaluate(ctx IndexContext, segmentID uint32, segmentRowCount uint32, column uint32, op expr.CompareOp, value expr.Value) (*bitmask.Bitmask, error)
}

// Decomposer splits a raw filter expression into a CoarseEvaluator, an
// IndexEvaluator, and a LeftoverFilter. Its two setup operations are
// idempotent one-shot calls that must run in order: coarse, then index.
type Decomposer struct {
	coarseDone bool
	indexDone  bool

	residual *expr.Expr // conjunction remaining after coarse extraction; full predicate until index runs

	CoarseEvaluator CoarseEvaluator
	IndexEvaluator  IndexEvaluator // nil if no conjunct is index-eligible
	LeftoverFilter  *expr.Expr     // nil if nothing remains after the index pass
}

// New wraps originalFilter for decomposition. A nil originalFilter means
// "no predicate at all" — ApplyCoarseFilterOptimizer and
// ApplyIndexFilterOptimizer are still safe to call and simply produce
// no-op evaluators and a nil leftover.
func New(originalFilter *expr.Expr) *Decomposer {
	return &Decomposer{residual: originalFilter}
}

// ApplyCoarseFilterOptimizer extracts conjuncts answerable from a
// per-segment summary (min/max, bloom) into CoarseEvaluator. It must be
// called exactly once, before ApplyIndexFilterOptimizer. Conjuncts
// extracted here remain in the residual for the index/leftover stages:
// a coarse check only ever prunes a whole segment, it never substitutes
// for the row-level check the same conjunct still needs downstream.
func (d *Decomposer) ApplyCoarseFilterOptimizer() {
	if d.coarseDone {
		panic("predicate: ApplyCoarseFilterOptimizer called more than once")
	}
	d.coarseDone = true

	if d.residual == nil {
		d.CoarseEvaluator = func(*SegmentSummary) bool { return true }
		return
	}

	var checks []func(*SegmentSummary) bool
	for _, conj := range flattenAnd(d.residual) {
		if col, op, val, ok := asColumnComparison(conj); ok {
			col, op, val := col, op, val
			checks = append(checks, func(s *SegmentSummary) bool { return s.Admits(col, op, val) })
		}
	}
	d.CoarseEvaluator = func(s *SegmentSummary) bool {
		for _, check := range checks {
			if !check(s) {
				return false
			}
		}
		return true
	}
}

// ApplyIndexFilterOptimizer walks the residual and rewrites conjuncts a
// secondary index can answer exactly, removing them from the
// expression; whatever remains becomes LeftoverFilter (nil if nothing
// remains). Must be called exactly once, after
// ApplyCoarseFilterOptimizer.
func (d *Decomposer) ApplyIndexFilterOptimizer(lookup IndexLookup) error {
	if !d.coarseDone {
		panic("predicate: ApplyIndexFilterOptimizer called before ApplyCoarseFilterOptimizer")
	}
	if d.indexDone {
		panic("predicate: ApplyIndexFilterOptimizer called more than once")
	}
	d.indexDone = true

	if d.residual == nil {
		return nil
	}

	var indexed []indexedConjunct
	var leftover []expr.Expr
	for _, conj := range flattenAnd(d.residual) {
		col, op, val, ok := asColumnComparison(conj)
		if ok && lookup != nil && lookup.Indexed(col, op) {
			indexed = append(indexed, indexedConjunct{col, op, val})
			continue
		}
		leftover = append(leftover, conj)
	}

	if len(indexed) > 0 {
		d.IndexEvaluator = func(ctx IndexContext, segmentID, segmentRowCount uint32) (*bitmask.Bitmask, error) {
			result := bitmask.NewAllTrue(segmentRowCount)
			for _, ic := range indexed {
				bm, err := lookup.Evaluate(ctx, segmentID, segmentRowCount, ic.column, ic.op, ic.value)
				if err != nil {
					return nil, errors.Wrapf(err, "predicate: index lookup on column %d segment %d", ic.column, segmentID)
				}
				if bm.Count() != segmentRowCount {
					return nil, errors.Newf("predicate: index evaluator returned domain %d, want %d", bm.Count(), segmentRowCount)
				}
				result.And(bm)
			}
			return result, nil
		}
	}

	d.LeftoverFilter = conjoin(leftover)
	return nil
}

type indexedConjunct struct {
	column uint32
	op     expr.CompareOp
	value  expr.Value
}

// flattenAnd returns the list of top-level AND-conjuncts of e. A nil e
// yields no conjuncts; any non-AND root is a single conjunct.
func flattenAnd(e *expr.Expr) []expr.Expr {
	if e == nil {
		return nil
	}
	if e.Kind != expr.KindAnd {
		return []expr.Expr{*e}
	}
	var out []expr.Expr
	out = append(out, flattenAnd(&e.Children[0])...)
	out = append(out, flattenAnd(&e.Children[1])...)
	return out
}

// conjoin rebuilds a single expression ANDing together conjuncts, or
// returns nil for an empty list.
func conjoin(conjuncts []expr.Expr) *expr.Expr {
	if len(conjuncts) == 0 {
		return nil
	}
	result := conjuncts[0]
	for _, c := range conjuncts[1:] {
		result = expr.And(result, c)
	}
	return &result
}

// asColumnComparison recognizes `column OP literal` or `literal OP
// column` (normalized to column-on-the-left), the only conjunct shape
// both coarse summaries and secondary indexes can answer exactly.
func asColumnComparison(e expr.Expr) (column uint32, op expr.CompareOp, value expr.Value, ok bool) {
	if e.Kind != expr.KindCompare {
		return 0, 0, expr.Value{}, false
	}
	left, right := e.Children[0], e.Children[1]
	if left.Kind == expr.KindColumn && right.Kind == expr.KindLiteral {
		return uint32(left.Column), e.Op, right.Literal, true
	}
	if right.Kind == expr.KindColumn && left.Kind == expr.KindLiteral {
		return uint32(right.Column), flipOp(e.Op), left.Literal, true
	}
	return 0, 0, expr.Value{}, false
}

func flipOp(op expr.CompareOp) expr.CompareOp {
	switch op {
	case expr.OpLt:
		return expr.OpGt
	case expr.OpLe:
		return expr.OpGe
	case expr.OpGt:
		return expr.OpLt
	case expr.OpGe:
		return expr.OpLe
	default:
		return op // Eq, Ne are symmetric
	}
}
