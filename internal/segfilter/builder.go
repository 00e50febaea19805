// Package segfilter implements SegmentFilterBuilder: for one segment,
// apply the coarse filter, evaluate the index filter to a segment-local
// Bitmask, narrow it with the leftover filter, subtract deleted rows,
// and hand back the surviving-row Bitmask (or nil if nothing survives).
package segfilter

import (
	"log/slog"
	"sort"

	"github.com/infinity-db/queryfilter/internal/bitmask"
	"github.com/infinity-db/queryfilter/internal/blockio"
	"github.com/infinity-db/queryfilter/internal/deletion"
	"github.com/infinity-db/queryfilter/internal/expr"
	"github.com/infinity-db/queryfilter/internal/predicate"
)

// Segment is everything the builder needs about one segment: its
// identity, its actual populated row count R_s, the summary its coarse
// filter check runs against, and its blocks in ascending order.
type Segment struct {
	ID       uint32
	RowCount uint32
	Summary  *predicate.SegmentSummary
	Blocks   []blockio.BlockEntry
}

// Deps bundles the builder's external collaborators.
type Deps struct {
	Reader    *blockio.Reader
	BufferMgr blockio.BufferManager
	Cache     *blockio.BlockCache // optional, may be nil
	Oracle    *deletion.Oracle    // optional; nil means "no deletions exist"
	Logger    *slog.Logger

	// OnCoarsePruned, OnIndexEmpty, and OnRowsVisited, when set, are
	// called on the corresponding outcome (OnRowsVisited once per block
	// the leftover pass evaluates, with that block's row count). They
	// exist so the aggregate layer can drive its optional
	// ConstructionMetrics without this package importing a metrics
	// library of its own.
	OnCoarsePruned func()
	OnIndexEmpty   func()
	OnRowsVisited  func(n int)
}

// Plan is the decomposer's output, threaded through to every segment.
type Plan struct {
	Coarse   predicate.CoarseEvaluator // nil means "always admit"
	Index    predicate.IndexEvaluator  // nil means "all rows pass the index stage"
	Leftover *expr.Expr                // nil means "no row-wise pass"
}

// Build runs the five-stage pipeline of spec §4.5 for one segment. It
// returns (nil, nil) when the segment contributes no surviving rows —
// that is a normal outcome, not an error. A broken invariant is returned
// as a *StructuralError: a row-count mismatch between the index
// evaluator and storage, a block-read loop that didn't account for every
// declared row, or an out-of-range column ordinal in the leftover
// expression. Errors reported by the index evaluator, the block reader
// or the deletion oracle are returned as they come.
func Build(deps Deps, txn predicate.IndexContext, plan Plan, seg Segment) (bm *bitmask.Bitmask, err error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// evalSafely panics on an invariant it has no clean way to return
	// through expr.Evaluate's signature; this recover is the boundary
	// that turns it back into the *StructuralError every other failure
	// path in this function already returns.
	defer func() {
		if r := recover(); r != nil {
			se, ok := r.(*StructuralError)
			if !ok {
				panic(r)
			}
			bm, err = nil, se
		}
	}()

	// 1. Coarse-skip.
	if plan.Coarse != nil && !plan.Coarse(seg.Summary) {
		logger.Debug("segmentCoarsePruned", "segment", seg.ID)
		if deps.OnCoarsePruned != nil {
			deps.OnCoarsePruned()
		}
		return nil, nil
	}

	// 2. Index pass.
	result, err := evalIndex(plan.Index, txn, seg)
	if err != nil {
		return nil, err
	}
	if result.CountTrue() == 0 {
		logger.Debug("segmentIndexEmpty", "segment", seg.ID)
		if deps.OnIndexEmpty != nil {
			deps.OnIndexEmpty()
		}
		return nil, nil
	}

	// 3. Leftover pass.
	if plan.Leftover != nil {
		if err := applyLeftover(deps, plan.Leftover, seg, result); err != nil {
			return nil, err
		}
	}

	// 4. Visibility pass.
	if deps.Oracle != nil {
		if err := deps.Oracle.ApplyVisibility(seg.ID, result, txn.BeginTS()); err != nil {
			return nil, err
		}
	}

	// 5. Optimize.
	result.RunOptimize()

	if result.CountTrue() == 0 {
		return nil, nil
	}
	logger.Debug("segmentBuilt", "segment", seg.ID, "survivors", result.CountTrue())
	return result, nil
}

func evalIndex(indexEval predicate.IndexEvaluator, txn predicate.IndexContext, seg Segment) (*bitmask.Bitmask, error) {
	if indexEval == nil {
		return bitmask.NewAllTrue(seg.RowCount), nil
	}
	result, err := indexEval(txn, seg.ID, seg.RowCount)
	if err != nil {
		return nil, err
	}
	if result.Count() != seg.RowCount {
		return nil, &StructuralError{
			Segment: seg.ID, Op: "index_evaluator",
			Want: uint64(seg.RowCount), Got: uint64(result.Count()),
		}
	}
	return result, nil
}

// applyLeftover evaluates the leftover expression block by block in
// ascending block order and clears any row whose evaluation is false or
// null — SQL three-valued logic treats NULL as non-matching for a
// top-level predicate.
func applyLeftover(deps Deps, leftover *expr.Expr, seg Segment, result *bitmask.Bitmask) error {
	rawColumnIDs, localized, rowIDOrdinal := planColumns(leftover)
	columnShouldLoad := make([]bool, len(rawColumnIDs))
	for i, id := range rawColumnIDs {
		columnShouldLoad[i] = id != blockio.ReservedRowIDColumn
	}
	columnsHash := blockio.ColumnSetHash(rawColumnIDs)

	var rowsRead uint32
	var block blockio.DataBlock
	for _, entry := range seg.Blocks {
		if rowsRead >= seg.RowCount {
			break
		}
		want := seg.RowCount - rowsRead
		if uint32(entry.RowCount) < want {
			want = uint32(entry.RowCount)
		}
		if want == 0 {
			continue
		}

		if cached, ok := deps.Cache.Get(seg.ID, entry.BlockID, columnsHash); ok && uint32(cached.RowCount) == want {
			block = *cached
		} else {
			if err := deps.Reader.Read(&block, deps.BufferMgr, int(want), entry, rawColumnIDs, columnShouldLoad); err != nil {
				return err
			}
			snapshot := block
			snapshot.Columns = append([]blockio.ColumnVector(nil), block.Columns...)
			deps.Cache.Add(seg.ID, entry.BlockID, columnsHash, &snapshot)
		}

		values, nulls := evalSafely(&localized, &block, seg.ID)
		for i := uint32(0); i < want; i++ {
			if !values[i] || nulls[i] {
				result.SetFalse(rowsRead + i)
			}
		}
		if deps.OnRowsVisited != nil {
			deps.OnRowsVisited(int(want))
		}
		_ = rowIDOrdinal
		rowsRead += want
	}

	if rowsRead != seg.RowCount {
		return &StructuralError{
			Segment: seg.ID, Op: "leftover_pass",
			Want: uint64(seg.RowCount), Got: uint64(rowsRead),
		}
	}
	return nil
}

// evalSafely recovers expr's invariant-violation panics (an invalid
// column ordinal) and turns them into a StructuralError that identifies
// the segment, which expr itself has no way to know.
func evalSafely(e *expr.Expr, block *blockio.DataBlock, segmentID uint32) (values, nulls []bool) {
	defer func() {
		if r := recover(); r != nil {
			if ice, ok := r.(*expr.InvalidColumnError); ok {
				panic(&StructuralError{Segment: segmentID, Op: "leftover_expression", Detail: ice.Error()})
			}
			panic(r)
		}
	}()
	return expr.Evaluate(e, block)
}

// planColumns collects the distinct raw column ids the leftover
// expression references, appends the reserved row-id column (always
// present, per spec §4.4, to support IN over row-ids even when unused),
// and returns a copy of the expression with each KindColumn node's
// ordinal rewritten to its position in that column list — the ordinal
// space ExpressionEvaluator expects.
func planColumns(leftover *expr.Expr) (rawColumnIDs []uint32, localized expr.Expr, rowIDOrdinal int) {
	refs := expr.ColumnRefs(leftover, nil)
	seen := make(map[int]bool, len(refs))
	var unique []int
	for _, r := range refs {
		if !seen[r] {
			seen[r] = true
			unique = append(unique, r)
		}
	}
	sort.Ints(unique)

	ordinal := make(map[int]int, len(unique))
	rawColumnIDs = make([]uint32, len(unique))
	for i, raw := range unique {
		ordinal[raw] = i
		rawColumnIDs[i] = uint32(raw)
	}
	rowIDOrdinal = len(rawColumnIDs)
	rawColumnIDs = append(rawColumnIDs, blockio.ReservedRowIDColumn)

	localized = remapColumns(*leftover, ordinal)
	return rawColumnIDs, localized, rowIDOrdinal
}

func remapColumns(e expr.Expr, ordinal map[int]int) expr.Expr {
	switch e.Kind {
	case expr.KindColumn:
		e.Column = ordinal[e.Column]
		return e
	case expr.KindLiteral:
		return e
	case expr.KindNot:
		e.Children = []expr.Expr{remapColumns(e.Children[0], ordinal)}
		return e
	case expr.KindAnd, expr.KindOr, expr.KindCompare:
		e.Children = []expr.Expr{remapColumns(e.Children[0], ordinal), remapColumns(e.Children[1], ordinal)}
		return e
	case expr.KindIn:
		e.Children = []expr.Expr{remapColumns(e.Children[0], ordinal)}
		return e
	default:
		return e
	}
}
