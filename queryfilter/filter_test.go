package queryfilter

import (
	"context"
	"testing"

	"github.com/infinity-db/queryfilter/internal/deletion"
	"github.com/infinity-db/queryfilter/internal/expr"
	"github.com/infinity-db/queryfilter/internal/predicate"
)

func idRange(n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(i)
	}
	return out
}

// Scenario 1: single segment, 10 rows, filter id < 5, no deletions.
func TestSingleSegmentLessThanFilter(t *testing.T) {
	seg := &fakeSegment{id: 0, rowCount: 10, colA: idRange(10)}
	table := &fakeTable{segments: []SegmentEntry{seg}}
	leftover := expr.Compare(expr.OpLt, expr.Column(0), expr.Lit(expr.Value{Type: expr.ValInt64, I64: 5}))

	f := mustBuild(t, &leftover, table, fakeTxn{ts: 1}, nil)

	cur := f.NewCursor()
	if !cur.PassFilter(RowID{0, 4}) {
		t.Fatal("row (0,4) should pass")
	}
	if cur.PassFilter(RowID{0, 5}) {
		t.Fatal("row (0,5) should not pass")
	}
	if got := cur.EqualOrLarger(RowID{0, 5}); got != InvalidRowID {
		t.Fatalf("EqualOrLarger((0,5)) = %v, want InvalidRowID", got)
	}
	if f.ResultCount() != 5 {
		t.Fatalf("ResultCount() = %d, want 5", f.ResultCount())
	}
}

// Scenario 2: two segments of 8 rows each, filter "id is even" (modeled
// as an IN list over the evens, since expr has no modulo operator).
func TestTwoSegmentsInFilter(t *testing.T) {
	evens := []expr.Value{
		{Type: expr.ValInt64, I64: 0}, {Type: expr.ValInt64, I64: 2},
		{Type: expr.ValInt64, I64: 4}, {Type: expr.ValInt64, I64: 6},
	}
	leftover := expr.In(expr.Column(0), evens)

	seg0 := &fakeSegment{id: 0, rowCount: 8, colA: idRange(8)}
	seg1 := &fakeSegment{id: 1, rowCount: 8, colA: idRange(8)}
	table := &fakeTable{segments: []SegmentEntry{seg0, seg1}}

	f := mustBuild(t, &leftover, table, fakeTxn{ts: 1}, nil)
	cur := f.NewCursor()

	if got := cur.EqualOrLarger(RowID{0, 1}); got != (RowID{0, 2}) {
		t.Fatalf("EqualOrLarger((0,1)) = %v, want (0,2)", got)
	}
	if got := cur.EqualOrLarger(RowID{0, 7}); got != (RowID{1, 0}) {
		t.Fatalf("EqualOrLarger((0,7)) = %v, want (1,0)", got)
	}
}

// Scenario 3: null filter with deletions in segment 0 at offsets 1,3,5.
func TestNullFilterWithDeletions(t *testing.T) {
	oracle, err := deletion.OpenInMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer oracle.Close()
	for _, off := range []uint32{1, 3, 5} {
		if err := oracle.MarkDeleted(0, off, 1); err != nil {
			t.Fatal(err)
		}
	}

	seg := &fakeSegment{id: 0, rowCount: 8, colA: idRange(8)}
	table := &fakeTable{segments: []SegmentEntry{seg}}

	f := mustBuild(t, nil, table, fakeTxn{ts: 5}, oracle)
	if f.alwaysTrue {
		t.Fatal("always_true must be false when deletions exist")
	}

	cur := f.NewCursor()
	for off := uint32(0); off < 8; off++ {
		want := off != 1 && off != 3 && off != 5
		if got := cur.PassFilter(RowID{0, RowOffset(off)}); got != want {
			t.Fatalf("PassFilter((0,%d)) = %v, want %v", off, got, want)
		}
	}
}

// Scenario 5: coarse filter excludes segment 2 entirely, so no block I/O
// happens for it even though a naive leftover check would find matches.
func TestCoarseFilterExcludesWholeSegment(t *testing.T) {
	seg0 := &fakeSegment{id: 0, rowCount: 4, colA: []int64{7, 7, 7, 7},
		summary: &predicate.SegmentSummary{MinMax: map[uint32]predicate.Range{
			0: {HasMin: true, HasMax: true, Min: expr.Value{Type: expr.ValInt64, I64: 7}, Max: expr.Value{Type: expr.ValInt64, I64: 7}},
		}}}
	seg2 := &fakeSegment{id: 2, rowCount: 4, colA: []int64{1, 2, 3, 4},
		summary: &predicate.SegmentSummary{MinMax: map[uint32]predicate.Range{
			0: {HasMin: true, HasMax: true, Min: expr.Value{Type: expr.ValInt64, I64: 1}, Max: expr.Value{Type: expr.ValInt64, I64: 4}},
		}}}
	table := &fakeTable{segments: []SegmentEntry{seg0, seg2}}

	leftover := expr.Compare(expr.OpEq, expr.Column(0), expr.Lit(expr.Value{Type: expr.ValInt64, I64: 7}))
	f, err := New(&leftover, table, fakeTxn{ts: 1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	f.ApplyFastRoughFilterOptimizer()
	if err := f.ApplyIndexFilterOptimizer(nil); err != nil {
		t.Fatal(err)
	}
	if err := f.BuildAll(context.Background()); err != nil {
		t.Fatal(err)
	}

	cur := f.NewCursor()
	if cur.PassFilter(RowID{2, 0}) {
		t.Fatal("segment 2 was coarse-prunable and must contribute no rows")
	}
	if !cur.PassFilter(RowID{0, 0}) {
		t.Fatal("segment 0 actually matches and must survive")
	}
}

// Always-true short-circuit: nil filter, no deletions.
func TestAlwaysTrueShortCircuit(t *testing.T) {
	seg := &fakeSegment{id: 0, rowCount: 3, colA: idRange(3)}
	table := &fakeTable{segments: []SegmentEntry{seg}}

	f, err := New(nil, table, fakeTxn{ts: 1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !f.alwaysTrue {
		t.Fatal("expected always_true with a nil filter and no deletions")
	}
	if f.TotalTaskNum() != 0 {
		t.Fatalf("TotalTaskNum() = %d, want 0", f.TotalTaskNum())
	}

	cur := f.NewCursor()
	if !cur.PassFilter(RowID{0, 0}) {
		t.Fatal("always_true must pass every row")
	}
	if got := cur.EqualOrLarger(RowID{0, 2}); got != (RowID{0, 2}) {
		t.Fatalf("EqualOrLarger under always_true must return its argument unchanged, got %v", got)
	}
}

// Empty table: zero tasks. With no filter and no deletions the filter
// is always_true, so its completion flag is set at construction.
func TestEmptyTable(t *testing.T) {
	table := &fakeTable{}
	f, err := New(nil, table, fakeTxn{ts: 1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if f.TotalTaskNum() != 0 {
		t.Fatalf("TotalTaskNum() = %d, want 0", f.TotalTaskNum())
	}
}

func mustBuild(t *testing.T, leftover *expr.Expr, table BaseTableRef, txn Txn, oracle *deletion.Oracle) *CommonQueryFilter {
	t.Helper()
	f, err := New(leftover, table, txn, oracle)
	if err != nil {
		t.Fatal(err)
	}
	f.ApplyFastRoughFilterOptimizer()
	if err := f.ApplyIndexFilterOptimizer(nil); err != nil {
		t.Fatal(err)
	}
	if err := f.BuildAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	return f
}
