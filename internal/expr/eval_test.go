package expr

import (
	"testing"

	"github.com/infinity-db/queryfilter/internal/blockio"
)

func intBlock(vals []int64, nulls []bool) *blockio.DataBlock {
	return &blockio.DataBlock{
		RowCount: len(vals),
		Columns: []blockio.ColumnVector{
			{Type: blockio.TypeInt64, Len: len(vals), Int64s: vals, Nulls: nulls},
		},
	}
}

func TestCompareLessThan(t *testing.T) {
	block := intBlock([]int64{1, 5, 10, 0}, nil)
	e := Compare(OpLt, Column(0), Lit(Value{Type: ValInt64, I64: 5}))
	values, nulls := Evaluate(&e, block)
	want := []bool{true, false, false, true}
	for i := range want {
		if values[i] != want[i] || nulls[i] {
			t.Fatalf("row %d: got (%v,%v), want (%v,false)", i, values[i], nulls[i], want[i])
		}
	}
}

func TestAndShortCircuitsOnFalseBeforeNull(t *testing.T) {
	// a=false, b=null -> AND must be false (not null): false dominates null.
	block := &blockio.DataBlock{
		RowCount: 1,
		Columns: []blockio.ColumnVector{
			{Type: blockio.TypeBoolean, Len: 1, Bools: []bool{false}},
			{Type: blockio.TypeBoolean, Len: 1, Bools: []bool{false}, Nulls: []bool{true}},
		},
	}
	e := And(Column(0), Column(1))
	values, nulls := Evaluate(&e, block)
	if nulls[0] || values[0] {
		t.Fatalf("got (%v,%v), want (false,false)", values[0], nulls[0])
	}
}

func TestOrNullPropagatesWhenNoTrueOperand(t *testing.T) {
	block := &blockio.DataBlock{
		RowCount: 1,
		Columns: []blockio.ColumnVector{
			{Type: blockio.TypeBoolean, Len: 1, Bools: []bool{false}, Nulls: []bool{true}},
			{Type: blockio.TypeBoolean, Len: 1, Bools: []bool{false}},
		},
	}
	e := Or(Column(0), Column(1))
	_, nulls := Evaluate(&e, block)
	if !nulls[0] {
		t.Fatal("OR of (null, false) must be null")
	}
}

func TestInMembership(t *testing.T) {
	block := intBlock([]int64{10, 20, 30}, nil)
	e := In(Column(0), []Value{{Type: ValInt64, I64: 10}, {Type: ValInt64, I64: 30}})
	values, _ := Evaluate(&e, block)
	want := []bool{true, false, true}
	for i := range want {
		if values[i] != want[i] {
			t.Fatalf("row %d: got %v, want %v", i, values[i], want[i])
		}
	}
}

func TestInvalidColumnOrdinalPanics(t *testing.T) {
	block := intBlock([]int64{1}, nil)
	e := Compare(OpEq, Column(5), Lit(Value{Type: ValInt64, I64: 1}))
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected a panic for an out-of-range column ordinal")
		} else if _, ok := r.(*InvalidColumnError); !ok {
			t.Fatalf("expected *InvalidColumnError, got %T: %v", r, r)
		}
	}()
	Evaluate(&e, block)
}

func TestColumnRefsSkipsInRightSide(t *testing.T) {
	e := In(Column(2), []Value{{Type: ValInt64, I64: 1}})
	refs := ColumnRefs(&e, nil)
	if len(refs) != 1 || refs[0] != 2 {
		t.Fatalf("ColumnRefs = %v, want [2]", refs)
	}
}
