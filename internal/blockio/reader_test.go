package blockio

import "testing"

type fakeView struct {
	int64s []int64
}

func (v *fakeView) CopyInto(dst *ColumnVector, rowCount int) {
	dst.Type = TypeInt64
	dst.Int64s = append([]int64(nil), v.int64s[:rowCount]...)
	dst.Len = rowCount
}

func TestReadSynthesizesRowID(t *testing.T) {
	r := &Reader{BlockCapacity: 10}
	entry := BlockEntry{SegmentID: 3, BlockID: 2, RowCount: 4}

	var out DataBlock
	err := r.Read(&out, nil, 4, entry, []uint32{ReservedRowIDColumn}, []bool{true})
	if err != nil {
		t.Fatal(err)
	}
	col := out.Columns[0]
	if col.Type != TypeRowID || len(col.RowIDs) != 4 {
		t.Fatalf("unexpected row-id column: %+v", col)
	}
	for k, id := range col.RowIDs {
		want := RowIDValue{SegmentID: 3, Offset: 20 + uint32(k)}
		if id != want {
			t.Fatalf("RowIDs[%d] = %+v, want %+v", k, id, want)
		}
	}
}

func TestReadSkipsUnrequestedColumns(t *testing.T) {
	r := &Reader{BlockCapacity: 8192}
	calls := 0
	entry := BlockEntry{
		SegmentID: 0, BlockID: 0, RowCount: 3,
		GetConstColumnVector: func(bufMgr BufferManager, columnID uint32) (ColumnVectorView, error) {
			calls++
			return &fakeView{int64s: []int64{1, 2, 3}}, nil
		},
	}

	var out DataBlock
	err := r.Read(&out, nil, 3, entry, []uint32{0, 1}, []bool{true, false})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("GetConstColumnVector called %d times, want 1 (column 1 should be skipped)", calls)
	}
	if !out.Columns[0].Loaded {
		t.Fatal("column 0 should be loaded")
	}
	if out.Columns[1].Loaded {
		t.Fatal("column 1 should not be loaded")
	}
	if out.Columns[1].Len != 3 {
		t.Fatalf("unloaded column still must report RowCount length, got %d", out.Columns[1].Len)
	}
}
