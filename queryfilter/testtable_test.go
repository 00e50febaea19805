package queryfilter

import (
	"github.com/infinity-db/queryfilter/internal/blockio"
	"github.com/infinity-db/queryfilter/internal/predicate"
)

// fakeBufferManager is never actually consulted by the tests in this
// package: every test segment's column data is closed over directly in
// its BlockEntry.GetConstColumnVector, the same shape
// internal/segfilter's own tests use. It exists only to satisfy the
// BufferManager parameter BlockReader.Read threads through.
type fakeBufferManager struct{}

func (fakeBufferManager) Pin(blockID uint64, columnID uint32) (blockio.ColumnVectorView, error) {
	panic("fakeBufferManager.Pin should never be called in these tests")
}

type fakeTxn struct {
	ts uint64
}

func (t fakeTxn) BeginTS() uint64                               { return t.ts }
func (t fakeTxn) BufferMgr() BufferManager                      { return fakeBufferManager{} }
func (t fakeTxn) CheckTableHasDelete(db, table string) bool     { return false }

type fakeColumnView struct{ vals []int64 }

func (v *fakeColumnView) CopyInto(dst *blockio.ColumnVector, rowCount int) {
	dst.Type = blockio.TypeInt64
	dst.Int64s = append([]int64(nil), v.vals[:rowCount]...)
	dst.Len = rowCount
}

// fakeSegment is a single-block in-memory segment: all of its rows live
// in one block so these tests can stay focused on CommonQueryFilter's
// own bookkeeping rather than the leftover pass's multi-block looping,
// which these tests do not exercise.
type fakeSegment struct {
	id       SegmentID
	rowCount uint32
	summary  *predicate.SegmentSummary
	colA     []int64 // column ordinal 0
}

func (s *fakeSegment) ID() SegmentID        { return s.id }
func (s *fakeSegment) RowCount() uint32     { return s.rowCount }
func (s *fakeSegment) FastRoughFilter() *predicate.SegmentSummary { return s.summary }
func (s *fakeSegment) Blocks() []blockio.BlockEntry {
	return []blockio.BlockEntry{{
		SegmentID: uint32(s.id),
		BlockID:   0,
		RowCount:  int(s.rowCount),
		GetConstColumnVector: func(bufMgr blockio.BufferManager, columnID uint32) (blockio.ColumnVectorView, error) {
			return &fakeColumnView{vals: s.colA}, nil
		},
	}}
}

type fakeTable struct {
	segments []SegmentEntry
}

func (t *fakeTable) Segments() []SegmentEntry { return t.segments }
func (t *fakeTable) ColumnIDs() []uint32      { return []uint32{0} }
func (t *fakeTable) DatabaseName() string     { return "db" }
func (t *fakeTable) TableName() string        { return "t" }
