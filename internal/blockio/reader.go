package blockio

import "fmt"

// ColumnVectorView is a pinned, already-typed view over a stored
// column's block-sized chunk, as returned by BufferManager.Pin. It is
// an external collaborator's type; the core only needs to copy rows out
// of it.
type ColumnVectorView interface {
	// CopyInto copies the first rowCount rows of this view into dst,
	// including dst's null mask if the column is nullable.
	CopyInto(dst *ColumnVector, rowCount int)
}

// BufferManager pins a stored column's backing storage for a block. It
// is expected to be internally thread-safe; the core calls Pin
// concurrently from multiple segment-construction goroutines.
type BufferManager interface {
	Pin(blockID uint64, columnID uint32) (ColumnVectorView, error)
}

// BlockEntry describes one on-disk block: its segment/block coordinates,
// its actual populated row count, and how to fetch a given column's
// view.
type BlockEntry struct {
	SegmentID uint32
	BlockID   uint32
	RowCount  int
	// GetConstColumnVector mirrors BlockEntry::get_const_column_vector
	// from the storage layer's declared interface (spec §6).
	GetConstColumnVector func(bufMgr BufferManager, columnID uint32) (ColumnVectorView, error)
}

// Reader materializes a DataBlock from a BlockEntry for a declared set
// of columns, synthesizing the reserved row-identifier column when
// requested and skipping columns the caller has no use for.
type Reader struct {
	// BlockCapacity is required to compute the synthesized RowID
	// column's starting offset: block b of a segment holds rows
	// [b*BlockCapacity, (b+1)*BlockCapacity).
	BlockCapacity uint32
}

// Read fills output with rowCount rows for each column in columnIDs.
// For the reserved row-identifier column it synthesizes consecutive
// RowIDs starting at (entry.SegmentID, entry.BlockID*BlockCapacity).
// For any other column where columnShouldLoad[i] is false, the column
// is finalized at length rowCount with unspecified contents — callers
// that asked for this promise not to read it; skipping the copy avoids
// wasted bandwidth and buffer-cache churn when a leftover predicate
// only references a subset of columns.
func (r *Reader) Read(output *DataBlock, bufMgr BufferManager, rowCount int, entry BlockEntry, columnIDs []uint32, columnShouldLoad []bool) error {
	if len(columnIDs) != len(columnShouldLoad) {
		panic(fmt.Sprintf("blockio: columnIDs has %d entries, columnShouldLoad has %d", len(columnIDs), len(columnShouldLoad)))
	}

	output.RowCount = rowCount
	if cap(output.Columns) < len(columnIDs) {
		output.Columns = make([]ColumnVector, len(columnIDs))
	} else {
		output.Columns = output.Columns[:len(columnIDs)]
	}

	for i, colID := range columnIDs {
		col := &output.Columns[i]
		switch {
		case colID == ReservedRowIDColumn:
			r.synthesizeRowID(col, entry, rowCount)
		case columnShouldLoad[i]:
			view, err := entry.GetConstColumnVector(bufMgr, colID)
			if err != nil {
				return fmt.Errorf("blockio: read column %d of segment %d block %d: %w", colID, entry.SegmentID, entry.BlockID, err)
			}
			view.CopyInto(col, rowCount)
			col.Loaded = true
		default:
			col.Loaded = false
		}
		output.finalizeColumn(i)
	}
	return nil
}

// ReservedRowIDColumn is the sentinel column id meaning "synthesize a
// RowID column instead of loading one from storage". Kept equal to
// queryfilter.ColumnIdentifierRowID; duplicated here rather than
// imported to avoid a dependency from blockio (a leaf package) up to
// queryfilter (the aggregate).
const ReservedRowIDColumn uint32 = 0xFFFFFFFF

func (r *Reader) synthesizeRowID(col *ColumnVector, entry BlockEntry, rowCount int) {
	start := entry.BlockID * r.BlockCapacity
	ids := make([]RowIDValue, rowCount)
	for k := 0; k < rowCount; k++ {
		ids[k] = RowIDValue{SegmentID: entry.SegmentID, Offset: start + uint32(k)}
	}
	col.Type = TypeRowID
	col.RowIDs = ids
	col.Len = rowCount
	col.Loaded = true
}
