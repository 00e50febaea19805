// Package queryfilter implements the query-time row filtering core: it
// turns a logical predicate over a table into a compact,
// segment-partitioned bitmap of surviving rows and a cursor protocol
// that downstream scorers (vector search, inverted index) use to skip
// over non-matching rows cheaply.
package queryfilter

import "fmt"

// SegmentID identifies a logical partition of a table, the unit of
// parallelism for construction.
type SegmentID uint32

// RowOffset identifies a row within a segment.
type RowOffset uint32

// InvalidSegmentID is the sentinel segment id meaning "no segment".
const InvalidSegmentID SegmentID = 0xFFFFFFFF

// ColumnIdentifierRowID is the reserved column id meaning "synthesize a
// RowID column instead of loading one from storage".
const ColumnIdentifierRowID uint32 = 0xFFFFFFFF

// BlockCapacity is the number of rows per on-disk block. Must be a power
// of two; chosen once for the whole table and never varies per segment.
const BlockCapacity uint32 = 8192

// SegmentCapacity is the maximum number of rows a segment may hold.
const SegmentCapacity uint32 = 8192 * 1024

// RowID identifies a logical row as (segment, offset within segment).
// Row identifiers are monotonic in lexicographic (SegmentID, RowOffset)
// order.
type RowID struct {
	SegmentID SegmentID
	Offset    RowOffset
}

// InvalidRowID is returned when a cursor has no further match.
var InvalidRowID = RowID{SegmentID: InvalidSegmentID, Offset: RowOffset(0xFFFFFFFF)}

func (r RowID) String() string {
	if r == InvalidRowID {
		return "RowID(invalid)"
	}
	return fmt.Sprintf("RowID(%d,%d)", r.SegmentID, r.Offset)
}

// Less reports whether r sorts strictly before o in row-id order.
func (r RowID) Less(o RowID) bool {
	if r.SegmentID != o.SegmentID {
		return r.SegmentID < o.SegmentID
	}
	return r.Offset < o.Offset
}

// BlockRowID returns the RowID of offset k within block b of segment s,
// given the table's BlockCapacity. This is the invariant BlockReader
// relies on: block b's rows occupy segment offsets
// [b*BlockCapacity, (b+1)*BlockCapacity).
func BlockRowID(s SegmentID, blockID uint32, k uint32, blockCapacity uint32) RowID {
	return RowID{SegmentID: s, Offset: RowOffset(blockID*blockCapacity + k)}
}
