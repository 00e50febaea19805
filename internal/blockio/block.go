// Package blockio materializes column-major row batches (DataBlocks)
// from stored blocks, synthesizing a row-identifier column on request
// and skipping columns the caller has no use for.
package blockio

import "fmt"

// LogicalType is a trimmed subset of the source system's logical type
// enumeration — only what expression evaluation and leftover-filter
// column references need. Vector/embedding arithmetic is out of scope;
// an embedding column can be loaded and passed through but never
// evaluated against.
type LogicalType int

const (
	TypeInvalid LogicalType = iota
	TypeBoolean
	TypeInt64
	TypeVarchar
	TypeRowID
	TypeEmbedding // opaque: may be loaded, never evaluated
)

func (t LogicalType) String() string {
	switch t {
	case TypeBoolean:
		return "boolean"
	case TypeInt64:
		return "int64"
	case TypeVarchar:
		return "varchar"
	case TypeRowID:
		return "row_id"
	case TypeEmbedding:
		return "embedding"
	default:
		return "invalid"
	}
}

// RowIDValue mirrors queryfilter.RowID without importing the public
// package (which would create an import cycle); blockio sits below
// queryfilter in the dependency graph.
type RowIDValue struct {
	SegmentID uint32
	Offset    uint32
}

// ColumnVector is a column-major batch of one column's values. Only one
// of the typed slices is populated, selected by Type. Boolean columns
// additionally carry a Nulls mask (bit i set means row i is SQL-NULL).
type ColumnVector struct {
	Type    LogicalType
	Len     int
	Bools   []bool // compact-bit in spirit; stored densely here for evaluator simplicity
	Int64s  []int64
	Strings []string
	RowIDs  []RowIDValue
	Nulls   []bool // len == Len when present; nil means "no nulls possible"
	Loaded  bool   // false means contents are unspecified (caller promised not to read)
}

// IsNull reports whether row i is SQL-NULL.
func (c *ColumnVector) IsNull(i int) bool {
	return c.Nulls != nil && c.Nulls[i]
}

// DataBlock is an ordered sequence of ColumnVectors sharing a row count,
// one per requested column.
type DataBlock struct {
	RowCount int
	Columns  []ColumnVector
}

func (b *DataBlock) String() string {
	return fmt.Sprintf("DataBlock(rows=%d, cols=%d)", b.RowCount, len(b.Columns))
}

// finalizeColumn checks a column after the reader has populated it: an
// unloaded column is given length RowCount, and it is an invariant
// violation for a loaded column to have a different length.
func (b *DataBlock) finalizeColumn(i int) {
	c := &b.Columns[i]
	if !c.Loaded {
		c.Len = b.RowCount
		return
	}
	if c.Len != b.RowCount {
		panic(fmt.Sprintf("blockio: column %d has %d rows, block declares %d", i, c.Len, b.RowCount))
	}
}
