package queryfilter

import (
	"github.com/infinity-db/queryfilter/internal/blockio"
	"github.com/infinity-db/queryfilter/internal/predicate"
)

// BufferManager pins a stored column's backing storage for a block. The
// transaction manager and storage engine own the concrete
// implementation; the core only consumes it.
type BufferManager = blockio.BufferManager

// SegmentEntry is a table's declared view of one segment: its fast
// rough filter summary, its populated row count, and its blocks in
// ascending order. check_rows_visible is realized as
// Oracle.ApplyVisibility, called directly by segfilter.Build rather
// than through this interface, since the core already owns the
// deletion oracle abstraction (internal/deletion) and doesn't need a
// second path to the same operation.
type SegmentEntry interface {
	ID() SegmentID
	RowCount() uint32
	FastRoughFilter() *predicate.SegmentSummary
	Blocks() []blockio.BlockEntry
}

// BaseTableRef is the table-level external collaborator: it enumerates
// the segments live at query start and carries the table identity
// Txn.CheckTableHasDelete needs.
type BaseTableRef interface {
	Segments() []SegmentEntry
	ColumnIDs() []uint32
	DatabaseName() string
	TableName() string
}

// Txn is the transaction-scoped external collaborator. BeginTS also
// satisfies predicate.IndexContext structurally, so a Txn value can be
// passed directly to an IndexEvaluator without any adapter.
type Txn interface {
	BeginTS() uint64
	BufferMgr() BufferManager
	CheckTableHasDelete(db, table string) bool
}
