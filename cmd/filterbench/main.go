// Command filterbench builds a CommonQueryFilter against a synthetic
// in-memory table and reports construction phase timings to the log.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"github.com/infinity-db/queryfilter/internal/blockio"
	"github.com/infinity-db/queryfilter/internal/deletion"
	"github.com/infinity-db/queryfilter/internal/expr"
	"github.com/infinity-db/queryfilter/internal/predicate"
	"github.com/infinity-db/queryfilter/queryfilter"
)

func main() {
	segments := flag.Int("segments", 16, "number of segments")
	rowsPerSegment := flag.Int("rows", 50000, "rows per segment")
	deletePct := flag.Int("delete-pct", 1, "percentage of rows marked deleted")
	flag.Parse()

	slog.Info("filterbenchStart", "segments", *segments, "rowsPerSegment", *rowsPerSegment)

	oracle, err := deletion.OpenInMemory()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer oracle.Close()

	rng := rand.New(rand.NewPCG(1, 2))
	t0 := time.Now()
	table := buildSyntheticTable(*segments, *rowsPerSegment, *deletePct, oracle, rng)
	slog.Info("syntheticTableBuilt", "duration", time.Since(t0).String())

	leftover := expr.Compare(expr.OpLt, expr.Column(0), expr.Lit(expr.Value{Type: expr.ValInt64, I64: int64(*rowsPerSegment / 4)}))

	t1 := time.Now()
	f, err := queryfilter.New(&leftover, table, benchTxn{ts: 1_000_000}, oracle,
		queryfilter.WithWorkerConcurrency(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	f.ApplyFastRoughFilterOptimizer()
	if err := f.ApplyIndexFilterOptimizer(nil); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	slog.Info("decomposed", "duration", time.Since(t1).String(), "tasks", f.TotalTaskNum())

	t2 := time.Now()
	if err := f.BuildAll(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	slog.Info("filterbenchStop", "duration", time.Since(t2).String(), "survivingRows", f.ResultCount())
}

type benchTxn struct{ ts uint64 }

func (t benchTxn) BeginTS() uint64                           { return t.ts }
func (t benchTxn) BufferMgr() queryfilter.BufferManager       { return benchBufferManager{} }
func (t benchTxn) CheckTableHasDelete(db, table string) bool  { return true }

type benchBufferManager struct{}

func (benchBufferManager) Pin(blockID uint64, columnID uint32) (blockio.ColumnVectorView, error) {
	panic("filterbench: columns are supplied inline by the synthetic table, Pin is never called")
}

type benchColumnView struct{ vals []int64 }

func (v *benchColumnView) CopyInto(dst *blockio.ColumnVector, rowCount int) {
	dst.Type = blockio.TypeInt64
	dst.Int64s = append([]int64(nil), v.vals[:rowCount]...)
	dst.Len = rowCount
}

type benchSegment struct {
	id       queryfilter.SegmentID
	rowCount uint32
	colA     []int64
}

func (s *benchSegment) ID() queryfilter.SegmentID                 { return s.id }
func (s *benchSegment) RowCount() uint32                          { return s.rowCount }
func (s *benchSegment) FastRoughFilter() *predicate.SegmentSummary { return nil }

func (s *benchSegment) Blocks() []blockio.BlockEntry {
	return []blockio.BlockEntry{{
		SegmentID: uint32(s.id),
		BlockID:   0,
		RowCount:  int(s.rowCount),
		GetConstColumnVector: func(bufMgr blockio.BufferManager, columnID uint32) (blockio.ColumnVectorView, error) {
			return &benchColumnView{vals: s.colA}, nil
		},
	}}
}

type benchTable struct{ segments []queryfilter.SegmentEntry }

func (t *benchTable) Segments() []queryfilter.SegmentEntry { return t.segments }
func (t *benchTable) ColumnIDs() []uint32                  { return []uint32{0} }
func (t *benchTable) DatabaseName() string                 { return "bench" }
func (t *benchTable) TableName() string                    { return "synthetic" }

func buildSyntheticTable(numSegments, rowsPerSegment, deletePct int, oracle *deletion.Oracle, rng *rand.Rand) *benchTable {
	table := &benchTable{}
	for s := 0; s < numSegments; s++ {
		colA := make([]int64, rowsPerSegment)
		for i := range colA {
			colA[i] = int64(i)
			if deletePct > 0 && rng.IntN(100) < deletePct {
				_ = oracle.MarkDeleted(uint32(s), uint32(i), 500_000)
			}
		}
		table.segments = append(table.segments, &benchSegment{
			id: queryfilter.SegmentID(s), rowCount: uint32(rowsPerSegment), colA: colA,
		})
	}
	return table
}
