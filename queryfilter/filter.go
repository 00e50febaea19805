package queryfilter

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/infinity-db/queryfilter/internal/bitmask"
	"github.com/infinity-db/queryfilter/internal/blockio"
	"github.com/infinity-db/queryfilter/internal/deletion"
	"github.com/infinity-db/queryfilter/internal/expr"
	"github.com/infinity-db/queryfilter/internal/predicate"
	"github.com/infinity-db/queryfilter/internal/segfilter"
)

// CommonQueryFilter is the public aggregate: it decomposes a predicate
// once, fans construction out across a table's segments, and once
// built exposes the read-only cursor protocol. One instance belongs to
// one query; it is created, built, read, and discarded.
type CommonQueryFilter struct {
	cfg Config

	originalFilter *expr.Expr
	table          BaseTableRef
	txn            Txn
	oracle         *deletion.Oracle
	metrics        *ConstructionMetrics
	blockCache     *blockio.BlockCache

	decomposer *predicate.Decomposer
	indexSetup bool

	alwaysTrue bool
	tasks      []SegmentID
	segments   map[SegmentID]SegmentEntry

	resultMu     sync.Mutex
	filterResult map[SegmentID]*bitmask.Bitmask
	resultCount  uint64

	finishBuild atomic.Bool
}

// New wraps originalFilter (nil means "no predicate") for decomposition
// against table, as seen by txn. oracle may be nil, meaning the table
// carries no deletion log at all. Construction does not dispatch any
// task itself; the caller drives ApplyFastRoughFilterOptimizer,
// ApplyIndexFilterOptimizer, and BuildFilter per spec.
func New(originalFilter *expr.Expr, table BaseTableRef, txn Txn, oracle *deletion.Oracle, opts ...Option) (*CommonQueryFilter, error) {
	cfg := NewConfig(opts...)

	f := &CommonQueryFilter{
		cfg:            cfg,
		originalFilter: originalFilter,
		table:          table,
		txn:            txn,
		oracle:         oracle,
		metrics:        newConstructionMetrics(cfg.Metrics),
		blockCache:     blockio.NewBlockCache(cfg.BlockCacheCapacity),
		decomposer:     predicate.New(originalFilter),
		filterResult:   make(map[SegmentID]*bitmask.Bitmask),
		segments:       make(map[SegmentID]SegmentEntry),
	}

	// always_true requires both collaborators to agree the table has no
	// deletions: txn.CheckTableHasDelete per spec §4.6/§6, and the
	// oracle itself since a txn-visible delete flag and the oracle's own
	// log could otherwise disagree and silently mis-set always_true.
	hasDeletes := txn.CheckTableHasDelete(table.DatabaseName(), table.TableName())
	if !hasDeletes && oracle != nil {
		has, err := oracle.HasAnyDeletes()
		if err != nil {
			return nil, err
		}
		hasDeletes = has
	}
	f.alwaysTrue = originalFilter == nil && !hasDeletes

	for _, seg := range table.Segments() {
		f.segments[seg.ID()] = seg
		f.tasks = append(f.tasks, seg.ID())
	}

	if f.alwaysTrue {
		f.finishBuild.Store(true)
		f.tasks = nil
	}
	f.metrics.addTasksTotal(len(f.tasks))
	return f, nil
}

// ApplyFastRoughFilterOptimizer runs the decomposer's coarse-filter
// setup. A no-op (but still safe) when always_true already holds.
func (f *CommonQueryFilter) ApplyFastRoughFilterOptimizer() {
	f.decomposer.ApplyCoarseFilterOptimizer()
}

// ApplyIndexFilterOptimizer runs the decomposer's index-filter setup
// against lookup. Must be called after ApplyFastRoughFilterOptimizer.
func (f *CommonQueryFilter) ApplyIndexFilterOptimizer(lookup predicate.IndexLookup) error {
	f.indexSetup = true
	return f.decomposer.ApplyIndexFilterOptimizer(lookup)
}

// TotalTaskNum reports how many segment-construction tasks this filter
// has. Zero for an empty table or an always-true filter.
func (f *CommonQueryFilter) TotalTaskNum() int { return len(f.tasks) }

// BuildFilter runs segment construction for the task at position
// taskIdx in the task list. It may be called at most once per taskIdx,
// and at most once concurrently per taskIdx; violating
// that contract is the caller's bug, not something this method detects.
func (f *CommonQueryFilter) BuildFilter(taskIdx int) error {
	if taskIdx < 0 {
		ie := invariantf(InvalidSegmentID, "build_filter", "task index %d must not be negative", taskIdx)
		if f.cfg.PanicOnInvariant {
			panic(ie)
		}
		return ie
	}
	if taskIdx >= len(f.tasks) {
		ie := invariantCount(InvalidSegmentID, "build_filter", uint64(len(f.tasks)), uint64(taskIdx))
		if f.cfg.PanicOnInvariant {
			panic(ie)
		}
		return ie
	}
	segID := f.tasks[taskIdx]
	seg := f.segments[segID]

	plan := segfilter.Plan{
		Coarse:   f.decomposer.CoarseEvaluator,
		Index:    f.decomposer.IndexEvaluator,
		Leftover: f.decomposer.LeftoverFilter,
	}
	deps := segfilter.Deps{
		Reader:         &blockio.Reader{BlockCapacity: f.cfg.BlockCapacity},
		BufferMgr:      f.txn.BufferMgr(),
		Cache:          f.blockCache,
		Oracle:         f.oracle,
		Logger:         f.cfg.Logger,
		OnCoarsePruned: f.metrics.incSegmentsCoarsePruned,
		OnIndexEmpty:   f.metrics.incSegmentsIndexEmpty,
		OnRowsVisited:  f.metrics.addRowsVisitedLeftover,
	}

	built, buildErr := segfilter.Build(deps, f.txn, plan, segfilter.Segment{
		ID:       uint32(segID),
		RowCount: seg.RowCount(),
		Summary:  seg.FastRoughFilter(),
		Blocks:   seg.Blocks(),
	})
	if buildErr != nil {
		if se, ok := buildErr.(*segfilter.StructuralError); ok {
			wrapped := &InvariantError{Segment: segID, Op: se.Op, Want: se.Want, Got: se.Got, Detail: se.Detail}
			if f.cfg.PanicOnInvariant {
				panic(wrapped)
			}
			return wrapped
		}
		return buildErr
	}

	f.metrics.incTasksCompleted()
	if built == nil {
		return nil
	}
	f.metrics.addRowsSurvived(built.CountTrue())

	f.resultMu.Lock()
	f.filterResult[segID] = built
	f.resultCount += built.CountTrue()
	f.resultMu.Unlock()
	return nil
}

// BuildAll dispatches every task through an errgroup bounded by the
// configured worker concurrency, raising the completion flag once every
// task has returned. It is a convenience on top of TotalTaskNum/
// BuildFilter for callers that don't need their own scheduler.
func (f *CommonQueryFilter) BuildAll(ctx context.Context) error {
	if f.finishBuild.Load() {
		return nil // already always-true, or already built
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.WorkerConcurrency)
	for i := range f.tasks {
		i := i
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			return f.BuildFilter(i)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	f.finishBuild.Store(true)
	return nil
}

// FinishBuild raises the completion flag directly, for callers that
// drive their own external task pool instead of BuildAll. It must only
// be called after every BuildFilter invocation has returned.
func (f *CommonQueryFilter) FinishBuild() { f.finishBuild.Store(true) }

// ResultCount returns the sum of populations across every segment's
// surviving-row bitmask. Only meaningful once construction is complete.
func (f *CommonQueryFilter) ResultCount() uint64 {
	f.resultMu.Lock()
	defer f.resultMu.Unlock()
	return f.resultCount
}

func (f *CommonQueryFilter) requireBuilt() {
	if !f.finishBuild.Load() {
		panic(invariantf(InvalidSegmentID, "cursor", "cursor operation invoked before construction completed"))
	}
}
