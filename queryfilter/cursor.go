package queryfilter

import (
	"sort"

	"github.com/infinity-db/queryfilter/internal/bitmask"
)

// Cursor is the mutable, single-reader half of a built filter: it
// caches the current segment's bitmask and an owned forward iterator
// into it. A CommonQueryFilter can hand out any number of independent
// Cursors once construction has completed. None of them mutate the
// filter itself; each takes the filter's result mutex briefly when it
// moves to another segment.
type Cursor struct {
	filter *CommonQueryFilter

	orderedSegments []SegmentID // filterResult keys, ascending, snapshotted at NewCursor

	currentSegmentID SegmentID
	currentBitmask   *bitmask.Bitmask
	iter             *bitmask.ForwardIter
}

// NewCursor returns a fresh cursor over f. f must already have its
// completion flag raised; NewCursor asserts this the same way
// pass_filter and equal_or_larger do.
func (f *CommonQueryFilter) NewCursor() *Cursor {
	f.requireBuilt()
	c := &Cursor{filter: f, currentSegmentID: InvalidSegmentID}
	if f.alwaysTrue {
		return c
	}
	f.resultMu.Lock()
	ids := make([]SegmentID, 0, len(f.filterResult))
	for id := range f.filterResult {
		ids = append(ids, id)
	}
	f.resultMu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	c.orderedSegments = ids
	return c
}

// PassFilter reports whether rowID survives this query's predicate and
// visibility check.
func (c *Cursor) PassFilter(rowID RowID) bool {
	if c.filter.alwaysTrue {
		return true
	}
	c.filter.requireBuilt()

	if rowID.SegmentID != c.currentSegmentID {
		c.filter.resultMu.Lock()
		bm, ok := c.filter.filterResult[rowID.SegmentID]
		c.filter.resultMu.Unlock()
		if !ok {
			c.currentSegmentID = InvalidSegmentID
			c.currentBitmask = nil
			return false
		}
		c.currentSegmentID = rowID.SegmentID
		c.currentBitmask = bm
		c.iter = bm.Iterator()
	}
	return c.currentBitmask.IsTrue(uint32(rowID.Offset))
}

// EqualOrLarger returns the smallest surviving RowID that is
// lexicographically >= rowID, or InvalidRowID if none exists.
func (c *Cursor) EqualOrLarger(rowID RowID) RowID {
	if c.filter.alwaysTrue {
		return rowID
	}
	c.filter.requireBuilt()

	for {
		if rowID.SegmentID != c.currentSegmentID {
			found, ok := c.firstSegmentAtOrAfter(rowID.SegmentID)
			if !ok {
				return InvalidRowID
			}
			if found != rowID.SegmentID {
				rowID = RowID{SegmentID: found, Offset: 0}
			}
			c.filter.resultMu.Lock()
			bm := c.filter.filterResult[found]
			c.filter.resultMu.Unlock()
			c.currentSegmentID = found
			c.currentBitmask = bm
			it := bm.Iterator()
			c.iter = it
		}

		c.iter.AdvanceTo(uint32(rowID.Offset))
		if c.iter.HasNext() {
			return RowID{SegmentID: c.currentSegmentID, Offset: RowOffset(c.iter.Next())}
		}

		next := c.currentSegmentID + 1
		rowID = RowID{SegmentID: next, Offset: 0}
		c.currentSegmentID = InvalidSegmentID
	}
}

func (c *Cursor) firstSegmentAtOrAfter(id SegmentID) (SegmentID, bool) {
	idx := sort.Search(len(c.orderedSegments), func(i int) bool { return c.orderedSegments[i] >= id })
	if idx == len(c.orderedSegments) {
		return 0, false
	}
	return c.orderedSegments[idx], true
}
