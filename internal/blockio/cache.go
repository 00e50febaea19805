package blockio

import (
	"hash/maphash"
	"sync"

	"github.com/dgryski/go-tinylfu"
)

// BlockCache memoizes materialized DataBlocks keyed by (segment, block,
// column set): a TinyLFU admission policy sized for a bounded working
// set.
//
// Only the leftover pass of SegmentFilterBuilder reads through the
// cache; the index pass consults the index evaluator and reads no
// blocks. A block already cached under the same key and row count is
// reused instead of being materialized again.
type BlockCache struct {
	mu    sync.Mutex
	cache *tinylfu.T[cacheKey, *DataBlock]
}

type cacheKey struct {
	segmentID   uint32
	blockID     uint32
	columnsHash uint64
}

// NewBlockCache creates a cache admitting up to capacity distinct
// (segment, block, column-set) entries.
func NewBlockCache(capacity int) *BlockCache {
	if capacity <= 0 {
		return nil
	}
	c := &BlockCache{}
	c.cache = tinylfu.New[cacheKey, *DataBlock](capacity, capacity*10, hashCacheKey)
	return c
}

// ColumnSetHash computes a stable hash of a column id list for use as
// part of a cache key, by writing each id's four little-endian bytes
// into a maphash.Hash with the package seed.
func ColumnSetHash(columnIDs []uint32) uint64 {
	var h maphash.Hash
	h.SetSeed(seed)
	for _, id := range columnIDs {
		var b [4]byte
		b[0] = byte(id)
		b[1] = byte(id >> 8)
		b[2] = byte(id >> 16)
		b[3] = byte(id >> 24)
		h.Write(b[:])
	}
	return h.Sum64()
}

var seed = maphash.MakeSeed()

// Get returns a cached DataBlock for the given key, if present.
func (c *BlockCache) Get(segmentID, blockID uint32, columnsHash uint64) (*DataBlock, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Get(cacheKey{segmentID, blockID, columnsHash})
}

// Add stores block under the given key, evicting per the TinyLFU policy
// if the cache is full.
func (c *BlockCache) Add(segmentID, blockID uint32, columnsHash uint64, block *DataBlock) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Add(cacheKey{segmentID, blockID, columnsHash}, block)
}

func hashCacheKey(k cacheKey) uint64 {
	return maphash.Comparable(seed, k)
}
