// Package predicate decomposes a raw filter expression into a
// CoarseFilter (segment-skip via min/max and bloom summaries), an
// IndexFilter (evaluated against secondary indexes), and a
// LeftoverFilter (evaluated row-wise). See decomposer.go.
package predicate

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/infinity-db/queryfilter/internal/expr"
)

// Range is a per-column min/max summary. A zero Range (HasMin==HasMax==false)
// admits everything.
type Range struct {
	HasMin, HasMax bool
	Min, Max       expr.Value
}

// BloomFilter is a small fixed-size bit array keyed by xxhash, a fast
// non-cryptographic hash well suited to a hot, allocation-sensitive
// bloom probe.
type BloomFilter struct {
	bits []uint64
	k    int
}

// NewBloomFilter sizes a filter for expectedItems entries at roughly a
// 1% false-positive rate.
func NewBloomFilter(expectedItems int) *BloomFilter {
	if expectedItems < 1 {
		expectedItems = 1
	}
	const bitsPerItem = 10 // ~1% FPR at k=7
	nbits := expectedItems * bitsPerItem
	words := (nbits + 63) / 64
	if words < 1 {
		words = 1
	}
	return &BloomFilter{bits: make([]uint64, words), k: 7}
}

func (b *BloomFilter) Add(data []byte) {
	h1, h2 := splitHash(data)
	nbits := uint64(len(b.bits)) * 64
	for i := 0; i < b.k; i++ {
		pos := (h1 + uint64(i)*h2) % nbits
		b.bits[pos/64] |= 1 << (pos % 64)
	}
}

// MayContain reports whether data might have been added. False means
// definitely not added; true means maybe.
func (b *BloomFilter) MayContain(data []byte) bool {
	h1, h2 := splitHash(data)
	nbits := uint64(len(b.bits)) * 64
	for i := 0; i < b.k; i++ {
		pos := (h1 + uint64(i)*h2) % nbits
		if b.bits[pos/64]&(1<<(pos%64)) == 0 {
			return false
		}
	}
	return true
}

func splitHash(data []byte) (uint64, uint64) {
	h1 := xxhash.Sum64(data)
	h2 := xxhash.Sum64([]byte{byte(h1), byte(h1 >> 8), byte(h1 >> 16)})
	if h2 == 0 {
		h2 = 1
	}
	return h1, h2
}

// EncodeValue renders a literal value into bytes suitable for hashing
// into a bloom filter. Integers are encoded little-endian, so the bytes
// do not sort in value order; min/max checks compare Values directly.
func EncodeValue(v expr.Value) []byte {
	switch v.Type {
	case expr.ValInt64:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(v.I64))
		return buf[:]
	case expr.ValString:
		return []byte(v.Str)
	case expr.ValBool:
		if v.Bool {
			return []byte{1}
		}
		return []byte{0}
	default:
		return nil
	}
}

// SegmentSummary is the concrete shape of the fast-rough-filter the
// source treats as opaque (SegmentEntry.get_fast_rough_filter() in
// spec §6). It is still produced by an external collaborator (the
// storage layer computes it at segment-seal time); the core only
// consumes it, via Admits.
type SegmentSummary struct {
	MinMax map[uint32]Range
	Bloom  map[uint32]*BloomFilter
}

// Admits reports whether the segment might contain a row satisfying
// `column OP value`. It must never return false for a segment that
// actually contains a match (coarse filters only prune, never admit
// falsely) — returning true when unsure is always safe.
func (s *SegmentSummary) Admits(column uint32, op expr.CompareOp, value expr.Value) bool {
	if s == nil {
		return true
	}
	if op == expr.OpEq {
		if bf, ok := s.Bloom[column]; ok {
			if !bf.MayContain(EncodeValue(value)) {
				return false
			}
		}
	}
	r, ok := s.MinMax[column]
	if !ok {
		return true
	}
	return rangeAdmits(r, op, value)
}

func rangeAdmits(r Range, op expr.CompareOp, value expr.Value) bool {
	switch op {
	case expr.OpEq:
		return (!r.HasMin || compareOrdered(r.Min, value) <= 0) &&
			(!r.HasMax || compareOrdered(value, r.Max) <= 0)
	case expr.OpLt:
		return !r.HasMin || compareOrdered(r.Min, value) < 0
	case expr.OpLe:
		return !r.HasMin || compareOrdered(r.Min, value) <= 0
	case expr.OpGt:
		return !r.HasMax || compareOrdered(value, r.Max) < 0
	case expr.OpGe:
		return !r.HasMax || compareOrdered(value, r.Max) <= 0
	default:
		// OpNe and anything else: cannot be pruned by a range summary.
		return true
	}
}

// compareOrdered returns <0, 0, >0 for a<b, a==b, a>b. Panics on a type
// mismatch or a non-orderable type — a segment summary is only ever
// built over orderable columns.
func compareOrdered(a, b expr.Value) int {
	if a.Type != b.Type {
		panic("predicate: min/max summary compared against a value of a different type")
	}
	switch a.Type {
	case expr.ValInt64:
		switch {
		case a.I64 < b.I64:
			return -1
		case a.I64 > b.I64:
			return 1
		default:
			return 0
		}
	case expr.ValString:
		switch {
		case a.Str < b.Str:
			return -1
		case a.Str > b.Str:
			return 1
		default:
			return 0
		}
	default:
		panic("predicate: non-orderable value type in a min/max summary")
	}
}
