// Package bitmask provides a fixed-domain boolean bitmap with forward
// iteration and skip-ahead positioning, backed by a roaring bitmap so
// that dense and sparse populations are both cheap.
package bitmask

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// Bitmask is a boolean bitmap over the fixed domain [0, N). Count always
// equals N regardless of how many bits are true; population is tracked
// separately via CountTrue.
//
// The zero value is not usable; construct with NewAllTrue, NewEmpty or
// FromSet.
type Bitmask struct {
	n      uint32
	bitmap *roaring.Bitmap
}

// NewAllTrue returns a Bitmask over [0, n) with every bit initially true.
func NewAllTrue(n uint32) *Bitmask {
	bm := roaring.New()
	if n > 0 {
		bm.AddRange(0, uint64(n))
	}
	return &Bitmask{n: n, bitmap: bm}
}

// NewEmpty returns a Bitmask over [0, n) with every bit initially false.
func NewEmpty(n uint32) *Bitmask {
	return &Bitmask{n: n, bitmap: roaring.New()}
}

// FromSet returns a Bitmask over [0, n) with exactly the given positions
// true. Positions outside [0, n) are a programming error.
func FromSet(n uint32, positions []uint32) *Bitmask {
	b := NewEmpty(n)
	for _, p := range positions {
		b.mustInRange(p)
		b.bitmap.Add(p)
	}
	return b
}

// Count returns the declared domain size N. It never changes.
func (b *Bitmask) Count() uint32 { return b.n }

// CountTrue returns the population of set bits.
func (b *Bitmask) CountTrue() uint64 { return b.bitmap.GetCardinality() }

// IsTrue reports whether bit i is set. i must be < Count().
func (b *Bitmask) IsTrue(i uint32) bool {
	b.mustInRange(i)
	return b.bitmap.Contains(i)
}

// SetFalse clears bit i. i must be < Count().
func (b *Bitmask) SetFalse(i uint32) {
	b.mustInRange(i)
	b.bitmap.Remove(i)
}

// SetTrue sets bit i. i must be < Count().
func (b *Bitmask) SetTrue(i uint32) {
	b.mustInRange(i)
	b.bitmap.Add(i)
}

// And intersects b with other in place. Both must share the same domain.
func (b *Bitmask) And(other *Bitmask) {
	if b.n != other.n {
		panic(fmt.Sprintf("bitmask: domain mismatch in And: %d vs %d", b.n, other.n))
	}
	b.bitmap.And(other.bitmap)
}

// RunOptimize may compact the internal representation. It never changes
// logical contents: CountTrue and iteration order are unaffected.
func (b *Bitmask) RunOptimize() {
	b.bitmap.RunOptimize()
}

// Iterator returns a forward iterator over the set positions in ascending
// order, supporting skip-ahead via AdvanceTo.
func (b *Bitmask) Iterator() *ForwardIter {
	return &ForwardIter{it: b.bitmap.Iterator()}
}

func (b *Bitmask) mustInRange(i uint32) {
	if i >= b.n {
		panic(fmt.Sprintf("bitmask: index %d out of range [0, %d)", i, b.n))
	}
}

// ForwardIter walks set positions in ascending order.
type ForwardIter struct {
	it   roaring.IntPeekable
	done bool
}

// HasNext reports whether another set position remains.
func (f *ForwardIter) HasNext() bool {
	return !f.done && f.it.HasNext()
}

// Next returns the next set position and advances. Must not be called
// past the end (check HasNext first).
func (f *ForwardIter) Next() uint32 {
	return f.it.Next()
}

// AdvanceTo repositions the iterator so that the next call to Next yields
// the smallest set position >= x, or HasNext becomes false if none exists.
// This is the "equal_or_larger" skip primitive.
func (f *ForwardIter) AdvanceTo(x uint32) {
	f.it.AdvanceIfNeeded(x)
}
