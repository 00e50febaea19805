package bitmask

import "testing"

func collect(b *Bitmask) []uint32 {
	var got []uint32
	it := b.Iterator()
	for it.HasNext() {
		got = append(got, it.Next())
	}
	return got
}

func TestAllTrueDomain(t *testing.T) {
	b := NewAllTrue(10)
	if b.Count() != 10 {
		t.Fatalf("Count() = %d, want 10", b.Count())
	}
	if b.CountTrue() != 10 {
		t.Fatalf("CountTrue() = %d, want 10", b.CountTrue())
	}
	for i := uint32(0); i < 10; i++ {
		if !b.IsTrue(i) {
			t.Fatalf("bit %d should be true", i)
		}
	}
}

func TestSetFalseKeepsDomain(t *testing.T) {
	b := NewAllTrue(5)
	b.SetFalse(2)
	if b.Count() != 5 {
		t.Fatalf("Count() changed after SetFalse: %d", b.Count())
	}
	if b.CountTrue() != 4 {
		t.Fatalf("CountTrue() = %d, want 4", b.CountTrue())
	}
	if b.IsTrue(2) {
		t.Fatal("bit 2 should be false")
	}
}

func TestForwardIterAscending(t *testing.T) {
	b := FromSet(20, []uint32{1, 5, 7, 19})
	got := collect(b)
	want := []uint32{1, 5, 7, 19}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestAdvanceTo(t *testing.T) {
	b := FromSet(20, []uint32{1, 5, 7, 19})
	it := b.Iterator()
	it.AdvanceTo(6)
	if !it.HasNext() {
		t.Fatal("expected a position >= 6")
	}
	if got := it.Next(); got != 7 {
		t.Fatalf("AdvanceTo(6).Next() = %d, want 7", got)
	}

	it2 := b.Iterator()
	it2.AdvanceTo(20)
	if it2.HasNext() {
		t.Fatal("AdvanceTo(20) should exhaust the iterator (domain is [0,20))")
	}
}

func TestRunOptimizePreservesContents(t *testing.T) {
	for _, positions := range [][]uint32{
		{},
		{0},
		{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
		{3, 900, 50000},
	} {
		b := FromSet(100000, positions)
		before := collect(b)
		beforeCount := b.CountTrue()
		b.RunOptimize()
		after := collect(b)
		if b.CountTrue() != beforeCount {
			t.Fatalf("RunOptimize changed CountTrue: %d -> %d", beforeCount, b.CountTrue())
		}
		if len(before) != len(after) {
			t.Fatalf("RunOptimize changed iteration length: %v -> %v", before, after)
		}
		for i := range before {
			if before[i] != after[i] {
				t.Fatalf("RunOptimize changed iteration order: %v -> %v", before, after)
			}
		}
	}
}

func TestOutOfRangeIsProgrammerError(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic on out-of-range access")
		}
	}()
	b := NewAllTrue(3)
	b.IsTrue(3)
}
