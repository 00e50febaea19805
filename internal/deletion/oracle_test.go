package deletion

import (
	"testing"

	"github.com/infinity-db/queryfilter/internal/bitmask"
)

func TestApplyVisibilityClearsDeletedRows(t *testing.T) {
	o, err := OpenInMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer o.Close()

	for _, off := range []uint32{1, 3, 5} {
		if err := o.MarkDeleted(0, off, 100); err != nil {
			t.Fatal(err)
		}
	}

	result := bitmask.NewAllTrue(10)
	if err := o.ApplyVisibility(0, result, 200); err != nil {
		t.Fatal(err)
	}

	for _, off := range []uint32{1, 3, 5} {
		if result.IsTrue(off) {
			t.Fatalf("offset %d should have been cleared", off)
		}
	}
	if result.CountTrue() != 7 {
		t.Fatalf("CountTrue() = %d, want 7", result.CountTrue())
	}
}

func TestVisibilityIsMonotoneInTimestamp(t *testing.T) {
	o, err := OpenInMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer o.Close()

	if err := o.MarkDeleted(0, 4, 100); err != nil {
		t.Fatal(err)
	}

	before := bitmask.NewAllTrue(10)
	if err := o.ApplyVisibility(0, before, 50); err != nil {
		t.Fatal(err)
	}
	if !before.IsTrue(4) {
		t.Fatal("row deleted at ts=100 must still be visible at ts=50")
	}

	after := bitmask.NewAllTrue(10)
	if err := o.ApplyVisibility(0, after, 150); err != nil {
		t.Fatal(err)
	}
	if after.IsTrue(4) {
		t.Fatal("row deleted at ts=100 must be invisible at ts=150")
	}
}

func TestDeletesAreScopedToTheirSegment(t *testing.T) {
	o, err := OpenInMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer o.Close()

	if err := o.MarkDeleted(1, 2, 100); err != nil {
		t.Fatal(err)
	}

	segment0 := bitmask.NewAllTrue(10)
	if err := o.ApplyVisibility(0, segment0, 200); err != nil {
		t.Fatal(err)
	}
	if segment0.CountTrue() != 10 {
		t.Fatal("a delete in segment 1 must not affect segment 0")
	}
}

func TestHasAnyDeletes(t *testing.T) {
	o, err := OpenInMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer o.Close()

	has, err := o.HasAnyDeletes()
	if err != nil {
		t.Fatal(err)
	}
	if has {
		t.Fatal("fresh oracle should report no deletes")
	}

	if err := o.MarkDeleted(0, 0, 1); err != nil {
		t.Fatal(err)
	}
	has, err = o.HasAnyDeletes()
	if err != nil {
		t.Fatal(err)
	}
	if !has {
		t.Fatal("oracle with a recorded delete should report HasAnyDeletes")
	}
}
