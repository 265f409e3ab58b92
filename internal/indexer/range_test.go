package indexer

import (
	"math"
	"reflect"
	"testing"
)

func TestSplitRange(t *testing.T) {
	got, err := SplitRange(100, 105, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []BlockRange{
		{From: 100, To: 101},
		{From: 102, To: 103},
		{From: 104, To: 105},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ranges mismatch: %+v != %+v", got, want)
	}
}

func TestSplitRangeUneven(t *testing.T) {
	got, err := SplitRange(7710000, 7710004, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []BlockRange{{From: 7710000, To: 7710002}, {From: 7710003, To: 7710004}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ranges mismatch: %+v != %+v", got, want)
	}
}

func TestSplitRangeNearMaxBlock(t *testing.T) {
	got, err := SplitRange(math.MaxUint64-2, math.MaxUint64, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []BlockRange{
		{From: math.MaxUint64 - 2, To: math.MaxUint64 - 1},
		{From: math.MaxUint64, To: math.MaxUint64},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ranges mismatch: %+v != %+v", got, want)
	}
}

func TestSplitRangeInvalid(t *testing.T) {
	if _, err := SplitRange(10, 9, 1); err == nil {
		t.Fatalf("expected error for invalid range")
	}
	if _, err := SplitRange(1, 10, 0); err == nil {
		t.Fatalf("expected error for zero batch size")
	}
}

func TestBlockRangeHalves(t *testing.T) {
	left, right, ok := BlockRange{From: 10, To: 14}.Halves()
	if !ok {
		t.Fatalf("expected a split")
	}
	if left != (BlockRange{From: 10, To: 11}) || right != (BlockRange{From: 12, To: 14}) {
		t.Fatalf("unexpected halves %s %s", left, right)
	}

	if _, _, ok := (BlockRange{From: 5, To: 5}).Halves(); ok {
		t.Fatalf("single block range must not split")
	}
}
