package bitmap

import (
	"encoding/binary"
	"testing"
)

func TestUnionIntersects(t *testing.T) {
	a := []byte{0b1010, 0}
	b := []byte{0b0101, 0}
	Union(a, b)
	if a[0] != 0b1111 {
		t.Fatalf("Union: got %b, want %b", a[0], 0b1111)
	}
	if !Intersects([]byte{0b1000}, []byte{0b1001}) {
		t.Fatal("Intersects: expected overlap")
	}
	if Intersects([]byte{0b0100}, []byte{0b1001}) {
		t.Fatal("Intersects: expected no overlap")
	}
}

func TestUintComparator(t *testing.T) {
	cmp := UintComparator(4)
	a := make([]byte, 4)
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(a, 10)
	binary.LittleEndian.PutUint32(b, 20)
	if cmp(a, b) >= 0 {
		t.Fatal("expected a < b")
	}
	if cmp(b, a) <= 0 {
		t.Fatal("expected b > a")
	}
	if cmp(a, a) != 0 {
		t.Fatal("expected equal")
	}
}

func TestIntComparatorSignExtends(t *testing.T) {
	cmp := IntComparator(2)
	neg := make([]byte, 2)
	minusOne := int16(-1)
	binary.LittleEndian.PutUint16(neg, uint16(minusOne))
	pos := make([]byte, 2)
	binary.LittleEndian.PutUint16(pos, 1)
	if cmp(neg, pos) >= 0 {
		t.Fatal("expected -1 < 1 under signed comparison")
	}
}

// Every Bitmap implementation must satisfy one-sided correctness: a
// value that was Update'd into a summary must always test In, and a
// BuildFromRange query covering a value's bucket must intersect that
// value's own summary.
func testOneSidedCorrectness(t *testing.T, bm Bitmap, values [][]byte) {
	t.Helper()
	for _, v := range values {
		summary := make([]byte, bm.Size())
		bm.Update(v, summary)
		if !bm.In(v, summary) {
			t.Fatalf("value %x not found in its own summary", v)
		}

		query := make([]byte, bm.Size())
		bm.BuildFromRange(v, v, query)
		if !Intersects(query, summary) {
			t.Fatalf("BuildFromRange(%x,%x) does not intersect summary built from the same value", v, v)
		}
	}
}

func u16le(v int16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, uint16(v))
	return b
}

func u32le(v int32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	return b
}

func TestBitmap8(t *testing.T) {
	bm := Bitmap8{}
	if bm.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", bm.Size())
	}
	testOneSidedCorrectness(t, bm, [][]byte{u16le(5), u16le(15), u16le(55), u16le(150)})

	full := make([]byte, 1)
	bm.BuildFromRange(nil, nil, full)
	if full[0] != 0xFF {
		t.Fatalf("open range should set every bit, got %b", full[0])
	}
}

func TestBitmap16(t *testing.T) {
	bm := Bitmap16{}
	if bm.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", bm.Size())
	}
	testOneSidedCorrectness(t, bm, [][]byte{u32le(300), u32le(320), u32le(770)})

	full := make([]byte, 2)
	bm.BuildFromRange(nil, nil, full)
	if binary.LittleEndian.Uint16(full) != 0xFFFF {
		t.Fatalf("open range should set every bit, got %x", full)
	}
}

func TestBitmap64(t *testing.T) {
	bm := Bitmap64{}
	if bm.Size() != 8 {
		t.Fatalf("Size() = %d, want 8", bm.Size())
	}
	testOneSidedCorrectness(t, bm, [][]byte{u32le(300), u32le(320), u32le(900), u32le(5000)})

	full := make([]byte, 8)
	bm.BuildFromRange(nil, nil, full)
	if binary.BigEndian.Uint64(full) != ^uint64(0) {
		t.Fatalf("open range should set every bit, got %x", full)
	}
}

// A narrow range query must not intersect a summary built from a value
// clearly outside it.
func TestBitmap64RangeExcludesFarValue(t *testing.T) {
	bm := Bitmap64{}
	query := make([]byte, 8)
	bm.BuildFromRange(u32le(320), u32le(330), query)

	far := make([]byte, 8)
	bm.Update(u32le(900), far)

	if Intersects(query, far) {
		t.Fatal("narrow range query should not intersect a far-away value's summary")
	}
}
