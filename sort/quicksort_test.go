package sort

import (
	"encoding/binary"
	"testing"
)

func u32Compare(a, b []byte) int {
	av := binary.LittleEndian.Uint32(a)
	bv := binary.LittleEndian.Uint32(b)
	switch {
	case av < bv:
		return -1
	case av > bv:
		return 1
	default:
		return 0
	}
}

func packU32(vs ...uint32) []byte {
	buf := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	return buf
}

func unpackU32(buf []byte, n int) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	return out
}

// Boundary scenario 7 (spec.md §8): quicksort([5,3,3,1,2,2,4]) == [1,2,2,3,3,4,5].
func TestQuicksortBoundaryScenario(t *testing.T) {
	buf := packU32(5, 3, 3, 1, 2, 2, 4)
	Quicksort(buf, 7, 4, u32Compare)
	got := unpackU32(buf, 7)
	want := []uint32{1, 2, 2, 3, 3, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("quicksort result = %v, want %v", got, want)
		}
	}
}

// Records here are an 8-byte stride: a 4-byte key at offset 0 (the field
// the comparator orders on) and a 4-byte payload at offset 4. Sorting must
// move the whole record, leaving each key's paired payload (the "stride-0
// field" in spec.md §8 scenario 7) intact rather than only reordering keys.
func TestQuicksortKeepsPayloadPairedWithKey(t *testing.T) {
	const recordSize = 8
	keys := []uint32{5, 3, 1, 4, 2}
	buf := make([]byte, recordSize*len(keys))
	for i, k := range keys {
		binary.LittleEndian.PutUint32(buf[i*recordSize:], k)
		binary.LittleEndian.PutUint32(buf[i*recordSize+4:], k*100) // payload derived from key
	}

	Quicksort(buf, len(keys), recordSize, func(a, b []byte) int { return u32Compare(a[:4], b[:4]) })

	for i := 0; i < len(keys); i++ {
		k := binary.LittleEndian.Uint32(buf[i*recordSize:])
		v := binary.LittleEndian.Uint32(buf[i*recordSize+4:])
		if v != k*100 {
			t.Fatalf("record %d: key=%d payload=%d, want payload=%d", i, k, v, k*100)
		}
		if i > 0 {
			prev := binary.LittleEndian.Uint32(buf[(i-1)*recordSize:])
			if prev > k {
				t.Fatalf("not sorted at %d: %d before %d", i, prev, k)
			}
		}
	}
}

func TestQuicksortSmallAndEmpty(t *testing.T) {
	Quicksort(nil, 0, 4, u32Compare)

	one := packU32(7)
	Quicksort(one, 1, 4, u32Compare)
	if got := unpackU32(one, 1); got[0] != 7 {
		t.Fatalf("single element mutated: %v", got)
	}
}

func TestQuicksortAlreadySortedAndReverse(t *testing.T) {
	n := 50
	vs := make([]uint32, n)
	for i := range vs {
		vs[i] = uint32(i)
	}
	buf := packU32(vs...)
	Quicksort(buf, n, 4, u32Compare)
	got := unpackU32(buf, n)
	for i, v := range got {
		if v != uint32(i) {
			t.Fatalf("already-sorted input corrupted at %d: %v", i, got)
		}
	}

	for i := range vs {
		vs[i] = uint32(n - i)
	}
	buf = packU32(vs...)
	Quicksort(buf, n, 4, u32Compare)
	got = unpackU32(buf, n)
	for i := 1; i < len(got); i++ {
		if got[i-1] > got[i] {
			t.Fatalf("reverse-sorted input not sorted: %v", got)
		}
	}
}
