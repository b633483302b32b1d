package sparseindex

import (
	"bytes"
	"testing"

	"github.com/flashdb/embeddb/pagefile"
)

const (
	testPageSize   = 64
	testBitmapSize = 8
)

func newTestLog(t *testing.T) (*Log, pagefile.PageFile) {
	t.Helper()
	f := pagefile.NewMemFile()
	if !f.Open(pagefile.ModeTruncate) {
		t.Fatal("Open failed")
	}
	return New(f, testPageSize, testBitmapSize, 64, 4, make([]byte, testPageSize)), f
}

func TestSparseIndexAppendScanRoundTrip(t *testing.T) {
	l, _ := newTestLog(t)

	entries := map[uint32][]byte{
		10: bytes.Repeat([]byte{0x01}, testBitmapSize),
		11: bytes.Repeat([]byte{0x02}, testBitmapSize),
		12: bytes.Repeat([]byte{0x04}, testBitmapSize),
	}
	for _, id := range []uint32{10, 11, 12} {
		if err := l.Append(id, entries[id]); err != nil {
			t.Fatalf("Append(%d): %v", id, err)
		}
	}
	if err := l.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	got := make(map[uint32][]byte)
	err := l.Scan(make([]byte, testPageSize), func(dataPageID uint32, bm []byte) bool {
		got[dataPageID] = append([]byte(nil), bm...)
		return true
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	for id, want := range entries {
		if !bytes.Equal(got[id], want) {
			t.Fatalf("page %d: got %x, want %x", id, got[id], want)
		}
	}
}

func TestSparseIndexScanCanStopEarly(t *testing.T) {
	l, _ := newTestLog(t)
	for id := uint32(0); id < 5; id++ {
		if err := l.Append(id, bytes.Repeat([]byte{byte(id)}, testBitmapSize)); err != nil {
			t.Fatalf("Append(%d): %v", id, err)
		}
	}
	if err := l.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	var seen []uint32
	err := l.Scan(make([]byte, testPageSize), func(dataPageID uint32, bm []byte) bool {
		seen = append(seen, dataPageID)
		return dataPageID < 2
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(seen) != 3 {
		t.Fatalf("Scan should have stopped after page 2, saw %v", seen)
	}
}

func TestSparseIndexFillsMultiplePages(t *testing.T) {
	l, _ := newTestLog(t)
	entriesCap := (testPageSize - headerSize) / testBitmapSize

	total := entriesCap*2 + 1
	for id := uint32(0); id < uint32(total); id++ {
		if err := l.Append(id, bytes.Repeat([]byte{byte(id + 1)}, testBitmapSize)); err != nil {
			t.Fatalf("Append(%d): %v", id, err)
		}
	}
	if err := l.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	count := 0
	err := l.Scan(make([]byte, testPageSize), func(dataPageID uint32, bm []byte) bool {
		count++
		return true
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if count != total {
		t.Fatalf("Scan returned %d entries, want %d", count, total)
	}
}

func TestSparseIndexRecoverMatchesLiveState(t *testing.T) {
	f := pagefile.NewMemFile()
	if !f.Open(pagefile.ModeTruncate) {
		t.Fatal("Open failed")
	}
	l := New(f, testPageSize, testBitmapSize, 64, 4, make([]byte, testPageSize))

	for id := uint32(0); id < 20; id++ {
		if err := l.Append(id, bytes.Repeat([]byte{byte(id)}, testBitmapSize)); err != nil {
			t.Fatalf("Append(%d): %v", id, err)
		}
	}
	if err := l.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	nextPageID, minPageID, err := Recover(f, testPageSize, 64)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if nextPageID != l.NextPageID() {
		t.Fatalf("Recover nextPageID = %d, want %d", nextPageID, l.NextPageID())
	}
	if minPageID != l.MinPageID() {
		t.Fatalf("Recover minPageID = %d, want %d", minPageID, l.MinPageID())
	}
}
