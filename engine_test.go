package embeddb

import (
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/flashdb/embeddb/pagefile"
)

func key4(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	dataFile := pagefile.NewMemFile()
	indexFile := pagefile.NewMemFile()
	varFile := pagefile.NewMemFile()

	cfg := NewConfig(4, 4, dataFile, indexFile, varFile, opts...)
	e, err := Init(*cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return e
}

func TestPutGetRoundTrip(t *testing.T) {
	e := newTestEngine(t, WithPageSize(64), WithCapacity(3, 3, 3))

	for i := uint32(0); i < 6; i++ {
		if err := e.Put(key4(i), key4(i*10)); err != nil {
			t.Fatalf("Put(%d): %v", i, err)
		}
	}
	if err := e.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	out := make([]byte, 4)
	for i := uint32(0); i < 6; i++ {
		if err := e.Get(key4(i), out); err != nil {
			t.Fatalf("Get(%d): %v", i, err)
		}
		if got := binary.LittleEndian.Uint32(out); got != i*10 {
			t.Fatalf("Get(%d) = %d, want %d", i, got, i*10)
		}
	}
}

func TestGetNotFound(t *testing.T) {
	e := newTestEngine(t, WithPageSize(64))
	if err := e.Put(key4(5), key4(50)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	out := make([]byte, 4)
	if err := e.Get(key4(6), out); err != ErrNotFound {
		t.Fatalf("Get(missing) = %v, want ErrNotFound", err)
	}
}

func TestPutRejectsNonMonotonicKey(t *testing.T) {
	e := newTestEngine(t, WithPageSize(64))
	if err := e.Put(key4(5), key4(0)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := e.Put(key4(5), key4(0)); err != ErrDuplicateKey {
		t.Fatalf("Put(equal key) = %v, want ErrDuplicateKey", err)
	}
	if err := e.Put(key4(4), key4(0)); err != ErrDuplicateKey {
		t.Fatalf("Put(lesser key) = %v, want ErrDuplicateKey", err)
	}
}

// Forces several page wraps and asserts the exact counters spec.md §8's
// boundary scenarios check: minDataPageId, nextDataPageId, minKey, and
// numAvailDataPages.
func TestWrapAroundAdvancesWatermarks(t *testing.T) {
	// pageSize=64, keySize=4, dataSize=4, bitmapSize=8 (Bitmap64 default)
	// gives headerSize=30, recordSize=8, so 4 records seal a page.
	e := newTestEngine(t, WithPageSize(64), WithCapacity(3, 3, 3), WithEraseSizeInPages(1))

	const recordsPerPage = 4
	totalPages := 10
	for i := uint32(0); i < uint32(totalPages*recordsPerPage); i++ {
		if err := e.Put(key4(i), key4(i)); err != nil {
			t.Fatalf("Put(%d): %v", i, err)
		}
	}
	if err := e.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if e.NextDataPageID() != uint32(totalPages) {
		t.Fatalf("NextDataPageID() = %d, want %d", e.NextDataPageID(), totalPages)
	}
	// NumDataPages=3 means only the 3 most recent pages survive.
	wantMinPage := uint32(totalPages) - 3
	if e.MinDataPageID() != wantMinPage {
		t.Fatalf("MinDataPageID() = %d, want %d", e.MinDataPageID(), wantMinPage)
	}
	if e.NumAvailDataPages() != 0 {
		t.Fatalf("NumAvailDataPages() = %d, want 0 (at capacity)", e.NumAvailDataPages())
	}

	wantMinKey := wantMinPage * recordsPerPage
	if got := binary.LittleEndian.Uint32(e.MinKey()); got != wantMinKey {
		t.Fatalf("MinKey() = %d, want %d", got, wantMinKey)
	}

	// Reclaimed keys are gone.
	out := make([]byte, 4)
	if err := e.Get(key4(0), out); err != ErrNotFound {
		t.Fatalf("Get(reclaimed key) = %v, want ErrNotFound", err)
	}
	// The most recently written key must still be live.
	last := uint32(totalPages*recordsPerPage) - 1
	if err := e.Get(key4(last), out); err != nil {
		t.Fatalf("Get(live key %d): %v", last, err)
	}
}

func TestPutVarGetVar(t *testing.T) {
	e := newTestEngine(t, WithPageSize(64), WithParameters(UseIndex|UseBmap|UseVData), WithCapacity(4, 4, 4))

	payload := []byte("variable length payload")
	if err := e.PutVar(key4(1), key4(100), payload); err != nil {
		t.Fatalf("PutVar: %v", err)
	}
	if err := e.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	out := make([]byte, 4)
	vs, err := e.GetVar(key4(1), out)
	if err != nil {
		t.Fatalf("GetVar: %v", err)
	}
	if got := binary.LittleEndian.Uint32(out); got != 100 {
		t.Fatalf("GetVar fixed data = %d, want 100", got)
	}
	// VarStream.Read reports end of stream as (0, nil), not io.EOF, so
	// read exactly Len() bytes and then check that the stream is dry.
	got := make([]byte, vs.Len())
	if _, err := io.ReadFull(vs, got); err != nil {
		t.Fatalf("ReadFull(varstream): %v", err)
	}
	if n, err := vs.Read(make([]byte, 1)); n != 0 || err != nil {
		t.Fatalf("Read at end of stream = %d, %v; want 0, nil", n, err)
	}
	if string(got) != string(payload) {
		t.Fatalf("var payload = %q, want %q", got, payload)
	}
}

// GetVar must not disguise a genuine I/O fault from the var log as
// ErrVarDeleted: that sentinel is reserved for offsets the wrap-around
// watermark has actually reclaimed.
func TestGetVarSurfacesIOErrorDistinctFromDeleted(t *testing.T) {
	e := newTestEngine(t, WithPageSize(64), WithParameters(UseIndex|UseBmap|UseVData), WithCapacity(4, 4, 4))

	if err := e.PutVar(key4(1), key4(100), []byte("payload")); err != nil {
		t.Fatalf("PutVar: %v", err)
	}
	if err := e.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	// Sabotage the var file after the fixed record is durable so the
	// var-log read genuinely fails, rather than hitting the reclaimed-
	// watermark path.
	if err := e.varFile.Close(); err != nil {
		t.Fatalf("close var file: %v", err)
	}

	out := make([]byte, 4)
	_, err := e.GetVar(key4(1), out)
	if err == nil {
		t.Fatal("GetVar after var file close: got nil error, want ErrIO")
	}
	if errors.Is(err, ErrVarDeleted) {
		t.Fatalf("GetVar after var file close = %v, want ErrIO not ErrVarDeleted", err)
	}
	if !errors.Is(err, ErrIO) {
		t.Fatalf("GetVar after var file close = %v, want ErrIO", err)
	}
}

// Same discrimination requirement as GetVar, but through the iterator's
// VarStream accessor.
func TestIteratorVarStreamSurfacesIOErrorDistinctFromDeleted(t *testing.T) {
	e := newTestEngine(t, WithPageSize(64), WithParameters(UseIndex|UseBmap|UseVData), WithCapacity(4, 4, 4))

	if err := e.PutVar(key4(1), key4(100), []byte("payload")); err != nil {
		t.Fatalf("PutVar: %v", err)
	}
	if err := e.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := e.varFile.Close(); err != nil {
		t.Fatalf("close var file: %v", err)
	}

	it, err := e.InitIterator(Filter{})
	if err != nil {
		t.Fatalf("InitIterator: %v", err)
	}
	ok, err := it.Next()
	if err != nil || !ok {
		t.Fatalf("Next() = %v, %v", ok, err)
	}

	_, err = it.VarStream()
	if err == nil {
		t.Fatal("VarStream after var file close: got nil error, want ErrIO")
	}
	if errors.Is(err, ErrVarDeleted) {
		t.Fatalf("VarStream after var file close = %v, want ErrIO not ErrVarDeleted", err)
	}
	if !errors.Is(err, ErrIO) {
		t.Fatalf("VarStream after var file close = %v, want ErrIO", err)
	}
}

func TestIteratorFilterByKeyRange(t *testing.T) {
	e := newTestEngine(t, WithPageSize(64), WithCapacity(8, 8, 8))
	for i := uint32(0); i < 20; i++ {
		if err := e.Put(key4(i), key4(i)); err != nil {
			t.Fatalf("Put(%d): %v", i, err)
		}
	}
	if err := e.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	it, err := e.InitIterator(Filter{MinKey: key4(5), MaxKey: key4(10)})
	if err != nil {
		t.Fatalf("InitIterator: %v", err)
	}
	var seen []uint32
	for {
		ok, err := it.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		seen = append(seen, binary.LittleEndian.Uint32(it.Key()))
	}
	if len(seen) != 6 {
		t.Fatalf("filtered scan returned %d keys, want 6: %v", len(seen), seen)
	}
	for i, k := range seen {
		if k != uint32(5+i) {
			t.Fatalf("seen[%d] = %d, want %d", i, k, 5+i)
		}
	}
}

func TestRecoveryRestoresWatermarks(t *testing.T) {
	dataFile := pagefile.NewMemFile()
	indexFile := pagefile.NewMemFile()
	varFile := pagefile.NewMemFile()

	cfg := NewConfig(4, 4, dataFile, indexFile, varFile, WithPageSize(64), WithCapacity(8, 8, 8))
	e, err := Init(*cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	for i := uint32(0); i < 12; i++ {
		if err := e.Put(key4(i), key4(i)); err != nil {
			t.Fatalf("Put(%d): %v", i, err)
		}
	}
	if err := e.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	wantNext := e.NextDataPageID()
	wantMinPage := e.MinDataPageID()
	wantMinKey := append([]byte(nil), e.MinKey()...)

	// Reopen against the same (still-open, in-memory) files without
	// ResetData, exercising recover() instead of a fresh Init.
	cfg2 := NewConfig(4, 4, dataFile, indexFile, varFile, WithPageSize(64), WithCapacity(8, 8, 8))
	e2, err := Init(*cfg2)
	if err != nil {
		t.Fatalf("Init (recovery): %v", err)
	}

	if e2.NextDataPageID() != wantNext {
		t.Fatalf("recovered NextDataPageID() = %d, want %d", e2.NextDataPageID(), wantNext)
	}
	if e2.MinDataPageID() != wantMinPage {
		t.Fatalf("recovered MinDataPageID() = %d, want %d", e2.MinDataPageID(), wantMinPage)
	}
	if string(e2.MinKey()) != string(wantMinKey) {
		t.Fatalf("recovered MinKey() = %v, want %v", e2.MinKey(), wantMinKey)
	}

	out := make([]byte, 4)
	if err := e2.Get(key4(11), out); err != nil {
		t.Fatalf("Get after recovery: %v", err)
	}
}
