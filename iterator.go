package embeddb

import (
	"errors"
	"fmt"

	"github.com/flashdb/embeddb/varlog"
)

// VarStream streams the variable-length payload associated with one
// record returned by GetVar or a var-aware Iterator. It wraps a
// varlog.Reader so callers never see the underlying log's page
// mechanics, only a plain byte stream that can run dry (ErrVarDeleted)
// if its pages are reclaimed while the stream is still open.
type VarStream struct {
	r *varlog.Reader
}

// Read fills p with up to len(p) bytes of the payload, returning
// (0, nil) at end of stream, ErrVarDeleted if the payload has fallen
// below the live watermark mid-read, or an ErrIO-wrapped error for a
// genuine read fault.
func (v *VarStream) Read(p []byte) (int, error) {
	n, err := v.r.Read(p)
	if err != nil {
		if errors.Is(err, varlog.ErrDeleted) {
			return n, ErrVarDeleted
		}
		return n, fmt.Errorf("%w: %w", ErrIO, err)
	}
	return n, nil
}

// Len reports the number of unread payload bytes remaining.
func (v *VarStream) Len() uint32 { return v.r.Len() }

// Filter narrows an Iterator to records whose key and/or data fall
// within the given inclusive bounds. A nil bound is unconstrained.
type Filter struct {
	MinKey  []byte
	MaxKey  []byte
	MinData []byte
	MaxData []byte
}

func (f Filter) hasKeyBound() bool  { return f.MinKey != nil || f.MaxKey != nil }
func (f Filter) hasDataBound() bool { return f.MinData != nil || f.MaxData != nil }

// Iterator walks sealed data pages in key order, optionally skipping
// whole pages via the sparse index's bitmap summaries (spec component
// C8) before falling back to a per-record scan within each candidate
// page.
type Iterator struct {
	e      *Engine
	filter Filter

	pageBuf    []byte
	candidates []uint32 // remaining candidate page ids, ascending
	curPage    uint32
	haveCur    bool
	recIdx     int // next record to examine in pageBuf
	recCount   int
	curRecIdx  int // record Key/Data/VarStream currently expose

	done bool
	err  error
}

// InitIterator constructs an Iterator over every currently live data
// page, pre-filtered by filter using the spline (key bounds) and the
// sparse index bitmap (data bounds), when those are available.
func (e *Engine) InitIterator(filter Filter) (*Iterator, error) {
	it := &Iterator{
		e:       e,
		filter:  filter,
		pageBuf: make([]byte, e.cfg.PageSize),
	}

	lo, hi := e.minDataPageID, e.nextDataPageID
	if lo >= hi {
		it.done = true
		return it, nil
	}

	if filter.hasKeyBound() {
		if filter.MinKey != nil {
			if low, _, ok := e.spline.Locate(filter.MinKey); ok && low > lo {
				lo = low
			}
		}
		if filter.MaxKey != nil {
			if _, high, ok := e.spline.Locate(filter.MaxKey); ok && high+1 < hi {
				hi = high + 1
			}
		}
		if lo < e.minDataPageID {
			lo = e.minDataPageID
		}
		if hi > e.nextDataPageID {
			hi = e.nextDataPageID
		}
	}

	if lo >= hi {
		it.done = true
		return it, nil
	}

	if e.useIndex() && e.useBmap() && filter.hasDataBound() {
		candidates, err := it.scanIndexCandidates(lo, hi)
		if err != nil {
			return nil, err
		}
		it.candidates = candidates
	} else {
		it.candidates = make([]uint32, 0, hi-lo)
		for id := lo; id < hi; id++ {
			it.candidates = append(it.candidates, id)
		}
	}

	if len(it.candidates) == 0 {
		it.done = true
	}
	return it, nil
}

// scanIndexCandidates walks the sparse index's bitmap entries for pages
// in [lo, hi), keeping only pages whose bitmap intersects the filter's
// data bound bitmap.
func (it *Iterator) scanIndexCandidates(lo, hi uint32) ([]uint32, error) {
	e := it.e
	want := make([]byte, e.bitmapSize)

	// Build a target bitmap covering the [MinData, MaxData] range, then
	// keep only data pages whose own bitmap could contain a match.
	lowBound := it.filter.MinData
	highBound := it.filter.MaxData
	if lowBound == nil {
		lowBound = make([]byte, e.cfg.DataSize)
	}
	if highBound == nil {
		highBound = make([]byte, e.cfg.DataSize)
		for i := range highBound {
			highBound[i] = 0xff
		}
	}
	e.cfg.Bitmap.BuildFromRange(lowBound, highBound, want)

	var out []uint32
	readBuf := make([]byte, e.cfg.PageSize)
	err := e.idxLog.Scan(readBuf, func(dataPageID uint32, bm []byte) bool {
		if dataPageID < lo || dataPageID >= hi {
			return true
		}
		if bitmapIntersects(bm, want) {
			out = append(out, dataPageID)
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	return out, nil
}

func bitmapIntersects(a, b []byte) bool {
	for i := range a {
		if a[i]&b[i] != 0 {
			return true
		}
	}
	return false
}

func (it *Iterator) loadPage(pageID uint32) error {
	if _, err := it.e.dataFile.ReadPage(pageID, it.e.cfg.PageSize, it.pageBuf); err != nil {
		return fmt.Errorf("%w: read data page %d: %w", ErrIO, pageID, err)
	}
	it.curPage = pageID
	it.haveCur = true
	it.recIdx = 0
	it.recCount = int(leU16(it.pageBuf[4:6]))
	return nil
}

// Next advances the iterator and reports whether a record is available.
// On true, Key/Data/VarStream return that record's fields.
func (it *Iterator) Next() (bool, error) {
	if it.done {
		return false, it.err
	}

	for {
		if !it.haveCur || it.recIdx >= it.recCount {
			if len(it.candidates) == 0 {
				it.done = true
				return false, nil
			}
			next := it.candidates[0]
			it.candidates = it.candidates[1:]
			if err := it.loadPage(next); err != nil {
				it.done = true
				it.err = err
				return false, err
			}
			continue
		}

		idx := it.recIdx
		it.recIdx++

		key := it.recordKey(idx)
		data := it.recordData(idx)

		if it.filter.MinKey != nil && it.e.cfg.KeyComparator(key, it.filter.MinKey) < 0 {
			continue
		}
		if it.filter.MaxKey != nil && it.e.cfg.KeyComparator(key, it.filter.MaxKey) > 0 {
			continue
		}
		if it.filter.MinData != nil && it.e.cfg.DataComparator(data, it.filter.MinData) < 0 {
			continue
		}
		if it.filter.MaxData != nil && it.e.cfg.DataComparator(data, it.filter.MaxData) > 0 {
			continue
		}

		it.curRecIdx = idx
		return true, nil
	}
}

func (it *Iterator) recordOffset(i int) int { return it.e.dataRecordOffset(i) }

func (it *Iterator) recordKey(i int) []byte {
	off := it.recordOffset(i)
	return it.pageBuf[off : off+it.e.cfg.KeySize]
}

func (it *Iterator) recordData(i int) []byte {
	off := it.recordOffset(i) + it.e.cfg.KeySize
	return it.pageBuf[off : off+it.e.cfg.DataSize]
}

func (it *Iterator) currentKey() []byte  { return it.recordKey(it.curRecIdx) }
func (it *Iterator) currentData() []byte { return it.recordData(it.curRecIdx) }

// Key returns the current record's key. Valid only after Next returns true.
func (it *Iterator) Key() []byte { return it.currentKey() }

// Data returns the current record's fixed-size data. Valid only after
// Next returns true.
func (it *Iterator) Data() []byte { return it.currentData() }

// VarStream opens the variable-length payload of the current record, if
// the engine has UseVData enabled.
func (it *Iterator) VarStream() (*VarStream, error) {
	if !it.e.useVData() {
		return nil, fmt.Errorf("%w: var data not enabled", ErrInit)
	}
	off := it.recordOffset(it.curRecIdx) + it.e.cfg.KeySize + it.e.cfg.DataSize
	varOffset := leU32(it.pageBuf[off : off+4])

	reader, err := it.e.varLog.Open(varOffset, make([]byte, it.e.cfg.PageSize))
	if err != nil {
		if errors.Is(err, varlog.ErrDeleted) {
			return nil, ErrVarDeleted
		}
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	return &VarStream{r: reader}, nil
}

// Close releases the iterator's resources. Iterators hold no file
// handles of their own, so Close is a no-op.
func (it *Iterator) Close() error { return nil }
