package embeddb

import (
	"errors"
	"fmt"

	"github.com/flashdb/embeddb/buffer"
	"github.com/flashdb/embeddb/varlog"
)

// Get locates the data associated with key. Uses the spline (C3) to
// bracket candidate pages, then binary-searches page headers within the
// bracket, then binary-searches records within the chosen page.
func (e *Engine) Get(key []byte, out []byte) error {
	pageID, ok, err := e.findPage(key)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}

	buf := e.readDataBuf()
	if _, err := e.dataFile.ReadPage(pageID, e.cfg.PageSize, buf); err != nil {
		return fmt.Errorf("%w: read data page %d: %w", ErrIO, pageID, err)
	}

	idx, found := e.searchPageRecords(buf, key)
	if !found {
		return ErrNotFound
	}

	off := e.dataRecordOffset(idx) + e.cfg.KeySize
	copy(out[:e.cfg.DataSize], buf[off:off+e.cfg.DataSize])
	return nil
}

// GetVar behaves like Get but also opens a stream over the associated
// variable-length payload. It returns ErrVarDeleted (with the fixed data
// still copied into out) if the payload has fallen below the live
// watermark.
func (e *Engine) GetVar(key []byte, out []byte) (*VarStream, error) {
	if !e.useVData() {
		return nil, fmt.Errorf("%w: var data not enabled", ErrInit)
	}

	pageID, ok, err := e.findPage(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}

	buf := e.readDataBuf()
	if _, err := e.dataFile.ReadPage(pageID, e.cfg.PageSize, buf); err != nil {
		return nil, fmt.Errorf("%w: read data page %d: %w", ErrIO, pageID, err)
	}

	idx, found := e.searchPageRecords(buf, key)
	if !found {
		return nil, ErrNotFound
	}

	recOff := e.dataRecordOffset(idx)
	dataOff := recOff + e.cfg.KeySize
	copy(out[:e.cfg.DataSize], buf[dataOff:dataOff+e.cfg.DataSize])

	varOffset := leU32(buf[dataOff+e.cfg.DataSize : dataOff+e.cfg.DataSize+4])

	reader, err := e.varLog.Open(varOffset, e.pool.Slot(buffer.RoleReadVar))
	if err != nil {
		if errors.Is(err, varlog.ErrDeleted) {
			return nil, ErrVarDeleted
		}
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	return &VarStream{r: reader}, nil
}

// readDataBuf returns the read-data role slot.
func (e *Engine) readDataBuf() []byte {
	return e.pool.Slot(buffer.RoleReadData)
}

// findPage brackets key via the spline, then binary searches data page
// headers within [minDataPageID, nextDataPageID) (clipped to the spline
// bracket) using each page's (minKey,maxKey) header fields.
func (e *Engine) findPage(key []byte) (uint32, bool, error) {
	if e.nextDataPageID == e.minDataPageID {
		return 0, false, nil
	}
	if e.cfg.KeyComparator(key, e.minKey) < 0 {
		return 0, false, nil
	}

	low, high, ok := e.spline.Locate(key)
	if !ok {
		low, high = e.minDataPageID, e.nextDataPageID-1
	}
	if low < e.minDataPageID {
		low = e.minDataPageID
	}
	if high >= e.nextDataPageID {
		high = e.nextDataPageID - 1
	}
	if low > high {
		return 0, false, nil
	}

	buf := e.readDataBuf()
	lo, hi := low, high
	for lo <= hi {
		mid := lo + (hi-lo)/2
		if _, err := e.dataFile.ReadPage(mid, e.cfg.PageSize, buf); err != nil {
			return 0, false, fmt.Errorf("%w: read data page %d: %w", ErrIO, mid, err)
		}
		pageMinKey := buf[dataHeaderFixedSize : dataHeaderFixedSize+e.cfg.KeySize]
		pageMaxKey := buf[dataHeaderFixedSize+e.cfg.KeySize : dataHeaderFixedSize+2*e.cfg.KeySize]

		if e.cfg.KeyComparator(key, pageMinKey) < 0 {
			if mid == lo {
				break
			}
			hi = mid - 1
			continue
		}
		if e.cfg.KeyComparator(key, pageMaxKey) > 0 {
			lo = mid + 1
			continue
		}
		return mid, true, nil
	}

	return 0, false, nil
}

// searchPageRecords binary searches the records packed into a data page
// buffer for key, returning its record index.
func (e *Engine) searchPageRecords(buf []byte, key []byte) (int, bool) {
	count := int(leU16(buf[4:6]))
	lo, hi := 0, count-1
	for lo <= hi {
		mid := lo + (hi-lo)/2
		recKey := buf[e.dataRecordOffset(mid) : e.dataRecordOffset(mid)+e.cfg.KeySize]
		c := e.cfg.KeyComparator(key, recKey)
		switch {
		case c == 0:
			return mid, true
		case c < 0:
			hi = mid - 1
		default:
			lo = mid + 1
		}
	}
	return 0, false
}

func leU16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func leU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
