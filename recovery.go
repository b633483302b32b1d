package embeddb

import (
	"fmt"

	"github.com/flashdb/embeddb/sparseindex"
	"github.com/flashdb/embeddb/varlog"
)

// recover reconstructs in-memory engine state (page counters, minKey,
// lastInsertedKey, and the spline) from the tail of an existing data
// file, and wires the var/index logs back to where their own recovery
// passes leave off. Per spec.md §4.5, any data page that was never
// sealed before a crash is lost; recovery only ever sees whole pages.
func (e *Engine) recover() error {
	size, err := e.dataFile.Size()
	if err != nil {
		return fmt.Errorf("%w: recover size: %w", ErrIO, err)
	}
	if size == 0 {
		return nil
	}

	totalPages := uint32(size) / uint32(e.cfg.PageSize)
	if totalPages == 0 {
		return nil
	}

	buf := make([]byte, e.cfg.PageSize)
	if _, err := e.dataFile.ReadPage(totalPages-1, e.cfg.PageSize, buf); err != nil {
		return fmt.Errorf("%w: recover read last page: %w", ErrIO, err)
	}
	lastPageID := leU32(buf[0:4])
	e.nextDataPageID = lastPageID + 1

	e.minDataPageID = 0
	for e.nextDataPageID-e.minDataPageID > e.cfg.NumDataPages {
		e.minDataPageID += e.cfg.EraseSizeInPages
	}
	e.numAvailDataPages = e.cfg.NumDataPages - (e.nextDataPageID - e.minDataPageID)

	for id := e.minDataPageID; id < e.nextDataPageID; id++ {
		if _, err := e.dataFile.ReadPage(id, e.cfg.PageSize, buf); err != nil {
			return fmt.Errorf("%w: recover read page %d: %w", ErrIO, id, err)
		}

		pageMinKey := buf[dataHeaderFixedSize : dataHeaderFixedSize+e.cfg.KeySize]
		if id == e.minDataPageID {
			copy(e.minKey, pageMinKey)
		}
		e.spline.Add(pageMinKey, id)

		if id == e.nextDataPageID-1 {
			pageMaxKey := buf[dataHeaderFixedSize+e.cfg.KeySize : dataHeaderFixedSize+2*e.cfg.KeySize]
			if cap(e.lastInsertedKey) == 0 {
				e.lastInsertedKey = make([]byte, e.cfg.KeySize)
			}
			copy(e.lastInsertedKey, pageMaxKey)
			e.haveLastInsertedKey = true
		}
	}
	e.spline.Flush()

	if e.useIndex() {
		nextPageID, minPageID, err := sparseindex.Recover(e.indexFile, e.cfg.PageSize, e.cfg.NumIndexPages)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrIO, err)
		}
		e.idxLog.Restore(nextPageID, minPageID)
	}

	if e.useVData() {
		nextPageID, minPageID, currentLoc, minVarRecordID, err := varlog.Recover(e.varFile, e.cfg.PageSize, e.cfg.NumVarPages)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrIO, err)
		}
		e.varLog.Restore(nextPageID, minPageID, currentLoc, minVarRecordID)
	}

	return nil
}
