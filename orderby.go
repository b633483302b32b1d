package embeddb

import (
	"errors"
	"fmt"

	"github.com/flashdb/embeddb/pagefile"
	"github.com/flashdb/embeddb/sort"
)

// OrderByCursor streams (key, data) pairs in ascending key order, the
// output of the external sort engine (C9).
type OrderByCursor struct {
	strategy sort.SortStrategy
	rec      []byte
	keySize  int
}

// Key returns the current record's key. Valid only after Next returns true.
func (c *OrderByCursor) Key() []byte { return c.rec[:c.keySize] }

// Data returns the current record's fixed-size data. Valid only after
// Next returns true.
func (c *OrderByCursor) Data() []byte { return c.rec[c.keySize:] }

// Next advances the cursor and reports whether a record is available.
func (c *OrderByCursor) Next() (bool, error) {
	return c.strategy.Next(c.rec)
}

// Close releases the cursor's strategy resources.
func (c *OrderByCursor) Close() error { return c.strategy.Close() }

// OrderBy sorts every record matching filter by key, spilling to
// tempFile, and returns a cursor over the result (spec.md §4.10). The
// caller owns tempFile's lifetime; it must support at least
// bufferSizeInBlocks pages of scratch space beyond the sorted output.
func (e *Engine) OrderBy(filter Filter, tempFile pagefile.PageFile, bufferSizeInBlocks, writeToReadRatio int) (*OrderByCursor, error) {
	if !tempFile.Open(pagefile.ModeTruncate) {
		return nil, fmt.Errorf("%w: temp file open failed", ErrIO)
	}

	recordSize := e.cfg.KeySize + e.cfg.DataSize
	cfg := sort.Config{
		RecordSize:         recordSize,
		KeySize:            e.cfg.KeySize,
		KeyOffset:          0,
		PageSize:           e.cfg.PageSize,
		Compare:            sort.Comparator(e.cfg.KeyComparator),
		TempFile:           tempFile,
		BufferSizeInBlocks: bufferSizeInBlocks,
		WriteToReadRatio:   writeToReadRatio,
	}

	numRecords, numPages, err := e.countMatches(filter)
	if err != nil {
		return nil, err
	}
	if numRecords == 0 {
		return &OrderByCursor{strategy: sortEmptyStrategy{}, rec: make([]byte, recordSize), keySize: e.cfg.KeySize}, nil
	}

	it, err := e.InitIterator(filter)
	if err != nil {
		return nil, err
	}
	input := func(rec []byte) (bool, error) {
		ok, err := it.Next()
		if err != nil || !ok {
			return false, err
		}
		copy(rec[:e.cfg.KeySize], it.Key())
		copy(rec[e.cfg.KeySize:], it.Data())
		return true, nil
	}

	strategy, err := sort.Adaptive(cfg, input, numRecords, numPages, 0)
	if err != nil {
		if errors.Is(err, sort.ErrCapacityExceeded) {
			return nil, fmt.Errorf("%w: %w", ErrCapacityExceeded, err)
		}
		return nil, err
	}

	return &OrderByCursor{strategy: strategy, rec: make([]byte, recordSize), keySize: e.cfg.KeySize}, nil
}

// countMatches runs filter once to size the sort engine's cost model
// inputs before the real, record-streaming pass.
func (e *Engine) countMatches(filter Filter) (numRecords uint64, numPages int, err error) {
	it, err := e.InitIterator(filter)
	if err != nil {
		return 0, 0, err
	}
	pages := make(map[uint32]struct{})
	for {
		ok, err := it.Next()
		if err != nil {
			return 0, 0, err
		}
		if !ok {
			break
		}
		numRecords++
		pages[it.curPage] = struct{}{}
	}
	return numRecords, len(pages), nil
}

// sortEmptyStrategy serves an already-empty OrderBy result without
// touching tempFile.
type sortEmptyStrategy struct{}

func (sortEmptyStrategy) Next([]byte) (bool, error) { return false, nil }
func (sortEmptyStrategy) Close() error              { return nil }
