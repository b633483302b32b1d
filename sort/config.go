// Package sort implements the ORDER BY external sort engine (spec
// component C9): a replacement-selection run generator, an
// estimate-driven optimistic Flash MinSort shortcut, an adaptive
// MinSort-vs-merge decision once real run statistics are known, two
// Flash MinSort variants (plain and sorted-sublist), a no-output-buffer
// style merge, and an in-memory quicksort used to order a single page.
// Every strategy is exposed behind the same Next/Close shape so the
// driver in sort.go never branches on algorithm identity at the call
// site.
package sort

import "github.com/flashdb/embeddb/pagefile"

// Comparator orders two fixed-width records the same way bitmap.Comparator
// orders keys; sort deliberately defines its own alias rather than
// importing the bitmap package; it never compares bitmaps.
type Comparator func(a, b []byte) int

// blockHeaderSize is sizeof(sublistBlockIndex uint32) + sizeof(recordCount uint16),
// the fixed header every sort-temp page carries (spec.md §6).
const blockHeaderSize = 4 + 2

// Config describes the fixed-width records the engine sorts and the
// page geometry of the temp file they are staged in.
type Config struct {
	RecordSize int
	KeySize    int
	KeyOffset  int
	PageSize   int
	Compare    Comparator

	// TempFile backs both run generation output and merge scratch space.
	TempFile pagefile.PageFile

	// BufferSizeInBlocks is B, the working-memory budget in pages.
	BufferSizeInBlocks int

	// WriteToReadRatio is W (spec.md §4.10.2): write cost divided by read
	// cost, multiplied by 10.
	WriteToReadRatio int
}

func (c Config) recordsPerPage() int {
	return (c.PageSize - blockHeaderSize) / c.RecordSize
}

func (c Config) key(rec []byte) []byte {
	return rec[c.KeyOffset : c.KeyOffset+c.KeySize]
}

// Run describes one sorted, contiguous run of pages inside the temp file.
type Run struct {
	StartBlock uint32
	NumBlocks  uint32
	NumRecords uint32
}

// SortStrategy is the uniform capability every sort sub-algorithm
// exposes, so Adaptive's caller never needs to know which one was
// chosen. Initialization (scanning region minimums, building the first
// heap, seeking each run's first block) happens in each strategy's
// constructor rather than a separate Init method: a freshly constructed
// NewMinSortPlain/NewMerge/etc. is already positioned to serve its first
// Next call, which is the idiomatic Go shape for what the original
// expresses as an explicit init_* call before the first next_*.
type SortStrategy interface {
	// Next fills rec with the next record in sorted order and returns
	// true, or returns false when the strategy is exhausted.
	Next(rec []byte) (bool, error)
	// Close releases any resources the strategy holds.
	Close() error
}
