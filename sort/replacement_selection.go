package sort

import (
	"container/heap"
	"fmt"
)

// InputFunc fills rec with the next record to be sorted and returns true,
// or returns false once the input is exhausted.
type InputFunc func(rec []byte) (bool, error)

// recordHeap is a min-heap of fixed-width records ordered by cfg.Compare,
// the idiomatic replacement for the original's manual reverse-array
// heapify/shiftUp pair (no_output_heap.c). Each entry owns its storage so
// the heap never aliases a caller's buffer across Push/Pop.
type recordHeap struct {
	items [][]byte
	cmp   Comparator
}

func (h *recordHeap) Len() int           { return len(h.items) }
func (h *recordHeap) Less(i, j int) bool { return h.cmp(h.items[i], h.items[j]) < 0 }
func (h *recordHeap) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *recordHeap) Push(x any)         { h.items = append(h.items, x.([]byte)) }
func (h *recordHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

// ReplacementSelection implements run generation (spec.md §4.10.1): a heap
// of capacity (B-1)*recordsPerPage plus a secondary pending list for
// records that arrive smaller than the run's last-emitted key. Runs are
// sealed through a BlockWriter starting at startBlock. It returns the
// sealed runs together with avgDistinct (the running estimate of distinct
// values per run, scaled by 10 to match the cost model in sort.go); the
// run count numSublist is len(runs).
func ReplacementSelection(cfg Config, input InputFunc, startBlock uint32) (runs []Run, avgDistinct int, err error) {
	capacity := (cfg.BufferSizeInBlocks - 1) * cfg.recordsPerPage()
	if capacity < 1 {
		return nil, 0, fmt.Errorf("%w: buffer budget %d blocks / %d records-per-page cannot hold even one replacement-selection heap slot",
			ErrCapacityExceeded, cfg.BufferSizeInBlocks, cfg.recordsPerPage())
	}

	h := &recordHeap{cmp: cfg.Compare}
	heap.Init(h)

	var pending [][]byte

	rec := make([]byte, cfg.RecordSize)
	ok, ferr := input(rec)
	if ferr != nil {
		return nil, 0, ferr
	}
	for ok && h.Len() < capacity {
		item := make([]byte, cfg.RecordSize)
		copy(item, rec)
		heap.Push(h, item)

		ok, ferr = input(rec)
		if ferr != nil {
			return nil, 0, ferr
		}
	}

	if h.Len() == 0 {
		return nil, 0, nil
	}

	w := NewBlockWriter(cfg, startBlock)
	block := startBlock
	rs := newRunState(cfg.RecordSize)

	sealRun := func() error {
		run, err := w.FinishRun(block)
		if err != nil {
			return err
		}
		runs = append(runs, run)
		block = w.BlocksWritten()

		numSublist := len(runs)
		avgDistinct = avgDistinct + (rs.numDistinct-avgDistinct/10)*10/numSublist
		rs.reset()
		return nil
	}

	for h.Len() > 0 {
		top := heap.Pop(h).([]byte)

		key := cfg.key(top)
		if !rs.valid || cfg.Compare(key, cfg.key(rs.lastOutputKey)) != 0 {
			rs.numDistinct++
		}
		if err := w.Append(top); err != nil {
			return nil, 0, err
		}
		rs.record(top)

		if ok {
			belongsToRun := cfg.Compare(cfg.key(rec), cfg.key(rs.lastOutputKey)) >= 0
			if belongsToRun {
				item := make([]byte, cfg.RecordSize)
				copy(item, rec)
				heap.Push(h, item)
			} else {
				item := make([]byte, cfg.RecordSize)
				copy(item, rec)
				pending = append(pending, item)
			}

			ok, ferr = input(rec)
			if ferr != nil {
				return nil, 0, ferr
			}
		}

		if h.Len() == 0 {
			if err := sealRun(); err != nil {
				return nil, 0, err
			}
			for _, item := range pending {
				heap.Push(h, item)
			}
			pending = pending[:0]
		}
	}

	return runs, avgDistinct, nil
}

// runState tracks the sentinel "last key output in the current run" as
// an explicit (key, valid) pair rather than a nil-checked pointer, so a
// fresh run's first record is never compared against stale data.
type runState struct {
	lastOutputKey []byte
	valid         bool
	numDistinct   int
}

func newRunState(recordSize int) *runState {
	return &runState{lastOutputKey: make([]byte, recordSize)}
}

func (rs *runState) record(rec []byte) {
	copy(rs.lastOutputKey, rec)
	rs.valid = true
}

func (rs *runState) reset() {
	rs.valid = false
	rs.numDistinct = 0
}
