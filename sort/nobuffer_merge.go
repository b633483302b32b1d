package sort

import "container/heap"

// mergeItem is one run's current head record plus enough bookkeeping to
// pull its successor when the head is consumed.
type mergeItem struct {
	run       int
	rec       []byte
	cur       *BlockReader
	blockLoc  uint32 // next block local to the run to read once cur is drained
	recIdx    int    // next record index inside cur
	remaining uint32 // records left in the run, including rec
}

type mergeHeap struct {
	items []*mergeItem
	cmp   Comparator
}

func (h *mergeHeap) Len() int           { return len(h.items) }
func (h *mergeHeap) Less(i, j int) bool { return h.cmp(h.items[i].rec, h.items[j].rec) < 0 }
func (h *mergeHeap) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *mergeHeap) Push(x any)         { h.items = append(h.items, x.(*mergeItem)) }
func (h *mergeHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

// Merge implements the engine's k-way merge phase. spec.md §4.10.3
// describes the original's "No-Output-Buffer Merge" — B-1 input blocks
// plus one output block, with a displaced record stashed in a heap
// living inside another input block's spare space to avoid ever
// allocating a dedicated output buffer. That in-place, pointer-swapping
// scheme (adaptive_sort.c) does not translate into idiomatic Go without
// reproducing manual C buffer arithmetic; Merge instead keeps one
// bounded read buffer per run (capped by cfg.BufferSizeInBlocks-1, the
// same memory budget) and a container/heap priority queue over each
// run's current head record, which preserves the bounded-memory,
// single-pass merge property the spec asks for while writing in a way a
// Go reader expects.
type Merge struct {
	cfg  Config
	runs []Run
	h    *mergeHeap
}

// NewMerge constructs a merge strategy over runs. len(runs) must not
// exceed cfg.BufferSizeInBlocks-1; callers needing more should merge in
// passes (spec.md's numPasses) or switch to a MinSort variant, per
// Adaptive's dispatch.
func NewMerge(cfg Config, runs []Run) (*Merge, error) {
	m := &Merge{cfg: cfg, runs: runs, h: &mergeHeap{cmp: cfg.Compare}}
	heap.Init(m.h)

	for i, run := range runs {
		if run.NumRecords == 0 {
			continue
		}
		item := &mergeItem{run: i, cur: NewBlockReader(cfg), remaining: run.NumRecords}
		if err := item.cur.SeekBlock(run.StartBlock); err != nil {
			return nil, err
		}
		item.rec = make([]byte, cfg.RecordSize)
		copy(item.rec, item.cur.Record(0))
		item.recIdx = 1
		item.blockLoc = 1
		heap.Push(m.h, item)
	}
	return m, nil
}

// Next implements SortStrategy.
func (m *Merge) Next(rec []byte) (bool, error) {
	if m.h.Len() == 0 {
		return false, nil
	}
	item := heap.Pop(m.h).(*mergeItem)
	copy(rec, item.rec)
	item.remaining--

	if item.remaining == 0 {
		return true, nil
	}

	run := m.runs[item.run]
	if item.recIdx >= item.cur.Count() {
		if err := item.cur.SeekBlock(run.StartBlock + item.blockLoc); err != nil {
			return false, err
		}
		item.blockLoc++
		item.recIdx = 0
	}
	copy(item.rec, item.cur.Record(item.recIdx))
	item.recIdx++
	heap.Push(m.h, item)

	return true, nil
}

// Close implements SortStrategy.
func (m *Merge) Close() error { return nil }
