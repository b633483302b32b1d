package sort

import "github.com/bits-and-blooms/bitset"

// sublistCursor tracks one sublist's current read position: the block
// local to its run and the record index within that block.
type sublistCursor struct {
	blockLocal uint32
	recIdx     int
	remaining  uint32 // records left to emit in this sublist, including the one at recIdx
}

// MinSortSublist implements Flash MinSort, sorted-sublist variant
// (spec.md §4.10.5). Unlike the original, which rediscovers sublist
// boundaries by scanning backward from the end of the temp file looking
// for the block-index reset, this reuses the Run metadata already known
// from replacement selection (StartBlock/NumBlocks/NumRecords), so
// initialization is a single forward read of each sublist's first block.
type MinSortSublist struct {
	cfg  Config
	runs []Run
	r    *BlockReader

	min    [][]byte
	minSet *bitset.BitSet
	cursor []sublistCursor

	current   []byte
	haveCur   bool
	regionIdx int
	resumeIdx int // > 0 means: resume regionIdx at this record index in its current block
}

// NewMinSortSublist constructs a sorted-sublist MinSort strategy over
// runs, reading cfg.TempFile for block contents as needed.
func NewMinSortSublist(cfg Config, runs []Run) (*MinSortSublist, error) {
	ms := &MinSortSublist{
		cfg:     cfg,
		runs:    runs,
		r:       NewBlockReader(cfg),
		min:     make([][]byte, len(runs)),
		minSet:  bitset.New(uint(len(runs))),
		cursor:  make([]sublistCursor, len(runs)),
		current: make([]byte, cfg.KeySize),
	}
	for i, run := range runs {
		ms.min[i] = make([]byte, cfg.KeySize)
		ms.cursor[i] = sublistCursor{remaining: run.NumRecords}
		if run.NumRecords == 0 {
			continue
		}
		if err := ms.r.SeekBlock(run.StartBlock); err != nil {
			return nil, err
		}
		copy(ms.min[i], ms.cfg.key(ms.r.Record(0)))
		ms.minSet.Set(uint(i))
	}
	return ms, nil
}

// Next implements SortStrategy.
func (ms *MinSortSublist) Next(rec []byte) (bool, error) {
	if ms.resumeIdx == 0 {
		ms.haveCur = false
		found := false
		for i := range ms.runs {
			if !ms.minSet.Test(uint(i)) {
				continue
			}
			if !ms.haveCur || ms.cfg.Compare(ms.min[i], ms.current) < 0 {
				copy(ms.current, ms.min[i])
				ms.regionIdx = i
				ms.haveCur = true
				found = true
			}
		}
		if !found {
			return false, nil
		}
	}

	i := ms.regionIdx
	run := ms.runs[i]
	cur := &ms.cursor[i]

	if err := ms.r.SeekBlock(run.StartBlock + cur.blockLocal); err != nil {
		return false, err
	}
	copy(rec, ms.r.Record(cur.recIdx))

	cur.recIdx++
	cur.remaining--
	ms.resumeIdx = 0

	if cur.remaining == 0 {
		ms.minSet.Clear(uint(i))
		return true, nil
	}

	if cur.recIdx >= ms.r.Count() {
		// Crossed into the sublist's next block. Its new minimum takes
		// over, but resuming immediately on this sublist is not assumed;
		// the next call re-scans every sublist's minimum as usual.
		cur.blockLocal++
		cur.recIdx = 0
		if err := ms.r.SeekBlock(run.StartBlock + cur.blockLocal); err != nil {
			return false, err
		}
		copy(ms.min[i], ms.cfg.key(ms.r.Record(cur.recIdx)))
		ms.minSet.Set(uint(i))
		return true, nil
	}

	copy(ms.min[i], ms.cfg.key(ms.r.Record(cur.recIdx)))
	ms.minSet.Set(uint(i))

	if ms.haveCur && ms.cfg.Compare(ms.min[i], ms.current) == 0 {
		ms.resumeIdx = cur.recIdx
	}

	return true, nil
}

// Close implements SortStrategy.
func (ms *MinSortSublist) Close() error { return nil }
