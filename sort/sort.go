package sort

import (
	"fmt"
	"math"
)

// costModel computes nobCost, the predicted cost of a no-output-buffer
// merge over numPages pages with a B-page buffer budget, per spec.md
// §4.10.2: ceil(log_B numPages) * (10+W)/10.
func costModel(numPages, bufferSizeInBlocks, writeToReadRatio int) int {
	if numPages <= 1 || bufferSizeInBlocks <= 1 {
		return 0
	}
	numPasses := int(math.Ceil(math.Log(float64(numPages)) / math.Log(float64(bufferSizeInBlocks))))
	return numPasses * (10 + writeToReadRatio) / 10
}

// sublistMemoryBound is the maximum number of sublists whose (min_key,
// file_offset, min_set) state still fits in a (B-1)-page budget, per
// spec.md §4.10.3.
func sublistMemoryBound(cfg Config) int {
	return (cfg.BufferSizeInBlocks - 1) * cfg.PageSize / (cfg.KeySize + 4)
}

// Adaptive runs the full external sort pipeline (spec.md §4.10): it
// first tries the optimistic Flash MinSort shortcut with an a-priori
// avgDistinct of 16, falls back to replacement-selection run generation
// otherwise, then picks a merge strategy based on the actual run
// statistics. input feeds untouched records; numRecords and numPages
// describe the full input. startBlock is the first free page of
// cfg.TempFile. It returns the chosen SortStrategy, positioned to serve
// its first Next() call.
func Adaptive(cfg Config, input InputFunc, numRecords uint64, numPages int, startBlock uint32) (SortStrategy, error) {
	nobCost := costModel(numPages, cfg.BufferSizeInBlocks, cfg.WriteToReadRatio)

	const optimisticAvgDistinct = 16
	if optimisticAvgDistinct < nobCost {
		// Stage the input unsorted from startBlock so MinSort can scan it.
		w := NewBlockWriter(cfg, startBlock)
		rec := make([]byte, cfg.RecordSize)
		ok, err := input(rec)
		for ; ok && err == nil; ok, err = input(rec) {
			if err = w.Append(rec); err != nil {
				break
			}
		}
		if err != nil {
			return nil, err
		}
		staged, err := w.FinishRun(startBlock)
		if err != nil {
			return nil, err
		}
		ms, err := NewMinSortPlain(cfg, startBlock, staged.NumBlocks, uint64(staged.NumRecords))
		if err != nil {
			return nil, err
		}
		return ms, nil
	}

	runs, avgDistinct, err := ReplacementSelection(cfg, input, startBlock)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return &emptyStrategy{}, nil
	}
	if len(runs) == 1 {
		return newRunReader(cfg, runs[0]), nil
	}

	numSublist := len(runs)
	nobCost = costModel(numSublist, cfg.BufferSizeInBlocks, cfg.WriteToReadRatio)

	if numSublist <= sublistMemoryBound(cfg) && avgDistinct/10 < nobCost {
		ms, err := NewMinSortSublist(cfg, runs)
		if err != nil {
			return nil, err
		}
		return ms, nil
	}

	if avgDistinct/10 < nobCost {
		totalBlocks := uint32(0)
		for _, r := range runs {
			totalBlocks += r.NumBlocks
		}
		ms, err := NewMinSortPlain(cfg, runs[0].StartBlock, totalBlocks, numRecords)
		if err != nil {
			return nil, err
		}
		return ms, nil
	}

	return mergeWithLateBinding(cfg, runs)
}

// mergeWithLateBinding runs the bounded k-way merge over runs, splitting
// into multiple passes when len(runs) exceeds the buffer budget, and
// switches to sublist MinSort mid-merge once the remaining run count
// falls into [32, 64] and fits sublistMemoryBound (spec.md §4.10.3's
// late-binding switch). No cost comparison is made at that point: inside
// the band, the memory bound alone decides the switch.
func mergeWithLateBinding(cfg Config, runs []Run) (SortStrategy, error) {
	maxFanIn := cfg.BufferSizeInBlocks - 1
	if maxFanIn < 2 {
		return nil, fmt.Errorf("%w: buffer budget %d blocks cannot support even a two-way merge",
			ErrCapacityExceeded, cfg.BufferSizeInBlocks)
	}

	nextFreeBlock := uint32(0)
	for _, r := range runs {
		if end := r.StartBlock + r.NumBlocks; end > nextFreeBlock {
			nextFreeBlock = end
		}
	}

	for len(runs) > maxFanIn {
		if len(runs) >= 32 && len(runs) <= 64 {
			if bound := sublistMemoryBound(cfg); len(runs) <= bound {
				return NewMinSortSublist(cfg, runs)
			}
		}

		batch := runs[:maxFanIn]
		rest := runs[maxFanIn:]

		merged, err := mergeRunsToRun(cfg, batch, nextFreeBlock)
		if err != nil {
			return nil, err
		}
		nextFreeBlock = merged.StartBlock + merged.NumBlocks
		runs = append([]Run{merged}, rest...)
	}

	return NewMerge(cfg, runs)
}

// mergeRunsToRun merges batch via a bounded k-way merge, writing the
// combined, still-sorted output as one new contiguous run starting at
// startBlock. Used when more runs survive than fit in a single merge
// pass's fan-in.
func mergeRunsToRun(cfg Config, batch []Run, startBlock uint32) (Run, error) {
	m, err := NewMerge(cfg, batch)
	if err != nil {
		return Run{}, err
	}
	w := NewBlockWriter(cfg, startBlock)
	rec := make([]byte, cfg.RecordSize)
	for {
		ok, err := m.Next(rec)
		if err != nil {
			return Run{}, err
		}
		if !ok {
			break
		}
		if err := w.Append(rec); err != nil {
			return Run{}, err
		}
	}
	return w.FinishRun(startBlock)
}

// runReader streams the single run case directly, without a heap.
type runReader struct {
	cfg       Config
	run       Run
	r         *BlockReader
	loaded    bool
	blockLoc  uint32
	recIdx    int
	remaining uint32
}

func newRunReader(cfg Config, run Run) *runReader {
	return &runReader{cfg: cfg, run: run, r: NewBlockReader(cfg), remaining: run.NumRecords}
}

func (rr *runReader) Next(rec []byte) (bool, error) {
	if rr.remaining == 0 {
		return false, nil
	}
	if !rr.loaded {
		if err := rr.r.SeekBlock(rr.run.StartBlock); err != nil {
			return false, err
		}
		rr.loaded = true
	}
	if rr.recIdx >= rr.r.Count() {
		rr.blockLoc++
		if err := rr.r.SeekBlock(rr.run.StartBlock + rr.blockLoc); err != nil {
			return false, err
		}
		rr.recIdx = 0
	}
	copy(rec, rr.r.Record(rr.recIdx))
	rr.recIdx++
	rr.remaining--
	return true, nil
}

func (rr *runReader) Close() error { return nil }

// emptyStrategy serves an empty input.
type emptyStrategy struct{}

func (emptyStrategy) Next([]byte) (bool, error) { return false, nil }
func (emptyStrategy) Close() error              { return nil }
