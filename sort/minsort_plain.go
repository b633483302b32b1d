package sort

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// MinSortPlain implements Flash MinSort, plain variant (spec.md §4.10.4):
// the input is divided into regions, one key-width minimum is kept per
// region in memory, and next() repeatedly finds the region currently
// holding the smallest key, drains every record equal to it, and tracks
// that region's next-smallest value for the following call. No sublist
// structure is assumed; it works directly over a flat run of blocks.
type MinSortPlain struct {
	cfg Config
	r   *BlockReader

	startBlock uint32
	numBlocks  uint32
	numRecords uint64

	recordsPerBlock uint32
	blocksPerRegion uint32
	numRegions      uint32

	min     [][]byte
	minInit *bitset.BitSet

	current    []byte
	haveCur    bool
	next       []byte
	haveNext   bool
	regionIdx  uint32
	nextIdx    uint64 // absolute record index within file to resume scanning from

	lastLoadedBlock uint32
	haveLastLoaded  bool
}

// maxRegions mirrors the original's memory-budget derivation: after
// reserving one input block and one output block, and the current/next
// key scratch, every remaining byte of the buffer budget can hold one
// key-width minimum plus a liveness bit.
func (cfg Config) maxRegions() uint32 {
	avail := (cfg.BufferSizeInBlocks-2)*cfg.PageSize - 2*cfg.KeySize
	if avail < cfg.KeySize {
		return 1
	}
	n := avail / (cfg.KeySize + 1)
	if n < 1 {
		return 1
	}
	return uint32(n)
}

// NewMinSortPlain constructs a plain Flash MinSort strategy over the
// numBlocks pages starting at startBlock, holding numRecords live
// records in total.
func NewMinSortPlain(cfg Config, startBlock, numBlocks uint32, numRecords uint64) (*MinSortPlain, error) {
	recordsPerBlock := uint32(cfg.recordsPerPage())
	maxRegions := cfg.maxRegions()
	blocksPerRegion := ceilDiv(numBlocks, maxRegions)
	if blocksPerRegion == 0 {
		blocksPerRegion = 1
	}
	numRegions := ceilDiv(numBlocks, blocksPerRegion)

	ms := &MinSortPlain{
		cfg:             cfg,
		r:               NewBlockReader(cfg),
		startBlock:      startBlock,
		numBlocks:       numBlocks,
		numRecords:      numRecords,
		recordsPerBlock: recordsPerBlock,
		blocksPerRegion: blocksPerRegion,
		numRegions:      numRegions,
		min:             make([][]byte, numRegions),
		minInit:         bitset.New(uint(numRegions)),
		current:         make([]byte, cfg.KeySize),
		next:            make([]byte, cfg.KeySize),
	}
	for i := range ms.min {
		ms.min[i] = make([]byte, cfg.KeySize)
	}
	if err := ms.scanRegionMinimums(); err != nil {
		return nil, err
	}
	return ms, nil
}

func ceilDiv(a, b uint32) uint32 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

func (ms *MinSortPlain) loadBlock(blockLocal uint32) error {
	if ms.haveLastLoaded && ms.lastLoadedBlock == blockLocal {
		return nil
	}
	if err := ms.r.SeekBlock(ms.startBlock + blockLocal); err != nil {
		return err
	}
	ms.lastLoadedBlock = blockLocal
	ms.haveLastLoaded = true
	return nil
}

func (ms *MinSortPlain) recordIndex(blockLocal uint32, i int) uint64 {
	return uint64(blockLocal)*uint64(ms.recordsPerBlock) + uint64(i)
}

func (ms *MinSortPlain) scanRegionMinimums() error {
	for region := uint32(0); region < ms.numRegions; region++ {
		ms.minInit.Set(uint(region))
		first := true

		regionStart := region * ms.blocksPerRegion
		regionEnd := regionStart + ms.blocksPerRegion
		if regionEnd > ms.numBlocks {
			regionEnd = ms.numBlocks
		}

		for b := regionStart; b < regionEnd; b++ {
			if err := ms.loadBlock(b); err != nil {
				return err
			}
			for i := 0; i < ms.r.Count(); i++ {
				if ms.recordIndex(b, i) >= ms.numRecords {
					break
				}
				key := ms.cfg.key(ms.r.Record(i))
				if first || ms.cfg.Compare(key, ms.min[region]) < 0 {
					copy(ms.min[region], key)
					first = false
				}
			}
		}
		if first {
			ms.minInit.Clear(uint(region))
		}
	}
	return nil
}

// Next implements SortStrategy.
func (ms *MinSortPlain) Next(rec []byte) (bool, error) {
	if ms.nextIdx == 0 {
		ms.haveNext = false
		ms.haveCur = false
		ms.regionIdx = 0
		found := false
		for i := uint32(0); i < ms.numRegions; i++ {
			if !ms.minInit.Test(uint(i)) {
				continue
			}
			if !ms.haveCur || ms.cfg.Compare(ms.min[i], ms.current) < 0 {
				copy(ms.current, ms.min[i])
				ms.haveCur = true
				ms.regionIdx = i
				found = true
			}
		}
		if !found {
			return false, nil
		}
	}

	regionStart := ms.regionIdx * ms.blocksPerRegion
	regionEnd := regionStart + ms.blocksPerRegion
	if regionEnd > ms.numBlocks {
		regionEnd = ms.numBlocks
	}

	startIdx := ms.nextIdx
	startBlockLocal := regionStart
	startRecInBlock := 0
	if startIdx != 0 {
		startBlockLocal = uint32(startIdx / uint64(ms.recordsPerBlock))
		startRecInBlock = int(startIdx % uint64(ms.recordsPerBlock))
	}

	ms.nextIdx = 0
	foundTuple := false

	for b := startBlockLocal; b < regionEnd; b++ {
		if err := ms.loadBlock(b); err != nil {
			return false, err
		}
		from := 0
		if b == startBlockLocal {
			from = startRecInBlock
		}
		for i := from; i < ms.r.Count(); i++ {
			if ms.recordIndex(b, i) >= ms.numRecords {
				break
			}
			key := ms.cfg.key(ms.r.Record(i))
			cmp := ms.cfg.Compare(key, ms.current)
			if cmp == 0 {
				if !foundTuple {
					copy(rec, ms.r.Record(i))
					foundTuple = true
					continue
				}
				// A later match in this scan means resume here next call.
				ms.nextIdx = ms.recordIndex(b, i)
				ms.updateRegionMin(ms.regionIdx)
				return true, nil
			}
			if cmp > 0 && (!ms.haveNext || ms.cfg.Compare(key, ms.next) < 0) {
				copy(ms.next, key)
				ms.haveNext = true
			}
		}
	}

	ms.updateRegionMin(ms.regionIdx)
	if !foundTuple {
		return false, fmt.Errorf("sort: MinSort plain region %d exhausted without match", ms.regionIdx)
	}
	return true, nil
}

func (ms *MinSortPlain) updateRegionMin(region uint32) {
	if ms.nextIdx != 0 {
		return
	}
	if ms.haveNext {
		copy(ms.min[region], ms.next)
	} else {
		ms.minInit.Clear(uint(region))
	}
}

// Close implements SortStrategy.
func (ms *MinSortPlain) Close() error { return nil }
