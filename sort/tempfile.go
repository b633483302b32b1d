package sort

import (
	"encoding/binary"
	"fmt"
)

// BlockWriter appends fixed-width records to a temp file, one page at a
// time, stamping each sealed page with its run-local block index and
// record count (spec.md §6's sort-temp page layout).
type BlockWriter struct {
	cfg          Config
	buf          []byte
	count        int
	blockIndex   uint32
	blocksOut    uint32
	recordsInRun uint32
}

// NewBlockWriter constructs a writer that appends pages to cfg.TempFile
// starting at page id startBlock.
func NewBlockWriter(cfg Config, startBlock uint32) *BlockWriter {
	return &BlockWriter{
		cfg:        cfg,
		buf:        make([]byte, cfg.PageSize),
		blockIndex: 0,
		blocksOut:  startBlock,
	}
}

func (w *BlockWriter) recordOffset(i int) int { return blockHeaderSize + i*w.cfg.RecordSize }

// Append buffers one record, sealing and writing the current page first
// if it is full.
func (w *BlockWriter) Append(rec []byte) error {
	if w.count >= w.cfg.recordsPerPage() {
		if err := w.sealPage(); err != nil {
			return err
		}
	}
	off := w.recordOffset(w.count)
	copy(w.buf[off:off+w.cfg.RecordSize], rec)
	w.count++
	w.recordsInRun++
	return nil
}

func (w *BlockWriter) sealPage() error {
	binary.LittleEndian.PutUint32(w.buf[0:4], w.blockIndex)
	binary.LittleEndian.PutUint16(w.buf[4:6], uint16(w.count))
	for i := w.recordOffset(w.count); i < w.cfg.PageSize; i++ {
		w.buf[i] = 0
	}
	if _, err := w.cfg.TempFile.WritePage(w.blocksOut, w.cfg.PageSize, w.buf); err != nil {
		return fmt.Errorf("sort: write temp page %d: %w", w.blocksOut, err)
	}
	w.blocksOut++
	w.blockIndex++
	w.count = 0
	return nil
}

// FinishRun seals any partial trailing page and returns the run just
// written, resetting the block-local index and record counter for the
// next run.
func (w *BlockWriter) FinishRun(startBlock uint32) (Run, error) {
	if w.count > 0 {
		if err := w.sealPage(); err != nil {
			return Run{}, err
		}
	}
	run := Run{
		StartBlock: startBlock,
		NumBlocks:  w.blocksOut - startBlock,
		NumRecords: w.recordsInRun,
	}
	w.blockIndex = 0
	w.recordsInRun = 0
	return run, nil
}

// BlocksWritten reports the total number of pages written so far.
func (w *BlockWriter) BlocksWritten() uint32 { return w.blocksOut }

// BlockReader streams records from a run of pages written by BlockWriter,
// tracking the run-local block index so callers can detect a sublist
// boundary the way the original region scan does (index resets to 0).
type BlockReader struct {
	cfg     Config
	buf     []byte
	pageID  uint32
	loaded  bool
	blockID uint32
	count   int
	idx     int
}

// NewBlockReader constructs a reader bound to cfg.TempFile.
func NewBlockReader(cfg Config) *BlockReader {
	return &BlockReader{cfg: cfg, buf: make([]byte, cfg.PageSize)}
}

// SeekBlock loads page id into the reader's buffer.
func (r *BlockReader) SeekBlock(id uint32) error {
	if _, err := r.cfg.TempFile.ReadPage(id, r.cfg.PageSize, r.buf); err != nil {
		return fmt.Errorf("sort: read temp page %d: %w", id, err)
	}
	r.pageID = id
	r.blockID = binary.LittleEndian.Uint32(r.buf[0:4])
	r.count = int(binary.LittleEndian.Uint16(r.buf[4:6]))
	r.idx = 0
	r.loaded = true
	return nil
}

func (r *BlockReader) recordOffset(i int) int { return blockHeaderSize + i*r.cfg.RecordSize }

// Record returns record i of the currently loaded page.
func (r *BlockReader) Record(i int) []byte {
	off := r.recordOffset(i)
	return r.buf[off : off+r.cfg.RecordSize]
}

// Count reports the number of live records in the currently loaded page.
func (r *BlockReader) Count() int { return r.count }

// BlockID reports the run-local block index of the currently loaded page.
func (r *BlockReader) BlockID() uint32 { return r.blockID }

// PageID reports the absolute temp-file page id currently loaded.
func (r *BlockReader) PageID() uint32 { return r.pageID }
