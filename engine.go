// Package embeddb implements an append-only, log-structured key-value
// store for embedded devices with tight RAM budgets and flash-like block
// storage. See SPEC_FULL.md for the full design.
package embeddb

import (
	"encoding/binary"
	"fmt"

	"github.com/flashdb/embeddb/buffer"
	"github.com/flashdb/embeddb/pagefile"
	"github.com/flashdb/embeddb/sparseindex"
	"github.com/flashdb/embeddb/spline"
	"github.com/flashdb/embeddb/varlog"
)

const dataHeaderFixedSize = 4 + 2 // pageId + recordCount

// Engine is the top-level handle every public operation takes by
// reference, per spec.md §9 ("explicit handle", no process-global
// singletons). It is not safe for concurrent use by multiple goroutines
// (spec.md §1/§5 scope out multi-writer concurrency).
type Engine struct {
	cfg Config

	headerSize int
	recordSize int
	bitmapSize int

	pool   *buffer.Pool
	spline *spline.Spline

	varLog *varlog.Log
	idxLog *sparseindex.Log

	dataFile  pagefile.PageFile
	indexFile pagefile.PageFile
	varFile   pagefile.PageFile

	nextDataPageID    uint32
	minDataPageID     uint32
	numAvailDataPages uint32

	minKey              []byte
	lastInsertedKey     []byte
	haveLastInsertedKey bool

	// current write-data page state
	writeCount   int
	writeMinKey  []byte
	writeMaxKey  []byte
	writeMinData []byte
	writeMaxData []byte
	writeBitmap  []byte
}

func (e *Engine) useIndex() bool { return e.cfg.Parameters.has(UseIndex) }
func (e *Engine) useBmap() bool  { return e.cfg.Parameters.has(UseBmap) }
func (e *Engine) useVData() bool { return e.cfg.Parameters.has(UseVData) }

// Init validates cfg, opens the backing files, allocates the buffer
// pool, and either recovers existing state or starts fresh depending on
// ResetData (spec.md §3 "Lifecycle", §4.5 "Recovery").
func Init(cfg Config, opts ...Option) (*Engine, error) {
	for _, o := range opts {
		o(&cfg)
	}

	if cfg.KeySize <= 0 || cfg.DataSize <= 0 || cfg.PageSize <= 0 {
		return nil, fmt.Errorf("%w: keySize/dataSize/pageSize must be positive", ErrInit)
	}
	if cfg.DataFile == nil {
		return nil, fmt.Errorf("%w: data file required", ErrInit)
	}
	if cfg.KeyComparator == nil || cfg.DataComparator == nil {
		return nil, fmt.Errorf("%w: comparators required", ErrInit)
	}

	bitmapSize := 0
	if cfg.Parameters.has(UseBmap) {
		if cfg.Bitmap == nil {
			return nil, fmt.Errorf("%w: bitmap required when UseBmap is set", ErrInit)
		}
		bitmapSize = cfg.Bitmap.Size()
	}

	headerSize := dataHeaderFixedSize + 2*cfg.KeySize + 2*cfg.DataSize + bitmapSize
	recordSize := cfg.KeySize + cfg.DataSize
	if cfg.Parameters.has(UseVData) {
		recordSize += 4
	}
	if headerSize+recordSize > cfg.PageSize {
		return nil, fmt.Errorf("%w: page too small for header+one record", ErrInit)
	}

	e := &Engine{
		cfg:          cfg,
		headerSize:   headerSize,
		recordSize:   recordSize,
		bitmapSize:   bitmapSize,
		dataFile:     cfg.DataFile,
		indexFile:    cfg.IndexFile,
		varFile:      cfg.VarFile,
		writeMinKey:  make([]byte, cfg.KeySize),
		writeMaxKey:  make([]byte, cfg.KeySize),
		writeMinData: make([]byte, cfg.DataSize),
		writeMaxData: make([]byte, cfg.DataSize),
		writeBitmap:  make([]byte, bitmapSize),
		minKey:       make([]byte, cfg.KeySize),
	}

	e.pool = buffer.New(cfg.PageSize, e.useIndex(), e.useVData())
	e.spline = spline.New(cfg.KeySize, cfg.MaxSplineError, cfg.KeyComparator)

	mode := pagefile.ModeReadWrite
	if cfg.Parameters.has(ResetData) {
		mode = pagefile.ModeTruncate
	}

	if !e.dataFile.Open(mode) {
		return nil, fmt.Errorf("%w: data file open failed", ErrInit)
	}
	if e.useIndex() {
		if e.indexFile == nil {
			return nil, fmt.Errorf("%w: index file required when UseIndex is set", ErrInit)
		}
		if !e.indexFile.Open(mode) {
			return nil, fmt.Errorf("%w: index file open failed", ErrInit)
		}
		e.idxLog = sparseindex.New(e.indexFile, cfg.PageSize, bitmapSize, cfg.NumIndexPages, cfg.EraseSizeInPages, e.pool.Slot(buffer.RoleWriteIndex))
	}
	if e.useVData() {
		if e.varFile == nil {
			return nil, fmt.Errorf("%w: var file required when UseVData is set", ErrInit)
		}
		if !e.varFile.Open(mode) {
			return nil, fmt.Errorf("%w: var file open failed", ErrInit)
		}
		e.varLog = varlog.New(e.varFile, cfg.PageSize, cfg.NumVarPages, cfg.EraseSizeInPages, e.pool.Slot(buffer.RoleWriteVar))
	}

	e.numAvailDataPages = cfg.NumDataPages

	if !cfg.Parameters.has(ResetData) {
		if err := e.recover(); err != nil {
			return nil, err
		}
	}

	return e, nil
}

func (e *Engine) dataRecordOffset(i int) int { return e.headerSize + i*e.recordSize }

func (e *Engine) writeBuf() []byte { return e.pool.Slot(buffer.RoleWriteData) }

// Put appends (key, data) to the data log. key must be strictly greater
// than every previously inserted key in this lifetime (spec.md §4.5).
func (e *Engine) Put(key, data []byte) error {
	return e.put(key, data, nil)
}

// PutVar appends (key, data) plus an associated variable-length payload.
// The fixed record stores a varOffset reference into the var log.
func (e *Engine) PutVar(key, data, varData []byte) error {
	if !e.useVData() {
		return fmt.Errorf("%w: var data not enabled", ErrInit)
	}
	return e.put(key, data, varData)
}

func (e *Engine) put(key, data, varData []byte) error {
	if e.haveLastInsertedKey && e.cfg.KeyComparator(key, e.lastInsertedKey) <= 0 {
		return ErrDuplicateKey
	}

	var varOffset uint32
	if e.useVData() {
		off, err := e.varLog.Write(varData)
		if err != nil {
			return fmt.Errorf("embeddb: put var: %w", err)
		}
		varOffset = off
	}

	buf := e.writeBuf()
	off := e.dataRecordOffset(e.writeCount)
	copy(buf[off:off+e.cfg.KeySize], key)
	copy(buf[off+e.cfg.KeySize:off+e.cfg.KeySize+e.cfg.DataSize], data)
	if e.useVData() {
		binary.LittleEndian.PutUint32(buf[off+e.cfg.KeySize+e.cfg.DataSize:off+e.recordSize], varOffset)
	}

	if e.writeCount == 0 {
		copy(e.writeMinKey, key)
	}
	copy(e.writeMaxKey, key)
	if e.writeCount == 0 {
		copy(e.writeMinData, data)
		copy(e.writeMaxData, data)
	} else {
		if e.cfg.DataComparator(data, e.writeMinData) < 0 {
			copy(e.writeMinData, data)
		}
		if e.cfg.DataComparator(data, e.writeMaxData) > 0 {
			copy(e.writeMaxData, data)
		}
	}
	if e.useBmap() {
		e.cfg.Bitmap.Update(data, e.writeBitmap)
	}

	e.writeCount++
	e.haveLastInsertedKey = true
	if cap(e.lastInsertedKey) == 0 {
		e.lastInsertedKey = make([]byte, e.cfg.KeySize)
	}
	copy(e.lastInsertedKey, key)

	if e.dataRecordOffset(e.writeCount+1) > e.cfg.PageSize {
		if err := e.sealDataPage(); err != nil {
			return err
		}
	}

	return nil
}

func (e *Engine) sealDataPage() error {
	buf := e.writeBuf()

	binary.LittleEndian.PutUint32(buf[0:4], e.nextDataPageID)
	binary.LittleEndian.PutUint16(buf[4:6], uint16(e.writeCount))

	o := dataHeaderFixedSize
	copy(buf[o:o+e.cfg.KeySize], e.writeMinKey)
	o += e.cfg.KeySize
	copy(buf[o:o+e.cfg.KeySize], e.writeMaxKey)
	o += e.cfg.KeySize
	copy(buf[o:o+e.cfg.DataSize], e.writeMinData)
	o += e.cfg.DataSize
	copy(buf[o:o+e.cfg.DataSize], e.writeMaxData)
	o += e.cfg.DataSize
	if e.useBmap() {
		copy(buf[o:o+e.bitmapSize], e.writeBitmap)
	}

	for i := e.dataRecordOffset(e.writeCount); i < e.cfg.PageSize; i++ {
		buf[i] = 0
	}

	if _, err := e.dataFile.WritePage(e.nextDataPageID, e.cfg.PageSize, buf); err != nil {
		return fmt.Errorf("%w: write data page %d: %w", ErrIO, e.nextDataPageID, err)
	}

	e.spline.Add(e.writeMinKey, e.nextDataPageID)

	if e.useIndex() {
		if err := e.idxLog.Append(e.nextDataPageID, e.writeBitmap); err != nil {
			return fmt.Errorf("%w: %w", ErrIO, err)
		}
	}

	e.nextDataPageID++
	e.writeCount = 0
	for i := range e.writeBitmap {
		e.writeBitmap[i] = 0
	}

	return e.maybeWrapData()
}

func (e *Engine) maybeWrapData() error {
	if e.nextDataPageID-e.minDataPageID <= e.cfg.NumDataPages {
		e.numAvailDataPages = e.cfg.NumDataPages - (e.nextDataPageID - e.minDataPageID)
		return nil
	}

	e.minDataPageID += e.cfg.EraseSizeInPages

	headBuf := make([]byte, e.cfg.PageSize)
	if _, err := e.dataFile.ReadPage(e.minDataPageID, e.cfg.PageSize, headBuf); err != nil {
		return fmt.Errorf("%w: read new head page %d: %w", ErrIO, e.minDataPageID, err)
	}
	copy(e.minKey, headBuf[dataHeaderFixedSize:dataHeaderFixedSize+e.cfg.KeySize])
	e.spline.Trim(e.minKey)

	e.numAvailDataPages = e.cfg.NumDataPages - (e.nextDataPageID - e.minDataPageID)
	return nil
}

// Flush pads and writes any partially filled write-data page, flushes
// the index and var logs, and issues file.Flush() on every open file,
// preserving the ordering spec.md §4.5 requires (data before its index
// entry is durable).
func (e *Engine) Flush() error {
	if e.writeCount > 0 {
		if err := e.sealDataPage(); err != nil {
			return err
		}
	}
	if err := e.dataFile.Flush(); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}

	if e.useIndex() {
		if err := e.idxLog.Flush(); err != nil {
			return fmt.Errorf("%w: %w", ErrIO, err)
		}
		if err := e.indexFile.Flush(); err != nil {
			return fmt.Errorf("%w: %w", ErrIO, err)
		}
	}

	if e.useVData() {
		if err := e.varLog.Flush(); err != nil {
			return fmt.Errorf("%w: %w", ErrIO, err)
		}
		if err := e.varFile.Flush(); err != nil {
			return fmt.Errorf("%w: %w", ErrIO, err)
		}
	}

	return nil
}

// Close flushes pending state and releases the backing files.
func (e *Engine) Close() error {
	if err := e.Flush(); err != nil {
		return err
	}
	if err := e.dataFile.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	if e.useIndex() {
		if err := e.indexFile.Close(); err != nil {
			return fmt.Errorf("%w: %w", ErrIO, err)
		}
	}
	if e.useVData() {
		if err := e.varFile.Close(); err != nil {
			return fmt.Errorf("%w: %w", ErrIO, err)
		}
	}
	return nil
}

// NextDataPageID, MinDataPageID, MinKey, NumAvailDataPages expose the
// counters spec.md §8's boundary scenarios assert against.
func (e *Engine) NextDataPageID() uint32    { return e.nextDataPageID }
func (e *Engine) MinDataPageID() uint32     { return e.minDataPageID }
func (e *Engine) MinKey() []byte            { return e.minKey }
func (e *Engine) NumAvailDataPages() uint32 { return e.numAvailDataPages }
func (e *Engine) HeaderSize() int           { return e.headerSize }
func (e *Engine) RecordSize() int           { return e.recordSize }

func (e *Engine) CurrentVarLoc() uint32 {
	if e.varLog == nil {
		return 0
	}
	return e.varLog.CurrentLoc()
}
func (e *Engine) NextVarPageID() uint32 {
	if e.varLog == nil {
		return 0
	}
	return e.varLog.NextPageID()
}
func (e *Engine) NumAvailVarPages() uint32 {
	if e.varLog == nil {
		return 0
	}
	return e.varLog.NumAvailPages()
}
func (e *Engine) MinVarRecordID() uint32 {
	if e.varLog == nil {
		return 0
	}
	return e.varLog.MinVarRecordID()
}
