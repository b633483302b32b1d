// Package varlog implements the separate append-only log for
// variable-length payloads (spec component C6). Each fixed record in the
// data log stores a 4-byte absolute offset into this log's payload
// stream (page = offset / payload bytes per page); a
// logical variable record is a 4-byte length prefix followed by its
// payload, which may straddle any number of pages. Liveness is tracked
// by a minVarRecordId watermark advanced on wrap-around.
package varlog

import (
	"encoding/binary"
	"fmt"

	"github.com/flashdb/embeddb/pagefile"
)

// pageHeaderSize is sizeof(pageId uint32) + sizeof(prevVarRecordId uint64).
const pageHeaderSize = 4 + 8

// Log is the var-length payload log. It owns no buffers of its own
// beyond what the caller passes in (spec's buffer pool owns the actual
// write/read windows); Log only tracks file-level bookkeeping.
type Log struct {
	file     pagefile.PageFile
	pageSize int

	numPages       uint32
	eraseSizeInPgs uint32

	nextPageID     uint32
	minPageID      uint32
	currentLoc     uint32 // absolute byte offset of the next write
	minVarRecordID uint32 // absolute byte offset; lowest live var record

	// writeBuf mirrors the current, not-yet-flushed tail page.
	writeBuf     []byte
	writeBufLen  int
	headPageID   uint32 // pageId of the page writeBuf will become
	curPageOwner uint32 // offset of the record that owns the open page's header
}

// New constructs a var log bound to file, with capacity numPages pages
// reclaimed eraseSizeInPages at a time.
func New(file pagefile.PageFile, pageSize int, numPages, eraseSizeInPages uint32, writeBuf []byte) *Log {
	return &Log{
		file:           file,
		pageSize:       pageSize,
		numPages:       numPages,
		eraseSizeInPgs: eraseSizeInPages,
		writeBuf:       writeBuf,
	}
}

func (l *Log) payloadCap() int { return l.pageSize - pageHeaderSize }

// freeInCurrentPage reports how many payload bytes remain in the
// currently buffered tail page.
func (l *Log) freeInCurrentPage() int {
	return l.payloadCap() - l.writeBufLen
}

func (l *Log) sealCurrentPage(prevVarRecordID uint64) error {
	binary.LittleEndian.PutUint32(l.writeBuf[0:4], l.headPageID)
	binary.LittleEndian.PutUint64(l.writeBuf[4:12], prevVarRecordID)
	for i := pageHeaderSize + l.writeBufLen; i < l.pageSize; i++ {
		l.writeBuf[i] = 0
	}

	if _, err := l.file.WritePage(l.headPageID, l.pageSize, l.writeBuf); err != nil {
		return fmt.Errorf("varlog: write page %d: %w", l.headPageID, err)
	}

	l.nextPageID++
	l.writeBufLen = 0
	l.headPageID = l.nextPageID
	return l.maybeWrap()
}

func (l *Log) maybeWrap() error {
	if l.nextPageID-l.minPageID < l.numPages {
		return nil
	}
	l.minPageID += l.eraseSizeInPgs

	head := make([]byte, l.pageSize)
	if _, err := l.file.ReadPage(l.minPageID, l.pageSize, head); err != nil {
		return fmt.Errorf("varlog: read new head page %d: %w", l.minPageID, err)
	}
	l.minVarRecordID = uint32(binary.LittleEndian.Uint64(head[4:12]))
	return nil
}

// Write appends one logical var record (length-prefixed payload) and
// returns the absolute byte offset it starts at, for the fixed record to
// reference.
func (l *Log) Write(payload []byte) (uint32, error) {
	recordStart := l.currentLoc
	if l.writeBufLen == 0 {
		l.curPageOwner = recordStart
	}

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	full := append(append([]byte(nil), lenBuf[:]...), payload...)

	for len(full) > 0 {
		free := l.freeInCurrentPage()
		if free == 0 {
			// This record's payload continues onto the fresh page, so the
			// fresh page's header points back to where the record began.
			if err := l.sealCurrentPage(uint64(l.curPageOwner)); err != nil {
				return 0, err
			}
			l.curPageOwner = recordStart
			free = l.freeInCurrentPage()
		}

		n := free
		if n > len(full) {
			n = len(full)
		}
		copy(l.writeBuf[pageHeaderSize+l.writeBufLen:pageHeaderSize+l.writeBufLen+n], full[:n])
		l.writeBufLen += n
		full = full[n:]
		l.currentLoc += uint32(n)
	}

	return recordStart, nil
}

// Flush pads and writes any partially filled tail page.
func (l *Log) Flush() error {
	if l.writeBufLen == 0 {
		return nil
	}
	if err := l.sealCurrentPage(uint64(l.curPageOwner)); err != nil {
		return err
	}
	// The padding holds no record: the next write starts on the fresh page.
	l.currentLoc = l.nextPageID * uint32(l.payloadCap())
	return nil
}

// readAt reads n bytes starting at absolute payload-stream offset off
// into dst, crossing page boundaries as needed using scratch as a
// one-page-wide read buffer.
func (l *Log) readAt(off uint32, dst []byte, scratch []byte) error {
	cap := uint32(l.payloadCap())
	read := 0
	for read < len(dst) {
		pos := off + uint32(read)
		pageID := pos / cap
		inPage := pos % cap

		if _, err := l.file.ReadPage(pageID, l.pageSize, scratch); err != nil {
			return fmt.Errorf("varlog: read page %d: %w", pageID, err)
		}

		avail := int(cap - inPage)
		n := len(dst) - read
		if n > avail {
			n = avail
		}
		copy(dst[read:read+n], scratch[pageHeaderSize+int(inPage):pageHeaderSize+int(inPage)+n])
		read += n
	}
	return nil
}

// Open returns a Reader positioned to stream the logical var record
// starting at offset, or ErrDeleted if offset has fallen below the live
// watermark.
func (l *Log) Open(offset uint32, scratch []byte) (*Reader, error) {
	if offset < l.minVarRecordID {
		return nil, ErrDeleted
	}

	var lenBuf [4]byte
	if err := l.readAt(offset, lenBuf[:], scratch); err != nil {
		return nil, err
	}
	length := binary.LittleEndian.Uint32(lenBuf[:])

	return &Reader{
		log:     l,
		pos:     offset + 4,
		remain:  length,
		scratch: scratch,
	}, nil
}

// Reader streams the payload bytes of one logical var record. It never
// pins engine state: it only remembers an absolute offset, which the
// engine checks liveness of before handing the reader out (spec §4.9).
type Reader struct {
	log     *Log
	pos     uint32
	remain  uint32
	scratch []byte
}

// Read fills up to len(p) bytes, returning 0, nil at end of record.
func (r *Reader) Read(p []byte) (int, error) {
	if r.remain == 0 {
		return 0, nil
	}
	if r.pos < r.log.minVarRecordID {
		return 0, ErrDeleted
	}

	n := len(p)
	if uint32(n) > r.remain {
		n = int(r.remain)
	}
	if err := r.log.readAt(r.pos, p[:n], r.scratch); err != nil {
		return 0, err
	}
	r.pos += uint32(n)
	r.remain -= uint32(n)
	return n, nil
}

// Len reports the number of unread bytes remaining in the record.
func (r *Reader) Len() uint32 { return r.remain }

// MinVarRecordID reports the current live watermark.
func (l *Log) MinVarRecordID() uint32 { return l.minVarRecordID }

// Restore installs counters recovered from an existing var file (see
// Recover) so writes resume exactly where the previous session left off.
func (l *Log) Restore(nextPageID, minPageID, currentLoc, minVarRecordID uint32) {
	l.nextPageID = nextPageID
	l.minPageID = minPageID
	l.currentLoc = currentLoc
	l.minVarRecordID = minVarRecordID
	l.headPageID = nextPageID
	l.curPageOwner = currentLoc
	l.writeBufLen = 0
}

// NextPageID / CurrentLoc / MinPageID expose recovery-relevant counters.
func (l *Log) NextPageID() uint32  { return l.nextPageID }
func (l *Log) MinPageID() uint32   { return l.minPageID }
func (l *Log) CurrentLoc() uint32  { return l.currentLoc }
func (l *Log) NumAvailPages() uint32 {
	return l.numPages - (l.nextPageID - l.minPageID)
}

// Recover reconstructs nextPageID, minPageID, currentLoc and
// minVarRecordID by reading the tail of an existing var file, per spec
// §4.5's recovery algorithm generalized to the var log.
func Recover(file pagefile.PageFile, pageSize int, numPages uint32) (nextPageID, minPageID, currentLoc, minVarRecordID uint32, err error) {
	size, err := file.Size()
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("varlog: recover size: %w", err)
	}
	if size == 0 {
		return 0, 0, 0, 0, nil
	}

	totalPages := uint32(size / int64(pageSize))
	if totalPages == 0 {
		return 0, 0, 0, 0, nil
	}

	buf := make([]byte, pageSize)
	lastID := totalPages - 1
	if _, err := file.ReadPage(lastID, pageSize, buf); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("varlog: recover read last page: %w", err)
	}
	lastPageID := binary.LittleEndian.Uint32(buf[0:4])
	nextPageID = lastPageID + 1
	currentLoc = nextPageID * uint32(pageSize-pageHeaderSize)

	if nextPageID <= numPages {
		minPageID = 0
	} else {
		minPageID = nextPageID - numPages
	}

	headBuf := make([]byte, pageSize)
	headIdx := uint32(0)
	if minPageID > 0 {
		headIdx = minPageID % totalPages
	}
	if _, err := file.ReadPage(headIdx, pageSize, headBuf); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("varlog: recover read head page: %w", err)
	}
	minVarRecordID = uint32(binary.LittleEndian.Uint64(headBuf[4:12]))

	return nextPageID, minPageID, currentLoc, minVarRecordID, nil
}
