// Package sparseindex implements the sparse index log (spec component
// C7): one bitmap entry per sealed data page, letting range queries skip
// whole data pages without reading them. Page layout mirrors the
// teacher's sst index block (a dedicated stream of fixed headers plus a
// packed array of fixed-width entries), generalized from (key, offset,
// size) triples to (bitmapSize)-byte bitmaps keyed implicitly by
// position.
package sparseindex

import (
	"encoding/binary"
	"fmt"

	"github.com/flashdb/embeddb/pagefile"
)

// headerSize is sizeof(pageId uint32) + sizeof(minDataPageId uint32) +
// sizeof(count uint16).
const headerSize = 4 + 4 + 2

// Log appends one bitmap per sealed data page.
type Log struct {
	file       pagefile.PageFile
	pageSize   int
	bitmapSize int
	entriesCap int // entries per index page

	numPages       uint32
	eraseSizeInPgs uint32

	nextPageID uint32
	minPageID  uint32

	writeBuf     []byte
	writeCount   int
	minDataPgID  uint32 // minDataPageId covered by the currently buffered page
}

// New constructs a sparse index log. writeBuf must be exactly pageSize
// bytes.
func New(file pagefile.PageFile, pageSize, bitmapSize int, numPages, eraseSizeInPages uint32, writeBuf []byte) *Log {
	entriesCap := (pageSize - headerSize) / bitmapSize
	return &Log{
		file:           file,
		pageSize:       pageSize,
		bitmapSize:     bitmapSize,
		entriesCap:     entriesCap,
		numPages:       numPages,
		eraseSizeInPgs: eraseSizeInPages,
		writeBuf:       writeBuf,
	}
}

func (l *Log) entryOffset(i int) int { return headerSize + i*l.bitmapSize }

func (l *Log) sealCurrentPage() error {
	binary.LittleEndian.PutUint32(l.writeBuf[0:4], l.nextPageID)
	binary.LittleEndian.PutUint32(l.writeBuf[4:8], l.minDataPgID)
	binary.LittleEndian.PutUint16(l.writeBuf[8:10], uint16(l.writeCount))
	for i := l.entryOffset(l.writeCount); i < l.pageSize; i++ {
		l.writeBuf[i] = 0
	}

	if _, err := l.file.WritePage(l.nextPageID, l.pageSize, l.writeBuf); err != nil {
		return fmt.Errorf("sparseindex: write page %d: %w", l.nextPageID, err)
	}

	l.nextPageID++
	l.writeCount = 0
	return l.maybeWrap()
}

func (l *Log) maybeWrap() error {
	if l.nextPageID-l.minPageID < l.numPages {
		return nil
	}
	l.minPageID += l.eraseSizeInPgs
	return nil
}

// Append adds one data page's bitmap to the index. dataPageID is the
// page id the bitmap summarizes.
func (l *Log) Append(dataPageID uint32, bm []byte) error {
	if l.writeCount == 0 {
		l.minDataPgID = dataPageID
	}
	if l.writeCount >= l.entriesCap {
		if err := l.sealCurrentPage(); err != nil {
			return err
		}
		l.minDataPgID = dataPageID
	}

	off := l.entryOffset(l.writeCount)
	copy(l.writeBuf[off:off+l.bitmapSize], bm)
	l.writeCount++
	return nil
}

// Flush pads and writes any partially filled index page.
func (l *Log) Flush() error {
	if l.writeCount == 0 {
		return nil
	}
	return l.sealCurrentPage()
}

// Scan reads every sealed index page and invokes fn for each entry with
// the data page id it summarizes and its bitmap bytes; fn returning
// false stops the scan early. readBuf must be pageSize bytes.
func (l *Log) Scan(readBuf []byte, fn func(dataPageID uint32, bm []byte) bool) error {
	for id := l.minPageID; id < l.nextPageID; id++ {
		if _, err := l.file.ReadPage(id, l.pageSize, readBuf); err != nil {
			return fmt.Errorf("sparseindex: read page %d: %w", id, err)
		}
		minDataPageID := binary.LittleEndian.Uint32(readBuf[4:8])
		count := int(binary.LittleEndian.Uint16(readBuf[8:10]))
		for i := 0; i < count; i++ {
			off := l.entryOffset(i)
			if !fn(minDataPageID+uint32(i), readBuf[off:off+l.bitmapSize]) {
				return nil
			}
		}
	}
	return nil
}

// Restore installs counters recovered from an existing index file (see
// Recover) so appends resume exactly where the previous session left off.
func (l *Log) Restore(nextPageID, minPageID uint32) {
	l.nextPageID = nextPageID
	l.minPageID = minPageID
	l.writeCount = 0
}

// NextPageID / MinPageID expose recovery-relevant counters.
func (l *Log) NextPageID() uint32    { return l.nextPageID }
func (l *Log) MinPageID() uint32     { return l.minPageID }
func (l *Log) NumAvailPages() uint32 { return l.numPages - (l.nextPageID - l.minPageID) }

// Recover reconstructs nextPageID/minPageID by inspecting the tail of an
// existing index file, per spec §4.5 generalized to the sparse index.
func Recover(file pagefile.PageFile, pageSize int, numPages uint32) (nextPageID, minPageID uint32, err error) {
	size, err := file.Size()
	if err != nil {
		return 0, 0, fmt.Errorf("sparseindex: recover size: %w", err)
	}
	if size == 0 {
		return 0, 0, nil
	}

	totalPages := uint32(size / int64(pageSize))
	if totalPages == 0 {
		return 0, 0, nil
	}

	buf := make([]byte, pageSize)
	if _, err := file.ReadPage(totalPages-1, pageSize, buf); err != nil {
		return 0, 0, fmt.Errorf("sparseindex: recover read last page: %w", err)
	}
	lastPageID := binary.LittleEndian.Uint32(buf[0:4])
	nextPageID = lastPageID + 1

	if nextPageID <= numPages {
		minPageID = 0
	} else {
		minPageID = nextPageID - numPages
	}

	return nextPageID, minPageID, nil
}
