// Package pagefile abstracts block-addressable storage behind the
// synchronous, fail-closed, page-granular contract the engine consumes
// (spec component C1). Physical media drivers (SD card, SPI NOR/NAND
// dataflash, FRAM) are out of scope; this package only ships an
// in-memory implementation for tests and a plain-file implementation
// for anything with a filesystem.
package pagefile

import "errors"

// ErrClosed is returned by any operation attempted on a PageFile that has
// already been closed.
var ErrClosed = errors.New("pagefile: closed")

// Mode selects how Open prepares the underlying storage.
type Mode int

const (
	// ModeReadWrite opens (creating if necessary) for both reading and
	// writing, preserving any existing contents.
	ModeReadWrite Mode = iota
	// ModeTruncate opens for both reading and writing, discarding any
	// existing contents. Used when the RESET_DATA parameter is set.
	ModeTruncate
)

// PageFile is the contract the engine consumes from its storage layer.
// Every operation is synchronous: a call does not return until it has
// either completed or failed. A completed Write is durable only after a
// subsequent Flush. Reads and writes of distinct pages may be issued in
// any order — implementations must not assume a monotonic access
// pattern beyond what a single call specifies.
type PageFile interface {
	// Open prepares the file for use in the given mode. Returns false if
	// the file could not be opened.
	Open(mode Mode) bool

	// Close releases any resources. After Close, every other method
	// returns ErrClosed via Err/operation failure.
	Close() error

	// ReadPage reads exactly pageSize bytes at page index id into out
	// (len(out) must be >= pageSize) and returns the number of pages
	// read (0 or 1).
	ReadPage(id uint32, pageSize int, out []byte) (int, error)

	// WritePage writes exactly pageSize bytes from in at page index id
	// and returns the number of pages written (0 or 1).
	WritePage(id uint32, pageSize int, in []byte) (int, error)

	// Seek moves the file's internal cursor to an absolute byte offset,
	// for use by ReadRel/WriteRel.
	Seek(absByteOffset int64) error

	// Tell reports the file's internal cursor as an absolute byte
	// offset.
	Tell() (int64, error)

	// Flush makes all completed writes durable.
	Flush() error

	// Err reports the sticky error flag: once any operation fails, Err
	// returns true until the file is reopened.
	Err() bool

	// WriteRel writes n bytes of buf (padded/truncated to a multiple of
	// pageSize by the caller) starting at the current cursor, advancing
	// it.
	WriteRel(buf []byte, pageSize int, n int) (int, error)

	// ReadRel reads n bytes into buf starting at the current cursor,
	// advancing it.
	ReadRel(buf []byte, pageSize int, n int) (int, error)

	// Size reports the current size of the file in bytes.
	Size() (int64, error)
}
