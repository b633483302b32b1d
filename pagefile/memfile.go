package pagefile

import (
	"fmt"
	"sync"
)

// MemFile is an in-memory PageFile implementation used by tests and by
// applications that intentionally keep their store volatile. It honors
// the same page-granular, fail-closed contract as DiskFile.
type MemFile struct {
	mu     sync.Mutex
	buf    []byte
	cursor int64
	err    bool
	open   bool
	closed bool
}

// NewMemFile constructs an empty MemFile. Open must be called before use.
func NewMemFile() *MemFile {
	return &MemFile{}
}

func (m *MemFile) Open(mode Mode) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if mode == ModeTruncate || m.buf == nil {
		m.buf = m.buf[:0]
	}
	m.open = true
	m.closed = false
	m.cursor = 0
	m.err = false
	return true
}

func (m *MemFile) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.open = false
	return nil
}

func (m *MemFile) checkOpen() error {
	if !m.open || m.closed {
		m.err = true
		return ErrClosed
	}
	return nil
}

func (m *MemFile) ensureLen(n int64) {
	if int64(len(m.buf)) < n {
		grown := make([]byte, n)
		copy(grown, m.buf)
		m.buf = grown
	}
}

func (m *MemFile) ReadPage(id uint32, pageSize int, out []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkOpen(); err != nil {
		return 0, err
	}

	off := int64(id) * int64(pageSize)
	if off+int64(pageSize) > int64(len(m.buf)) {
		m.err = true
		return 0, fmt.Errorf("pagefile: read page %d: beyond end of file", id)
	}
	copy(out[:pageSize], m.buf[off:off+int64(pageSize)])
	return 1, nil
}

func (m *MemFile) WritePage(id uint32, pageSize int, in []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkOpen(); err != nil {
		return 0, err
	}

	off := int64(id) * int64(pageSize)
	m.ensureLen(off + int64(pageSize))
	copy(m.buf[off:off+int64(pageSize)], in[:pageSize])
	return 1, nil
}

func (m *MemFile) Seek(absByteOffset int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkOpen(); err != nil {
		return err
	}
	if absByteOffset < 0 {
		m.err = true
		return fmt.Errorf("pagefile: negative seek")
	}
	m.cursor = absByteOffset
	return nil
}

func (m *MemFile) Tell() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkOpen(); err != nil {
		return 0, err
	}
	return m.cursor, nil
}

func (m *MemFile) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkOpen()
}

func (m *MemFile) Err() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *MemFile) WriteRel(buf []byte, pageSize int, n int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkOpen(); err != nil {
		return 0, err
	}

	m.ensureLen(m.cursor + int64(n))
	copy(m.buf[m.cursor:m.cursor+int64(n)], buf[:n])
	m.cursor += int64(n)
	return n, nil
}

func (m *MemFile) ReadRel(buf []byte, pageSize int, n int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkOpen(); err != nil {
		return 0, err
	}

	avail := int64(len(m.buf)) - m.cursor
	if avail <= 0 {
		return 0, nil
	}
	if int64(n) > avail {
		n = int(avail)
	}
	copy(buf[:n], m.buf[m.cursor:m.cursor+int64(n)])
	m.cursor += int64(n)
	return n, nil
}

func (m *MemFile) Size() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkOpen(); err != nil {
		return 0, err
	}
	return int64(len(m.buf)), nil
}
