// Package extentfile provides the backing byte-addressable stores the
// reference cache persists pages to: an
// in-memory store for tests, grounded on github.com/dsnet/golib/memfile
// (the direct in-memory counterpart to the teacher's sync.Map-backed
// ParentBufMgrDummy), and a real O_DIRECT-backed store for production use,
// grounded on github.com/ncw/directio.
package extentfile

import (
	"io"
	"os"
	"sync"

	"github.com/dsnet/golib/memfile"
	"github.com/ncw/directio"
)

// ExtentFile is a minimal byte-addressable store: read/write an arbitrary
// range at an absolute address. The reference cache uses it at page
// granularity.
type ExtentFile interface {
	ReadAt(addr uint64, size int) ([]byte, error)
	WriteAt(addr uint64, data []byte) error
	Close() error
}

// Mem is an in-memory ExtentFile backed by memfile.File, growing its
// backing buffer on demand. It never touches a real filesystem, making it
// the store of choice for unit tests.
type Mem struct {
	mu  sync.Mutex
	buf []byte
	f   *memfile.File
}

// NewMem creates an empty in-memory extent file.
func NewMem() *Mem {
	m := &Mem{}
	m.f = memfile.New(m.buf)
	return m
}

func (m *Mem) growTo(n int) {
	if len(m.buf) >= n {
		return
	}
	grown := make([]byte, n)
	copy(grown, m.buf)
	m.buf = grown
	m.f = memfile.New(m.buf)
}

// ReadAt reads size bytes at addr, zero-filling any range past the
// current end of the file (an unwritten extent reads as zero).
func (m *Mem) ReadAt(addr uint64, size int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]byte, size)
	if int(addr) >= len(m.buf) {
		return out, nil
	}
	n, err := m.f.ReadAt(out, int64(addr))
	if err != nil && err != io.EOF {
		return nil, err
	}
	_ = n
	return out, nil
}

// WriteAt writes data at addr, growing the backing buffer if needed.
func (m *Mem) WriteAt(addr uint64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.growTo(int(addr) + len(data))
	_, err := m.f.WriteAt(data, int64(addr))
	return err
}

// Close is a no-op: there is nothing to release for an in-memory file.
func (m *Mem) Close() error {
	return m.f.Close()
}

// Direct is an O_DIRECT-backed ExtentFile for production use. Reads and
// writes must be done in caller-chosen block-size multiples that are
// themselves alignment-friendly; ReadAt and WriteAt stage every transfer
// through a buffer from directio.AlignedBlock.
type Direct struct {
	fd *os.File
}

// OpenDirect opens (creating if necessary) path for O_DIRECT access.
func OpenDirect(path string) (*Direct, error) {
	fd, err := directio.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	return &Direct{fd: fd}, nil
}

// ReadAt reads an aligned block of size bytes at addr.
func (d *Direct) ReadAt(addr uint64, size int) ([]byte, error) {
	block := directio.AlignedBlock(size)
	_, err := d.fd.ReadAt(block, int64(addr))
	if err != nil && err != io.EOF {
		return nil, err
	}
	return block, nil
}

// WriteAt writes data, copied into a freshly aligned block, at addr.
func (d *Direct) WriteAt(addr uint64, data []byte) error {
	block := directio.AlignedBlock(len(data))
	copy(block, data)
	_, err := d.fd.WriteAt(block, int64(addr))
	return err
}

// Close closes the underlying file descriptor.
func (d *Direct) Close() error {
	return d.fd.Close()
}
