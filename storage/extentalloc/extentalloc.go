// Package extentalloc provides a reference implementation of
// interfaces.ExtentAllocator: an in-memory bump-pointer allocator with a
// refcount table and a free list (it stores no extent data itself), the
// extent-granularity analogue of the teacher's page-zero free-chain in
// bufmgr.go's NewBufMgr (new pages come off the free chain before the
// bump pointer is advanced).
package extentalloc

import (
	"sync"

	"github.com/ryogrid/mini-allocator-go/internal/assert"
)

// Allocator hands out extent-aligned addresses, starting at startAddr and
// bumping by extentSize, reusing addresses whose refcount has dropped to
// zero before bumping further.
type Allocator struct {
	mu         sync.Mutex
	extentSize uint64
	nextAddr   uint64
	refcounts  map[uint64]uint32
	freeList   []uint64
}

// New creates an allocator that vends extents of extentSize bytes
// starting at startAddr (the first address must itself be extent-aligned;
// callers typically reserve address 0 for a superblock and start at
// extentSize).
func New(extentSize, startAddr uint64) *Allocator {
	assert.That(extentSize > 0, "extentalloc: extent size must be positive")
	assert.That(startAddr%extentSize == 0, "extentalloc: start address %d is not extent-aligned", startAddr)
	return &Allocator{
		extentSize: extentSize,
		nextAddr:   startAddr,
		refcounts:  make(map[uint64]uint32),
	}
}

// AllocExtent reserves a free-listed extent if one is available, otherwise
// bumps the allocator's high-water mark. The returned extent always starts
// with a refcount of one.
func (a *Allocator) AllocExtent() (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if n := len(a.freeList); n > 0 {
		addr := a.freeList[n-1]
		a.freeList = a.freeList[:n-1]
		a.refcounts[addr] = 1
		return addr, nil
	}

	addr := a.nextAddr
	a.nextAddr += a.extentSize
	a.refcounts[addr] = 1
	return addr, nil
}

// IncRefcount bumps the refcount of the extent at baseAddr. It is a fatal
// error to increment an extent this allocator never vended (refcount
// already at zero), mirroring the original's debug assertion that
// mini_allocator_inc_range never sees a freed extent.
func (a *Allocator) IncRefcount(baseAddr uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rc, ok := a.refcounts[baseAddr]
	assert.That(ok && rc > 0, "extentalloc: inc_refcount on unallocated extent %d", baseAddr)
	a.refcounts[baseAddr] = rc + 1
}

// GetRefcount returns the current refcount of the extent at baseAddr, or
// zero if it is not currently allocated.
func (a *Allocator) GetRefcount(baseAddr uint64) uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refcounts[baseAddr]
}

// DecRefcount drops the extent's refcount by one, returning true when it
// reaches zero (at which point the extent is pushed onto the free list for
// reuse by a future AllocExtent). storage/cache.Cache calls this from
// Dealloc; it is not part of interfaces.ExtentAllocator because the
// mini-allocator itself never decrements a refcount directly, only through
// the cache's Dealloc.
func (a *Allocator) DecRefcount(baseAddr uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	rc, ok := a.refcounts[baseAddr]
	assert.That(ok && rc > 0, "extentalloc: dec_refcount on unallocated extent %d", baseAddr)
	rc--
	if rc == 0 {
		delete(a.refcounts, baseAddr)
		a.freeList = append(a.freeList, baseAddr)
		return true
	}
	a.refcounts[baseAddr] = rc
	return false
}
