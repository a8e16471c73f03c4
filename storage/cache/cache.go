// Package cache provides a reference implementation of interfaces.Cache:
// an in-memory page table with per-page pin counts, claim flags and
// reader/writer locks, adapted from the teacher's BufMgr/Latchs/SpinLatch
// protocol in bufmgr.go (PinLatch/UnpinLatch for pins, the claim-retry
// loop around PageLock for claim, and lock-mode RWMutex for the actual
// Lock/Unlock pair). Unlike bufmgr.go it does not evict: every page ever
// touched stays resident, which is adequate for a module whose pages are
// bounded by a deliberately small metadata log in tests, and is noted as
// an explicit simplification rather than a from-scratch buffer pool.
package cache

import (
	"sync"
	"sync/atomic"

	"github.com/ryogrid/mini-allocator-go/interfaces"
	"github.com/ryogrid/mini-allocator-go/storage/extentfile"
)

// refcountDecrementer is implemented by storage/extentalloc.Allocator.
// Dealloc type-asserts to it rather than widening
// interfaces.ExtentAllocator, because decrementing a refcount is a cache-
// internal operation the mini-allocator itself never calls directly.
type refcountDecrementer interface {
	DecRefcount(baseAddr uint64) bool
}

// page is one resident buffer-cache page: a fixed-size byte slice plus the
// pin/claim/lock/dirty bookkeeping the Cache interface promises.
type page struct {
	addr     uint64
	data     []byte
	pinCount atomic.Int32
	claimed  atomic.Bool
	dirty    atomic.Bool
	rw       sync.RWMutex
}

func (p *page) Data() []byte { return p.data }
func (p *page) Addr() uint64 { return p.addr }

// Cache is the in-memory reference Cache. Pages not yet touched are
// materialized lazily on first Alloc/Get/Prefetch.
type Cache struct {
	mu         sync.Mutex
	pages      map[uint64]*page
	pageSize   uint64
	extentSize uint64
	alloc      interfaces.ExtentAllocator
	file       extentfile.ExtentFile
}

// New creates a Cache with the given fixed page/extent sizes, layered over
// alloc for extent accounting and file for durable page storage. file may
// be nil, in which case pages live purely in memory and are never loaded
// from or flushed to anything (suitable for the shortest-lived unit
// tests).
func New(pageSize, extentSize uint64, alloc interfaces.ExtentAllocator, file extentfile.ExtentFile) *Cache {
	return &Cache{
		pages:      make(map[uint64]*page),
		pageSize:   pageSize,
		extentSize: extentSize,
		alloc:      alloc,
		file:       file,
	}
}

func (c *Cache) lookup(addr uint64) (*page, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pages[addr]
	return p, ok
}

func (c *Cache) insert(addr uint64) (*page, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pages[addr]; ok {
		return p, false
	}
	p := &page{addr: addr, data: make([]byte, c.pageSize)}
	c.pages[addr] = p
	return p, true
}

// Alloc returns a freshly zeroed page at addr, pinned, claimed and write
// locked. If addr was already resident its existing (non-zeroed) contents
// are reused, matching mini_allocator's use of cache_alloc only for pages
// it knows are new. Callers own the claim and lock on return and must
// Unlock/Unclaim it themselves, same as a page obtained via
// Get+Claim+Lock.
func (c *Cache) Alloc(addr uint64, _ interfaces.PageType) interfaces.Page {
	p, _ := c.insert(addr)
	p.pinCount.Add(1)
	p.claimed.Store(true)
	p.rw.Lock()
	return p
}

// Get loads (or fetches from cache) the page at addr, pinned. A page
// materialized for the first time is populated from the backing file, if
// any.
func (c *Cache) Get(addr uint64, _ bool, _ interfaces.PageType) interfaces.Page {
	p, created := c.insert(addr)
	p.pinCount.Add(1)
	if created && c.file != nil {
		data, err := c.file.ReadAt(addr, int(c.pageSize))
		if err == nil {
			copy(p.data, data)
		}
	}
	return p
}

// Claim attempts to reserve exclusive writer intent via a CAS on the
// page's claimed flag, mirroring PageLock's atomic "try" semantics before
// it falls back to waiting.
func (c *Cache) Claim(pg interfaces.Page) bool {
	return pg.(*page).claimed.CompareAndSwap(false, true)
}

// Unclaim releases a successful Claim.
func (c *Cache) Unclaim(pg interfaces.Page) {
	pg.(*page).claimed.Store(false)
}

// Lock excludes readers.
func (c *Cache) Lock(pg interfaces.Page) {
	pg.(*page).rw.Lock()
}

// Unlock releases a Lock.
func (c *Cache) Unlock(pg interfaces.Page) {
	pg.(*page).rw.Unlock()
}

// MarkDirty flags the page for writeback.
func (c *Cache) MarkDirty(pg interfaces.Page) {
	pg.(*page).dirty.Store(true)
}

// Unget releases a pin obtained via Alloc or Get, flushing to the backing
// file if this was the last pin on a dirty page.
func (c *Cache) Unget(pg interfaces.Page) {
	p := pg.(*page)
	if p.pinCount.Add(-1) == 0 && p.dirty.Load() && c.file != nil {
		if err := c.file.WriteAt(p.addr, p.data); err == nil {
			p.dirty.Store(false)
		}
	}
}

// Dealloc returns the extent at addr to the underlying allocator,
// reporting whether the refcount dropped to zero. When it does, this
// cache's own resident copy of the page is dropped too, since the extent
// may be reused for unrelated data.
func (c *Cache) Dealloc(addr uint64, _ interfaces.PageType) bool {
	dec, ok := c.alloc.(refcountDecrementer)
	if !ok {
		return false
	}
	freed := dec.DecRefcount(addr)
	if freed {
		c.mu.Lock()
		delete(c.pages, addr)
		c.mu.Unlock()
	}
	return freed
}

// ExtentSync issues a writeback sync for every resident, dirty page within
// the extent at baseAddr, accumulating the outstanding count.
func (c *Cache) ExtentSync(baseAddr uint64, pagesOutstanding *uint64) {
	for off := uint64(0); off < c.extentSize; off += c.pageSize {
		p, ok := c.lookup(baseAddr + off)
		if !ok || !p.dirty.Load() {
			continue
		}
		if c.file != nil {
			if err := c.file.WriteAt(p.addr, p.data); err == nil {
				p.dirty.Store(false)
				continue
			}
		}
		if pagesOutstanding != nil {
			*pagesOutstanding++
		}
	}
}

// Prefetch requests read-ahead of every page in the extent at baseAddr by
// materializing them from the backing file up front.
func (c *Cache) Prefetch(baseAddr uint64, pageType interfaces.PageType) {
	for off := uint64(0); off < c.extentSize; off += c.pageSize {
		pg := c.Get(baseAddr+off, true, pageType)
		c.Unget(pg)
	}
}

// PageSize returns the fixed page size in bytes.
func (c *Cache) PageSize() uint64 { return c.pageSize }

// ExtentSize returns the fixed extent size in bytes.
func (c *Cache) ExtentSize() uint64 { return c.extentSize }

// Allocator returns the extent allocator backing this cache.
func (c *Cache) Allocator() interfaces.ExtentAllocator { return c.alloc }
