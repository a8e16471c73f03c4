// Package interfaces declares the narrow collaborator contracts the
// mini-allocator is built against: the buffer cache, the extent allocator
// beneath it, and the opaque key configuration. None of these are
// implemented here — concrete (test and disk-backed) implementations live
// under storage/ — mirroring the teacher's split between
// interfaces/parent_buf_mgr.go + interfaces/parent_page.go and their
// storage/buffer, storage/page implementations.
package interfaces

// PageType tags every cache call with the kind of page being touched, for
// accounting and debugging. The allocator always uses a single caller-
// supplied type for all of its own pages.
type PageType uint8

// Page is a pinned handle onto one fixed-size buffer-cache page. Callers
// never hold a Page across a Cache call that could invalidate it except
// via the documented pin/claim/lock protocol.
type Page interface {
	// Data returns the page's backing bytes. Valid only while pinned.
	Data() []byte
	// Addr returns the page's disk address.
	Addr() uint64
}

// Cache is the buffer-cache contract of section 6: pin (Alloc/Get), then
// Claim (exclusive writer reservation, bounded-waiting spin), then Lock
// (exclude readers). Release is the mirror: MarkDirty, Unlock, Unclaim,
// Unget. Claim can fail and must be retried by the caller; Get/Alloc never
// fail from the mini-allocator's point of view (I/O failure is the cache's
// problem, not surfaced here).
type Cache interface {
	// Alloc returns a freshly zeroed page at addr, pinned, claimed and
	// write locked, as if by Get+Claim+Lock on a brand new page. The
	// caller owns the claim and lock on return and must Unlock/Unclaim
	// it like any other claimed page.
	Alloc(addr uint64, pageType PageType) Page
	// Get loads (or fetches from cache) the page at addr, pinned.
	Get(addr uint64, wait bool, pageType PageType) Page
	// Claim attempts to reserve exclusive writer intent on an already
	// pinned page. False means contention; the caller retries with
	// backoff after dropping and re-acquiring the pin.
	Claim(page Page) bool
	// Unclaim releases a successful Claim.
	Unclaim(page Page)
	// Lock excludes readers. Only valid while claimed.
	Lock(page Page)
	// Unlock releases a Lock.
	Unlock(page Page)
	// MarkDirty flags the page for writeback.
	MarkDirty(page Page)
	// Unget releases a pin obtained via Alloc or Get.
	Unget(page Page)
	// Dealloc returns the extent at addr to the underlying allocator,
	// reporting whether the refcount dropped to zero.
	Dealloc(addr uint64, pageType PageType) bool
	// ExtentSync issues a writeback sync for the extent at baseAddr,
	// accumulating the outstanding page count into pagesOutstanding (may
	// be nil).
	ExtentSync(baseAddr uint64, pagesOutstanding *uint64)
	// Prefetch requests read-ahead of the extent at baseAddr.
	Prefetch(baseAddr uint64, pageType PageType)
	// PageSize returns the fixed page size in bytes. Power of two.
	PageSize() uint64
	// ExtentSize returns the fixed extent size in bytes. An integer
	// multiple of PageSize.
	ExtentSize() uint64
	// Allocator returns the extent allocator backing this cache.
	Allocator() ExtentAllocator
}

// ExtentAllocator is the block-granularity allocator beneath the cache
// (section 6). AllocExtent failure is fatal to the caller per section 7.
type ExtentAllocator interface {
	AllocExtent() (uint64, error)
	IncRefcount(baseAddr uint64)
	GetRefcount(baseAddr uint64) uint32
}

// DataConfig is the opaque key contract (section 6): comparison, copy, and
// stringification of user keys. Comparator defines logical order, not byte
// order.
type DataConfig interface {
	// KeyCompare returns <0, 0, >0 as a < b, a == b, a > b.
	KeyCompare(a, b []byte) int
	// KeyCopy copies src into dst (which is at least len(src) long) and
	// returns the number of bytes copied.
	KeyCopy(dst, src []byte) int
	// KeyToString renders a key for the debug printer.
	KeyToString(key []byte) string
}
