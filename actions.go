package miniallocator

import "github.com/ryogrid/mini-allocator-go/interfaces"

// zapExtent is the Zap extent action: it deallocates the extent at
// baseAddr and reports whether the refcount dropped to zero, which
// becomes the corresponding meta entry's new zapped flag.
func zapExtent(cc interfaces.Cache, pageType interfaces.PageType, baseAddr uint64, _ interface{}) bool {
	return cc.Dealloc(baseAddr, pageType)
}

// incExtent is the Inc extent action: it bumps the extent's refcount and
// never marks an entry zapped.
func incExtent(cc interfaces.Cache, _ interfaces.PageType, baseAddr uint64, _ interface{}) bool {
	cc.Allocator().IncRefcount(baseAddr)
	return false
}

// syncExtent is the Sync extent action: it issues a writeback sync.
func syncExtent(cc interfaces.Cache, pageType interfaces.PageType, baseAddr uint64, ctx interface{}) bool {
	var outstanding *uint64
	if ctx != nil {
		outstanding = ctx.(*uint64)
	}
	cc.ExtentSync(baseAddr, outstanding)
	return false
}

// prefetchExtent is the Prefetch extent action: it requests read-ahead.
func prefetchExtent(cc interfaces.Cache, pageType interfaces.PageType, baseAddr uint64, _ interface{}) bool {
	cc.Prefetch(baseAddr, pageType)
	return false
}

// countExtent is the Count extent action: it increments *ctx.(*uint64).
func countExtent(_ interfaces.Cache, _ interfaces.PageType, _ uint64, ctx interface{}) bool {
	count := ctx.(*uint64)
	*count++
	return false
}

// Zap traverses the metadata log, deallocating every overlapping
// non-zapped extent in [startKey, endKey], and reports whether the whole
// log ended up zapped (and, via the reclamation pass inside ForEach, its
// own meta-page storage freed).
func (m *MiniAllocator) Zap(startKey, endKey []byte) bool {
	return ForEach(m.cc, m.dataCfg, m.pageType, m.metaHead, zapExtent, startKey, endKey, nil)
}

// IncRange traverses the metadata log, incrementing the refcount of every
// extent overlapping [startKey, endKey]. It never marks entries zapped.
func (m *MiniAllocator) IncRange(startKey, endKey []byte) {
	ForEach(m.cc, m.dataCfg, m.pageType, m.metaHead, incExtent, startKey, endKey, nil)
}

// Sync traverses the whole metadata log issuing a writeback sync for
// every extent, accumulating the number of pages still outstanding.
func (m *MiniAllocator) Sync() uint64 {
	var outstanding uint64
	ForEach(m.cc, nil, m.pageType, m.metaHead, syncExtent, nil, nil, &outstanding)
	return outstanding
}

// Prefetch traverses the whole metadata log, requesting read-ahead of
// every extent.
func (m *MiniAllocator) Prefetch() {
	ForEach(m.cc, nil, m.pageType, m.metaHead, prefetchExtent, nil, nil, nil)
}

// CountExtentsInRange traverses the metadata log and returns the number
// of entries overlapping [startKey, endKey].
func (m *MiniAllocator) CountExtentsInRange(startKey, endKey []byte) uint64 {
	var count uint64
	ForEach(m.cc, m.dataCfg, m.pageType, m.metaHead, countExtent, startKey, endKey, &count)
	return count
}

// ExtentCount walks the metadata log ignoring keys and returns the number
// of meta pages plus the number of non-zapped entries, matching the
// original's exact counting rule (one unit per meta page visited, one per
// live entry — not filtered by range).
func ExtentCount(cc interfaces.Cache, pageType interfaces.PageType, metaHead uint64) uint64 {
	var numExtents uint64
	nextMetaAddr := metaHead
	for {
		page := cc.Get(nextMetaAddr, true, pageType)
		numExtents++

		hdr := readMetaHeader(page.Data())
		offset := uint32(metaHdrSize)
		for i := uint32(0); i < hdr.numEntries; i++ {
			entry := entryAt(page.Data(), offset)
			if !entry.zapped() {
				numExtents++
			}
			offset += entry.size()
		}

		nextMetaAddr = hdr.nextMetaAddr
		cc.Unget(page)

		if nextMetaAddr == 0 {
			break
		}
	}
	return numExtents
}

// ExtentCount is the method form, using this allocator's own cache, page
// type and meta head.
func (m *MiniAllocator) ExtentCount() uint64 {
	return ExtentCount(m.cc, m.pageType, m.metaHead)
}
