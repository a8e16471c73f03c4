package miniallocator

import (
	"fmt"
	"strings"

	"github.com/ryogrid/mini-allocator-go/interfaces"
)

// Sprint walks the metadata log read-only (pin only, no mutation) and
// formats each entry as "index extent_addr start_key end_key zapped
// (refcount)", the way mini_allocator_print does.
func Sprint(cc interfaces.Cache, dataCfg interfaces.DataConfig, pageType interfaces.PageType, metaHead uint64) string {
	var b strings.Builder
	nextMetaAddr := metaHead
	index := 0

	for {
		page := cc.Get(nextMetaAddr, true, pageType)
		hdr := readMetaHeader(page.Data())

		fmt.Fprintf(&b, "meta addr %d\n", nextMetaAddr)

		offset := uint32(metaHdrSize)
		for i := uint32(0); i < hdr.numEntries; i++ {
			entry := entryAt(page.Data(), offset)
			refcount := cc.Allocator().GetRefcount(entry.extentAddr())
			fmt.Fprintf(&b, "%2d %12d %s %s %v (%d)\n",
				index, entry.extentAddr(),
				dataCfg.KeyToString(entry.startKey()),
				dataCfg.KeyToString(entry.endKey()),
				entry.zapped(), refcount)
			index++
			offset += entry.size()
		}

		nextMetaAddr = hdr.nextMetaAddr
		cc.Unget(page)

		if nextMetaAddr == 0 {
			break
		}
	}

	return b.String()
}

// Print is the method form, using this allocator's own cache, key config,
// page type and meta head.
func (m *MiniAllocator) Print() string {
	return Sprint(m.cc, m.dataCfg, m.pageType, m.metaHead)
}
