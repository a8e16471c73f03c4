package miniallocator

import (
	"github.com/rs/zerolog/log"

	"github.com/ryogrid/mini-allocator-go/internal/assert"
	"github.com/ryogrid/mini-allocator-go/internal/backoff"
	"github.com/ryogrid/mini-allocator-go/interfaces"
)

// ExtentAction is the plug-in signature range traversal invokes once per
// in-range, not-yet-zapped entry. Its return value becomes the entry's
// new zapped flag. ctx is an opaque, action-specific accumulator (e.g. a
// running count, an outstanding-page counter).
type ExtentAction func(cc interfaces.Cache, pageType interfaces.PageType, baseAddr uint64, ctx interface{}) bool

// ForEach walks the metadata log rooted at metaHead, invoking fn on every
// entry whose stored key range overlaps [startKey, endKey] (an empty pair
// means "match all"), and reports whether every entry in the log ended up
// zapped. When the pass leaves the whole log zapped, a second read-only
// pass reclaims the meta pages themselves by invoking fn on the base
// address of every meta extent no longer shared with the next meta page
// in the chain.
//
// dataCfg may be nil only if startKey and endKey are both empty, matching
// the debug_assert in the original (callers that never compare keys, like
// Sync and Prefetch, pass a nil config with an empty range).
func ForEach(
	cc interfaces.Cache,
	dataCfg interfaces.DataConfig,
	pageType interfaces.PageType,
	metaHead uint64,
	fn ExtentAction,
	startKey, endKey []byte,
	ctx interface{},
) bool {
	assert.That(dataCfg != nil || (len(startKey) == 0 && len(endKey) == 0), "mini-allocator: for_each given a non-empty key range with a nil data_cfg")

	fullyZapped := true
	nextMetaAddr := metaHead

	for {
		page := lockMetaPage(cc, pageType, nextMetaAddr)
		hdr := readMetaHeader(page.Data())

		offset := uint32(metaHdrSize)
		for i := uint32(0); i < hdr.numEntries; i++ {
			entry := entryAt(page.Data(), offset)
			if entryInRange(dataCfg, entry, startKey, endKey) {
				assert.That(!entry.zapped(), "mini-allocator: entry at extent %d already zapped", entry.extentAddr())
				entry.setZapped(fn(cc, pageType, entry.extentAddr(), ctx))
			}
			fullyZapped = fullyZapped && entry.zapped()
			offset += entry.size()
		}

		nextMetaAddr = hdr.nextMetaAddr

		cc.MarkDirty(page)
		cc.Unlock(page)
		cc.Unclaim(page)
		cc.Unget(page)

		if nextMetaAddr == 0 {
			break
		}
	}

	if fullyZapped {
		reclaimMetaLog(cc, pageType, metaHead, fn, ctx)
	}

	return fullyZapped
}

func lockMetaPage(cc interfaces.Cache, pageType interfaces.PageType, addr uint64) interfaces.Page {
	var spin backoff.Spin
	page := cc.Get(addr, true, pageType)
	for !cc.Claim(page) {
		cc.Unget(page)
		spin.Wait()
		page = cc.Get(addr, true, pageType)
	}
	cc.Lock(page)
	return page
}

// entryInRange implements the three-way overlap test of section 4.4.
func entryInRange(dataCfg interfaces.DataConfig, entry metaEntryView, startKey, endKey []byte) bool {
	if len(startKey) == 0 && len(endKey) == 0 {
		return true
	}
	if len(endKey) == 0 {
		// point query: query_start_key in [entry.start_key, entry.end_key]
		return dataCfg.KeyCompare(startKey, entry.endKey()) <= 0 &&
			dataCfg.KeyCompare(entry.startKey(), startKey) <= 0
	}
	return dataCfg.KeyCompare(startKey, entry.endKey()) <= 0 &&
		dataCfg.KeyCompare(entry.startKey(), endKey) <= 0
}

// reclaimMetaLog is the tail-of-log reclamation pass: a read-only walk
// identifying meta pages whose extent is no longer shared with the next
// meta page in the chain, reclaiming each such boundary's containing
// extent. It only runs after a fully-zapped primary pass, preserving the
// invariant that meta pages outlive any meta entry mentioning later
// pages.
func reclaimMetaLog(cc interfaces.Cache, pageType interfaces.PageType, metaHead uint64, fn ExtentAction, ctx interface{}) {
	extentSize := cc.ExtentSize()
	nextMetaAddr := metaHead
	for {
		page := cc.Get(nextMetaAddr, true, pageType)
		hdr := readMetaHeader(page.Data())
		lastMetaAddr := nextMetaAddr
		nextMetaAddr = hdr.nextMetaAddr
		cc.Unget(page)

		if !addrsShareExtent(extentSize, lastMetaAddr, nextMetaAddr) {
			base := lastMetaAddr / extentSize * extentSize
			log.Debug().Uint64("base", base).Msg("mini-allocator: reclaiming fully-zapped metadata extent")
			fn(cc, pageType, base, ctx)
		}

		if nextMetaAddr == 0 {
			break
		}
	}
}

func addrsShareExtent(extentSize, a, b uint64) bool {
	return a/extentSize == b/extentSize
}
