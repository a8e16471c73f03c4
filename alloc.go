package miniallocator

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/ryogrid/mini-allocator-go/internal/assert"
	"github.com/ryogrid/mini-allocator-go/internal/backoff"
	"github.com/ryogrid/mini-allocator-go/interfaces"
)

// Alloc vends the next page address for batch, optionally crossing into a
// freshly reserved extent when the batch's bump pointer reaches an extent
// boundary. key is used to annotate the meta entry created on a crossing
// (empty/nil permitted, the "null slice" sentinel) and to back-patch the
// end_key of the batch's previous entry. If outNextExtent is non-nil it
// receives the batch's current reserved-but-unused next extent.
func (m *MiniAllocator) Alloc(batch uint64, key []byte, outNextExtent *uint64) (uint64, error) {
	assert.That(batch < m.numBatches, "mini-allocator: batch %d out of range (num_batches=%d)", batch, m.numBatches)
	assert.That(len(key) <= MaxInlineKeySize, "mini-allocator: key length %d exceeds MaxInlineKeySize", len(key))

	b := &m.batches[batch]
	nextAddr := m.lockBatch(b)

	extentSize := m.cc.ExtentSize()
	pageSize := m.cc.PageSize()

	if nextAddr%extentSize == 0 {
		vended := b.nextExtent
		newExtent, err := m.cc.Allocator().AllocExtent()
		if err != nil {
			// Restore the batch's cursor to its pre-call value before
			// surfacing the error, so a caller that treats this as
			// non-fatal (it shouldn't, per section 7, but tests may)
			// leaves the allocator in a consistent state.
			b.nextAddr.Store(nextAddr)
			return 0, errors.Wrap(err, "mini-allocator: alloc failed to reserve crossing extent")
		}
		b.nextExtent = newExtent
		if outNextExtent != nil {
			*outNextExtent = newExtent
		}

		m.appendMetaEntry(batch, b, vended, key)

		b.nextAddr.Store(vended + pageSize)
		return vended, nil
	}

	if outNextExtent != nil {
		*outNextExtent = b.nextExtent
	}
	b.nextAddr.Store(nextAddr + pageSize)
	return nextAddr, nil
}

// lockBatch spins until it owns batch b's sentinel, returning the address
// that was current the instant it won the CAS.
func (m *MiniAllocator) lockBatch(b *batchState) uint64 {
	var spin backoff.Spin
	for {
		cur := b.nextAddr.Load()
		if cur != MiniWait && b.nextAddr.CompareAndSwap(cur, MiniWait) {
			return cur
		}
		spin.Wait()
	}
}

// appendMetaEntry writes a new meta entry recording extentAddr as vended
// to batch, growing the metadata log if the current tail page has no
// room, and back-patches the end_key of the batch's previous entry.
func (m *MiniAllocator) appendMetaEntry(batch uint64, b *batchState, extentAddr uint64, key []byte) {
	page, hdr := m.lockMetaTailForAppend()
	newMetaAddr := page.Addr()

	if m.cc.PageSize() < uint64(hdr.pos)+uint64(entrySize(len(key))) {
		page, hdr, newMetaAddr = m.growMetaLog(page, hdr)
	}

	assert.That(uint64(hdr.pos)+uint64(entrySize(len(key))) <= m.cc.PageSize(),
		"mini-allocator: meta entry of size %d does not fit on an empty page", entrySize(len(key)))

	entry := initEntry(m.dataCfg, page.Data(), hdr.pos, extentAddr, key)

	if len(key) > 0 {
		if b.lastMetaAddr != 0 {
			m.fixupPreviousEndKey(b, page, key)
		}
		b.lastMetaPos = hdr.pos
		b.lastMetaAddr = newMetaAddr
	}

	hdr.numEntries++
	hdr.pos += entry.size()
	hdr.write(page.Data())

	m.cc.MarkDirty(page)
	m.cc.Unlock(page)
	m.cc.Unclaim(page)
	m.cc.Unget(page)
}

// lockMetaTailForAppend pins, claims and locks the current meta tail,
// re-checking identity after the pin because another batch may have
// rolled the tail to a new page in between the load and the pin.
func (m *MiniAllocator) lockMetaTailForAppend() (interfaces.Page, metaHeader) {
	var spin backoff.Spin
	for {
		tail := m.metaTail.Load()
		page := m.cc.Get(tail, true, m.pageType)
		if page.Addr() == m.metaTail.Load() && m.cc.Claim(page) {
			m.cc.Lock(page)
			return page, readMetaHeader(page.Data())
		}
		m.cc.Unget(page)
		spin.Wait()
	}
}

// growMetaLog links a new meta page after the held (claimed+locked) tail
// page and returns it, already claimed and locked, in place of the old
// one. The old tail is marked dirty and released. Crossing an extent
// boundary with the new meta address is special-cased to ask the
// underlying extent allocator directly rather than this mini-allocator's
// own batch cursors, breaking the cyclic dependency described in the
// design notes: the metadata log is itself built from extents, but not
// from any batch's bump pointer.
func (m *MiniAllocator) growMetaLog(oldPage interfaces.Page, oldHdr metaHeader) (interfaces.Page, metaHeader, uint64) {
	pageSize := m.cc.PageSize()
	newMetaTail := m.metaTail.Load() + pageSize
	if newMetaTail%m.cc.ExtentSize() == 0 {
		extent, err := m.cc.Allocator().AllocExtent()
		assert.That(err == nil, "mini-allocator: failed to extend metadata log: %v", err)
		newMetaTail = extent
	}

	oldHdr.nextMetaAddr = newMetaTail
	oldHdr.write(oldPage.Data())

	newPage := m.cc.Alloc(newMetaTail, m.pageType)
	m.metaTail.Store(newMetaTail)

	m.cc.MarkDirty(oldPage)
	m.cc.Unlock(oldPage)
	m.cc.Unclaim(oldPage)
	m.cc.Unget(oldPage)

	initMetaHeader(newPage.Data())
	log.Debug().Uint64("new_meta_tail", newMetaTail).Msg("mini-allocator: metadata log grown")
	return newPage, readMetaHeader(newPage.Data()), newMetaTail
}

// fixupPreviousEndKey writes key as the end_key of batch b's previously
// vended entry. If that entry lives on the page we are already holding
// (tailPage), the held handle is reused rather than double-acquiring the
// same page's lock.
func (m *MiniAllocator) fixupPreviousEndKey(b *batchState, tailPage interfaces.Page, key []byte) {
	if b.lastMetaAddr == tailPage.Addr() {
		setEndKey(m.dataCfg, entryAt(tailPage.Data(), b.lastMetaPos), key)
		return
	}

	var spin backoff.Spin
	page := m.cc.Get(b.lastMetaAddr, true, m.pageType)
	for !m.cc.Claim(page) {
		log.Debug().Uint64("addr", b.lastMetaAddr).Msg("mini-allocator: end-key fixup claim contended, retrying")
		m.cc.Unget(page)
		spin.Wait()
		page = m.cc.Get(b.lastMetaAddr, true, m.pageType)
	}
	m.cc.Lock(page)

	setEndKey(m.dataCfg, entryAt(page.Data(), b.lastMetaPos), key)

	m.cc.MarkDirty(page)
	m.cc.Unlock(page)
	m.cc.Unclaim(page)
	m.cc.Unget(page)
}
