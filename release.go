package miniallocator

import (
	"github.com/rs/zerolog/log"

	"github.com/ryogrid/mini-allocator-go/internal/backoff"
)

// Release is a terminal, single-caller operation that closes out a
// mini-allocator: it returns each batch's reserved-but-unused next
// extent, and, if key is non-empty, back-patches the end_key of each
// batch's last vended entry. It does not traverse the full metadata log
// and does not touch the refcount of any already-vended extent.
func (m *MiniAllocator) Release(key []byte) {
	for batch := uint64(0); batch < m.numBatches; batch++ {
		b := &m.batches[batch]

		m.cc.Dealloc(b.nextExtent, m.pageType)
		log.Debug().Uint64("batch", batch).Uint64("extent", b.nextExtent).Msg("mini-allocator: released unused reserved extent")

		if len(key) == 0 || b.lastMetaAddr == 0 {
			continue
		}

		var spin backoff.Spin
		page := m.cc.Get(b.lastMetaAddr, true, m.pageType)
		for !m.cc.Claim(page) {
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
}
