package miniallocator

import (
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/ryogrid/mini-allocator-go/config"
	"github.com/ryogrid/mini-allocator-go/internal/backoff"
	"github.com/ryogrid/mini-allocator-go/interfaces"
)

// batchState holds one batch's bump-allocation cursor and the bookkeeping
// needed to back-patch the end_key of its most recently vended entry.
// nextAddr is the sentinel-encoded mutex described in section 5: readers
// CAS it to MiniWait to linearize a batch's allocs, and restore it to a
// real address before returning. The remaining fields
// are mutated only by whichever goroutine currently holds that CAS.
type batchState struct {
	nextAddr     atomic.Uint64
	nextExtent   uint64
	lastMetaAddr uint64
	lastMetaPos  uint32
}

// MiniAllocator is a per-stream sub-allocator. See the package doc for the
// overall design; it is created with Init and has no other constructor.
type MiniAllocator struct {
	cc         interfaces.Cache
	dataCfg    interfaces.DataConfig
	pageType   interfaces.PageType
	metaHead   uint64
	metaTail   atomic.Uint64
	numBatches uint64
	batches    [MiniMaxBatches]batchState
}

// Init creates (meta_tail == 0) or loads (meta_tail != 0) a mini-allocator
// and reserves one extent per batch, which becomes that batch's first
// vended extent (the first Alloc of a batch still reserves the batch's
// following extent from the extent allocator). It returns the reserved
// extent for batch 0 so the caller has a deterministic first address to
// write to, matching mini_allocator_init's return value.
//
// The cache's page/extent geometry and numBatches are run through
// config.Validate before anything else, so a misconfigured caller fails
// fast with a wrapped error instead of tripping an assertion deep inside
// the first Alloc.
func Init(
	cc interfaces.Cache,
	dataCfg interfaces.DataConfig,
	metaHead, metaTail uint64,
	numBatches uint64,
	pageType interfaces.PageType,
) (*MiniAllocator, uint64, error) {
	cfg := config.Config{
		PageSize:   cc.PageSize(),
		ExtentSize: cc.ExtentSize(),
		NumBatches: numBatches,
		PageType:   uint8(pageType),
	}
	if err := cfg.Validate(); err != nil {
		return nil, 0, errors.Wrap(err, "mini-allocator: invalid configuration")
	}

	mini := &MiniAllocator{
		cc:         cc,
		dataCfg:    dataCfg,
		pageType:   pageType,
		metaHead:   metaHead,
		numBatches: numBatches,
	}

	var page interfaces.Page
	fresh := metaTail == 0
	if fresh {
		mini.metaTail.Store(metaHead)
		page = cc.Alloc(metaHead, pageType)
	} else {
		mini.metaTail.Store(metaTail)
		page = cc.Get(metaTail, true, pageType)
		var spin backoff.Spin
		for !cc.Claim(page) {
			log.Debug().Uint64("meta_tail", metaTail).Msg("mini-allocator: init claim contended, retrying")
			cc.Unget(page)
			spin.Wait()
			page = cc.Get(metaTail, true, pageType)
		}
		cc.Lock(page)
	}

	if fresh {
		initMetaHeader(page.Data())
	}

	for b := uint64(0); b < numBatches; b++ {
		extent, err := cc.Allocator().AllocExtent()
		if err != nil {
			cc.MarkDirty(page)
			cc.Unlock(page)
			cc.Unclaim(page)
			cc.Unget(page)
			return nil, 0, errors.Wrap(err, "mini-allocator: init failed to reserve extent")
		}
		mini.batches[b].nextExtent = extent
	}

	cc.MarkDirty(page)
	cc.Unlock(page)
	cc.Unclaim(page)
	cc.Unget(page)

	return mini, mini.batches[0].nextExtent, nil
}
