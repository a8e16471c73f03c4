// Package config holds the mini-allocator's sizing knobs, validated at
// construction the way zhukovaskychina-xmysql-server's
// server/innodb/buffer_pool.BufferPoolConfig validates its own page/pool
// sizes before a BufferPool is built from them.
package config

import "github.com/pkg/errors"

// Config describes the fixed geometry a mini-allocator operates under.
// PageSize and ExtentSize come from the cache/extent allocator the
// mini-allocator is layered on; NumBatches and PageType are the caller's
// own choice.
type Config struct {
	// PageSize is the cache's fixed page size in bytes. Must be a power
	// of two.
	PageSize uint64
	// ExtentSize is the cache's fixed extent size in bytes. Must be a
	// positive integer multiple of PageSize.
	ExtentSize uint64
	// NumBatches is the number of parallel allocation streams this
	// mini-allocator will serve. Must be in [1, MiniMaxBatches].
	NumBatches uint64
	// PageType tags every cache call this allocator makes.
	PageType uint8
}

// miniMaxBatches mirrors the core allocator's MiniMaxBatches. Duplicated
// here, rather than imported, to keep this package free of a dependency
// back on the package that imports it for validation.
const miniMaxBatches = 8

// Validate checks the geometry invariants section 3 requires: page size a
// power of two, extent size an integer multiple of it, and a sane batch
// count.
func (c Config) Validate() error {
	if c.PageSize == 0 || c.PageSize&(c.PageSize-1) != 0 {
		return errors.Errorf("config: page size %d is not a power of two", c.PageSize)
	}
	if c.ExtentSize == 0 || c.ExtentSize%c.PageSize != 0 {
		return errors.Errorf("config: extent size %d is not a multiple of page size %d", c.ExtentSize, c.PageSize)
	}
	if c.NumBatches == 0 || c.NumBatches > miniMaxBatches {
		return errors.Errorf("config: num_batches %d out of range [1, %d]", c.NumBatches, miniMaxBatches)
	}
	return nil
}
