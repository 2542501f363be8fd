package internal

import (
	"github.com/ValentinKolb/dChain/lib/chain"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Shard Type (partition of the database)
// --------------------------------------------------------------------------

// Shard represents a partition of the database.
// Each shard has its own map; xsync.MapOf.Compute provides the per-key
// critical section for all writes.
type Shard struct {
	Data *xsync.MapOf[uint64, chain.Chain] // live chain per key
}

// NewShard creates a new shard with the provided hash function
func NewShard(hasher func(uint64, uint64) uint64) *Shard {
	return &Shard{
		Data: xsync.NewMapOfWithHasher[uint64, chain.Chain](hasher),
	}
}

// GetShard returns the appropriate shard for a given (already mixed) key
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func GetShard[T any](mixedKey uint64, shards []*T) *T {
	// Shift right by 7 bits to use higher-quality bits for distribution
	shiftedKey := mixedKey >> 7
	shardPos := shiftedKey % uint64(len(shards))
	return shards[shardPos]
}
