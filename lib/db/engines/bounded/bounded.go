package bounded

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dChain/lib/chain"
	"github.com/ValentinKolb/dChain/lib/db"
	"github.com/ValentinKolb/dChain/lib/db/util"
	"github.com/allegro/bigcache/v3"
)

// entries never expire by age, only by running out of space
const lifeWindow = 100 * 365 * 24 * time.Hour

// DBOptions configures the bounded engine.
type DBOptions struct {
	MaxSizeMB    int // hard limit of the cache in MB (0 = 256)
	Shards       int // number of bigcache shards, power of two (0 = 256)
	MaxEntrySize int // expected chain size in bytes, used for preallocation (0 = 512)
	LockCount    int // number of per-key lock stripes (0 = auto)
}

// DefaultOptions returns the default options (256 MB limit)
func DefaultOptions() *DBOptions {
	return &DBOptions{MaxSizeMB: 256, Shards: 256, MaxEntrySize: 512}
}

type boundedImpl struct {
	cache    *bigcache.BigCache
	locks    *util.KeyLocks
	maxMB    int
	sequence atomic.Uint64
	writeIdx atomic.Uint64
	evicted  atomic.Uint64
}

// NewBoundedDB creates an in-memory chain database with a hard size limit.
// When the limit is reached the oldest written chains are evicted and read
// as empty chains afterwards.
func NewBoundedDB(opts *DBOptions) (db.ChainDB, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	def := DefaultOptions()
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = def.MaxSizeMB
	}
	if opts.Shards <= 0 {
		opts.Shards = def.Shards
	}
	if opts.MaxEntrySize <= 0 {
		opts.MaxEntrySize = def.MaxEntrySize
	}

	b := &boundedImpl{
		locks: util.NewKeyLocks(opts.LockCount),
		maxMB: opts.MaxSizeMB,
	}

	config := bigcache.DefaultConfig(lifeWindow)
	config.Shards = opts.Shards
	config.CleanWindow = 0
	config.MaxEntrySize = opts.MaxEntrySize
	config.HardMaxCacheSize = opts.MaxSizeMB
	config.Verbose = false
	config.OnRemoveWithReason = func(_ string, _ []byte, reason bigcache.RemoveReason) {
		if reason == bigcache.NoSpace {
			b.evicted.Add(1)
		}
	}

	cache, err := bigcache.New(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("bounded: create cache: %w", err)
	}
	b.cache = cache
	return b, nil
}

func cacheKey(key uint64) string {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], key)
	return string(k[:])
}

func (b *boundedImpl) nextID() chain.SequenceID {
	return chain.SequenceID(b.sequence.Add(1))
}

func (b *boundedImpl) read(key uint64) (chain.Chain, error) {
	val, err := b.cache.Get(cacheKey(key))
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return chain.Empty(), nil
	}
	if err != nil {
		return chain.Chain{}, fmt.Errorf("bounded: get %d: %w", key, err)
	}
	return chain.Decode(val)
}

func (b *boundedImpl) write(key uint64, c chain.Chain) error {
	if c.IsEmpty() {
		err := b.cache.Delete(cacheKey(key))
		if err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
			return fmt.Errorf("bounded: delete %d: %w", key, err)
		}
		return nil
	}
	if err := b.cache.Set(cacheKey(key), chain.Encode(c)); err != nil {
		return fmt.Errorf("bounded: set %d: %w", key, err)
	}
	return nil
}

// update runs fn while holding the stripe lock of key and stores its result
func (b *boundedImpl) update(key uint64, fn func(old chain.Chain) (chain.Chain, bool)) error {
	unlock := b.locks.Lock(key)
	defer unlock()

	old, err := b.read(key)
	if err != nil {
		return err
	}
	next, write := fn(old)
	if !write {
		return nil
	}
	return b.write(key, next)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see db.ChainDB)
// --------------------------------------------------------------------------

func (b *boundedImpl) Append(key uint64, payload []byte) (chain.SequenceID, error) {
	var id chain.SequenceID
	err := b.update(key, func(old chain.Chain) (chain.Chain, bool) {
		id = b.nextID()
		return old.Appended(chain.NewElement(id, payload)), true
	})
	return id, err
}

func (b *boundedImpl) GetAndAppend(key uint64, payload []byte) (chain.Chain, error) {
	var prior chain.Chain
	err := b.update(key, func(old chain.Chain) (chain.Chain, bool) {
		prior = old
		return old.Appended(chain.NewElement(b.nextID(), payload)), true
	})
	return prior, err
}

func (b *boundedImpl) ReplaceAtHead(key uint64, expect, update chain.Chain) (bool, error) {
	var replaced bool
	err := b.update(key, func(old chain.Chain) (chain.Chain, bool) {
		var next chain.Chain
		next, replaced = chain.ReplaceHead(old, expect, update, b.nextID)
		return next, replaced
	})
	return replaced, err
}

func (b *boundedImpl) Get(key uint64) (chain.Chain, error) {
	return b.read(key)
}

// Save writes all chains that are currently cached.
func (b *boundedImpl) Save(w io.Writer) error {
	sw, err := db.NewSnapshotWriter(w, db.SnapshotHeader{
		Sequence: b.Sequence(),
		WriteIdx: b.WriteIdx(),
	})
	if err != nil {
		return err
	}

	it := b.cache.Iterator()
	for it.SetNext() {
		info, err := it.Value()
		if err != nil {
			// entry was evicted while iterating
			continue
		}
		c, err := chain.Decode(info.Value())
		if err != nil {
			return fmt.Errorf("bounded: decode: %w", err)
		}
		if err := sw.Write(binary.BigEndian.Uint64([]byte(info.Key())), c); err != nil {
			return err
		}
	}
	return sw.Close()
}

// Load replaces the cache content with the snapshot. Chains that do not fit
// into the size limit are evicted as usual.
func (b *boundedImpl) Load(r io.Reader) error {
	if err := b.cache.Reset(); err != nil {
		return err
	}
	var maxID chain.SequenceID
	header, err := db.ReadSnapshot(r, func(key uint64, c chain.Chain) error {
		for _, id := range c.IDs() {
			maxID = max(maxID, id)
		}
		return b.write(key, c)
	})
	if err != nil {
		return err
	}
	b.sequence.Store(uint64(max(header.Sequence, maxID)))
	b.writeIdx.Store(header.WriteIdx)
	return nil
}

const supportedFeatures = db.FeatureGet |
	db.FeatureAppend |
	db.FeatureGetAndAppend |
	db.FeatureReplaceAtHead |
	db.FeatureSave |
	db.FeatureLoad |
	db.FeatureBounded

func (b *boundedImpl) SupportsFeature(feature db.Feature) bool {
	return supportedFeatures&feature == feature
}

func (b *boundedImpl) GetInfo() db.DatabaseInfo {
	stats := b.cache.Stats()
	meta := &struct {
		Sequence          uint64 `json:"sequence"`
		CurrentWriteIndex uint64 `json:"current_write_index"`
		MaxSizeMB         int    `json:"max_size_mb"`
		Evicted           uint64 `json:"evicted"`
		Hits              int64  `json:"hits"`
		Misses            int64  `json:"misses"`
		Collisions        int64  `json:"collisions"`
	}{
		Sequence:          b.sequence.Load(),
		CurrentWriteIndex: b.writeIdx.Load(),
		MaxSizeMB:         b.maxMB,
		Evicted:           b.evicted.Load(),
		Hits:              stats.Hits,
		Misses:            stats.Misses,
		Collisions:        stats.Collisions,
	}

	return db.DatabaseInfo{
		SizeBytes:         b.cache.Capacity(),
		Keys:              b.cache.Len(),
		DbType:            db.ImplBounded,
		SupportedFeatures: db.FeaturesOf(supportedFeatures),
		Metadata:          meta,
	}
}

func (b *boundedImpl) Sequence() chain.SequenceID {
	return chain.SequenceID(b.sequence.Load())
}

func (b *boundedImpl) SetWriteIdx(newIdx uint64) {
	for {
		currIdx := b.writeIdx.Load()
		if newIdx <= currIdx {
			return
		}
		if b.writeIdx.CompareAndSwap(currIdx, newIdx) {
			return
		}
	}
}

func (b *boundedImpl) WriteIdx() uint64 {
	return b.writeIdx.Load()
}

func (b *boundedImpl) Close() error {
	return b.cache.Close()
}
