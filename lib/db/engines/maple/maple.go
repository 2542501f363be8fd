package maple

import (
	"io"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/dChain/lib/chain"
	"github.com/ValentinKolb/dChain/lib/db"
	"github.com/ValentinKolb/dChain/lib/db/engines/maple/internal"
	"github.com/ValentinKolb/dChain/lib/db/util"
)

// --------------------------------------------------------------------------
// Core Maple database structure
// --------------------------------------------------------------------------

// mapleImpl implements an in-memory chain database with sharded data
type mapleImpl struct {
	numShards int               // Number of shards
	seed      uint64            // Seed for key mixing
	shards    []*internal.Shard // Array of shards
	sequence  atomic.Uint64     // Last assigned element id
	writeIdx  atomic.Uint64     // Index of the last applied write

	// Load swaps all shards, the lock keeps writers out while that happens
	loadLock sync.RWMutex
}

// DBOptions configures the mapleImpl behavior during initialization
type DBOptions struct {
	NumShards int // Number of shards (0 = auto)
}

// DefaultOptions returns the default mapleImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		NumShards: runtime.NumCPU(), // Auto-determine based on CPU count
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMapleDB creates a new MapleDB instance with the specified options (optional)
//
// Thread-safety: This function is not thread-safe and should only be called once
// during initialization.
func NewMapleDB(opts *DBOptions) db.ChainDB {

	// Generate default options if not provided
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.NumShards <= 0 {
		opts.NumShards = runtime.NumCPU()
	}

	newDB := &mapleImpl{
		numShards: opts.NumShards,
		seed:      util.GenerateSeed(),
	}
	newDB.shards = newDB.newShards()

	return newDB
}

func (maple *mapleImpl) newShards() []*internal.Shard {
	hasher := createIdentityHasher()
	shards := make([]*internal.Shard, maple.numShards)
	for i := 0; i < maple.numShards; i++ {
		shards[i] = internal.NewShard(hasher)
	}
	return shards
}

// --------------------------------------------------------------------------
// Hash Helper Functions
// --------------------------------------------------------------------------

// mixKey applies the instance seed so that key distribution differs between instances
func (maple *mapleImpl) mixKey(key uint64) uint64 {
	return key ^ maple.seed
}

// createIdentityHasher creates a hash function that combines a key with a seed
func createIdentityHasher() func(uint64, uint64) uint64 {
	return func(key uint64, mapSeed uint64) uint64 {
		return key ^ mapSeed
	}
}

func (maple *mapleImpl) shardFor(key uint64) *internal.Shard {
	return internal.GetShard(maple.mixKey(key), maple.shards)
}

func (maple *mapleImpl) nextID() chain.SequenceID {
	return chain.SequenceID(maple.sequence.Add(1))
}

// --------------------------------------------------------------------------
// Core ChainDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Append adds payload as a new element to the end of the chain of key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Append(key uint64, payload []byte) (chain.SequenceID, error) {
	var id chain.SequenceID
	maple.compute(key, func(old chain.Chain) chain.Chain {
		id = maple.nextID()
		return old.Appended(chain.NewElement(id, payload))
	})
	return id, nil
}

// GetAndAppend adds payload as a new element and returns the chain before the append.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) GetAndAppend(key uint64, payload []byte) (chain.Chain, error) {
	var prior chain.Chain
	maple.compute(key, func(old chain.Chain) chain.Chain {
		prior = old
		return old.Appended(chain.NewElement(maple.nextID(), payload))
	})
	return prior, nil
}

// ReplaceAtHead swaps the head of the chain of key if it matches expect.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) ReplaceAtHead(key uint64, expect, update chain.Chain) (bool, error) {
	var replaced bool
	maple.compute(key, func(old chain.Chain) chain.Chain {
		var result chain.Chain
		result, replaced = chain.ReplaceHead(old, expect, update, maple.nextID)
		return result
	})
	return replaced, nil
}

// compute runs fn inside the per-key critical section of key and stores its result.
// An empty result removes the key from the map.
//
// Note: the chain passed to fn is shared with earlier snapshots. fn must derive
// a new chain (Appended, ReplaceHead) and never modify the old one.
func (maple *mapleImpl) compute(key uint64, fn func(old chain.Chain) chain.Chain) {
	maple.loadLock.RLock()
	defer maple.loadLock.RUnlock()

	shard := maple.shardFor(key)
	shard.Data.Compute(key, func(old chain.Chain, _ bool) (chain.Chain, bool) {
		next := fn(old)
		return next, next.IsEmpty() // true means delete
	})
}

// --------------------------------------------------------------------------
// Core ChainDB Interface Methods - Query Operations
// --------------------------------------------------------------------------

// Get returns the current chain of key or the empty chain.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Get(key uint64) (chain.Chain, error) {
	maple.loadLock.RLock()
	defer maple.loadLock.RUnlock()

	c, _ := maple.shardFor(key).Data.Load(key)
	return c, nil
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save writes a fuzzy snapshot of all shards. Writes that happen while Save
// runs may or may not be included.
func (maple *mapleImpl) Save(w io.Writer) error {
	maple.loadLock.RLock()
	defer maple.loadLock.RUnlock()

	sw, err := db.NewSnapshotWriter(w, db.SnapshotHeader{
		Sequence: maple.Sequence(),
		WriteIdx: maple.WriteIdx(),
	})
	if err != nil {
		return err
	}

	for _, shard := range maple.shards {
		shard.Data.Range(func(key uint64, c chain.Chain) bool {
			err = sw.Write(key, c)
			return err == nil
		})
		if err != nil {
			return err
		}
	}

	return sw.Close()
}

// Load replaces the content of the database with the snapshot read from r.
func (maple *mapleImpl) Load(r io.Reader) error {
	maple.loadLock.Lock()
	defer maple.loadLock.Unlock()

	shards := maple.newShards()
	var maxID chain.SequenceID

	header, err := db.ReadSnapshot(r, func(key uint64, c chain.Chain) error {
		for _, id := range c.IDs() {
			maxID = max(maxID, id)
		}
		internal.GetShard(maple.mixKey(key), shards).Data.Store(key, c)
		return nil
	})
	if err != nil {
		return err
	}

	maple.shards = shards
	maple.sequence.Store(uint64(max(header.Sequence, maxID)))
	maple.writeIdx.Store(header.WriteIdx)
	return nil
}

// --------------------------------------------------------------------------
// Metadata
// --------------------------------------------------------------------------

// GetInfo returns size estimates and the shard distribution.
func (maple *mapleImpl) GetInfo() db.DatabaseInfo {
	maple.loadLock.RLock()
	defer maple.loadLock.RUnlock()

	sizes := util.NewSizeHistogram()
	lengths := util.NewSizeHistogram()
	shardSizes := make([]int64, len(maple.shards))

	var wg sync.WaitGroup
	wg.Add(len(maple.shards))
	for shardIndex, shard := range maple.shards {
		go func(i int, s *internal.Shard) {
			defer wg.Done()
			var count int64
			s.Data.Range(func(_ uint64, c chain.Chain) bool {
				sizes.AddSample(chain.EncodedSize(c))
				lengths.AddSample(c.Len())
				count++
				return true
			})
			shardSizes[i] = count
		}(shardIndex, shard)
	}
	wg.Wait()

	meta := &struct {
		Sequence          uint64                 `json:"sequence"`
		CurrentWriteIndex uint64                 `json:"current_write_index"`
		ShardCount        int                    `json:"shard_count"`
		ShardDistribution util.DistributionStats `json:"shard_distribution"`
		Elements          int64                  `json:"elements"`
		MedianChainLength int                    `json:"median_chain_length"`
		AvgChainLength    int                    `json:"avg_chain_length"`
		P99ChainBytes     int                    `json:"p99_chain_bytes"`
		Info              string                 `json:"info"`
	}{
		Sequence:          maple.sequence.Load(),
		CurrentWriteIndex: maple.writeIdx.Load(),
		ShardCount:        len(maple.shards),
		ShardDistribution: util.NewDistributionStats(shardSizes),
		Elements:          lengths.Sum(),
		MedianChainLength: lengths.Median(),
		AvgChainLength:    lengths.Average(),
		P99ChainBytes:     sizes.Percentile(0.99),
		Info:              "SizeBytes is the sum of the encoded chain sizes, percentiles are estimates.",
	}

	return db.DatabaseInfo{
		SizeBytes:         int(sizes.Sum()),
		Keys:              int(lengths.Count()),
		DbType:            db.ImplMaple,
		SupportedFeatures: db.FeaturesOf(supportedFeatures),
		Metadata:          meta,
	}
}

const supportedFeatures = db.FeatureGet |
	db.FeatureAppend |
	db.FeatureGetAndAppend |
	db.FeatureReplaceAtHead |
	db.FeatureSave |
	db.FeatureLoad

// SupportsFeature checks if this implementation supports a specific ChainDB feature
func (maple *mapleImpl) SupportsFeature(feature db.Feature) bool {
	return supportedFeatures&feature == feature
}

// Close is a no-op for the in-memory engine
func (maple *mapleImpl) Close() error {
	return nil
}

// --------------------------------------------------------------------------
// Sequence and Index Management
// --------------------------------------------------------------------------

// Sequence returns the last assigned element id
func (maple *mapleImpl) Sequence() chain.SequenceID {
	return chain.SequenceID(maple.sequence.Load())
}

// SetWriteIdx safely updates the current index
// It only updates if the new index is greater than the current one
//
// Thread-safety: This method is thread-safe and can be called concurrently.
// It uses atomic operations to ensure that the index only increases.
func (maple *mapleImpl) SetWriteIdx(newIdx uint64) {
	for {
		currIdx := maple.writeIdx.Load()
		if newIdx <= currIdx {
			return
		}
		if maple.writeIdx.CompareAndSwap(currIdx, newIdx) {
			return
		}
	}
}

// WriteIdx returns the current index of the database
func (maple *mapleImpl) WriteIdx() uint64 {
	return maple.writeIdx.Load()
}
