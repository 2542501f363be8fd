package pebbledb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dChain/lib/chain"
	"github.com/ValentinKolb/dChain/lib/db"
	"github.com/ValentinKolb/dChain/lib/db/util"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	chainPrefix = 'c' // c | key u64 -> encoded chain
	metaPrefix  = 'm' // m | name   -> u64

	loadBatchSize = 1000
)

var (
	metaSequence = []byte{metaPrefix, 's', 'e', 'q'}
	metaWriteIdx = []byte{metaPrefix, 'w', 'i', 'd', 'x'}

	chainLowerBound = []byte{chainPrefix}
	chainUpperBound = []byte{chainPrefix + 1}
)

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// DBOptions configures the pebble engine.
type DBOptions struct {
	DataDir   string        // directory of the database (ignored if InMemory)
	InMemory  bool          // keep everything in an in-memory file system
	FS        vfs.FS        // file system to use instead of the os (or memory) one
	Sync      bool          // fsync the WAL on every write
	SyncEvery time.Duration // group commit interval if Sync is false (0 = 5ms)
	LockCount int           // number of per-key lock stripes (0 = auto)
}

// DefaultOptions returns options for an on-disk database in dataDir
func DefaultOptions(dataDir string) *DBOptions {
	return &DBOptions{DataDir: dataDir}
}

// --------------------------------------------------------------------------
// Core structure
// --------------------------------------------------------------------------

type pebbleImpl struct {
	inner     *pebble.DB
	writeOpts *pebble.WriteOptions
	locks     *util.KeyLocks

	seqMu sync.Mutex
	seq   uint64 // last assigned id

	// commits are serialized so the sequence and write index on disk never
	// go backwards
	commitMu sync.Mutex
	writeIdx atomic.Uint64 // stored with the next commit
}

// NewPebbleDB opens (or creates) a pebble backed chain database.
func NewPebbleDB(opts *DBOptions) (db.ChainDB, error) {
	if opts == nil {
		return nil, errors.New("pebble: options are required")
	}
	if opts.DataDir == "" && !opts.InMemory && opts.FS == nil {
		return nil, errors.New("pebble: DataDir is required")
	}

	dir := opts.DataDir
	po := &pebble.Options{FS: opts.FS}
	if opts.InMemory && po.FS == nil {
		po.FS = vfs.NewMem()
	}
	if dir == "" {
		dir = "dchain"
	}

	syncEvery := opts.SyncEvery
	if syncEvery <= 0 {
		syncEvery = 5 * time.Millisecond
	}
	writeOpts := pebble.Sync
	if !opts.Sync {
		// group commit, pebble coalesces WAL syncs within the interval
		po.WALMinSyncInterval = func() time.Duration { return syncEvery }
		writeOpts = pebble.NoSync
	}

	inner, err := pebble.Open(dir, po)
	if err != nil {
		return nil, fmt.Errorf("pebble: open %s: %w", dir, err)
	}

	p := &pebbleImpl{
		inner:     inner,
		writeOpts: writeOpts,
		locks:     util.NewKeyLocks(opts.LockCount),
	}

	seq, err := p.readMeta(metaSequence)
	if err != nil {
		_ = inner.Close()
		return nil, err
	}
	writeIdx, err := p.readMeta(metaWriteIdx)
	if err != nil {
		_ = inner.Close()
		return nil, err
	}

	// both are committed together with the chains they belong to
	p.seq = seq
	p.writeIdx.Store(writeIdx)

	return p, nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func chainKey(key uint64) []byte {
	k := make([]byte, 9)
	k[0] = chainPrefix
	binary.BigEndian.PutUint64(k[1:], key)
	return k
}

func (p *pebbleImpl) readMeta(name []byte) (uint64, error) {
	val, closer, err := p.inner.Get(name)
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("pebble: read %s: %w", name, err)
	}
	defer closer.Close()
	if len(val) != 8 {
		return 0, fmt.Errorf("pebble: corrupt meta value %s", name)
	}
	return binary.BigEndian.Uint64(val), nil
}

func (p *pebbleImpl) writeMeta(b *pebble.Batch, name []byte, v uint64) error {
	return b.Set(name, binary.BigEndian.AppendUint64(nil, v), nil)
}

// nextID hands out the next id. It reaches disk with the commit of the
// chain that holds it.
func (p *pebbleImpl) nextID() chain.SequenceID {
	p.seqMu.Lock()
	defer p.seqMu.Unlock()
	p.seq++
	return chain.SequenceID(p.seq)
}

func (p *pebbleImpl) read(key uint64) (chain.Chain, error) {
	val, closer, err := p.inner.Get(chainKey(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return chain.Empty(), nil
	}
	if err != nil {
		return chain.Chain{}, fmt.Errorf("pebble: get %d: %w", key, err)
	}
	defer closer.Close()

	// Decode copies the payloads, val is only valid until closer.Close
	return chain.Decode(val)
}

// update runs fn while holding the lock of key and writes the result in one
// batch with the current sequence and write index, so a crash never keeps a
// chain without the raft index that produced it. fn returns false if nothing
// has to be written.
func (p *pebbleImpl) update(key uint64, fn func(old chain.Chain) (chain.Chain, bool, error)) error {
	unlock := p.locks.Lock(key)
	defer unlock()

	old, err := p.read(key)
	if err != nil {
		return err
	}
	next, write, err := fn(old)
	if err != nil || !write {
		return err
	}

	b := p.inner.NewBatch()
	defer b.Close()
	if next.IsEmpty() {
		err = b.Delete(chainKey(key), nil)
	} else {
		err = b.Set(chainKey(key), chain.Encode(next), nil)
	}
	if err != nil {
		return err
	}

	p.commitMu.Lock()
	defer p.commitMu.Unlock()
	if err := p.writeMeta(b, metaSequence, uint64(p.Sequence())); err != nil {
		return err
	}
	if err := p.writeMeta(b, metaWriteIdx, p.WriteIdx()); err != nil {
		return err
	}
	if err := b.Commit(p.writeOpts); err != nil {
		return fmt.Errorf("pebble: commit %d: %w", key, err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see db.ChainDB)
// --------------------------------------------------------------------------

func (p *pebbleImpl) Append(key uint64, payload []byte) (chain.SequenceID, error) {
	var id chain.SequenceID
	err := p.update(key, func(old chain.Chain) (chain.Chain, bool, error) {
		id = p.nextID()
		return old.Appended(chain.NewElement(id, payload)), true, nil
	})
	return id, err
}

func (p *pebbleImpl) GetAndAppend(key uint64, payload []byte) (chain.Chain, error) {
	var prior chain.Chain
	err := p.update(key, func(old chain.Chain) (chain.Chain, bool, error) {
		prior = old
		return old.Appended(chain.NewElement(p.nextID(), payload)), true, nil
	})
	return prior, err
}

func (p *pebbleImpl) ReplaceAtHead(key uint64, expect, update chain.Chain) (bool, error) {
	var replaced bool
	err := p.update(key, func(old chain.Chain) (chain.Chain, bool, error) {
		next, ok := chain.ReplaceHead(old, expect, update, p.nextID)
		replaced = ok
		return next, ok, nil
	})
	return replaced, err
}

func (p *pebbleImpl) Get(key uint64) (chain.Chain, error) {
	return p.read(key)
}

// Save writes a consistent snapshot taken from a pebble snapshot.
func (p *pebbleImpl) Save(w io.Writer) error {
	snap := p.inner.NewSnapshot()
	defer snap.Close()

	sw, err := db.NewSnapshotWriter(w, db.SnapshotHeader{
		Sequence: p.Sequence(),
		WriteIdx: p.WriteIdx(),
	})
	if err != nil {
		return err
	}

	iter := snap.NewIter(&pebble.IterOptions{LowerBound: chainLowerBound, UpperBound: chainUpperBound})
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		c, err := chain.Decode(iter.Value())
		if err != nil {
			return fmt.Errorf("pebble: decode %x: %w", iter.Key(), err)
		}
		if err := sw.Write(binary.BigEndian.Uint64(iter.Key()[1:]), c); err != nil {
			return err
		}
	}
	if err := iter.Error(); err != nil {
		return err
	}
	return sw.Close()
}

// Load replaces all chains with the content of the snapshot.
//
// Note: Load is not atomic with respect to concurrent writers. It is used when
// the database is restored, before it serves requests.
func (p *pebbleImpl) Load(r io.Reader) error {
	b := p.inner.NewBatch()
	if err := b.DeleteRange(chainLowerBound, chainUpperBound, nil); err != nil {
		b.Close()
		return err
	}

	var maxID chain.SequenceID
	count := 0
	header, err := db.ReadSnapshot(r, func(key uint64, c chain.Chain) error {
		for _, id := range c.IDs() {
			maxID = max(maxID, id)
		}
		if err := b.Set(chainKey(key), chain.Encode(c), nil); err != nil {
			return err
		}
		count++
		if count%loadBatchSize == 0 {
			if err := b.Commit(pebble.NoSync); err != nil {
				return err
			}
			b.Close()
			b = p.inner.NewBatch()
		}
		return nil
	})
	if err != nil {
		b.Close()
		return fmt.Errorf("pebble: load: %w", err)
	}

	seq := uint64(max(header.Sequence, maxID))
	if err := p.writeMeta(b, metaSequence, seq); err != nil {
		b.Close()
		return err
	}
	if err := p.writeMeta(b, metaWriteIdx, header.WriteIdx); err != nil {
		b.Close()
		return err
	}
	err = b.Commit(pebble.Sync)
	b.Close()
	if err != nil {
		return fmt.Errorf("pebble: load: %w", err)
	}

	p.seqMu.Lock()
	p.seq = seq
	p.seqMu.Unlock()
	p.writeIdx.Store(header.WriteIdx)
	return nil
}

const supportedFeatures = db.FeatureGet |
	db.FeatureAppend |
	db.FeatureGetAndAppend |
	db.FeatureReplaceAtHead |
	db.FeatureSave |
	db.FeatureLoad |
	db.FeaturePersistent

func (p *pebbleImpl) SupportsFeature(feature db.Feature) bool {
	return supportedFeatures&feature == feature
}

// GetInfo counts the stored chains with a key only scan.
func (p *pebbleImpl) GetInfo() db.DatabaseInfo {
	keys := 0
	iter := p.inner.NewIter(&pebble.IterOptions{LowerBound: chainLowerBound, UpperBound: chainUpperBound})
	for iter.First(); iter.Valid(); iter.Next() {
		keys++
	}
	_ = iter.Close()

	m := p.inner.Metrics()
	meta := &struct {
		Sequence          uint64 `json:"sequence"`
		CurrentWriteIndex uint64 `json:"current_write_index"`
		Levels            int    `json:"levels"`
		WALBytes          uint64 `json:"wal_bytes"`
	}{
		Sequence:          uint64(p.Sequence()),
		CurrentWriteIndex: p.WriteIdx(),
		Levels:            len(m.Levels),
		WALBytes:          m.WAL.Size,
	}

	return db.DatabaseInfo{
		SizeBytes:         int(m.DiskSpaceUsage()),
		Keys:              keys,
		DbType:            db.ImplPebble,
		SupportedFeatures: db.FeaturesOf(supportedFeatures),
		Metadata:          meta,
	}
}

func (p *pebbleImpl) Sequence() chain.SequenceID {
	p.seqMu.Lock()
	defer p.seqMu.Unlock()
	return chain.SequenceID(p.seq)
}

// SetWriteIdx raises the write index. It is persisted with the next write,
// callers set it before the write it belongs to.
func (p *pebbleImpl) SetWriteIdx(newIdx uint64) {
	for {
		currIdx := p.writeIdx.Load()
		if newIdx <= currIdx {
			return
		}
		if p.writeIdx.CompareAndSwap(currIdx, newIdx) {
			return
		}
	}
}

func (p *pebbleImpl) WriteIdx() uint64 {
	return p.writeIdx.Load()
}

// Close persists the write index and closes pebble.
func (p *pebbleImpl) Close() error {
	b := p.inner.NewBatch()
	err := p.writeMeta(b, metaWriteIdx, p.WriteIdx())
	if err == nil {
		err = b.Commit(pebble.Sync)
	}
	b.Close()
	return errors.Join(err, p.inner.Close())
}
