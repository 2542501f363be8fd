package lockmgr

import (
	"bytes"
	"time"

	"github.com/ValentinKolb/dChain/lib/chain"
	"github.com/ValentinKolb/dChain/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("lockmgr")

// compactThreshold is the chain length at which ReleaseLock compacts the chain
const compactThreshold = 8

// LockManager implements ILockManager on the chains of a store. It has no
// state of its own, any number of lock managers can share one store.
type LockManager struct {
	store store.IServerStore
	now   func() time.Time
}

var _ ILockManager = (*LockManager)(nil)

// NewLockManager creates a lock manager that keeps its locks in the chains of s.
func NewLockManager(s store.IServerStore) *LockManager {
	return &LockManager{
		store: s,
		now:   time.Now,
	}
}

func (lm *LockManager) AcquireLock(key uint64, timeout time.Duration) (bool, []byte, error) {
	ownerID, err := generateOwnerID()
	if err != nil {
		return false, nil, err
	}

	now := lm.now().UnixNano()
	rec := record{Kind: kindAcquire, Owner: ownerID, At: now}
	if timeout > 0 {
		rec.Deadline = now + int64(timeout)
	}
	payload, err := recordCodec.Encode(rec)
	if err != nil {
		return false, nil, err
	}

	// The record is appended in any case. Whether it wins is decided by the
	// records before it, which GetAndAppend returns atomically.
	prior, err := lm.store.GetAndAppend(key, payload)
	if err != nil {
		return false, nil, err
	}
	state, err := resolve(prior)
	if err != nil {
		return false, nil, err
	}

	if state.heldAt(now) {
		return false, nil, nil
	}
	return true, ownerID, nil
}

func (lm *LockManager) ReleaseLock(key uint64, ownerID []byte) (bool, error) {
	c, err := lm.store.Get(key)
	if err != nil {
		return false, err
	}
	state, err := resolve(c)
	if err != nil {
		return false, err
	}

	// Not held by anyone
	if state.Holder == nil {
		return true, nil
	}
	// Check if the lock is held by us
	if !bytes.Equal(state.Holder, ownerID) {
		return false, nil
	}

	payload, err := recordCodec.Encode(record{Kind: kindRelease, Owner: ownerID, At: lm.now().UnixNano()})
	if err != nil {
		return false, err
	}
	if err := lm.store.Append(key, payload); err != nil {
		return false, err
	}

	if c.Len()+1 >= compactThreshold {
		if err := lm.Compact(key); err != nil {
			log.Warningf("compacting lock %d failed: %v", key, err)
		}
	}
	return true, nil
}

// Compact collapses the lock chain of key into a single state record, or
// removes it if nobody holds the lock. Records appended concurrently survive
// behind the state record. If another client compacted first the head no
// longer matches and the chain is left as it is.
func (lm *LockManager) Compact(key uint64) error {
	observed, err := lm.store.Get(key)
	if err != nil {
		return err
	}
	if observed.Len() < 2 {
		return nil
	}

	state, err := resolve(observed)
	if err != nil {
		return err
	}

	update := chain.Empty()
	if state.Holder != nil {
		payload, err := recordCodec.Encode(record{Kind: kindState, Owner: state.Holder, Deadline: state.Deadline})
		if err != nil {
			return err
		}
		update = chain.FromPayloads(payload)
	}
	return lm.store.ReplaceAtHead(key, observed, update)
}
