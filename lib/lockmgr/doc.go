// Package lockmgr implements a locking mechanism on chain stores that
// implement the store.IServerStore interface.
//
// The lockmgr only ever stores in the provided store and has no other internal
// state. Therefore it is safe to be created multiple times on the same store,
// even a new lockmgr for every acquire or release works.
//
// Implementation Approach:
//
//	Every lock key has a chain of msgpack encoded records (acquire, release and
//	compacted state). The current state of a lock is the result of folding all
//	records of the chain in order. The fold only depends on the records, so
//	every client computes the same holder for the same chain.
//
//	- Lock Acquisition: The acquire record is appended with GetAndAppend. The
//	  record wins if the chain before it (which GetAndAppend returns atomically)
//	  resolves to a free or expired lock. Exactly one of many concurrent
//	  acquirers sees a free lock.
//
//	- Timeouts: An acquire record can carry a deadline. Expiry is evaluated with
//	  the timestamp of the next acquire record, so clients with skewed clocks
//	  may take an expired lock a little early or late.
//
//	- Safe Release: ReleaseLock resolves the chain and appends a release record
//	  only if the caller is the current holder.
//
//	- Compaction: Compact reads the chain, resolves it and replaces it with a
//	  single state record (or nothing if the lock is free) via ReplaceAtHead.
//	  Records appended in the meantime stay behind the state record and keep
//	  their meaning. ReleaseLock compacts long chains automatically.
//
// Usage Example:
//
//	lm := lockmgr.NewLockManager(s)
//
//	acquired, ownerID, err := lm.AcquireLock(key, 30*time.Second)
//	if err != nil {
//	    // Handle error
//	}
//	if acquired {
//	    // Use the resource
//	    released, err := lm.ReleaseLock(key, ownerID)
//	    ...
//	}
//
// Performance Impact:
//
//   - AcquireLock: one GetAndAppend
//   - ReleaseLock: one Get and one Append, plus a compaction every few releases
package lockmgr
