package lockmgr

import "time"

// ILockManager defines the interface for a lockmgr provider.
type ILockManager interface {
	// AcquireLock acquires a lock for the given key with an optional timeout (0 = no timeout).
	// Return a boolean indicating whether the lock was acquired, an owner ID, and an error if any.
	AcquireLock(key uint64, timeout time.Duration) (ok bool, ownerID []byte, err error)

	// ReleaseLock releases the lock for the given key.
	// Return a boolean indicating whether the lock was released, and an error if any.
	// The method will also return True if the lock is not held by anyone.
	ReleaseLock(key uint64, ownerID []byte) (ok bool, err error)
}
