package util

import (
	"runtime"
	"sync"
)

// KeyLocks is a fixed set of mutexes addressed by key. Two keys share a lock
// only if they fall into the same stripe, so writes to different keys
// rarely contend.
type KeyLocks struct {
	stripes []paddedMutex
}

// paddedMutex keeps neighbouring stripes on separate cache lines
type paddedMutex struct {
	sync.Mutex
	_ [56]byte
}

// NewKeyLocks creates a KeyLocks with n stripes (n <= 0 = 64 per CPU).
func NewKeyLocks(n int) *KeyLocks {
	if n <= 0 {
		n = 64 * runtime.NumCPU()
	}
	return &KeyLocks{stripes: make([]paddedMutex, n)}
}

// Lock locks the stripe of key and returns the matching unlock function.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (k *KeyLocks) Lock(key uint64) (unlock func()) {
	m := &k.stripes[mix(key)%uint64(len(k.stripes))].Mutex
	m.Lock()
	return m.Unlock
}

// mix spreads sequential keys over all stripes (splitmix64 finalizer)
func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
