// Package bounded implements an in-memory chain database with a hard memory
// limit on top of allegro/bigcache.
//
// Chains are stored encoded in the bigcache ring buffer. When the limit is
// reached bigcache evicts the oldest written entries; an evicted key reads as
// the empty chain, exactly like a key that was never written. Ids stay unique
// across evictions, so a caller holding a snapshot of an evicted chain can
// never compact a new chain of the same key by accident.
//
// Writes take the stripe lock of their key (util.KeyLocks) around the
// read-modify-write on the cache.
//
// Note: bigcache addresses entries by a 64 bit hash. On a hash collision the
// newer key replaces the older one, which then reads as evicted.
package bounded
