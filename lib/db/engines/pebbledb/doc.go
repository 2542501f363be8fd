// Package pebbledb implements a persistent chain database on top of
// cockroachdb/pebble.
//
// Layout: every chain is stored as one value under the key 'c' + key (big
// endian), encoded with chain.Encode. Database wide counters live under 'm'
// prefixed keys.
//
// Atomicity: pebble has no read-modify-write primitive, so every write takes
// the stripe lock of its key (util.KeyLocks), reads the chain, computes the
// new chain and commits it in a batch. Reads go to pebble directly and see
// the last committed chain.
//
// Sequencing: the last assigned id and the write index (raft log index of
// the last applied entry) are written into the batch of every chain write.
// After a crash the database resumes exactly at the last committed write, so
// a raft replica skips the entries it already holds and assigns the same ids
// as its peers when it applies the rest. Commits are serialized for this.
//
// Usage:
//
//	database, err := pebbledb.NewPebbleDB(pebbledb.DefaultOptions("./data"))
//	if err != nil { /* handle */ }
//	defer database.Close()
package pebbledb
