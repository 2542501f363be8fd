// Package maple implements the default in-memory chain database. It provides
// a complete implementation of the db.ChainDB interface with a focus on
// concurrency and low latency.
//
// Key Components:
//
//   - mapleImpl: The central structure implementing db.ChainDB. It manages the
//     shards, the sequence counter for element ids and the write index.
//
//   - Shard: A partition of the key space backed by an xsync.MapOf. All writes
//     go through MapOf.Compute, which gives every key its own critical section.
//     Operations on different keys never wait for each other (apart from
//     sharing a map bucket).
//
// Internal Mechanisms:
//
//   - Sharding Strategy: keys are mixed with a per-instance seed and right
//     shifted by 7 bits to pick a shard.
//
//   - Sequencing: element ids come from one atomic counter. The id is taken
//     inside the Compute callback, so the ids of one chain always grow in
//     append order.
//
//   - Copy on Write: stored chains are never modified. Append derives a chain
//     that shares the old backing array, ReplaceAtHead builds a new one.
//     Snapshots handed to callers therefore stay valid without copying.
//
//   - Persistence: Save writes a fuzzy snapshot in the shared db snapshot
//     format, Load swaps all shards at once.
package maple
