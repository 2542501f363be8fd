// Package db provides a standardized interface for chain database implementations.
// It defines the ChainDB interface that allows for consistent interaction
// with various database backends while abstracting implementation details.
//
// The package focuses on:
//   - A unified interface for the four chain operations
//   - Feature discovery through capability flags
//   - A shared snapshot format for persistence
//   - Metadata reporting
//
// Key Components:
//
//   - ChainDB Interface: The core interface that all database implementations must satisfy.
//     It provides Get, Append, GetAndAppend and ReplaceAtHead, metadata retrieval
//     (GetInfo) and persistence (Save, Load).
//
//   - Feature Flags: The Feature type defines capability flags that implementations
//     can advertise through the SupportsFeature method.
//
//   - Implementation Identifiers: "maple" (in-memory), "pebble" (on disk) and
//     "bounded" (in-memory with a hard size limit).
//
//   - Snapshots: NewSnapshotWriter and ReadSnapshot implement the binary format
//     used by Save and Load of every engine.
//
// Note on Sequencing:
//   - Every ChainDB owns the sequence counter that assigns element ids. Ids are
//     assigned inside the per-key critical section of the write, so the ids of
//     one chain grow in append order and no id is ever handed out twice.
//   - The write index is independent of the sequence. It records the position of
//     the last applied write of an outer log (for example raft) and is only
//     ever increased.
//
// Related Packages:
//
// The engines/maple package (github.com/ValentinKolb/dChain/lib/db/engines/maple) is the
// default sharded in-memory implementation, engines/pebble stores chains in a
// cockroachdb/pebble database and engines/bounded keeps them in an allegro/bigcache ring
// buffer with a hard memory limit.
//
// The testing package (github.com/ValentinKolb/dChain/lib/db/testing) provides
// standardized tests and benchmarks for database implementations that satisfy the db.ChainDB interface.
//   - RunChainDBTests: Runs a standardized test suite to validate implementations
//   - RunChainDBBenchmarks: Provides performance benchmarks for comparing implementations
package db
