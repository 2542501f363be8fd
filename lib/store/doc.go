// Package store defines the server side contract of a chain store and the
// error type shared by all implementations.
//
// Every key of a store addresses one chain (see package chain). A chain only
// grows through Append and GetAndAppend and is compacted through
// ReplaceAtHead, an optimistic compare-and-swap over the head of the chain:
//
//	prior, _ := s.GetAndAppend(key, payload)    // read and record in one step
//	resolved := resolve(prior)                  // caller side interpretation
//	_ = s.ReplaceAtHead(key, prior, resolved)   // no-op if someone else compacted first
//
// Elements appended by other clients between the read and the ReplaceAtHead
// survive the compaction behind the new head.
//
// Key Components:
//
//   - IServerStore Interface: The four chain operations plus GetDBInfo. All
//     implementations share this interface, so applications can switch
//     between backends without code changes.
//
//   - Error System: Typed return codes (RetCode) with a message. Error
//     implements errors.Is by code. A stale ReplaceAtHead is not an error.
//
//   - DBFactory: Creates the db.ChainDB instance a store works on.
//
// Implementations:
//
//   - Local Store (lstore): Directly uses a db.ChainDB instance. Suitable for
//     single node deployments.
//     Available in the "github.com/ValentinKolb/dChain/lib/store/lstore" package.
//
//   - Distributed Store (dstore): Replicates every operation through the
//     Dragonboat RAFT log. Element ids are assigned while the log entry is
//     applied, so every replica assigns the same ids.
//     Available in the "github.com/ValentinKolb/dChain/lib/store/dstore" package.
//
//   - Redis Store (rstore): Keeps the chains in a redis server. Each operation
//     is a single Lua script, which redis runs atomically.
//     Available in the "github.com/ValentinKolb/dChain/lib/store/rstore" package.
//
// The proxy package wraps any IServerStore into the named entry point a cache
// tier uses for one store, and records per-store statistics.
package store
