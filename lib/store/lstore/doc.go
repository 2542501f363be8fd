// Package lstore implements a local, single-node chain store based on the
// store.IServerStore interface. It is a thin wrapper around any db.ChainDB
// implementation.
//
// Implementation Details:
//
//   - Per-key atomicity is provided by the engine. The store adds no locking of
//     its own, operations on different keys never block each other.
//
//   - Write Index Management: The store counts successful writes and forwards
//     the count to the engine via SetWriteIdx. A stale ReplaceAtHead does not
//     advance the index.
//
//   - Feature Detection: Before executing an operation the store checks if the
//     engine supports it. Unsupported operations return
//     store.RetCUnsupportedOperation. Engine failures are reported as
//     store.RetCInternalError.
//
// Usage Example:
//
//	factory := func() db.ChainDB { return maple.NewMapleDB(nil) }
//	s := lstore.NewLocalStore(factory)
//
//	_ = s.Append(42, []byte("a"))
//	prior, _ := s.GetAndAppend(42, []byte("b")) // [a]
//	_ = s.ReplaceAtHead(42, prior, chain.FromPayloads([]byte("a'")))
//	c, _ := s.Get(42)                           // [a' b]
//
// Persistence depends on the engine: maple and bounded lose their data when the
// process exits, pebble keeps it on disk.
package lstore
