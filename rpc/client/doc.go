// Package client implements RPC clients for the chain store.
// It provides implementations of the store.IServerStore and lockmgr.ILockManager
// interfaces that communicate with remote servers via RPC.
//
// The package focuses on:
//   - Transparent RPC access to chain stores and lock managers
//   - Integration with the transport and serialization layers
//   - Error handling and conversion between RPC and domain errors
//
// Key Components:
//
//   - NewRPCStore: Factory function that creates a client implementing the
//     store.IServerStore interface. Chains travel in their binary encoding, a
//     ReplaceAtHead only sends the ids of the expected head.
//
//   - NewRPCLockMgr: Factory function that creates a client implementing the
//     lockmgr.ILockManager interface for distributed locking operations.
//
//   - NewRPCStats: Reads the statistics the server collects per shard.
//
// Errors returned by the remote store keep their store.RetCode, so
// errors.Is(err, &store.Error{Code: store.RetCInvalidOperation}) works across
// the wire.
//
// Usage Example:
//
//	// Configure the client
//	config := common.ClientConfig{
//	  TimeoutSecond: 5,
//	  Transport: common.ClientTransportConfig{
//	    Endpoints:              []string{"localhost:8080"},
//	    RetryCount:             3,
//	    ConnectionsPerEndpoint: 1,
//	  },
//	}
//
//	// Create store client
//	s, _ := client.NewRPCStore(1, config, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
//
//	// Use the store
//	_ = s.Append(42, []byte("event"))
//	c, _ := s.Get(42)
//	_ = s.ReplaceAtHead(42, c, chain.FromPayloads([]byte("snapshot")))
//
//	// Create and use a lock manager
//	locks, _ := client.NewRPCLockMgr(2, config, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
//	acquired, ownerID, _ := locks.AcquireLock(7, 30*time.Second)
//	if acquired {
//	  locks.ReleaseLock(7, ownerID)
//	}
//
// Performance Considerations:
//
//   - For applications that frequently send large chains, increasing ConnectionsPerEndpoint
//     can improve throughput by allowing parallel requests.
//
//   - For small messages, a single connection per endpoint is often more efficient due to
//     reduced connection overhead.
//
//   - The choice of serializer significantly affects performance. The binary serializer
//     provides the best performance and smallest payload size.
//
// A request whose transport fails may still have been applied. The transports
// retry failed sends, so an Append can be applied twice in that case.
//
// Thread Safety:
//
//	All client implementations are thread-safe and can be used concurrently from
//	multiple goroutines without additional synchronization.
package client
