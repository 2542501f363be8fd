// Package server implements the RPC server of the chain store.
// It provides adapters for handling RPC requests to both chain store and lock manager services,
// along with the core server implementation that manages shards and request routing.
//
// The package focuses on:
//   - Server-side RPC request handling for both chain store and lock manager operations
//   - Adapter pattern to decouple application logic from RPC mechanisms
//   - Flexible shard configuration with local, distributed (raft) and redis backed stores
//   - Per shard statistics and request metrics
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server adapters,
//     with the Handle method that processes incoming requests against a store.IServerStore.
//
//   - NewIStoreServerAdapter: Factory function creating an adapter for the chain
//     operations (Get, Append, GetAndAppend, ReplaceAtHead).
//
//   - NewLockManagerServerAdapter: Factory function creating an adapter for distributed
//     locking operations, creating a lockmgr.ILockManager on top of the store.
//
//   - NewRPCServer: Factory function creating a configured server with the specified
//     transport and serializer mechanisms.
//
// Every shard store is wrapped in a proxy.ServerStoreProxy named "shard-<id>" which
// records the statistics answered by stats requests and the /stats endpoint of the
// metrics listener. The metrics listener also serves /metrics in prometheus format.
//
// Usage Example:
//
//	// Create server configuration
//	config := common.ServerConfig{
//	  Shards: []common.ServerShard{
//	    {ShardID: 100, Type: common.ShardTypeLocalIStore},
//	    {ShardID: 200, Type: common.ShardTypeLocalILockManager},
//	  },
//	  Engine:        "maple",
//	  TimeoutSecond: 5,
//	  Transport:     common.ServerTransportConfig{Endpoint: "0.0.0.0:8080", WorkersPerConn: 16},
//	  LogLevel:      "info",
//	}
//
//	// Create and start the server
//	s := server.NewRPCServer(
//	  config,
//	  tcp.NewTCPDefaultServerTransport(),
//	  serializer.NewBinarySerializer(),
//	)
//
//	// Start the server
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// The server supports six types of shards, which can be mixed within a single server:
//
//   - ShardTypeLocalIStore: A local store implementation, suitable for single-node deployments
//     or development environments.
//
//   - ShardTypeRemoteIStore: A distributed store implementation using Raft consensus,
//     providing strong consistency across multiple nodes. When using this type,
//     RAFT configuration (RTTMillisecond, SnapshotEntries, CompactionOverhead,
//     DataDir, ReplicaID, and ClusterMembers) must be properly configured.
//
//   - ShardTypeRedisIStore: Chains stored in redis. All redis shards share one client,
//     each shard uses its own namespace.
//
//   - ShardTypeLocalILockManager, ShardTypeRemoteILockManager, ShardTypeRedisILockManager:
//     Lock managers on top of the corresponding store.
//
// Local and remote shards use the database engine set in ServerConfig.Engine
// (maple, pebble or bounded). Pebble databases live in DataDir/pebble/shard-<id>.
//
// Thread Safety:
//
//	The server implementation is thread-safe and can handle concurrent requests
//	across multiple connections. Each request is processed independently.
//	The Serve method is not thread-safe and should be called only once.
package server
