// Package transport defines how serialized messages travel between the dChain
// client and server. A transport only moves bytes tagged with a shard id, it
// knows nothing about chains or the serializer in use.
//
// Implementations:
//
//   - base: shared framing, connection pooling and request multiplexing
//   - tcp, unix: stream transports built on base
//   - http: one POST /{shardId} request per message, routed by chi
//
// IRPCServerTransport.Listen blocks until Close, IRPCClientTransport.Send is
// safe for concurrent use.
package transport
