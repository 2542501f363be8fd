// Package base implements the stream transports (tcp, unix) of dChain. The
// protocol specific parts (dialing, listening, socket options) are supplied
// by an IClientConnector or IServerConnector, everything else lives here.
//
// Frame Format:
//
//	shardID    8 bytes, uint64 big endian
//	requestID  8 bytes, uint64 big endian
//	length     4 bytes, uint32 big endian
//	data       length bytes, the serialized common.Message
//
// Client:
//
//	The client keeps ConnectionsPerEndpoint connections to every endpoint and
//	picks one round-robin per request. Requests are multiplexed: each gets a
//	unique requestID and waits for the response frame with the same id, so
//	one connection carries many requests at once. A connection that fails to
//	read fails all of its pending requests and is redialed in the background
//	until the transport is closed.
//
//	Send retries up to RetryCount times on another connection. A retried
//	Append may be applied twice if the first attempt reached the server.
//
// Server:
//
//	Every accepted connection gets its own reader goroutine and at most
//	WorkersPerConn concurrent handlers. Responses are written under a
//	per-connection mutex with the configured write timeout. Read buffers come
//	from a sync.Pool sized by the connector (512 KB tcp, 64 KB unix), larger
//	frames get a temporary buffer. Connections have no read deadline, pooled
//	clients keep idle connections open.
//
//	Listen returns nil once Close was called.
package base
