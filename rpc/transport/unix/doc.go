// Package unix connects dChain clients and servers on the same host through a
// unix domain socket. The endpoint is the socket path, e.g. /tmp/dchain.sock.
// A stale socket file left by a crashed server is removed before listening.
//
// Framing, pooling and multiplexing come from the base package. The default
// read buffer is 64 KB and the socket buffer sizes of SocketConf apply.
package unix
