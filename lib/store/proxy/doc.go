// Package proxy provides the ServerStoreProxy, the single entry point a cache
// tier uses for one named store.
//
// The proxy forwards Get, Append, GetAndAppend and ReplaceAtHead to any
// store.IServerStore (local, raft, redis or a remote store over rpc) and
// records latency, errors and payload sizes in a management.Registry. It does
// not retry, lock or cache. A failed call is reported to the caller as is; its
// outcome is unknown and the caller should read the chain again before
// deciding what to do.
//
//	registry := management.NewRegistry(nil)
//	p := proxy.NewServerStoreProxy("sessions", s, registry)
//
//	prior, err := p.GetAndAppend(key, payload)
//	...
//	err = p.ReplaceAtHead(key, prior, resolved) // stale prior: silent no-op
package proxy
