// Package management keeps per-store statistics of the chain operations.
//
// A Registry holds one StoreStatistics per named store. The proxy records the
// latency of every call, errors, the number of returned chain elements and
// the payload bytes sent. Snapshot returns a JSON friendly view that the rpc
// server hands out on a stats request.
//
// The metrics are rcrowley/go-metrics timers, counters and meters, so they
// can also be exported with any go-metrics reporter.
package management
