// Package util provides utility components for
// database implementations that satisfy the db.ChainDB interface.
//
// The package contains:
//   - statistics: a SizeHistogram for tracking chain size distributions and helpers for distribution statistics
//   - functions: hash functions, seed generation and ParseKey for user supplied keys
//   - keylock: striped per-key mutexes for engines whose storage has no atomic read-modify-write
package util
