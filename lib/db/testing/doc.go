// Package testing provides standardised tests and benchmarks for
// database implementations that satisfy the db.ChainDB interface.
//
// The package contains:
//   - testing: a conformance suite for the chain operations, including
//     concurrent appends and a compaction race that must not lose writes
//   - benchmark: performance tests for the four chain operations
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func(t testing.TB) db.ChainDB {
//		return NewMyDatabase()
//	}
//
//	// Running the standard test suite
//	dbtesting.RunChainDBTests(t, "MyDatabase", factory)
//
//	// Running performance benchmarks
//	dbtesting.RunChainDBBenchmarks(b, "MyDatabase", factory)
package testing
