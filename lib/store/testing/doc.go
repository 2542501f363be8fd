// Package testing provides a conformance suite for store.IServerStore
// implementations.
//
// The suite checks the observable contract of the four chain operations:
// empty chains for missing keys, order preservation, GetAndAppend returning
// the prior snapshot, compaction through ReplaceAtHead that keeps concurrently
// appended elements, stale compactions being silent no-ops and the
// independence of keys.
//
// Example usage:
//
//	factory := func(t testing.TB) store.IServerStore {
//		return lstore.NewLocalStore(func() db.ChainDB { return maple.NewMapleDB(nil) })
//	}
//	storetesting.RunServerStoreTests(t, "LocalStore", factory)
package testing
