// Package chain provides the data model of dChain: elements and chains.
//
// A chain is the value of one key. It is an ordered, immutable snapshot of
// every update applied to the key since it was last compacted, oldest first.
// Each element carries an opaque payload and a store wide SequenceID assigned
// by the server at append time.
//
// Key Components:
//
//   - Element: payload plus identity. Elements are immutable.
//
//   - Chain: the snapshot returned by reads. A chain never aliases live server
//     state; mutating a caller's copy of a payload has no effect on the store.
//     Use Iterator or All to walk it, IsEmpty to detect a missing key.
//
//   - FromPayloads: builds the update chain passed to ReplaceAtHead. Its
//     elements have no identity yet.
//
//   - Encode / Decode: the binary representation used by engines and the rpc
//     layer. EncodeIDs / DecodeIDs encode identities only, which is all that
//     compare-and-swap needs from an expected chain.
//
// Usage:
//
//	c, _ := s.Get(42)
//	for e := range c.All() {
//		fmt.Println(e.ID(), string(e.Payload()))
//	}
package chain
