package chain

import (
	"bytes"
	"iter"
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// SequenceID is the store wide identity of an element. It is assigned by the
// server at append time and is never reused. Zero is never assigned and marks
// elements that have not been stored yet (see FromPayloads).
type SequenceID uint64

// Element is one immutable payload unit of a chain.
type Element struct {
	id      SequenceID
	payload []byte
}

// NewElement creates an element with the given identity. The payload is copied.
func NewElement(id SequenceID, payload []byte) Element {
	return Element{id: id, payload: clone(payload)}
}

// ID returns the server assigned identity of the element.
func (e Element) ID() SequenceID { return e.id }

// Payload returns a copy of the opaque content of the element as given at
// append time.
func (e Element) Payload() []byte { return clone(e.payload) }

// PayloadLen returns the payload size in bytes without copying it.
func (e Element) PayloadLen() int { return len(e.payload) }

// Chain is an ordered, immutable snapshot of elements, oldest first.
// The zero value is an empty chain.
type Chain struct {
	elements []Element
}

// Empty returns a chain without elements.
func Empty() Chain { return Chain{} }

// New creates a chain from the given elements. The element slice is copied,
// so later changes to it are not visible in the chain.
func New(elements ...Element) Chain {
	if len(elements) == 0 {
		return Chain{}
	}
	c := make([]Element, len(elements))
	copy(c, elements)
	return Chain{elements: c}
}

// FromPayloads creates an update chain for ReplaceAtHead. The elements carry
// no identity; the store assigns fresh ids when the chain is written.
func FromPayloads(payloads ...[]byte) Chain {
	if len(payloads) == 0 {
		return Chain{}
	}
	elements := make([]Element, len(payloads))
	for i, p := range payloads {
		elements[i] = Element{payload: clone(p)}
	}
	return Chain{elements: elements}
}

// FromIDs creates a chain of payload-less elements with the given ids. It is
// the expected head of a ReplaceAtHead after the ids went over the wire.
func FromIDs(ids []SequenceID) Chain {
	if len(ids) == 0 {
		return Chain{}
	}
	elements := make([]Element, len(ids))
	for i, id := range ids {
		elements[i] = Element{id: id}
	}
	return Chain{elements: elements}
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

// IsEmpty returns true iff the chain has zero elements.
func (c Chain) IsEmpty() bool { return len(c.elements) == 0 }

// Len returns the number of elements in the chain.
func (c Chain) Len() int { return len(c.elements) }

// At returns the i-th element (oldest first). It panics if i is out of range.
func (c Chain) At(i int) Element { return c.elements[i] }

// Last returns the newest element of the chain and false if the chain is empty.
func (c Chain) Last() (Element, bool) {
	if len(c.elements) == 0 {
		return Element{}, false
	}
	return c.elements[len(c.elements)-1], true
}

// Iterator returns a new forward iterator over the chain. Every call returns
// a fresh iterator starting at the oldest element.
func (c Chain) Iterator() *Iterator {
	return &Iterator{elements: c.elements}
}

// All returns the elements in append order for use with range.
func (c Chain) All() iter.Seq[Element] {
	return func(yield func(Element) bool) {
		for _, e := range c.elements {
			if !yield(e) {
				return
			}
		}
	}
}

// IDs returns the identities of all elements in order.
func (c Chain) IDs() []SequenceID {
	ids := make([]SequenceID, len(c.elements))
	for i, e := range c.elements {
		ids[i] = e.id
	}
	return ids
}

// Payloads returns copies of the payloads of all elements in order.
func (c Chain) Payloads() [][]byte {
	payloads := make([][]byte, len(c.elements))
	for i, e := range c.elements {
		payloads[i] = clone(e.payload)
	}
	return payloads
}

// Equal reports whether both chains contain the same elements by identity
// and payload.
func (c Chain) Equal(other Chain) bool {
	if len(c.elements) != len(other.elements) {
		return false
	}
	for i := range c.elements {
		if c.elements[i].id != other.elements[i].id ||
			!bytes.Equal(c.elements[i].payload, other.elements[i].payload) {
			return false
		}
	}
	return true
}

// --------------------------------------------------------------------------
// Iterator
// --------------------------------------------------------------------------

// Iterator walks a chain snapshot front to back. It never touches the network.
type Iterator struct {
	elements []Element
	pos      int
}

// HasNext returns true if Next will return another element.
func (it *Iterator) HasNext() bool { return it.pos < len(it.elements) }

// Next returns the next element. It panics if the iterator is exhausted.
func (it *Iterator) Next() Element {
	if it.pos >= len(it.elements) {
		panic("chain: iterator exhausted")
	}
	e := it.elements[it.pos]
	it.pos++
	return e
}

// --------------------------------------------------------------------------
// Derived Chains
// --------------------------------------------------------------------------

// Appended returns a chain with e added at the end. c itself is not changed
// and the result never shares its backing array with c.
func (c Chain) Appended(e Element) Chain {
	elements := make([]Element, len(c.elements), len(c.elements)+1)
	copy(elements, c.elements)
	return Chain{elements: append(elements, e)}
}

// ReplaceHead computes the result of compacting the head of live. If the ids
// of expect are the leading ids of live, the result is update (with ids taken
// from nextID, in order) followed by the remaining tail of live and ok is true.
// Otherwise live is returned unchanged and ok is false.
func ReplaceHead(live, expect, update Chain, nextID func() SequenceID) (result Chain, ok bool) {
	matched, ok := MatchHead(live.IDs(), expect.IDs())
	if !ok {
		return live, false
	}

	tail := live.elements[matched:]
	elements := make([]Element, 0, len(update.elements)+len(tail))
	for _, e := range update.elements {
		elements = append(elements, Element{id: nextID(), payload: e.payload})
	}
	elements = append(elements, tail...)
	if len(elements) == 0 {
		return Chain{}, true
	}
	return Chain{elements: elements}, true
}

// MatchHead returns the number of leading elements of c that are identical by
// id to expect, and whether that prefix covers all of expect.
func MatchHead(c []SequenceID, expect []SequenceID) (matched int, ok bool) {
	for matched < len(expect) && matched < len(c) && c[matched] == expect[matched] {
		matched++
	}
	return matched, matched == len(expect)
}

func clone(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
