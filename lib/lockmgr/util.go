package lockmgr

import (
	"bytes"
	"fmt"

	"github.com/ValentinKolb/dChain/lib/chain"
	"github.com/ValentinKolb/dChain/lib/codec"
	"github.com/google/uuid"
)

// recordKind is the type of a lock record in the chain
type recordKind uint8

const (
	kindAcquire recordKind = iota + 1 // a client tries to take the lock
	kindRelease                       // the holder gives the lock back
	kindState                         // compacted state, replaces all earlier records
)

// record is one element of a lock chain. Times are unix nanoseconds of the
// client that wrote the record.
type record struct {
	Kind     recordKind `msgpack:"k"`
	Owner    []byte     `msgpack:"o,omitempty"`
	At       int64      `msgpack:"t,omitempty"`
	Deadline int64      `msgpack:"d,omitempty"` // 0 = held until released
}

var recordCodec codec.Codec[record] = codec.Msgpack[record]{}

// lockState is the result of resolving a lock chain
type lockState struct {
	Holder   []byte
	Deadline int64
}

// heldAt reports whether the lock is held at time t
func (s lockState) heldAt(t int64) bool {
	return s.Holder != nil && (s.Deadline == 0 || s.Deadline > t)
}

// apply folds one record into the state. The result only depends on the
// records, never on the local clock, so every client resolves a chain to the
// same state.
func (s lockState) apply(r record) lockState {
	switch r.Kind {
	case kindAcquire:
		if !s.heldAt(r.At) {
			return lockState{Holder: r.Owner, Deadline: r.Deadline}
		}
	case kindRelease:
		if s.Holder != nil && bytes.Equal(s.Holder, r.Owner) {
			return lockState{}
		}
	case kindState:
		return lockState{Holder: r.Owner, Deadline: r.Deadline}
	}
	return s
}

// resolve decodes all records of c and folds them into a state
func resolve(c chain.Chain) (lockState, error) {
	var s lockState
	for e := range c.All() {
		r, err := recordCodec.Decode(e.Payload())
		if err != nil {
			return lockState{}, fmt.Errorf("lockmgr: corrupt lock record %d: %w", e.ID(), err)
		}
		s = s.apply(r)
	}
	return s, nil
}

// generateOwnerID creates a new unique owner ID (a random UUID)
func generateOwnerID() ([]byte, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}
	return id[:], nil
}
