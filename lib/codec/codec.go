package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/dChain/lib/chain"
)

// Codec encodes typed values into the opaque payload bytes stored in a chain
// and decodes them back.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// --------------------------------------------------------------------------
// Primitive Codecs
// --------------------------------------------------------------------------

// Int64 encodes an int64 as 8 bytes big endian.
type Int64 struct{}

func (Int64) Encode(v int64) ([]byte, error) {
	return binary.BigEndian.AppendUint64(make([]byte, 0, 8), uint64(v)), nil
}

func (Int64) Decode(b []byte) (int64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("codec: int64 payload has %d bytes, want 8", len(b))
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

// String converts between string and its UTF-8 bytes without validation.
type String struct{}

func (String) Encode(s string) ([]byte, error) { return []byte(s), nil }
func (String) Decode(b []byte) (string, error) { return string(b), nil }

// Bytes is the identity codec.
type Bytes struct{}

func (Bytes) Encode(b []byte) ([]byte, error) { return b, nil }
func (Bytes) Decode(b []byte) ([]byte, error) { return b, nil }

// --------------------------------------------------------------------------
// Chain Helpers
// --------------------------------------------------------------------------

// EncodeAll encodes every value with c. The result can be passed to
// chain.FromPayloads to build an update chain.
func EncodeAll[V any](c Codec[V], values ...V) ([][]byte, error) {
	out := make([][]byte, len(values))
	for i, v := range values {
		b, err := c.Encode(v)
		if err != nil {
			return nil, fmt.Errorf("codec: encode value %d: %w", i, err)
		}
		out[i] = b
	}
	return out, nil
}

// UpdateChain encodes values and wraps them in an update chain.
func UpdateChain[V any](c Codec[V], values ...V) (chain.Chain, error) {
	payloads, err := EncodeAll(c, values...)
	if err != nil {
		return chain.Chain{}, err
	}
	return chain.FromPayloads(payloads...), nil
}

// DecodeChain decodes the payload of every element of ch, oldest first.
func DecodeChain[V any](c Codec[V], ch chain.Chain) ([]V, error) {
	out := make([]V, 0, ch.Len())
	for e := range ch.All() {
		v, err := c.Decode(e.Payload())
		if err != nil {
			return nil, fmt.Errorf("codec: decode element %d: %w", e.ID(), err)
		}
		out = append(out, v)
	}
	return out, nil
}
