package chain

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrCorrupt is returned by Decode and DecodeIDs for malformed input.
var ErrCorrupt = errors.New("chain: corrupt encoding")

const (
	countSize  = 4
	idSize     = 8
	lengthSize = 4
)

// --------------------------------------------------------------------------
// Full Chain Encoding
// --------------------------------------------------------------------------

// EncodedSize returns the number of bytes Encode needs for c.
func EncodedSize(c Chain) int {
	size := countSize
	for _, e := range c.elements {
		size += idSize + lengthSize + len(e.payload)
	}
	return size
}

// Encode serializes a chain in the format
//
//	count u32 | (id u64 | len u32 | payload)*
//
// All integers are big endian.
func Encode(c Chain) []byte {
	buf := make([]byte, EncodedSize(c))
	AppendEncoded(buf[:0], c)
	return buf
}

// AppendEncoded appends the encoding of c to dst and returns the extended slice.
func AppendEncoded(dst []byte, c Chain) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(c.elements)))
	for _, e := range c.elements {
		dst = binary.BigEndian.AppendUint64(dst, uint64(e.id))
		dst = binary.BigEndian.AppendUint32(dst, uint32(len(e.payload)))
		dst = append(dst, e.payload...)
	}
	return dst
}

// Decode parses the output of Encode. A nil or empty input decodes to the
// empty chain. The payloads are copied out of data.
func Decode(data []byte) (Chain, error) {
	c, n, err := DecodePrefix(data)
	if err != nil {
		return Chain{}, err
	}
	if n != len(data) {
		return Chain{}, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, len(data)-n)
	}
	return c, nil
}

// DecodePrefix parses one encoded chain from the start of data and returns the
// number of bytes consumed.
func DecodePrefix(data []byte) (Chain, int, error) {
	if len(data) == 0 {
		return Chain{}, 0, nil
	}
	if len(data) < countSize {
		return Chain{}, 0, fmt.Errorf("%w: missing element count", ErrCorrupt)
	}
	count := int(binary.BigEndian.Uint32(data))
	offset := countSize

	// every element needs at least a header, reject absurd counts early
	if count > (len(data)-offset)/(idSize+lengthSize) {
		return Chain{}, 0, fmt.Errorf("%w: element count %d exceeds input", ErrCorrupt, count)
	}
	if count == 0 {
		return Chain{}, offset, nil
	}

	elements := make([]Element, count)
	for i := 0; i < count; i++ {
		if len(data)-offset < idSize+lengthSize {
			return Chain{}, 0, fmt.Errorf("%w: truncated element header %d", ErrCorrupt, i)
		}
		id := SequenceID(binary.BigEndian.Uint64(data[offset:]))
		offset += idSize
		l := int(binary.BigEndian.Uint32(data[offset:]))
		offset += lengthSize
		if len(data)-offset < l {
			return Chain{}, 0, fmt.Errorf("%w: truncated payload of element %d", ErrCorrupt, i)
		}
		elements[i] = Element{id: id, payload: clone(data[offset : offset+l])}
		offset += l
	}
	return Chain{elements: elements}, offset, nil
}

// --------------------------------------------------------------------------
// Identity Encoding
// --------------------------------------------------------------------------

// EncodeIDs serializes only the element identities of c:
//
//	count u32 | id u64*
func EncodeIDs(c Chain) []byte {
	buf := make([]byte, 0, countSize+idSize*len(c.elements))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(c.elements)))
	for _, e := range c.elements {
		buf = binary.BigEndian.AppendUint64(buf, uint64(e.id))
	}
	return buf
}

// DecodeIDs parses the output of EncodeIDs and returns the number of bytes consumed.
func DecodeIDs(data []byte) ([]SequenceID, int, error) {
	if len(data) < countSize {
		return nil, 0, fmt.Errorf("%w: missing id count", ErrCorrupt)
	}
	count := int(binary.BigEndian.Uint32(data))
	if count > (len(data)-countSize)/idSize {
		return nil, 0, fmt.Errorf("%w: id count %d exceeds input", ErrCorrupt, count)
	}
	ids := make([]SequenceID, count)
	offset := countSize
	for i := range ids {
		ids[i] = SequenceID(binary.BigEndian.Uint64(data[offset:]))
		offset += idSize
	}
	return ids, offset, nil
}
