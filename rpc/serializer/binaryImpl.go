package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/dChain/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasKey     uint16 = 1 << 0
	hasValue   uint16 = 1 << 1
	hasExpect  uint16 = 1 << 2
	hasUpdate  uint16 = 1 << 3
	hasTimeout uint16 = 1 << 4
	hasOk      uint16 = 1 << 5
	hasErr     uint16 = 1 << 6
	hasErrCode uint16 = 1 << 7
	hasMeta    uint16 = 1 << 8
)

// headerSize is 1 byte MsgType + 2 bytes flags
const headerSize = 3

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	// Calculate total size needed
	result := make([]byte, headerSize, b.sizeBytes(msg))

	// Write message type
	result[0] = byte(msg.MsgType)

	// Initialize flags
	var flags uint16

	putUint64 := func(flag uint16, v uint64) {
		if v != 0 {
			flags |= flag
			result = binary.BigEndian.AppendUint64(result, v)
		}
	}
	putBytes := func(flag uint16, v []byte) {
		if v != nil {
			flags |= flag
			result = binary.BigEndian.AppendUint32(result, uint32(len(v)))
			result = append(result, v...)
		}
	}

	putUint64(hasKey, msg.Key)
	putBytes(hasValue, msg.Value)
	putBytes(hasExpect, msg.Expect)
	putBytes(hasUpdate, msg.Update)
	putUint64(hasTimeout, msg.Timeout)

	// Ok is only stored in the flags
	if msg.Ok {
		flags |= hasOk
	}

	if msg.Err != "" {
		putBytes(hasErr, []byte(msg.Err))
	}
	putUint64(hasErrCode, msg.ErrCode)
	putBytes(hasMeta, msg.Meta)

	// Set flags after knowing which fields are present
	binary.BigEndian.PutUint16(result[1:3], flags)

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < headerSize {
		return fmt.Errorf("data too short for message header")
	}

	// Read message type
	msg.MsgType = common.MessageType(data[0])

	// Read flags
	flags := binary.BigEndian.Uint16(data[1:3])

	// Initialize read position
	pos := headerSize

	readUint64 := func(flag uint16, name string) (uint64, error) {
		if flags&flag == 0 {
			return 0, nil
		}
		if pos+8 > len(data) {
			return 0, fmt.Errorf("data too short for %s", name)
		}
		v := binary.BigEndian.Uint64(data[pos : pos+8])
		pos += 8
		return v, nil
	}

	// readBytes copies the field into dst, reusing its capacity.
	// An empty field decodes to an empty, non nil slice.
	readBytes := func(flag uint16, name string, dst []byte) ([]byte, error) {
		if flags&flag == 0 {
			return nil, nil
		}
		if pos+4 > len(data) {
			return nil, fmt.Errorf("data too short for %s length", name)
		}
		n := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		pos += 4
		if n > len(data)-pos {
			return nil, fmt.Errorf("data too short for %s data", name)
		}
		if dst == nil || cap(dst) < n {
			dst = make([]byte, n)
		} else {
			dst = dst[:n]
		}
		copy(dst, data[pos:pos+n])
		pos += n
		return dst, nil
	}

	var err error
	if msg.Key, err = readUint64(hasKey, "key"); err != nil {
		return err
	}
	if msg.Value, err = readBytes(hasValue, "value", msg.Value); err != nil {
		return err
	}
	if msg.Expect, err = readBytes(hasExpect, "expect", msg.Expect); err != nil {
		return err
	}
	if msg.Update, err = readBytes(hasUpdate, "update", msg.Update); err != nil {
		return err
	}
	if msg.Timeout, err = readUint64(hasTimeout, "timeout"); err != nil {
		return err
	}

	msg.Ok = flags&hasOk != 0

	errBytes, err := readBytes(hasErr, "error", nil)
	if err != nil {
		return err
	}
	msg.Err = string(errBytes)

	if msg.ErrCode, err = readUint64(hasErrCode, "error code"); err != nil {
		return err
	}
	if msg.Meta, err = readBytes(hasMeta, "meta", msg.Meta); err != nil {
		return err
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := headerSize

	for _, v := range []uint64{msg.Key, msg.Timeout, msg.ErrCode} {
		if v != 0 {
			size += 8 // uint64
		}
	}
	for _, v := range [][]byte{msg.Value, msg.Expect, msg.Update, msg.Meta} {
		if v != nil {
			size += 4 + len(v) // 4 bytes for length + bytes
		}
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err) // 4 bytes for length + error string
	}

	return size
}
