package serializer

import (
	"fmt"

	"github.com/ValentinKolb/dChain/rpc/common"
	"google.golang.org/protobuf/encoding/protowire"
)

// NewProtoSerializer creates a new serializer using the protobuf wire format.
// The message corresponds to the following schema:
//
//	message Message {
//	  uint32 msg_type = 1;
//	  uint64 key      = 2;
//	  bytes  value    = 3;
//	  bytes  expect   = 4;
//	  bytes  update   = 5;
//	  uint64 timeout  = 6;
//	  reserved 7;
//	  bool   ok       = 8;
//	  string err      = 9;
//	  uint64 err_code = 10;
//	  bytes  meta     = 11;
//	}
func NewProtoSerializer() IRPCSerializer {
	return &protoSerializerImpl{}
}

// protoSerializerImpl implements the IRPCSerializer interface with protowire
type protoSerializerImpl struct {
}

// field numbers of the schema above
const (
	fieldMsgType protowire.Number = iota + 1
	fieldKey
	fieldValue
	fieldExpect
	fieldUpdate
	fieldTimeout
	_ // reserved
	fieldOk
	fieldErr
	fieldErrCode
	fieldMeta
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (p protoSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	b := make([]byte, 0, 32+len(msg.Value)+len(msg.Expect)+len(msg.Update)+len(msg.Err)+len(msg.Meta))

	appendVarint := func(num protowire.Number, v uint64) {
		if v != 0 {
			b = protowire.AppendTag(b, num, protowire.VarintType)
			b = protowire.AppendVarint(b, v)
		}
	}
	appendBytes := func(num protowire.Number, v []byte) {
		// nil and empty are the same in proto3
		if len(v) != 0 {
			b = protowire.AppendTag(b, num, protowire.BytesType)
			b = protowire.AppendBytes(b, v)
		}
	}

	appendVarint(fieldMsgType, uint64(msg.MsgType))
	appendVarint(fieldKey, msg.Key)
	appendBytes(fieldValue, msg.Value)
	appendBytes(fieldExpect, msg.Expect)
	appendBytes(fieldUpdate, msg.Update)
	appendVarint(fieldTimeout, msg.Timeout)
	appendVarint(fieldOk, protowire.EncodeBool(msg.Ok))
	if msg.Err != "" {
		b = protowire.AppendTag(b, fieldErr, protowire.BytesType)
		b = protowire.AppendString(b, msg.Err)
	}
	appendVarint(fieldErrCode, msg.ErrCode)
	appendBytes(fieldMeta, msg.Meta)

	return b, nil
}

func (p protoSerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	*msg = common.Message{}

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("invalid tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case typ == protowire.VarintType && isVarintField(num):
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("invalid field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
			switch num {
			case fieldMsgType:
				msg.MsgType = common.MessageType(v)
			case fieldKey:
				msg.Key = v
			case fieldTimeout:
				msg.Timeout = v
			case fieldOk:
				msg.Ok = protowire.DecodeBool(v)
			case fieldErrCode:
				msg.ErrCode = v
			}

		case typ == protowire.BytesType && isBytesField(num):
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("invalid field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
			// copy, data belongs to the caller
			v = append([]byte{}, v...)
			switch num {
			case fieldValue:
				msg.Value = v
			case fieldExpect:
				msg.Expect = v
			case fieldUpdate:
				msg.Update = v
			case fieldErr:
				msg.Err = string(v)
			case fieldMeta:
				msg.Meta = v
			}

		default:
			// unknown field (or known field with an unexpected wire type), skip it
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("invalid field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}

	return nil
}

func isVarintField(num protowire.Number) bool {
	switch num {
	case fieldMsgType, fieldKey, fieldTimeout, fieldOk, fieldErrCode:
		return true
	}
	return false
}

func isBytesField(num protowire.Number) bool {
	switch num {
	case fieldValue, fieldExpect, fieldUpdate, fieldErr, fieldMeta:
		return true
	}
	return false
}
