package serializer

import (
	"github.com/ValentinKolb/dChain/rpc/common"
	"github.com/fxamacker/cbor/v2"
)

// NewCBORSerializer creates a new serializer using cbor encoding. The fields of
// common.Message are encoded with integer keys.
func NewCBORSerializer() IRPCSerializer {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		// the options are static, this can only fail on a programming error
		panic(err)
	}
	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
	return &cborSerializerImpl{enc: em, dec: dm}
}

// cborSerializerImpl implements the IRPCSerializer interface using cbor encoding
type cborSerializerImpl struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (c cborSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	return c.enc.Marshal(msg)
}

func (c cborSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	*msg = common.Message{}
	return c.dec.Unmarshal(b, msg)
}
