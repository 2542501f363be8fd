package util

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ValentinKolb/dChain/lib/codec"
)

// ValueCodec converts command line values to payloads and back
type ValueCodec struct {
	// Parse encodes a command line argument
	Parse func(arg string) ([]byte, error)
	// Format renders a stored payload
	Format func(payload []byte) (string, error)
}

// CodecNames lists the names accepted by GetValueCodec
var CodecNames = []string{"string", "int64", "json", "msgpack", "cbor"}

// GetValueCodec returns the codec with the given name. The structured codecs
// (json, msgpack, cbor) take json objects on the command line and print
// payloads as json.
func GetValueCodec(name string) (ValueCodec, error) {
	switch name {
	case "string", "":
		return valueCodec[string](codec.String{}, func(s string) (string, error) { return s, nil }, func(s string) string { return s }), nil
	case "int64":
		return valueCodec[int64](codec.Int64{}, func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }, func(v int64) string { return strconv.FormatInt(v, 10) }), nil
	case "json":
		return objectCodec(codec.JSON[map[string]any]{}), nil
	case "msgpack":
		return objectCodec(codec.Msgpack[map[string]any]{}), nil
	case "cbor":
		c, err := codec.NewCBOR[map[string]any](true)
		if err != nil {
			return ValueCodec{}, err
		}
		return objectCodec(c), nil
	default:
		return ValueCodec{}, fmt.Errorf("invalid codec %s", name)
	}
}

func valueCodec[V any](c codec.Codec[V], parse func(string) (V, error), format func(V) string) ValueCodec {
	return ValueCodec{
		Parse: func(arg string) ([]byte, error) {
			v, err := parse(arg)
			if err != nil {
				return nil, err
			}
			return c.Encode(v)
		},
		Format: func(payload []byte) (string, error) {
			v, err := c.Decode(payload)
			if err != nil {
				return "", err
			}
			return format(v), nil
		},
	}
}

func objectCodec(c codec.Codec[map[string]any]) ValueCodec {
	return valueCodec(c,
		func(arg string) (map[string]any, error) {
			var v map[string]any
			if err := json.Unmarshal([]byte(arg), &v); err != nil {
				return nil, fmt.Errorf("value must be a json object: %w", err)
			}
			return v, nil
		},
		func(v map[string]any) string {
			out, err := json.Marshal(v)
			if err != nil {
				return fmt.Sprintf("%v", v)
			}
			return string(out)
		},
	)
}
