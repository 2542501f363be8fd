package codec

import (
	"reflect"
	"testing"

	"github.com/ValentinKolb/dChain/lib/chain"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type record struct {
	Op    string `json:"op" msgpack:"op" cbor:"op"`
	Owner []byte `json:"owner" msgpack:"owner" cbor:"owner"`
	Until int64  `json:"until" msgpack:"until" cbor:"until"`
}

func roundTrip[V any](t *testing.T, c Codec[V], v V) {
	t.Helper()
	b, err := c.Encode(v)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	got, err := c.Decode(b)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !reflect.DeepEqual(got, v) {
		t.Errorf("Decode(Encode(%v)) = %v", v, got)
	}
}

func TestCodecs(t *testing.T) {
	r := record{Op: "acquire", Owner: []byte{1, 2, 3}, Until: 1700000000000}

	t.Run("int64", func(t *testing.T) {
		for _, v := range []int64{0, 1, -1, 1 << 62, -1 << 63} {
			roundTrip[int64](t, Int64{}, v)
		}
	})
	t.Run("string", func(t *testing.T) { roundTrip[string](t, String{}, "hello chain") })
	t.Run("json", func(t *testing.T) { roundTrip[record](t, JSON[record]{}, r) })
	t.Run("msgpack", func(t *testing.T) { roundTrip[record](t, Msgpack[record]{}, r) })
	t.Run("cbor", func(t *testing.T) {
		c, err := NewCBOR[record](true)
		if err != nil {
			t.Fatalf("NewCBOR() error = %v", err)
		}
		roundTrip[record](t, c, r)
	})
	t.Run("protobuf", func(t *testing.T) {
		c := NewProtobuf(func() *wrapperspb.StringValue { return &wrapperspb.StringValue{} })
		b, err := c.Encode(wrapperspb.String("v"))
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		got, err := c.Decode(b)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if !proto.Equal(got, wrapperspb.String("v")) {
			t.Errorf("Decode() = %v, want v", got)
		}
	})
}

func TestInt64RejectsWrongLength(t *testing.T) {
	if _, err := (Int64{}).Decode([]byte{1, 2, 3}); err == nil {
		t.Errorf("Decode() of 3 bytes returned no error")
	}
}

func TestLimit(t *testing.T) {
	c := Limit[string]{Inner: String{}, Max: 4}
	if _, err := c.Decode([]byte("12345")); err == nil {
		t.Errorf("Decode() of oversized payload returned no error")
	}
	if v, err := c.Decode([]byte("1234")); err != nil || v != "1234" {
		t.Errorf("Decode() = %q, %v, want 1234, nil", v, err)
	}
}

func TestChainHelpers(t *testing.T) {
	update, err := UpdateChain[int64](Int64{}, 100, 200, 300)
	if err != nil {
		t.Fatalf("UpdateChain() error = %v", err)
	}
	if update.Len() != 3 {
		t.Fatalf("UpdateChain() len = %d, want 3", update.Len())
	}

	// simulate the ids a store would assign
	stored := chain.New(
		chain.NewElement(1, update.At(0).Payload()),
		chain.NewElement(2, update.At(1).Payload()),
		chain.NewElement(3, update.At(2).Payload()),
	)
	got, err := DecodeChain[int64](Int64{}, stored)
	if err != nil {
		t.Fatalf("DecodeChain() error = %v", err)
	}
	if want := []int64{100, 200, 300}; !reflect.DeepEqual(got, want) {
		t.Errorf("DecodeChain() = %v, want %v", got, want)
	}

	if _, err := DecodeChain[int64](Int64{}, chain.New(chain.NewElement(1, []byte("x")))); err == nil {
		t.Errorf("DecodeChain() of malformed payload returned no error")
	}
}
