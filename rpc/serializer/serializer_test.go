package serializer

import (
	"github.com/ValentinKolb/dChain/rpc/common"
	"reflect"
	"testing"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":    NewJSONSerializer,
	"GOB":     NewGOBSerializer,
	"Binary":  NewBinarySerializer,
	"Msgpack": NewMsgpackSerializer,
	"CBOR":    NewCBORSerializer,
	"Proto":   NewProtoSerializer,
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTSuccess},

		// Append request
		{
			MsgType: common.MsgTChainAppend,
			Key:     42,
			Value:   []byte("test-value"),
		},

		// Get response
		{
			MsgType: common.MsgTChainGet,
			Value:   []byte{0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 7, 0, 0, 0, 1, 'x'},
		},

		// Replace request
		{
			MsgType: common.MsgTChainReplaceAtHead,
			Key:     1 << 63,
			Expect:  []byte{0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 7},
			Update:  []byte{0, 0, 0, 0},
		},

		// Error response
		{
			MsgType: common.MsgTError,
			Err:     "test error message",
			ErrCode: 2,
		},

		// Message with all fields filled
		{
			MsgType: common.MsgTLCKAcquire,
			Key:     7,
			Value:   []byte("test-lock-value"),
			Expect:  []byte("expect"),
			Update:  []byte("update"),
			Timeout: 30000,
			Ok:      true,
			Err:     "",
			Meta:    []byte("test-meta-data"),
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				// Compare
				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, msg, result)
				}
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			// Test each message type (don't test for MsgTUnknown since this should raise an error)
			for msgType := common.MsgTSuccess; msgType <= common.MsgTCustom; msgType++ {
				msg := common.Message{MsgType: msgType}

				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType.String(), err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType.String(), err)
					continue
				}

				// Check type
				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: Expected %s, got %s",
						msgType.String(), result.MsgType.String())
				}
			}
		})
	}
}

// TestBinarySerializerSpecific tests specific edge cases for the binary serializer
func TestBinarySerializerSpecific(t *testing.T) {
	serializer := NewBinarySerializer()

	// Test cases for empty or zero values
	testCases := []struct {
		name string
		msg  common.Message
	}{
		{
			name: "Empty message",
			msg:  common.Message{},
		},
		{
			name: "Message with empty slices and zero values",
			msg: common.Message{
				MsgType: common.MsgTChainAppend,
				Key:     0,
				Value:   []byte{},
				Expect:  []byte{},
				Update:  []byte{},
				Ok:      false,
				Err:     "",
				Meta:    []byte{},
			},
		},
		{
			name: "Message with Ok=true only",
			msg: common.Message{
				MsgType: common.MsgTLCKRelease,
				Ok:      true,
				Value:   nil,
			},
		},
		{
			name: "Message with empty value slice but not nil",
			msg: common.Message{
				MsgType: common.MsgTChainAppend,
				Key:     1,
				Value:   []byte{},
			},
		},
		{
			name: "Message with max values",
			msg: common.Message{
				MsgType: common.MsgTCustom,
				Key:     ^uint64(0),
				Timeout: ^uint64(0),
				ErrCode: ^uint64(0),
				Meta:    []byte{},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Serialize
			data, err := serializer.Serialize(tc.msg)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			// Deserialize
			var result common.Message
			err = serializer.Deserialize(data, &result)
			if err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			// Byte slices keep their nil/non-nil state
			if !reflect.DeepEqual(tc.msg, result) {
				t.Errorf("Message doesn't match after round trip:\nOriginal: %#v\nResult: %#v", tc.msg, result)
			}
		})
	}
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectError: true,
		},
		{
			name:        "Too short header",
			data:        []byte{1, 0}, // Message type and half of the flags
			expectError: true,
		},
		{
			name:        "Valid header only",
			data:        []byte{1, 0, 0}, // Message type 1, no flags
			expectError: false,
		},
		{
			name:        "Truncated key",
			data:        []byte{1, 0, 1, 0, 0, 0, 5}, // Claims a key but only 4 bytes provided
			expectError: true,
		},
		{
			name:        "Invalid length for value",
			data:        []byte{1, 0, 2, 0, 0, 0, 10}, // Claims value length 10 but no bytes provided
			expectError: true,
		},
		{
			name:        "Huge length for update",
			data:        []byte{1, 0, 8, 0xff, 0xff, 0xff, 0xff, 'a'},
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}

// TestInvalidProtoData tests how the proto serializer handles corrupt or invalid data
func TestInvalidProtoData(t *testing.T) {
	serializer := NewProtoSerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{name: "Empty data", data: []byte{}, expectError: false},
		{name: "Truncated varint", data: []byte{0x10, 0xff}, expectError: true},
		{name: "Truncated bytes", data: []byte{0x1a, 0x05, 'a'}, expectError: true},
		{name: "Unknown field is skipped", data: []byte{0x08, 0x03, 0xa0, 0x06, 0x01}, expectError: false},
		{name: "Invalid wire type", data: []byte{0x0f}, expectError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}

// TestDeserializeResetsMessage tests that fields of a reused message are cleared
func TestDeserializeResetsMessage(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()
			data, err := serializer.Serialize(common.Message{MsgType: common.MsgTChainGet, Key: 1})
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			msg := common.Message{MsgType: common.MsgTError, Err: "old", Ok: true, Timeout: 5}
			if err := serializer.Deserialize(data, &msg); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}
			if msg.Err != "" || msg.Ok || msg.Timeout != 0 || msg.Key != 1 {
				t.Errorf("Deserialize() kept old fields: %+v", msg)
			}
		})
	}
}

// TestAppendResponse tests that an Append response carries nothing but its type
func TestAppendResponse(t *testing.T) {
	want := common.Message{MsgType: common.MsgTChainAppend}
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()
			data, err := serializer.Serialize(*common.NewChainAppendResponse(nil))
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}
			if name == "Binary" && len(data) != headerSize {
				t.Errorf("Serialize() length = %d, want %d", len(data), headerSize)
			}
			if name == "Proto" {
				// field 7 is reserved, older peers may still send it
				data = append(data, 0x38, 0x05)
			}

			var got common.Message
			if err := serializer.Deserialize(data, &got); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("Deserialize() = %+v, want %+v", got, want)
			}
		})
	}
}

// TestNew tests that every listed serializer can be created by name
func TestNew(t *testing.T) {
	for _, name := range Names {
		if s, err := New(name); err != nil || s == nil {
			t.Errorf("New(%q) = %v, %v", name, s, err)
		}
	}
	if _, err := New("xml"); err == nil {
		t.Errorf("New(xml) error = nil")
	}
}
