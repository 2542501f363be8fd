package internal

import (
	"bytes"
	"encoding/binary"
	"errors"
	"reflect"
	"testing"

	"github.com/ValentinKolb/dChain/lib/chain"
)

func sampleExpect() chain.Chain {
	return chain.New(chain.NewElement(3, []byte("a")), chain.NewElement(9, []byte("b")))
}

// TestSizeBytes tests the SizeBytes method
func TestSizeBytes(t *testing.T) {
	tests := []struct {
		name     string
		command  Command
		expected int
	}{
		{
			name:     "Append with payload",
			command:  Command{Type: CommandTAppend, Key: 1, Payload: []byte("testvalue")},
			expected: 1 + 8 + 9, // Type + Key + Payload
		},
		{
			name:     "GetAndAppend with empty payload",
			command:  Command{Type: CommandTGetAndAppend, Key: 1},
			expected: 1 + 8,
		},
		{
			name: "ReplaceAtHead",
			command: Command{
				Type:   CommandTReplaceAtHead,
				Key:    1,
				Expect: sampleExpect(),
				Update: chain.FromPayloads([]byte("ab")),
			},
			expected: 1 + 8 + (4 + 2*8) + (4 + 8 + 4 + 2), // header + ids + update chain
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size := tt.command.SizeBytes()
			if size != tt.expected {
				t.Errorf("SizeBytes() = %v, want %v", size, tt.expected)
			}
		})
	}
}

// TestSerializeDeserialize tests both Serialize and Deserialize methods
func TestSerializeDeserialize(t *testing.T) {
	tests := []struct {
		name    string
		command Command
	}{
		{
			name:    "Append",
			command: Command{Type: CommandTAppend, Key: 42, Payload: []byte("testvalue")},
		},
		{
			name:    "Append with binary payload",
			command: Command{Type: CommandTAppend, Key: 1<<64 - 1, Payload: []byte{0, 1, 2, 3, 254, 255}},
		},
		{
			name:    "GetAndAppend with empty payload",
			command: Command{Type: CommandTGetAndAppend, Key: 0, Payload: []byte{}},
		},
		{
			name: "ReplaceAtHead",
			command: Command{
				Type:   CommandTReplaceAtHead,
				Key:    7,
				Expect: sampleExpect(),
				Update: chain.FromPayloads([]byte("x"), []byte("y")),
			},
		},
		{
			name:    "ReplaceAtHead with empty chains",
			command: Command{Type: CommandTReplaceAtHead, Key: 7},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.command.Serialize()

			var newCommand Command
			if err := newCommand.Deserialize(data); err != nil {
				t.Fatalf("Deserialize() error = %v", err)
			}

			if newCommand.Type != tt.command.Type {
				t.Errorf("Type mismatch: got %v, want %v", newCommand.Type, tt.command.Type)
			}
			if newCommand.Key != tt.command.Key {
				t.Errorf("Key mismatch: got %d, want %d", newCommand.Key, tt.command.Key)
			}
			if len(newCommand.Payload) != 0 || len(tt.command.Payload) != 0 {
				if !bytes.Equal(newCommand.Payload, tt.command.Payload) {
					t.Errorf("Payload mismatch: got %v, want %v", newCommand.Payload, tt.command.Payload)
				}
			}

			// only the ids of expect travel through the log
			if got, want := newCommand.Expect.IDs(), tt.command.Expect.IDs(); !reflect.DeepEqual(got, want) {
				t.Errorf("Expect ids mismatch: got %v, want %v", got, want)
			}
			if got, want := newCommand.Update.Payloads(), tt.command.Update.Payloads(); !reflect.DeepEqual(got, want) {
				t.Errorf("Update payloads mismatch: got %q, want %q", got, want)
			}

			if tt.command.SizeBytes() != len(data) {
				t.Errorf("SizeBytes() = %d, but serialized data length = %d",
					tt.command.SizeBytes(), len(data))
			}
		})
	}
}

// TestDeserializeErrors tests error cases in Deserialize
func TestDeserializeErrors(t *testing.T) {
	header := func(ct CommandType) []byte {
		data := make([]byte, headerSize)
		data[0] = byte(ct)
		return data
	}

	tests := []struct {
		name    string
		data    []byte
		corrupt bool
	}{
		{name: "Empty data", data: []byte{}},
		{name: "Data too short (less than header)", data: []byte{1, 2, 3, 4, 5}},
		{name: "ReplaceAtHead without ids", data: header(CommandTReplaceAtHead), corrupt: true},
		{
			name:    "ReplaceAtHead with too many ids",
			data:    binary.BigEndian.AppendUint32(header(CommandTReplaceAtHead), 1000),
			corrupt: true,
		},
		{
			name:    "ReplaceAtHead without update",
			data:    binary.BigEndian.AppendUint32(header(CommandTReplaceAtHead), 0),
			corrupt: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cmd Command
			err := cmd.Deserialize(tt.data)
			if err == nil {
				t.Fatalf("Expected error but got nil")
			}
			if tt.corrupt && !errors.Is(err, chain.ErrCorrupt) {
				t.Errorf("Deserialize() error = %v, want chain.ErrCorrupt", err)
			}
		})
	}
}

// TestBinaryFormat tests the exact binary format of serialized commands
func TestBinaryFormat(t *testing.T) {
	cmd := Command{
		Type:    CommandTGetAndAppend,
		Key:     0x0102030405060708,
		Payload: []byte("testvalue"),
	}

	expected := make([]byte, cmd.SizeBytes())
	expected[0] = byte(CommandTGetAndAppend)
	binary.BigEndian.PutUint64(expected[1:9], 0x0102030405060708)
	copy(expected[9:], []byte("testvalue"))

	serialized := cmd.Serialize()
	if !bytes.Equal(serialized, expected) {
		t.Errorf("Binary format does not match:\nGot:      %v\nExpected: %v", serialized, expected)
	}
}

// TestDeserializeReuse tests that a reused Command does not keep fields of an earlier entry
func TestDeserializeReuse(t *testing.T) {
	replace := Command{Type: CommandTReplaceAtHead, Key: 1, Expect: sampleExpect(), Update: chain.FromPayloads([]byte("x"))}
	appendCmd := Command{Type: CommandTAppend, Key: 2, Payload: []byte("p")}

	var cmd Command
	if err := cmd.Deserialize(replace.Serialize()); err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}
	if err := cmd.Deserialize(appendCmd.Serialize()); err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}
	if !cmd.Expect.IsEmpty() || !cmd.Update.IsEmpty() {
		t.Errorf("Deserialize() kept Expect/Update of previous command")
	}

	// the payload must not alias the raft entry
	data := appendCmd.Serialize()
	_ = cmd.Deserialize(data)
	data[len(data)-1] = 'X'
	if string(cmd.Payload) != "p" {
		t.Errorf("Payload aliases input buffer: %q", cmd.Payload)
	}
}
