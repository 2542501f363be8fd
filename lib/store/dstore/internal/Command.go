package internal

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/dChain/lib/chain"
	"github.com/ValentinKolb/dChain/lib/db"
)

// CommandType defines the possible operations for the state machine.
type CommandType uint8

const (
	CommandTAppend        CommandType = iota // Append an element to the chain of a key.
	CommandTGetAndAppend                     // Append an element and return the prior chain.
	CommandTReplaceAtHead                    // Replace the head of a chain if it matches.
)

func (ct CommandType) String() string {
	switch ct {
	case CommandTAppend:
		return "Append"
	case CommandTGetAndAppend:
		return "GetAndAppend"
	case CommandTReplaceAtHead:
		return "ReplaceAtHead"
	default:
		return fmt.Sprintf("Unknown(%d)", ct)
	}
}

// ToDBFeature converts a CommandType to the corresponding db.Feature.
// This can be used for checking if the database supports a certain operation.
func (ct CommandType) ToDBFeature() (db.Feature, error) {
	switch ct {
	case CommandTAppend:
		return db.FeatureAppend, nil
	case CommandTGetAndAppend:
		return db.FeatureGetAndAppend, nil
	case CommandTReplaceAtHead:
		return db.FeatureReplaceAtHead, nil
	default:
		return 0, fmt.Errorf("unknown command type %d", ct)
	}
}

// Command represents a command to be executed by the state machine (a single entry in the raft log)
//
// Payload is used by Append and GetAndAppend. Expect and Update are used by
// ReplaceAtHead; only the ids of Expect are transmitted and only the payloads
// of Update, since the state machine assigns the new ids.
type Command struct {
	Type    CommandType
	Key     uint64
	Payload []byte
	Expect  chain.Chain
	Update  chain.Chain
}

const headerSize = 1 + 8 // Type + Key

// SizeBytes returns the exact number of bytes needed to serialize this command
func (command *Command) SizeBytes() int {
	if command.Type == CommandTReplaceAtHead {
		return headerSize + 4 + 8*command.Expect.Len() + chain.EncodedSize(command.Update)
	}
	return headerSize + len(command.Payload)
}

// Serialize serializes a command into a byte array with the format:
// 1 byte for operation type,
// 8 bytes for the key (big endian),
// then for Append and GetAndAppend the payload (rest of the data),
// and for ReplaceAtHead the expected ids (chain.EncodeIDs) followed by the
// update chain (chain.Encode).
func (command *Command) Serialize() []byte {
	result := make([]byte, headerSize, command.SizeBytes())

	result[0] = byte(command.Type)
	binary.BigEndian.PutUint64(result[1:9], command.Key)

	if command.Type == CommandTReplaceAtHead {
		result = append(result, chain.EncodeIDs(command.Expect)...)
		return chain.AppendEncoded(result, command.Update)
	}
	return append(result, command.Payload...)
}

// Deserialize extracts all Command fields from a byte array.
func (command *Command) Deserialize(data []byte) error {
	if len(data) < headerSize {
		return fmt.Errorf("data too short for command")
	}

	command.Type = CommandType(data[0])
	command.Key = binary.BigEndian.Uint64(data[1:9])
	command.Payload = nil
	command.Expect = chain.Empty()
	command.Update = chain.Empty()

	rest := data[headerSize:]
	if command.Type != CommandTReplaceAtHead {
		command.Payload = make([]byte, len(rest))
		copy(command.Payload, rest)
		return nil
	}

	ids, n, err := chain.DecodeIDs(rest)
	if err != nil {
		return fmt.Errorf("expected ids: %w", err)
	}
	command.Expect = chain.FromIDs(ids)

	if len(rest) == n {
		return fmt.Errorf("update chain: %w: missing", chain.ErrCorrupt)
	}
	command.Update, err = chain.Decode(rest[n:])
	if err != nil {
		return fmt.Errorf("update chain: %w", err)
	}
	return nil
}
