package common

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ValentinKolb/dChain/lib/chain"
	"github.com/ValentinKolb/dChain/lib/store"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
// Chains travel in their binary form (see chain.Encode), identity lists as
// produced by chain.EncodeIDs.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type" msgpack:"t" cbor:"1,keyasint"`

	// General fields
	Key     uint64 `json:"key,omitempty" msgpack:"k,omitempty" cbor:"2,keyasint,omitempty"`       // Used for: all chain and lock operations
	Value   []byte `json:"value,omitempty" msgpack:"v,omitempty" cbor:"3,keyasint,omitempty"`     // Used for: Append payload, encoded chain (responses), owner id (locks)
	Expect  []byte `json:"expect,omitempty" msgpack:"e,omitempty" cbor:"4,keyasint,omitempty"`    // Used for: ReplaceAtHead (encoded ids)
	Update  []byte `json:"update,omitempty" msgpack:"u,omitempty" cbor:"5,keyasint,omitempty"`    // Used for: ReplaceAtHead (encoded chain)
	Timeout uint64 `json:"timeout,omitempty" msgpack:"d,omitempty" cbor:"6,keyasint,omitempty"`   // Used for: Acquire (milliseconds)
	Ok      bool   `json:"ok,omitempty" msgpack:"o,omitempty" cbor:"8,keyasint,omitempty"`        // Used for: Acquire, Release responses
	Err     string `json:"err,omitempty" msgpack:"r,omitempty" cbor:"9,keyasint,omitempty"`       // Empty if no error, otherwise contains the error message
	ErrCode uint64 `json:"err_code,omitempty" msgpack:"c,omitempty" cbor:"10,keyasint,omitempty"` // store.RetCode of the error, 0 if the error is no store.Error

	// Meta information
	Meta []byte `json:"meta,omitempty" msgpack:"m,omitempty" cbor:"11,keyasint,omitempty"` // Used for: Stats and Info responses (json)
}

// SetErr stores err in the message. A *store.Error keeps its code.
func (m *Message) SetErr(err error) *Message {
	if err == nil {
		return m
	}
	m.Err = err.Error()
	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		m.Err = storeErr.Msg
		m.ErrCode = uint64(storeErr.Code)
	}
	return m
}

// AsError returns the error carried by the message or nil.
// Errors with a code are returned as *store.Error.
func (m *Message) AsError() error {
	if m.ErrCode != 0 {
		return store.NewError(store.RetCode(m.ErrCode), m.Err)
	}
	if m.MsgType == MsgTError || m.Err != "" {
		return errors.New(m.Err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewChainGetRequest creates a new Get request
func NewChainGetRequest(key uint64) *Message {
	return &Message{
		MsgType: MsgTChainGet,
		Key:     key,
	}
}

// NewChainGetResponse creates a new Get response
func NewChainGetResponse(c chain.Chain, err error) *Message {
	msg := &Message{
		MsgType: MsgTChainGet,
	}
	if err != nil {
		return msg.SetErr(err)
	}
	msg.Value = chain.Encode(c)
	return msg
}

// NewChainAppendRequest creates a new Append request
func NewChainAppendRequest(key uint64, payload []byte) *Message {
	return &Message{
		MsgType: MsgTChainAppend,
		Key:     key,
		Value:   payload,
	}
}

// NewChainAppendResponse creates a new Append response
func NewChainAppendResponse(err error) *Message {
	msg := &Message{
		MsgType: MsgTChainAppend,
	}
	return msg.SetErr(err)
}

// NewChainGetAndAppendRequest creates a new GetAndAppend request
func NewChainGetAndAppendRequest(key uint64, payload []byte) *Message {
	return &Message{
		MsgType: MsgTChainGetAndAppend,
		Key:     key,
		Value:   payload,
	}
}

// NewChainGetAndAppendResponse creates a new GetAndAppend response carrying
// the chain as it was before the append
func NewChainGetAndAppendResponse(prior chain.Chain, err error) *Message {
	msg := &Message{
		MsgType: MsgTChainGetAndAppend,
	}
	if err != nil {
		return msg.SetErr(err)
	}
	msg.Value = chain.Encode(prior)
	return msg
}

// NewChainReplaceAtHeadRequest creates a new ReplaceAtHead request.
// Only the identities of expect are sent.
func NewChainReplaceAtHeadRequest(key uint64, expect, update chain.Chain) *Message {
	return &Message{
		MsgType: MsgTChainReplaceAtHead,
		Key:     key,
		Expect:  chain.EncodeIDs(expect),
		Update:  chain.Encode(update),
	}
}

// NewChainReplaceAtHeadResponse creates a new ReplaceAtHead response
func NewChainReplaceAtHeadResponse(err error) *Message {
	msg := &Message{
		MsgType: MsgTChainReplaceAtHead,
	}
	return msg.SetErr(err)
}

// NewChainInfoRequest creates a new request for the database info of a shard
func NewChainInfoRequest() *Message {
	return &Message{
		MsgType: MsgTChainInfo,
	}
}

// NewChainInfoResponse creates a new Info response, the info is json encoded in Meta
func NewChainInfoResponse(info any, err error) *Message {
	return newJSONResponse(MsgTChainInfo, info, err)
}

// NewStatsRequest creates a new request for the statistics of a shard
func NewStatsRequest() *Message {
	return &Message{
		MsgType: MsgTStats,
	}
}

// NewStatsResponse creates a new Stats response, the snapshot is json encoded in Meta
func NewStatsResponse(snapshot any, err error) *Message {
	return newJSONResponse(MsgTStats, snapshot, err)
}

// NewAcquireRequest creates a new Acquire request
func NewAcquireRequest(key uint64, timeoutMs uint64) *Message {
	return &Message{
		MsgType: MsgTLCKAcquire,
		Key:     key,
		Timeout: timeoutMs,
	}
}

// NewAcquireResponse creates a new Acquire response
func NewAcquireResponse(ok bool, ownerID []byte, err error) *Message {
	msg := &Message{
		MsgType: MsgTLCKAcquire,
		Ok:      ok,
		Value:   ownerID,
	}
	return msg.SetErr(err)
}

// NewReleaseRequest creates a new Release request
func NewReleaseRequest(key uint64, ownerId []byte) *Message {
	return &Message{
		MsgType: MsgTLCKRelease,
		Key:     key,
		Value:   ownerId,
	}
}

// NewReleaseResponse creates a new Release response
func NewReleaseResponse(ok bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTLCKRelease,
		Ok:      ok,
	}
	return msg.SetErr(err)
}

// NewCustomRequest creates a new Custom request
func NewCustomRequest(meta []byte) *Message {
	return &Message{
		MsgType: MsgTCustom,
		Meta:    meta,
	}
}

// NewCustomResponse creates a new Custom response
func NewCustomResponse(meta []byte, err error) *Message {
	msg := &Message{
		MsgType: MsgTCustom,
		Meta:    meta,
	}
	return msg.SetErr(err)
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
	}
}

func newJSONResponse(t MessageType, v any, err error) *Message {
	msg := &Message{
		MsgType: t,
	}
	if err != nil {
		return msg.SetErr(err)
	}
	meta, err := json.Marshal(v)
	if err != nil {
		return msg.SetErr(fmt.Errorf("failed to encode %s response: %w", t, err))
	}
	msg.Meta = meta
	return msg
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

var messageTypeNames = map[MessageType]string{
	MsgTSuccess:            "success",
	MsgTError:              "error",
	MsgTChainGet:           "get",
	MsgTChainAppend:        "append",
	MsgTChainGetAndAppend:  "getAndAppend",
	MsgTChainReplaceAtHead: "replaceAtHead",
	MsgTChainInfo:          "info",
	MsgTStats:              "stats",
	MsgTLCKAcquire:         "acquire",
	MsgTLCKRelease:         "release",
	MsgTCustom:             "custom",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	// Convert string back to MessageType
	for msgType, name := range messageTypeNames {
		if name == s {
			*t = msgType
			return nil
		}
	}
	if s == "unknown" {
		*t = MsgTUnknown
		return nil
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// IServerStore operations

	MsgTChainGet           // Read the chain of a key
	MsgTChainAppend        // Append one element
	MsgTChainGetAndAppend  // Append one element and return the prior chain
	MsgTChainReplaceAtHead // Compare-and-swap of the chain head
	MsgTChainInfo          // Database info of the shard

	// Management

	MsgTStats // Statistics of the shard

	// ILockManager operations

	MsgTLCKAcquire // Acquire a lock
	MsgTLCKRelease // Release a lock

	// Custom operations

	MsgTCustom // Custom operation type
)
