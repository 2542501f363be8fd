// Package codec converts typed values to and from the opaque payload bytes
// stored in chain elements. The store itself never interprets payloads; the
// codecs are used by callers that resolve chains into values (for example
// the lock manager and the CLI).
//
// Available codecs: Int64 (8 byte big endian), String, Bytes, JSON, Msgpack,
// CBOR, Protobuf and the Limit wrapper. EncodeAll, UpdateChain and
// DecodeChain apply a codec to a whole chain.
package codec
