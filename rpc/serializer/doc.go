// Package serializer provides message serialization capabilities for the rpc
// layer of the chain store. It defines a common interface and multiple
// implementations for serializing and deserializing messages between client
// and server components.
//
// The package focuses on:
//   - Providing a consistent interface for different serialization formats
//   - Offering multiple implementations with different performance characteristics
//   - Supporting efficient encoding of the system's message structure
//   - Minimizing memory allocations and processing overhead
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - binarySerializerImpl: Custom binary format implementation optimized for speed
//     and space efficiency. Uses a flag-based approach to encode only present fields,
//     resulting in compact serialized data with minimal overhead.
//
//   - protoSerializerImpl: Protobuf wire format written with protowire, readable
//     by any protobuf implementation using the schema in NewProtoSerializer.
//
//   - msgpackSerializerImpl: MessagePack encoding (vmihailenco/msgpack) with short
//     field names.
//
//   - cborSerializerImpl: CBOR encoding (fxamacker/cbor) with integer keys and
//     deterministic output.
//
//   - gobSerializerImpl: Implementation using Go's built-in gob encoding, offering
//     good compatibility with Go's type system but with larger serialized sizes.
//
//   - jsonSerializerImpl: Implementation using JSON encoding, useful for debugging
//     or interoperability with other systems, but with lower performance.
//
// Performance Characteristics:
//
//   - Binary and Proto: Smallest payloads and fastest. Recommended for production use.
//
//   - Msgpack and CBOR: Self describing with moderate payload sizes.
//
//   - JSON: Human-readable output beneficial for debugging. Byte fields
//     (chains, payloads) are base64 encoded.
//
//   - GOB: Larger payload sizes for small messages since every message carries
//     its type description. Not recommended.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	Serializers are typically created once and reused throughout the application:
//
//	  serializer := serializer.NewBinarySerializer()
//	  data, err := serializer.Serialize(message)
//	  // ... send data ...
//	  var receivedMsg common.Message
//	  err = serializer.Deserialize(receivedData, &receivedMsg)
package serializer
