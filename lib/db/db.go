package db

import (
	"io"

	"github.com/ValentinKolb/dChain/lib/chain"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMaple   Implementation = "maple"
	ImplPebble  Implementation = "pebble"
	ImplBounded Implementation = "bounded"

	// ImplRedis is reported by stores that keep their chains in redis
	// instead of a ChainDB.
	ImplRedis Implementation = "redis"
)

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureGet           Feature = 1 << iota // Support for Get operations
	FeatureAppend                            // Support for Append operations
	FeatureGetAndAppend                      // Support for GetAndAppend operations
	FeatureReplaceAtHead                     // Support for ReplaceAtHead operations
	FeatureSave                              // Support for Save operations
	FeatureLoad                              // Support for Load operations
	FeaturePersistent                        // Data survives a restart of the process
	FeatureBounded                           // Chains may be evicted when the size limit is reached
)

func (f Feature) String() string {
	switch f {
	case FeatureGet:
		return "Get"
	case FeatureAppend:
		return "Append"
	case FeatureGetAndAppend:
		return "GetAndAppend"
	case FeatureReplaceAtHead:
		return "ReplaceAtHead"
	case FeatureSave:
		return "Save"
	case FeatureLoad:
		return "Load"
	case FeaturePersistent:
		return "Persistent"
	case FeatureBounded:
		return "Bounded"
	default:
		return "Unknown"
	}
}

// FeaturesOf splits a feature mask into its single features.
func FeaturesOf(mask Feature) []Feature {
	var out []Feature
	for f := FeatureGet; f <= FeatureBounded; f <<= 1 {
		if mask&f == f {
			out = append(out, f)
		}
	}
	return out
}

type DatabaseInfo struct {
	SizeBytes         int            `json:"size_bytes"`
	Keys              int            `json:"keys"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// ChainDB defines the interface for chain database implementations.
// A ChainDB owns the live chain of every key and the sequence counter that
// assigns element ids. All four chain operations must be atomic per key;
// operations on different keys must not block each other.
// Implementations can vary in their feature support, which can be queried with SupportsFeature.
type ChainDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Append adds a new element with the next sequence id to the end of the
	// chain of key and returns the assigned id.
	Append(key uint64, payload []byte) (id chain.SequenceID, err error)

	// GetAndAppend works like Append but returns the chain as it was before the
	// new element was added.
	GetAndAppend(key uint64, payload []byte) (prior chain.Chain, err error)

	// ReplaceAtHead replaces the head of the chain of key with update if the
	// head consists exactly of the elements of expect (compared by id). The
	// elements of update get fresh ids. Elements behind the matched head are
	// kept in order. replaced is false if expect did not match, in which case
	// the chain is not changed.
	ReplaceAtHead(key uint64, expect, update chain.Chain) (replaced bool, err error)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get returns a snapshot of the chain of key. A key that was never written
	// returns the empty chain.
	Get(key uint64) (c chain.Chain, err error)

	// --------------------------------------------------------------------------
	// Persistence Operations
	// --------------------------------------------------------------------------

	// Save persists the current state of the database to the provided io.Writer.
	Save(w io.Writer) (err error)

	// Load restores the database state data provided by an io.Reader.
	Load(r io.Reader) (err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Returns true if the feature is supported, false otherwise.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// --------------------------------------------------------------------------
	// Sequence and Write Index Operations
	// --------------------------------------------------------------------------

	// Sequence returns the last assigned element id.
	Sequence() (id chain.SequenceID)

	// SetWriteIdx records the index of the last applied write (for example a
	// raft log index) only if the provided index is greater than the current one.
	// It is called before the write it belongs to; persistent engines commit
	// the index atomically with that write.
	SetWriteIdx(index uint64)

	// WriteIdx returns the index of the last applied write.
	WriteIdx() (index uint64)

	// Close closes the database.
	Close() (err error)
}
