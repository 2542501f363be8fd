// Package internal holds the raft log entry format of the dstore package and
// the read requests answered by the state machine. It is not meant to be
// imported outside of dstore.
//
// Commands:
//
//	Every chain mutation (Append, GetAndAppend, ReplaceAtHead) is one Command,
//	proposed to the raft shard as a single log entry and applied by
//	ChainStateMachine.Update. Element ids are never part of an appended
//	payload: the state machine assigns them while applying the entry, so every
//	replica assigns the same ids in the same order.
//
// Command Format:
//
//	type    1 byte
//	key     8 bytes, uint64 big endian
//	body    Append, GetAndAppend: the payload (rest of the entry)
//	        ReplaceAtHead: chain.EncodeIDs(expect) followed by chain.Encode(update)
//
// The payloads of the expected head are not needed to match by identity and
// are left out of the log. The ids of the update chain are ignored.
//
// Queries:
//
//	Reads (Get, GetDBInfo) go through SyncRead or StaleRead and are handed to
//	ChainStateMachine.Lookup as Query values. They never enter the log and are
//	not serialized.
//
// CommandType.ToDBFeature maps a command to the db.Feature the underlying
// engine must support.
package internal
