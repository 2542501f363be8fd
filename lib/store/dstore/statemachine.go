package dstore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/ValentinKolb/dChain/lib/chain"
	"github.com/ValentinKolb/dChain/lib/db"
	"github.com/ValentinKolb/dChain/lib/store"
	"github.com/ValentinKolb/dChain/lib/store/dstore/internal"
	sm "github.com/lni/dragonboat/v4/statemachine"
)

// --------------------------------------------------------------------------
// State Machine Implementation
// --------------------------------------------------------------------------

// ChainStateMachine is a state machine implementation for Dragonboat RAFT.
// Element ids are assigned by the db while an entry is applied. Since every
// replica applies the same entries in the same order, all replicas assign the
// same ids.
type ChainStateMachine struct {
	replicaID uint64
	shardID   uint64
	database  db.ChainDB // the actual dataStorage
}

// CreateStateMachineFactory returns a function that can be used by dragonboat to create a new state machine for a node host
// The factory pattern is used to enable the caller to pass an interchangeable dbFactory
func CreateStateMachineFactory(dbFactory store.DBFactory) func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
	return func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
		return &ChainStateMachine{
			replicaID: replicaID,
			shardID:   shardID,
			database:  dbFactory(),
		}
	}
}

// Lookup handles read-only queries by mapping each Query operation to the corresponding ChainDB method.
func (fsm *ChainStateMachine) Lookup(itf interface{}) (interface{}, error) {

	// try to parse Query into Query struct
	q, ok := itf.(internal.Query)
	if !ok {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("invalid Query type: %T", itf))
	}

	// Handle different Query types
	switch q.Type {
	case internal.QueryTGet:
		if !fsm.database.SupportsFeature(db.FeatureGet) {
			return nil, store.NewError(store.RetCUnsupportedOperation, "Get operation is not supported")
		}
		c, err := fsm.database.Get(q.Key)
		if err != nil {
			return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("get: %v", err))
		}
		return c, nil
	case internal.QueryTGetDBInfo:
		return fsm.database.GetInfo(), nil
	default:
		return nil, store.NewError(store.RetCInvalidOperation, fmt.Sprintf("unknown Query operation: %d", q.Type))
	}
}

// Update handles write commands on the ChainDB instance
// All write operations are serialized into []byte and are accessible via the entries struct
//
// Result values:
//   - Append:        Data holds the assigned id (8 bytes big endian)
//   - GetAndAppend:  Data holds the prior chain (chain.Encode)
//   - ReplaceAtHead: Data holds one byte, 1 if the head was replaced
//
// On failure Value is the RetCode and Data the error message.
func (fsm *ChainStateMachine) Update(entries []sm.Entry) ([]sm.Entry, error) {

	// Nothing to do
	if len(entries) == 0 {
		return entries, nil
	}

	// Stats
	start := time.Now()

	cmd := internal.Command{}
	for idx, e := range entries {
		// Entries that are already contained in the db (e.g. a persistent engine
		// that survived a restart) must not be applied twice
		if e.Index != 0 && e.Index <= fsm.database.WriteIdx() {
			entries[idx].Result = sm.Result{Value: uint64(store.RetCSuccess)}
			continue
		}
		// persistent engines store the index with the write of this entry
		fsm.database.SetWriteIdx(e.Index)
		entries[idx].Result = fsm.apply(&cmd, e.Cmd)
	}

	// Log if the update took long
	if elapsed := time.Since(start); elapsed > time.Millisecond {
		log.Infof("State machine took long to update. Batch updated %d entries, took %.2fms:", len(entries), float64(elapsed)/float64(time.Millisecond))
	}
	return entries, nil
}

// apply executes a single raft entry on the db
func (fsm *ChainStateMachine) apply(cmd *internal.Command, data []byte) sm.Result {
	if len(data) == 0 {
		return sm.Result{Value: uint64(store.RetCInvalidOperation), Data: []byte("empty command ignored")}
	}

	// Deserialize the command
	if err := cmd.Deserialize(data); err != nil {
		return sm.Result{Value: uint64(store.RetCInternalError), Data: []byte(fmt.Sprintf("failed to deserialize command: %v", err))}
	}

	// Check if the db supports the operation
	feat, err := cmd.Type.ToDBFeature()
	if err != nil {
		return sm.Result{
			Value: uint64(store.RetCInvalidOperation),
			Data:  []byte(fmt.Sprintf("unknown Command operation: %s", cmd.Type)),
		}
	}
	if !fsm.database.SupportsFeature(feat) {
		return sm.Result{
			Value: uint64(store.RetCUnsupportedOperation),
			Data:  []byte(fmt.Sprintf("%s operation is not supported", cmd.Type)),
		}
	}

	switch cmd.Type {
	case internal.CommandTAppend:
		id, err := fsm.database.Append(cmd.Key, cmd.Payload)
		if err != nil {
			return failed(cmd, err)
		}
		return sm.Result{
			Value: uint64(store.RetCSuccess),
			Data:  binary.BigEndian.AppendUint64(nil, uint64(id)),
		}
	case internal.CommandTGetAndAppend:
		prior, err := fsm.database.GetAndAppend(cmd.Key, cmd.Payload)
		if err != nil {
			return failed(cmd, err)
		}
		return sm.Result{
			Value: uint64(store.RetCSuccess),
			Data:  chain.Encode(prior),
		}
	case internal.CommandTReplaceAtHead:
		replaced, err := fsm.database.ReplaceAtHead(cmd.Key, cmd.Expect, cmd.Update)
		if err != nil {
			return failed(cmd, err)
		}
		flag := byte(0)
		if replaced {
			flag = 1
		}
		return sm.Result{
			Value: uint64(store.RetCSuccess),
			Data:  []byte{flag},
		}
	default:
		return sm.Result{
			Value: uint64(store.RetCInvalidOperation),
			Data:  []byte(fmt.Sprintf("unknown Command operation: %s", cmd.Type)),
		}
	}
}

func failed(cmd *internal.Command, err error) sm.Result {
	return sm.Result{
		Value: uint64(store.RetCInternalError),
		Data:  []byte(fmt.Sprintf("%s: key=%d: %v", cmd.Type, cmd.Key, err)),
	}
}

// PrepareSnapshot captures the full db state. Dragonboat does not call Update
// while PrepareSnapshot runs, so the captured state matches the snapshot index
// exactly. Appends are not idempotent, a fuzzy snapshot would apply entries
// twice on recovery.
func (fsm *ChainStateMachine) PrepareSnapshot() (interface{}, error) {
	if !fsm.database.SupportsFeature(db.FeatureSave) {
		return nil, fmt.Errorf("the used ChainDB implementation does not support Save() operations")
	}
	var buf bytes.Buffer
	if err := fsm.database.Save(&buf); err != nil {
		return nil, fmt.Errorf("prepare snapshot: %w", err)
	}
	return &buf, nil
}

// SaveSnapshot writes the state captured by PrepareSnapshot to the writer
func (fsm *ChainStateMachine) SaveSnapshot(ctx interface{}, writer io.Writer, _ sm.ISnapshotFileCollection, _ <-chan struct{}) error {
	buf, ok := ctx.(*bytes.Buffer)
	if !ok {
		return fmt.Errorf("invalid snapshot context type: %T", ctx)
	}
	_, err := buf.WriteTo(writer)
	return err
}

// RecoverFromSnapshot replaces the db content with the snapshot.
func (fsm *ChainStateMachine) RecoverFromSnapshot(r io.Reader, _ []sm.SnapshotFile, _ <-chan struct{}) error {
	if !fsm.database.SupportsFeature(db.FeatureLoad) {
		return fmt.Errorf("the used ChainDB implementation does not support Load() operations")
	}
	return fsm.database.Load(r)
}

// Close performs any necessary cleanup.
func (fsm *ChainStateMachine) Close() error {
	return fsm.database.Close()
}
