package dstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/dChain/lib/chain"
	"github.com/ValentinKolb/dChain/lib/db"
	"github.com/ValentinKolb/dChain/lib/store"
	"github.com/ValentinKolb/dChain/lib/store/dstore/internal"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/client"
	"github.com/lni/dragonboat/v4/logger"
	sm "github.com/lni/dragonboat/v4/statemachine"
)

var (
	retries = 5
	log     = logger.GetLogger("store")
)

// storeImpl is the concrete implementation of the IServerStore interface.
// It encapsulates a Dragonboat NodeHost which is used to communicate with the state machine.
type storeImpl struct {
	nh      *dragonboat.NodeHost
	shardID uint64
	cs      *client.Session
	timeout time.Duration
}

// NewDistributedStore creates a new distributed store instance which uses raft consensus to ensure strict linearizability
// across multiple nodes.
func NewDistributedStore(nh *dragonboat.NodeHost, shardID uint64, timeout time.Duration) store.IServerStore {
	cs := nh.GetNoOPSession(shardID)
	return &storeImpl{
		nh:      nh,
		shardID: shardID,
		cs:      cs,
		timeout: timeout,
	}
}

// --------------------------------------------------------------------------
// Internal write and read operations (used by interface methods)
// --------------------------------------------------------------------------

// write serializes a Command and sends it via SyncPropose.
// It returns the result data of the state machine on success.
//
// Only ErrSystemBusy is retried: in that case the proposal was rejected before
// it entered the log. Any other failure (e.g. a timeout) has an unknown outcome
// and is returned to the caller, since retrying could apply an append twice.
func (s *storeImpl) write(cmd internal.Command) ([]byte, error) {
	data := cmd.Serialize()
	for i := 0; i < retries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)

		res, err := s.nh.SyncPropose(ctx, s.cs, data)
		cancel()

		// Check for system busy errors
		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncPropose: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(s.timeout / 10)
			continue
		}

		if err != nil {
			return nil, store.NewError(store.RetCInternalError, err.Error())
		}
		return checkResult(res)
	}
	return nil, store.NewError(store.RetCInternalError, "timeout")
}

// checkResult converts a state machine result into the result data or a store error
func checkResult(res sm.Result) ([]byte, error) {
	if res.Value != uint64(store.RetCSuccess) {
		return nil, store.NewError(store.RetCode(res.Value), string(res.Data))
	}
	return res.Data, nil
}

// read is a generic helper function queries the statemachine
// and attempts to convert the response into the expected type R.
//
// This function uses the SyncRead function (dragonboat) by default to Query the state machine.
// If linearizability is not required, the stale parameter can be set to true to use the faster StaleRead function.
//
// Is the read operation fails due to a system busy error, the function retries up to 5 times.
//
// It returns the response of type R and a error (nil on success).
func read[R any](r *storeImpl, q internal.Query, stale bool) (R, error) {
	var zero R
	for i := 0; i < retries; i++ {

		var res interface{}
		var err error

		// Query the state machine, use StaleRead if stale is set otherwise use SyncRead (default)
		if stale {
			res, err = r.nh.StaleRead(r.shardID, q)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			res, err = r.nh.SyncRead(ctx, r.shardID, q)
			cancel()
		}

		// Check for system busy errors
		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncRead: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(r.timeout / 10)
			continue
		}

		if err != nil {
			var rse *store.Error
			if errors.As(err, &rse) {
				return zero, rse
			}
			return zero, store.NewError(store.RetCInternalError, err.Error())
		}

		// The state machine is expected to return the response in the expected type R.
		casted, ok := res.(R)
		if !ok {
			return zero, store.NewError(store.RetCInternalError,
				fmt.Sprintf("unexpected type: received %T, expected %T", res, zero))
		}
		return casted, nil
	}
	return zero, store.NewError(store.RetCInternalError, "timeout")
}

// --------------------------------------------------------------------------
// Interface Methods (docs see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Get(key uint64) (chain.Chain, error) {
	return read[chain.Chain](s, internal.Query{
		Type: internal.QueryTGet,
		Key:  key,
	}, false)
}

func (s *storeImpl) Append(key uint64, payload []byte) error {
	_, err := s.write(internal.Command{
		Type:    internal.CommandTAppend,
		Key:     key,
		Payload: payload,
	})
	return err
}

func (s *storeImpl) GetAndAppend(key uint64, payload []byte) (chain.Chain, error) {
	data, err := s.write(internal.Command{
		Type:    internal.CommandTGetAndAppend,
		Key:     key,
		Payload: payload,
	})
	if err != nil {
		return chain.Empty(), err
	}
	prior, err := chain.Decode(data)
	if err != nil {
		return chain.Empty(), store.NewError(store.RetCInternalError, err.Error())
	}
	return prior, nil
}

func (s *storeImpl) ReplaceAtHead(key uint64, expect, update chain.Chain) error {
	data, err := s.write(internal.Command{
		Type:   internal.CommandTReplaceAtHead,
		Key:    key,
		Expect: expect,
		Update: update,
	})
	if err != nil {
		return err
	}
	if len(data) == 1 && data[0] == 0 {
		log.Debugf("ReplaceAtHead: key=%d stale expect, chain unchanged", key)
	}
	return nil
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return read[db.DatabaseInfo](
		s,
		internal.Query{
			Type: internal.QueryTGetDBInfo,
		},
		true, // Note: allow for stale reads
	)
}
