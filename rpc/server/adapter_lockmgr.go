package server

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/dChain/lib/lockmgr"
	"github.com/ValentinKolb/dChain/lib/store"
	"github.com/ValentinKolb/dChain/rpc/common"
)

func NewLockManagerServerAdapter() IRPCServerAdapter {
	return &lockMgrServerAdapter{}
}

type lockMgrServerAdapter struct{}

func (adapter *lockMgrServerAdapter) Handle(req *common.Message, s store.IServerStore) (resp *common.Message) {

	// Check for nil store
	if s == nil {
		return common.NewErrorResponse("handler: store is nil")
	}

	// Create lock manager (stateless, all state lives in the chains of the store)
	locks := lockmgr.NewLockManager(s)

	// Handle different message types
	switch req.MsgType {
	case common.MsgTLCKAcquire:
		timeout := time.Duration(req.Timeout) * time.Millisecond
		ok, ownerID, err := locks.AcquireLock(req.Key, timeout)
		return common.NewAcquireResponse(ok, ownerID, err)
	case common.MsgTLCKRelease:
		ok, err := locks.ReleaseLock(req.Key, req.Value)
		return common.NewReleaseResponse(ok, err)
	case common.MsgTChainInfo:
		info, err := s.GetDBInfo()
		return common.NewChainInfoResponse(info, err)
	default:
		return common.NewErrorResponse(fmt.Sprintf("RPC LockManagerAdapter - Unsupported message type: %s", req.MsgType))
	}
}
