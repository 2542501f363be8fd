package client

import (
	"time"

	"github.com/ValentinKolb/dChain/lib/lockmgr"
	"github.com/ValentinKolb/dChain/rpc/common"
	"github.com/ValentinKolb/dChain/rpc/serializer"
	"github.com/ValentinKolb/dChain/rpc/transport"
)

// NewRPCLockMgr creates a new RPC ILockManager
// The function takes a shard ID, a config, a transport and a serializer as parameters
// It returns a lockmgr.ILockManager and an error
func NewRPCLockMgr(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (lockmgr.ILockManager, error) {
	adapter, err := newRPCClientAdapter(shardId, config, transport, serializer)
	if err != nil {
		return nil, err
	}
	return &rpcLockMgr{adapter}, nil
}

type rpcLockMgr struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the lockmgr package in interface.go)
// --------------------------------------------------------------------------

func (i *rpcLockMgr) AcquireLock(key uint64, timeout time.Duration) (ok bool, ownerID []byte, err error) {
	req := common.NewAcquireRequest(key, uint64(timeout.Milliseconds()))
	resp, err := i.invoke(req)
	if err != nil {
		return false, nil, err
	}
	return resp.Ok, resp.Value, nil
}

func (i *rpcLockMgr) ReleaseLock(key uint64, ownerID []byte) (ok bool, err error) {
	req := common.NewReleaseRequest(key, ownerID)
	resp, err := i.invoke(req)
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}
