package client

import (
	"github.com/ValentinKolb/dChain/lib/chain"
	"github.com/ValentinKolb/dChain/lib/db"
	"github.com/ValentinKolb/dChain/lib/store"
	"github.com/ValentinKolb/dChain/rpc/common"
	"github.com/ValentinKolb/dChain/rpc/serializer"
	"github.com/ValentinKolb/dChain/rpc/transport"
)

// NewRPCStore creates a new RPC store
// The function takes a shard ID, a config, a transport and a serializer as parameters
// It returns a store.IServerStore and an error
func NewRPCStore(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (store.IServerStore, error) {
	adapter, err := newRPCClientAdapter(shardId, config, transport, serializer)
	if err != nil {
		return nil, err
	}

	// Return the RPC store
	return &rpcStore{adapter}, nil
}

type rpcStore struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (i *rpcStore) Get(key uint64) (chain.Chain, error) {
	resp, err := i.invoke(common.NewChainGetRequest(key))
	if err != nil {
		return chain.Empty(), err
	}
	return chain.Decode(resp.Value)
}

func (i *rpcStore) Append(key uint64, payload []byte) error {
	_, err := i.invoke(common.NewChainAppendRequest(key, payload))
	return err
}

func (i *rpcStore) GetAndAppend(key uint64, payload []byte) (chain.Chain, error) {
	resp, err := i.invoke(common.NewChainGetAndAppendRequest(key, payload))
	if err != nil {
		return chain.Empty(), err
	}
	return chain.Decode(resp.Value)
}

func (i *rpcStore) ReplaceAtHead(key uint64, expect, update chain.Chain) error {
	_, err := i.invoke(common.NewChainReplaceAtHeadRequest(key, expect, update))
	return err
}

// GetDBInfo returns the info of the database behind the remote shard
func (i *rpcStore) GetDBInfo() (info db.DatabaseInfo, err error) {
	resp, err := i.invoke(common.NewChainInfoRequest())
	if err != nil {
		return db.DatabaseInfo{}, err
	}
	err = decodeMeta(resp, &info)
	return info, err
}
