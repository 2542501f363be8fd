package client

import (
	"github.com/ValentinKolb/dChain/lib/management"
	"github.com/ValentinKolb/dChain/rpc/common"
	"github.com/ValentinKolb/dChain/rpc/serializer"
	"github.com/ValentinKolb/dChain/rpc/transport"
)

// RPCStats reads the operation statistics of a remote shard
type RPCStats struct {
	rpcClientAdapter
}

// NewRPCStats creates a new statistics client for the given shard
func NewRPCStats(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (*RPCStats, error) {
	adapter, err := newRPCClientAdapter(shardId, config, transport, serializer)
	if err != nil {
		return nil, err
	}
	return &RPCStats{adapter}, nil
}

// Snapshot returns the statistics the server has collected for the shard
func (s *RPCStats) Snapshot() (snapshot management.StoreSnapshot, err error) {
	resp, err := s.invoke(common.NewStatsRequest())
	if err != nil {
		return management.StoreSnapshot{}, err
	}
	err = decodeMeta(resp, &snapshot)
	return snapshot, err
}
