package server

import (
	"fmt"

	"github.com/ValentinKolb/dChain/lib/chain"
	"github.com/ValentinKolb/dChain/lib/store"
	"github.com/ValentinKolb/dChain/rpc/common"
)

func NewIStoreServerAdapter() IRPCServerAdapter {
	return &iStoreServerAdapterImpl{}
}

type iStoreServerAdapterImpl struct{}

func (adapter *iStoreServerAdapterImpl) Handle(req *common.Message, s store.IServerStore) *common.Message {
	// Check for nil store
	if s == nil {
		return common.NewErrorResponse("handler: store is nil")
	}

	// Handle different message types
	switch req.MsgType {
	case common.MsgTChainGet:
		c, err := s.Get(req.Key)
		return common.NewChainGetResponse(c, err)
	case common.MsgTChainAppend:
		err := s.Append(req.Key, req.Value)
		return common.NewChainAppendResponse(err)
	case common.MsgTChainGetAndAppend:
		prior, err := s.GetAndAppend(req.Key, req.Value)
		return common.NewChainGetAndAppendResponse(prior, err)
	case common.MsgTChainReplaceAtHead:
		expect, update, err := decodeReplace(req)
		if err != nil {
			return common.NewChainReplaceAtHeadResponse(err)
		}
		return common.NewChainReplaceAtHeadResponse(s.ReplaceAtHead(req.Key, expect, update))
	case common.MsgTChainInfo:
		info, err := s.GetDBInfo()
		return common.NewChainInfoResponse(info, err)
	default:
		return common.NewErrorResponse(
			fmt.Sprintf("RPC IStoreAdapter - Unsupported message type: %s", req.MsgType),
		)
	}
}

// decodeReplace decodes the expected head (ids only) and the update chain of a
// ReplaceAtHead request
func decodeReplace(req *common.Message) (expect, update chain.Chain, err error) {
	ids, _, err := chain.DecodeIDs(req.Expect)
	if err != nil {
		return expect, update, store.NewError(store.RetCInvalidOperation, fmt.Sprintf("invalid expected head: %v", err))
	}
	update, err = chain.Decode(req.Update)
	if err != nil {
		return expect, update, store.NewError(store.RetCInvalidOperation, fmt.Sprintf("invalid update chain: %v", err))
	}
	return chain.FromIDs(ids), update, nil
}
