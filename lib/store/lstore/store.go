package lstore

import (
	"fmt"
	"sync/atomic"

	"github.com/ValentinKolb/dChain/lib/chain"
	"github.com/ValentinKolb/dChain/lib/db"
	"github.com/ValentinKolb/dChain/lib/store"
)

type storeImpl struct {
	db    db.ChainDB
	index atomic.Uint64
}

// NewLocalStore creates a new local store instance.
// This store implementation is not distributed and only works on a single node.
// Every operation is executed directly on the db created by the factory.
func NewLocalStore(factory store.DBFactory) store.IServerStore {
	return &storeImpl{
		db:    factory(),
		index: atomic.Uint64{},
	}
}

// incWriteIndex advances the write index of the db after a write.
//
// Thread-safety: This method is thread-safe since it uses atomic operations.
func (s *storeImpl) incWriteIndex() {
	s.db.SetWriteIdx(s.index.Add(1))
}

// check returns a store error if the db does not support feature.
func (s *storeImpl) check(feature db.Feature) error {
	if !s.db.SupportsFeature(feature) {
		return store.NewError(store.RetCUnsupportedOperation, fmt.Sprintf("%s operation is not supported", feature))
	}
	return nil
}

func internalError(op string, err error) error {
	return store.NewError(store.RetCInternalError, fmt.Sprintf("%s: %v", op, err))
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Get(key uint64) (chain.Chain, error) {
	if err := s.check(db.FeatureGet); err != nil {
		return chain.Empty(), err
	}
	c, err := s.db.Get(key)
	if err != nil {
		return chain.Empty(), internalError("get", err)
	}
	return c, nil
}

func (s *storeImpl) Append(key uint64, payload []byte) error {
	if err := s.check(db.FeatureAppend); err != nil {
		return err
	}
	if _, err := s.db.Append(key, payload); err != nil {
		return internalError("append", err)
	}
	s.incWriteIndex()
	return nil
}

func (s *storeImpl) GetAndAppend(key uint64, payload []byte) (chain.Chain, error) {
	if err := s.check(db.FeatureGetAndAppend); err != nil {
		return chain.Empty(), err
	}
	prior, err := s.db.GetAndAppend(key, payload)
	if err != nil {
		return chain.Empty(), internalError("get and append", err)
	}
	s.incWriteIndex()
	return prior, nil
}

func (s *storeImpl) ReplaceAtHead(key uint64, expect, update chain.Chain) error {
	if err := s.check(db.FeatureReplaceAtHead); err != nil {
		return err
	}
	replaced, err := s.db.ReplaceAtHead(key, expect, update)
	if err != nil {
		return internalError("replace at head", err)
	}
	if replaced {
		s.incWriteIndex()
	}
	return nil
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return s.db.GetInfo(), nil
}
