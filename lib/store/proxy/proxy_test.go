package proxy

import (
	"errors"
	"testing"

	"github.com/ValentinKolb/dChain/lib/chain"
	"github.com/ValentinKolb/dChain/lib/db"
	"github.com/ValentinKolb/dChain/lib/db/engines/maple"
	"github.com/ValentinKolb/dChain/lib/management"
	"github.com/ValentinKolb/dChain/lib/store"
	"github.com/ValentinKolb/dChain/lib/store/lstore"
	storetesting "github.com/ValentinKolb/dChain/lib/store/testing"
)

func newLocal() store.IServerStore {
	return lstore.NewLocalStore(func() db.ChainDB { return maple.NewMapleDB(nil) })
}

func TestProxy(t *testing.T) {
	storetesting.RunServerStoreTests(t, "WithRegistry", func(t testing.TB) store.IServerStore {
		return NewServerStoreProxy("cache", newLocal(), management.NewRegistry(nil))
	})
	storetesting.RunServerStoreTests(t, "WithoutRegistry", func(t testing.TB) store.IServerStore {
		return NewServerStoreProxy("cache", newLocal(), nil)
	})
}

func TestProxyStatistics(t *testing.T) {
	registry := management.NewRegistry(nil)
	p := NewServerStoreProxy("cache", newLocal(), registry)

	if p.Name() != "cache" {
		t.Errorf("Name() = %s, want cache", p.Name())
	}

	_ = p.Append(1, []byte("abc"))
	prior, _ := p.GetAndAppend(1, []byte("de"))
	_, _ = p.Get(1)
	_ = p.ReplaceAtHead(1, prior, chain.FromPayloads([]byte("x")))

	snap := registry.Snapshot()["cache"]
	for _, op := range management.Ops {
		if snap.Ops[op].Count != 1 {
			t.Errorf("%s count = %d, want 1", op, snap.Ops[op].Count)
		}
	}
	if snap.PayloadBytes != 6 {
		t.Errorf("payload bytes = %d, want 6", snap.PayloadBytes)
	}
	// GetAndAppend returned [abc], Get returned [abc de]
	if snap.ChainElements != 3 {
		t.Errorf("chain elements = %d, want 3", snap.ChainElements)
	}
	if snap.Errors != 0 {
		t.Errorf("errors = %d, want 0", snap.Errors)
	}
}

// failingStore fails every call
type failingStore struct {
	calls int
}

var errUnavailable = errors.New("entity unavailable")

func (f *failingStore) Get(uint64) (chain.Chain, error) {
	f.calls++
	return chain.Empty(), errUnavailable
}

func (f *failingStore) Append(uint64, []byte) error {
	f.calls++
	return errUnavailable
}

func (f *failingStore) GetAndAppend(uint64, []byte) (chain.Chain, error) {
	f.calls++
	return chain.Empty(), errUnavailable
}

func (f *failingStore) ReplaceAtHead(uint64, chain.Chain, chain.Chain) error {
	f.calls++
	return errUnavailable
}

func (f *failingStore) GetDBInfo() (db.DatabaseInfo, error) {
	return db.DatabaseInfo{}, errUnavailable
}

func TestProxyPropagatesErrors(t *testing.T) {
	registry := management.NewRegistry(nil)
	backend := &failingStore{}
	p := NewServerStoreProxy("cache", backend, registry)

	if _, err := p.Get(1); !errors.Is(err, errUnavailable) {
		t.Errorf("Get() error = %v, want %v", err, errUnavailable)
	}
	if err := p.Append(1, nil); !errors.Is(err, errUnavailable) {
		t.Errorf("Append() error = %v, want %v", err, errUnavailable)
	}
	if _, err := p.GetAndAppend(1, nil); !errors.Is(err, errUnavailable) {
		t.Errorf("GetAndAppend() error = %v, want %v", err, errUnavailable)
	}
	if err := p.ReplaceAtHead(1, chain.Empty(), chain.Empty()); !errors.Is(err, errUnavailable) {
		t.Errorf("ReplaceAtHead() error = %v, want %v", err, errUnavailable)
	}

	// one call per operation, no retries
	if backend.calls != 4 {
		t.Errorf("backend calls = %d, want 4", backend.calls)
	}
	if got := registry.Snapshot()["cache"].Errors; got != 4 {
		t.Errorf("errors = %d, want 4", got)
	}
}
