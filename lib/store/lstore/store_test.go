package lstore

import (
	"errors"
	"testing"

	"github.com/ValentinKolb/dChain/lib/chain"
	"github.com/ValentinKolb/dChain/lib/db"
	"github.com/ValentinKolb/dChain/lib/db/engines/bounded"
	"github.com/ValentinKolb/dChain/lib/db/engines/maple"
	"github.com/ValentinKolb/dChain/lib/db/engines/pebbledb"
	"github.com/ValentinKolb/dChain/lib/store"
	storetesting "github.com/ValentinKolb/dChain/lib/store/testing"
)

func TestLocalStore(t *testing.T) {
	storetesting.RunServerStoreTests(t, "Maple", func(t testing.TB) store.IServerStore {
		return NewLocalStore(func() db.ChainDB { return maple.NewMapleDB(nil) })
	})

	storetesting.RunServerStoreTests(t, "Pebble", func(t testing.TB) store.IServerStore {
		database, err := pebbledb.NewPebbleDB(&pebbledb.DBOptions{InMemory: true})
		if err != nil {
			t.Fatalf("NewPebbleDB() error = %v", err)
		}
		t.Cleanup(func() { database.Close() })
		return NewLocalStore(func() db.ChainDB { return database })
	})

	storetesting.RunServerStoreTests(t, "Bounded", func(t testing.TB) store.IServerStore {
		database, err := bounded.NewBoundedDB(nil)
		if err != nil {
			t.Fatalf("NewBoundedDB() error = %v", err)
		}
		t.Cleanup(func() { database.Close() })
		return NewLocalStore(func() db.ChainDB { return database })
	})
}

func TestWriteIndex(t *testing.T) {
	database := maple.NewMapleDB(nil)
	s := NewLocalStore(func() db.ChainDB { return database })

	_ = s.Append(1, []byte("a"))
	_, _ = s.GetAndAppend(1, []byte("b"))
	if got := database.WriteIdx(); got != 2 {
		t.Errorf("WriteIdx() = %d, want 2", got)
	}

	// a stale replace is not a write
	_ = s.ReplaceAtHead(1, chain.New(chain.NewElement(12345, nil)), chain.Empty())
	if got := database.WriteIdx(); got != 2 {
		t.Errorf("WriteIdx() after stale replace = %d, want 2", got)
	}

	c, _ := s.Get(1)
	_ = s.ReplaceAtHead(1, c, chain.FromPayloads([]byte("ab")))
	if got := database.WriteIdx(); got != 3 {
		t.Errorf("WriteIdx() after replace = %d, want 3", got)
	}
}

// readOnly hides every write feature of the wrapped db
type readOnly struct {
	db.ChainDB
}

func (r readOnly) SupportsFeature(f db.Feature) bool {
	return f == db.FeatureGet
}

func TestUnsupportedOperation(t *testing.T) {
	s := NewLocalStore(func() db.ChainDB { return readOnly{maple.NewMapleDB(nil)} })
	want := store.NewError(store.RetCUnsupportedOperation, "")

	if err := s.Append(1, []byte("a")); !errors.Is(err, want) {
		t.Errorf("Append() error = %v, want %v", err, want)
	}
	if _, err := s.GetAndAppend(1, []byte("a")); !errors.Is(err, want) {
		t.Errorf("GetAndAppend() error = %v, want %v", err, want)
	}
	if err := s.ReplaceAtHead(1, chain.Empty(), chain.Empty()); !errors.Is(err, want) {
		t.Errorf("ReplaceAtHead() error = %v, want %v", err, want)
	}
	if _, err := s.Get(1); err != nil {
		t.Errorf("Get() error = %v, want nil", err)
	}
}
