package bounded

import (
	"bytes"
	"testing"

	"github.com/ValentinKolb/dChain/lib/db"
	dbtesting "github.com/ValentinKolb/dChain/lib/db/testing"
)

func newTestDB(t testing.TB) db.ChainDB {
	database, err := NewBoundedDB(&DBOptions{MaxSizeMB: 64, Shards: 16})
	if err != nil {
		t.Fatalf("NewBoundedDB() error = %v", err)
	}
	return database
}

func Test(t *testing.T) {
	dbtesting.RunChainDBTests(t, "BoundedDB", newTestDB)
}

func TestEviction(t *testing.T) {
	database, err := NewBoundedDB(&DBOptions{MaxSizeMB: 1, Shards: 1})
	if err != nil {
		t.Fatalf("NewBoundedDB() error = %v", err)
	}
	defer database.Close()

	payload := bytes.Repeat([]byte{'x'}, 4*1024)
	for key := uint64(0); key < 1024; key++ {
		if _, err := database.Append(key, payload); err != nil {
			t.Fatalf("Append(%d) error = %v", key, err)
		}
	}

	// 4 MB of chains do not fit into 1 MB, the oldest keys are gone
	first, err := database.Get(0)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !first.IsEmpty() {
		t.Errorf("Get(0) after overflow returned %d elements, want evicted", first.Len())
	}
	last, err := database.Get(1023)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if last.Len() != 1 {
		t.Errorf("Get(1023) length = %d, want 1", last.Len())
	}

	// ids are never reused after eviction
	id, err := database.Append(0, payload)
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if uint64(id) != 1025 {
		t.Errorf("Append() after eviction assigned id %d, want 1025", id)
	}
	if !database.SupportsFeature(db.FeatureBounded) {
		t.Errorf("SupportsFeature(FeatureBounded) = false")
	}
}

func Benchmark(b *testing.B) {
	dbtesting.RunChainDBBenchmarks(b, "BoundedDB", newTestDB)
}
