package testing

import (
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/ValentinKolb/dChain/lib/chain"
	"github.com/ValentinKolb/dChain/lib/codec"
	"github.com/ValentinKolb/dChain/lib/store"
)

// StoreFactory creates a new, empty store. Resources should be released
// with t.Cleanup.
type StoreFactory func(t testing.TB) store.IServerStore

// RunServerStoreTests runs the chain store conformance suite against the
// stores created by factory. Every test gets a fresh store.
func RunServerStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("EmptyOnMiss", func(t *testing.T) {
			testEmptyOnMiss(t, factory(t))
		})

		t.Run("AppendGrowsChain", func(t *testing.T) {
			testAppendGrowsChain(t, factory(t))
		})

		t.Run("GetAndAppendReturnsPrior", func(t *testing.T) {
			testGetAndAppendReturnsPrior(t, factory(t))
		})

		t.Run("OrderPreservation", func(t *testing.T) {
			testOrderPreservation(t, factory(t))
		})

		t.Run("Compaction", func(t *testing.T) {
			testCompaction(t, factory(t))
		})

		t.Run("StaleReplaceAtHead", func(t *testing.T) {
			testStaleReplaceAtHead(t, factory(t))
		})

		t.Run("KeyIndependence", func(t *testing.T) {
			testKeyIndependence(t, factory(t))
		})

		t.Run("UniqueIDs", func(t *testing.T) {
			testUniqueIDs(t, factory(t))
		})

		t.Run("ConcurrentAppends", func(t *testing.T) {
			testConcurrentAppends(t, factory(t))
		})

		t.Run("ConcurrentCompaction", func(t *testing.T) {
			testConcurrentCompaction(t, factory(t))
		})

		t.Run("GetDBInfo", func(t *testing.T) {
			testGetDBInfo(t, factory(t))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func payloadStrings(c chain.Chain) []string {
	out := make([]string, 0, c.Len())
	for e := range c.All() {
		out = append(out, string(e.Payload()))
	}
	return out
}

func mustGet(t testing.TB, s store.IServerStore, key uint64) chain.Chain {
	t.Helper()
	c, err := s.Get(key)
	if err != nil {
		t.Fatalf("Get(%d) error = %v", key, err)
	}
	return c
}

func mustAppend(t testing.TB, s store.IServerStore, key uint64, payloads ...string) {
	t.Helper()
	for _, p := range payloads {
		if err := s.Append(key, []byte(p)); err != nil {
			t.Fatalf("Append(%d, %s) error = %v", key, p, err)
		}
	}
}

func mustReplace(t testing.TB, s store.IServerStore, key uint64, expect chain.Chain, update ...string) {
	t.Helper()
	payloads := make([][]byte, len(update))
	for i, p := range update {
		payloads[i] = []byte(p)
	}
	if err := s.ReplaceAtHead(key, expect, chain.FromPayloads(payloads...)); err != nil {
		t.Fatalf("ReplaceAtHead(%d) error = %v", key, err)
	}
}

func checkPayloads(t testing.TB, c chain.Chain, want ...string) {
	t.Helper()
	if want == nil {
		want = []string{}
	}
	if got := payloadStrings(c); !reflect.DeepEqual(got, want) {
		t.Errorf("chain payloads = %v, want %v", got, want)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testEmptyOnMiss(t *testing.T, s store.IServerStore) {
	for _, key := range []uint64{0, 1, 1<<64 - 1} {
		if c := mustGet(t, s, key); !c.IsEmpty() {
			t.Errorf("Get(%d) on new store returned %d elements", key, c.Len())
		}
	}
}

func testAppendGrowsChain(t *testing.T, s store.IServerStore) {
	const key = 11
	var previous chain.Chain
	for i := 0; i < 5; i++ {
		p := fmt.Sprintf("v%d", i)
		mustAppend(t, s, key, p)

		c := mustGet(t, s, key)
		if c.IsEmpty() {
			t.Fatalf("Get() after Append returned empty chain")
		}
		if last, _ := c.Last(); string(last.Payload()) != p {
			t.Errorf("last payload = %s, want %s", last.Payload(), p)
		}
		if c.Len() != previous.Len()+1 {
			t.Errorf("chain length = %d, want %d", c.Len(), previous.Len()+1)
		}
		for j := 0; j < previous.Len(); j++ {
			if c.At(j).ID() != previous.At(j).ID() {
				t.Errorf("element %d changed by Append", j)
			}
		}
		previous = c
	}
}

func testGetAndAppendReturnsPrior(t *testing.T, s store.IServerStore) {
	const key = 12
	for _, p := range []string{"a", "b", "c"} {
		before := mustGet(t, s, key)
		prior, err := s.GetAndAppend(key, []byte(p))
		if err != nil {
			t.Fatalf("GetAndAppend() error = %v", err)
		}
		if !prior.Equal(before) {
			t.Errorf("GetAndAppend() = %v, want %v", prior.IDs(), before.IDs())
		}

		after := mustGet(t, s, key)
		if after.Len() != prior.Len()+1 {
			t.Errorf("chain length = %d, want %d", after.Len(), prior.Len()+1)
		}
		if last, _ := after.Last(); string(last.Payload()) != p {
			t.Errorf("last payload = %s, want %s", last.Payload(), p)
		}
	}
}

func testOrderPreservation(t *testing.T, s store.IServerStore) {
	const key = 13
	want := make([]string, 50)
	for i := range want {
		want[i] = fmt.Sprintf("p%02d", i)
		if i%3 == 0 {
			if _, err := s.GetAndAppend(key, []byte(want[i])); err != nil {
				t.Fatalf("GetAndAppend() error = %v", err)
			}
		} else {
			mustAppend(t, s, key, want[i])
		}
	}
	checkPayloads(t, mustGet(t, s, key), want...)
}

// testCompaction covers [a b c] -> [d], then [d] + e f -> [g e f].
func testCompaction(t *testing.T, s store.IServerStore) {
	const key = 14
	mustAppend(t, s, key, "a", "b", "c")

	expect := mustGet(t, s, key)
	mustReplace(t, s, key, expect, "d")
	checkPayloads(t, mustGet(t, s, key), "d")

	head := mustGet(t, s, key)
	mustAppend(t, s, key, "e", "f")
	mustReplace(t, s, key, head, "g")
	checkPayloads(t, mustGet(t, s, key), "g", "e", "f")

	// ids of the update are fresh
	c := mustGet(t, s, key)
	for _, old := range append(expect.IDs(), head.IDs()...) {
		if c.At(0).ID() == old {
			t.Errorf("replaced element reuses id %d", old)
		}
	}
}

func testStaleReplaceAtHead(t *testing.T, s store.IServerStore) {
	const key = 15
	mustAppend(t, s, key, "a", "b")
	observed := mustGet(t, s, key)

	// another client wins the race
	mustReplace(t, s, key, observed, "ab")
	mustAppend(t, s, key, "c")
	before := mustGet(t, s, key)

	// the loser retries with its stale snapshot
	if err := s.ReplaceAtHead(key, observed, chain.FromPayloads([]byte("lost"))); err != nil {
		t.Errorf("ReplaceAtHead() with stale expect error = %v, want nil", err)
	}
	if after := mustGet(t, s, key); !after.Equal(before) {
		t.Errorf("stale ReplaceAtHead() changed chain to %v", payloadStrings(after))
	}
	checkPayloads(t, mustGet(t, s, key), "ab", "c")
}

func testKeyIndependence(t *testing.T, s store.IServerStore) {
	mustAppend(t, s, 21, "x1", "x2")
	mustAppend(t, s, 22, "y1")

	other := mustGet(t, s, 22)
	mustReplace(t, s, 21, mustGet(t, s, 21), "x")
	mustAppend(t, s, 21, "x3")

	if got := mustGet(t, s, 22); !got.Equal(other) {
		t.Errorf("chain of key 22 = %v, want %v", payloadStrings(got), payloadStrings(other))
	}
	checkPayloads(t, mustGet(t, s, 21), "x", "x3")
}

func testUniqueIDs(t *testing.T, s store.IServerStore) {
	for i := 0; i < 30; i++ {
		mustAppend(t, s, uint64(30+i%3), "v")
	}
	seen := make(map[chain.SequenceID]bool)
	for key := uint64(30); key < 33; key++ {
		for _, id := range mustGet(t, s, key).IDs() {
			if id == 0 {
				t.Errorf("key %d has element with id 0", key)
			}
			if seen[id] {
				t.Errorf("id %d assigned twice", id)
			}
			seen[id] = true
		}
	}
}

func testConcurrentAppends(t *testing.T, s store.IServerStore) {
	const (
		key       = 40
		workers   = 4
		perWorker = 50
	)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if err := s.Append(key, []byte(fmt.Sprintf("%d-%d", worker, i))); err != nil {
					t.Errorf("Append() error = %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	c := mustGet(t, s, key)
	if c.Len() != workers*perWorker {
		t.Errorf("chain length = %d, want %d", c.Len(), workers*perWorker)
	}
	next := make([]int, workers)
	for e := range c.All() {
		var w, i int
		if _, err := fmt.Sscanf(string(e.Payload()), "%d-%d", &w, &i); err != nil {
			t.Fatalf("unexpected payload %q", e.Payload())
		}
		if i != next[w] {
			t.Errorf("worker %d: got element %d, want %d", w, i, next[w])
		}
		next[w] = i + 1
	}
}

// testConcurrentCompaction appends increments while a compactor keeps
// replacing the observed chain with its sum. No increment may be lost.
func testConcurrentCompaction(t *testing.T, s store.IServerStore) {
	const (
		key       = 41
		workers   = 3
		perWorker = 40
	)
	c := codec.Int64{}
	one, _ := c.Encode(1)

	sum := func(ch chain.Chain) int64 {
		values, err := codec.DecodeChain[int64](c, ch)
		if err != nil {
			t.Errorf("DecodeChain() error = %v", err)
			return 0
		}
		var total int64
		for _, v := range values {
			total += v
		}
		return total
	}

	done := make(chan struct{})
	var compactor sync.WaitGroup
	compactor.Add(1)
	go func() {
		defer compactor.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			observed, err := s.Get(key)
			if err != nil || observed.Len() < 2 {
				continue
			}
			update, _ := codec.UpdateChain[int64](c, sum(observed))
			if err := s.ReplaceAtHead(key, observed, update); err != nil {
				t.Errorf("ReplaceAtHead() error = %v", err)
				return
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if err := s.Append(key, one); err != nil {
					t.Errorf("Append() error = %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(done)
	compactor.Wait()

	if got := sum(mustGet(t, s, key)); got != workers*perWorker {
		t.Errorf("sum after concurrent compaction = %d, want %d", got, workers*perWorker)
	}
}

func testGetDBInfo(t *testing.T, s store.IServerStore) {
	mustAppend(t, s, 50, "a")
	info, err := s.GetDBInfo()
	if err != nil {
		t.Fatalf("GetDBInfo() error = %v", err)
	}
	if info.DbType == "" {
		t.Errorf("GetDBInfo().DbType is empty")
	}
}
