package testing

import (
	"bytes"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/ValentinKolb/dChain/lib/chain"
	"github.com/ValentinKolb/dChain/lib/codec"
	"github.com/ValentinKolb/dChain/lib/db"
)

// DBFactory is a function that creates a new instance of a ChainDB implementation.
// The testing.TB can be used for temporary directories and cleanup.
type DBFactory func(t testing.TB) db.ChainDB

// RunChainDBTests runs a comprehensive test suite for a ChainDB implementation.
func RunChainDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("EmptyOnMiss", func(t *testing.T) {
			testEmptyOnMiss(t, factory(t))
		})

		t.Run("Append&Get", func(t *testing.T) {
			testAppendGet(t, factory(t))
		})

		t.Run("GetAndAppend", func(t *testing.T) {
			testGetAndAppend(t, factory(t))
		})

		t.Run("ReplaceAtHead", func(t *testing.T) {
			testReplaceAtHead(t, factory(t))
		})

		t.Run("StaleReplaceAtHead", func(t *testing.T) {
			testStaleReplaceAtHead(t, factory(t))
		})

		t.Run("KeyIndependence", func(t *testing.T) {
			testKeyIndependence(t, factory(t))
		})

		t.Run("GlobalSequence", func(t *testing.T) {
			testGlobalSequence(t, factory(t))
		})

		t.Run("SnapshotIsolation", func(t *testing.T) {
			testSnapshotIsolation(t, factory(t))
		})

		t.Run("ConcurrentAppends", func(t *testing.T) {
			testConcurrentAppends(t, factory(t))
		})

		t.Run("ConcurrentCompaction", func(t *testing.T) {
			testConcurrentCompaction(t, factory(t))
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("WriteIdx", func(t *testing.T) {
			testWriteIdx(t, factory(t))
		})

		t.Run("Info", func(t *testing.T) {
			testInfo(t, factory(t))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.ChainDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

func payloadStrings(c chain.Chain) []string {
	out := make([]string, 0, c.Len())
	for e := range c.All() {
		out = append(out, string(e.Payload()))
	}
	return out
}

func mustGet(t testing.TB, database db.ChainDB, key uint64) chain.Chain {
	t.Helper()
	c, err := database.Get(key)
	if err != nil {
		t.Fatalf("Get(%d) error = %v", key, err)
	}
	return c
}

func mustAppend(t testing.TB, database db.ChainDB, key uint64, payload string) chain.SequenceID {
	t.Helper()
	id, err := database.Append(key, []byte(payload))
	if err != nil {
		t.Fatalf("Append(%d, %s) error = %v", key, payload, err)
	}
	return id
}

func mustReplace(t testing.TB, database db.ChainDB, key uint64, expect, update chain.Chain) bool {
	t.Helper()
	ok, err := database.ReplaceAtHead(key, expect, update)
	if err != nil {
		t.Fatalf("ReplaceAtHead(%d) error = %v", key, err)
	}
	return ok
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

func checkIncreasing(t testing.TB, c chain.Chain) {
	t.Helper()
	var last chain.SequenceID
	for e := range c.All() {
		if e.ID() <= last {
			t.Errorf("chain ids not strictly increasing: %v", c.IDs())
			return
		}
		last = e.ID()
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testEmptyOnMiss(t *testing.T, database db.ChainDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureGet)

	for _, key := range []uint64{0, 1, 1 << 63} {
		if c := mustGet(t, database, key); !c.IsEmpty() {
			t.Errorf("Get(%d) on new database returned %d elements", key, c.Len())
		}
	}
}

func testAppendGet(t *testing.T, database db.ChainDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureGet|db.FeatureAppend)

	const key = 42
	var ids []chain.SequenceID
	for i := 0; i < 10; i++ {
		ids = append(ids, mustAppend(t, database, key, fmt.Sprintf("p%d", i)))

		c := mustGet(t, database, key)
		last, ok := c.Last()
		if !ok {
			t.Fatalf("Get() after Append returned empty chain")
		}
		if string(last.Payload()) != fmt.Sprintf("p%d", i) {
			t.Errorf("last payload = %s, want p%d", last.Payload(), i)
		}
		if last.ID() != ids[i] {
			t.Errorf("last id = %d, want %d", last.ID(), ids[i])
		}
		if c.Len() != i+1 {
			t.Errorf("chain length = %d, want %d", c.Len(), i+1)
		}
	}

	c := mustGet(t, database, key)
	checkPayloads(t, c, "p0", "p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8", "p9")
	checkIncreasing(t, c)

	// empty payloads are valid elements
	mustAppend(t, database, key, "")
	if c := mustGet(t, database, key); c.Len() != 11 {
		t.Errorf("chain length after empty append = %d, want 11", c.Len())
	}
}

func testGetAndAppend(t *testing.T, database db.ChainDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureGet|db.FeatureGetAndAppend)

	const key = 7
	prior, err := database.GetAndAppend(key, []byte("a"))
	if err != nil {
		t.Fatalf("GetAndAppend() error = %v", err)
	}
	if !prior.IsEmpty() {
		t.Errorf("GetAndAppend() on missing key returned %d elements", prior.Len())
	}

	for _, p := range []string{"b", "c", "d"} {
		before := mustGet(t, database, key)
		prior, err := database.GetAndAppend(key, []byte(p))
		if err != nil {
			t.Fatalf("GetAndAppend() error = %v", err)
		}
		if !prior.Equal(before) {
			t.Errorf("GetAndAppend() = %v, want prior chain %v", prior.IDs(), before.IDs())
		}

		after := mustGet(t, database, key)
		if after.Len() != before.Len()+1 {
			t.Errorf("chain length = %d, want %d", after.Len(), before.Len()+1)
		}
		for i := 0; i < before.Len(); i++ {
			if after.At(i).ID() != before.At(i).ID() {
				t.Errorf("element %d changed by GetAndAppend", i)
			}
		}
		if last, _ := after.Last(); string(last.Payload()) != p {
			t.Errorf("last payload = %s, want %s", last.Payload(), p)
		}
	}
	checkPayloads(t, mustGet(t, database, key), "a", "b", "c", "d")
}

// testReplaceAtHead follows the classic compaction scenario with int64 payloads:
// [100, 200, 300] is compacted to [400], then 4000 and 40000 are appended
// concurrently and [400] is compacted to [800] keeping the tail.
func testReplaceAtHead(t *testing.T, database db.ChainDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureGet|db.FeatureAppend|db.FeatureReplaceAtHead)

	const key = 1
	c := codec.Int64{}
	appendInt := func(v int64) {
		b, _ := c.Encode(v)
		if _, err := database.Append(key, b); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	values := func() []int64 {
		v, err := codec.DecodeChain[int64](c, mustGet(t, database, key))
		if err != nil {
			t.Fatalf("DecodeChain() error = %v", err)
		}
		return v
	}

	appendInt(100)
	appendInt(200)
	appendInt(300)

	expect := mustGet(t, database, key)
	update, _ := codec.UpdateChain[int64](c, 400)
	if !mustReplace(t, database, key, expect, update) {
		t.Errorf("ReplaceAtHead() with current chain did not replace")
	}
	if got := values(); !reflect.DeepEqual(got, []int64{400}) {
		t.Errorf("chain after compaction = %v, want [400]", got)
	}

	compacted := mustGet(t, database, key)
	if compacted.At(0).ID() <= expect.At(2).ID() {
		t.Errorf("replaced element id %d is not fresh (last old id %d)", compacted.At(0).ID(), expect.At(2).ID())
	}

	appendInt(4000)
	appendInt(40000)

	update, _ = codec.UpdateChain[int64](c, 800)
	if !mustReplace(t, database, key, compacted, update) {
		t.Errorf("ReplaceAtHead() with head prefix did not replace")
	}
	if got := values(); !reflect.DeepEqual(got, []int64{800, 4000, 40000}) {
		t.Errorf("chain after second compaction = %v, want [800 4000 40000]", got)
	}

	// multi element update and prefix removal
	head := chain.New(mustGet(t, database, key).At(0))
	if !mustReplace(t, database, key, head, chain.Empty()) {
		t.Errorf("ReplaceAtHead() with empty update did not replace")
	}
	if got := values(); !reflect.DeepEqual(got, []int64{4000, 40000}) {
		t.Errorf("chain after prefix removal = %v, want [4000 40000]", got)
	}

	// compacting the whole chain to nothing leaves an empty chain
	if !mustReplace(t, database, key, mustGet(t, database, key), chain.Empty()) {
		t.Errorf("ReplaceAtHead() of full chain did not replace")
	}
	if c := mustGet(t, database, key); !c.IsEmpty() {
		t.Errorf("chain after full removal has %d elements", c.Len())
	}
}

func testStaleReplaceAtHead(t *testing.T, database db.ChainDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureGet|db.FeatureAppend|db.FeatureReplaceAtHead)

	const key = 2
	mustAppend(t, database, key, "a")
	mustAppend(t, database, key, "b")
	observed := mustGet(t, database, key)

	// another client compacts first
	if !mustReplace(t, database, key, observed, chain.FromPayloads([]byte("ab"))) {
		t.Fatalf("first ReplaceAtHead() did not replace")
	}
	mustAppend(t, database, key, "c")
	before := mustGet(t, database, key)

	tests := []struct {
		name   string
		expect chain.Chain
	}{
		{name: "already replaced head", expect: observed},
		{name: "same payloads other ids", expect: chain.New(chain.NewElement(before.At(0).ID()+1000, []byte("ab")))},
		{name: "longer than live chain", expect: chain.New(before.At(0), before.At(1), chain.NewElement(before.At(1).ID()+1, []byte("x")))},
		{name: "tail only", expect: chain.New(before.At(1))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if mustReplace(t, database, key, tt.expect, chain.FromPayloads([]byte("x"))) {
				t.Errorf("ReplaceAtHead() with stale expect reported a replacement")
			}
			if after := mustGet(t, database, key); !after.Equal(before) {
				t.Errorf("stale ReplaceAtHead() changed chain from %v to %v", before.IDs(), after.IDs())
			}
		})
	}

	// stale replace on a missing key must not create it
	if mustReplace(t, database, 999, observed, chain.FromPayloads([]byte("x"))) {
		t.Errorf("ReplaceAtHead() on missing key reported a replacement")
	}
	if c := mustGet(t, database, 999); !c.IsEmpty() {
		t.Errorf("stale ReplaceAtHead() created key 999")
	}
}

func testKeyIndependence(t *testing.T, database db.ChainDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureGet|db.FeatureAppend|db.FeatureReplaceAtHead)

	mustAppend(t, database, 10, "k1-a")
	mustAppend(t, database, 11, "k2-a")
	mustAppend(t, database, 10, "k1-b")

	k2 := mustGet(t, database, 11)
	if !mustReplace(t, database, 10, mustGet(t, database, 10), chain.FromPayloads([]byte("k1"))) {
		t.Errorf("ReplaceAtHead(10) did not replace")
	}

	checkPayloads(t, mustGet(t, database, 10), "k1")
	if got := mustGet(t, database, 11); !got.Equal(k2) {
		t.Errorf("chain of key 11 changed by operations on key 10")
	}

	// an expected chain taken from another key never matches
	if mustReplace(t, database, 11, mustGet(t, database, 10), chain.FromPayloads([]byte("x"))) {
		t.Errorf("ReplaceAtHead(11) matched the chain of key 10")
	}
}

func testGlobalSequence(t *testing.T, database db.ChainDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureGet|db.FeatureAppend|db.FeatureReplaceAtHead)

	seen := make(map[chain.SequenceID]uint64)
	for i := 0; i < 100; i++ {
		key := uint64(i % 7)
		id := mustAppend(t, database, key, "x")
		if id == 0 {
			t.Fatalf("Append() assigned id 0")
		}
		if other, ok := seen[id]; ok {
			t.Fatalf("id %d assigned to key %d and key %d", id, other, key)
		}
		seen[id] = key
	}

	mustReplace(t, database, 3, mustGet(t, database, 3), chain.FromPayloads([]byte("y"), []byte("z")))
	for _, id := range mustGet(t, database, 3).IDs() {
		if _, ok := seen[id]; ok {
			t.Errorf("ReplaceAtHead() reused id %d", id)
		}
		if id > database.Sequence() {
			t.Errorf("id %d greater than Sequence() %d", id, database.Sequence())
		}
	}
}

func testSnapshotIsolation(t *testing.T, database db.ChainDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureGet|db.FeatureAppend|db.FeatureReplaceAtHead)

	const key = 5
	mustAppend(t, database, key, "a")
	snapshot := mustGet(t, database, key)
	ids := snapshot.IDs()

	mustAppend(t, database, key, "b")
	mustReplace(t, database, key, mustGet(t, database, key), chain.FromPayloads([]byte("c")))
	mustAppend(t, database, key, "d")

	if !reflect.DeepEqual(snapshot.IDs(), ids) {
		t.Errorf("snapshot ids changed from %v to %v", ids, snapshot.IDs())
	}
	checkPayloads(t, snapshot, "a")

	// modifying a returned payload must not change the stored chain
	c := mustGet(t, database, key)
	c.At(0).Payload()[0] = 'X'
	checkPayloads(t, mustGet(t, database, key), "c", "d")
}

func testConcurrentAppends(t *testing.T, database db.ChainDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureGet|db.FeatureAppend|db.FeatureGetAndAppend)

	const (
		key        = 77
		workers    = 8
		perWorker  = 200
		otherKeyID = 78
	)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				payload := []byte(fmt.Sprintf("%d-%d", worker, i))
				var err error
				if i%2 == 0 {
					_, err = database.Append(key, payload)
				} else {
					_, err = database.GetAndAppend(key, payload)
				}
				if err != nil {
					t.Errorf("append error = %v", err)
					return
				}
				if _, err := database.Append(otherKeyID, payload); err != nil {
					t.Errorf("append error = %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	for _, k := range []uint64{key, otherKeyID} {
		c := mustGet(t, database, k)
		if c.Len() != workers*perWorker {
			t.Errorf("chain %d length = %d, want %d", k, c.Len(), workers*perWorker)
		}
		checkIncreasing(t, c)

		// per worker order is preserved
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
}

// testConcurrentCompaction runs appenders against a compactor that keeps
// collapsing the chain into a single sum. No increment may be lost.
func testConcurrentCompaction(t *testing.T, database db.ChainDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureGet|db.FeatureAppend|db.FeatureReplaceAtHead)

	const (
		key       = 99
		workers   = 4
		perWorker = 250
	)
	c := codec.Int64{}
	one, _ := c.Encode(1)

	sum := func(ch chain.Chain) int64 {
		values, err := codec.DecodeChain[int64](c, ch)
		if err != nil {
			t.Errorf("DecodeChain() error = %v", err)
			return 0
		}
		var s int64
		for _, v := range values {
			s += v
		}
		return s
	}

	done := make(chan struct{})
	var compactions, stale int
	compactorDone := make(chan struct{})
	go func() {
		defer close(compactorDone)
		for {
			select {
			case <-done:
				return
			default:
			}
			observed, err := database.Get(key)
			if err != nil || observed.Len() < 2 {
				continue
			}
			update, _ := codec.UpdateChain[int64](c, sum(observed))
			ok, err := database.ReplaceAtHead(key, observed, update)
			if err != nil {
				t.Errorf("ReplaceAtHead() error = %v", err)
				return
			}
			if ok {
				compactions++
			} else {
				stale++
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if _, err := database.Append(key, one); err != nil {
					t.Errorf("Append() error = %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(done)
	<-compactorDone

	if got := sum(mustGet(t, database, key)); got != workers*perWorker {
		t.Errorf("sum after concurrent compaction = %d, want %d (compactions=%d, stale=%d)", got, workers*perWorker, compactions, stale)
	}
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	database := factory(t)
	database2 := factory(t)

	// close the databases after the test
	defer database.Close()
	defer database2.Close()

	requireFeature(t, database, db.FeatureGet|db.FeatureAppend|db.FeatureSave)
	requireFeature(t, database2, db.FeatureGet|db.FeatureAppend|db.FeatureLoad)

	numKeys := 200
	for i := 0; i < numKeys; i++ {
		for j := 0; j <= i%3; j++ {
			mustAppend(t, database, uint64(i), fmt.Sprintf("save-load-%d-%d", i, j))
		}
	}
	database.SetWriteIdx(1234)

	// stale content of the target must be replaced
	mustAppend(t, database2, uint64(numKeys+1), "stale")

	var buf bytes.Buffer
	if err := database.Save(&buf); err != nil {
		t.Fatalf("Unexpected error during Save: %v", err)
	}
	if err := database2.Load(&buf); err != nil {
		t.Fatalf("Unexpected error during Load: %v", err)
	}

	for i := 0; i < numKeys; i++ {
		want := mustGet(t, database, uint64(i))
		got := mustGet(t, database2, uint64(i))
		if !got.Equal(want) {
			t.Errorf("key %d after Load = %v, want %v", i, got.IDs(), want.IDs())
		}
	}
	if c := mustGet(t, database2, uint64(numKeys+1)); !c.IsEmpty() {
		t.Errorf("Load() kept stale key")
	}
	if database2.WriteIdx() != 1234 {
		t.Errorf("WriteIdx() after Load = %d, want 1234", database2.WriteIdx())
	}
	if database2.Sequence() < database.Sequence() {
		t.Errorf("Sequence() after Load = %d, want >= %d", database2.Sequence(), database.Sequence())
	}

	// ids handed out after a load never collide with loaded ids
	id := mustAppend(t, database2, 0, "after-load")
	if id <= database.Sequence() {
		t.Errorf("Append() after Load assigned id %d, want > %d", id, database.Sequence())
	}

	// a corrupt snapshot is rejected
	if err := database2.Load(bytes.NewReader([]byte("not a snapshot"))); err == nil {
		t.Errorf("Load() of garbage returned no error")
	}
}

func testWriteIdx(t *testing.T, database db.ChainDB) {
	defer database.Close()

	database.SetWriteIdx(10)
	database.SetWriteIdx(5)
	if database.WriteIdx() != 10 {
		t.Errorf("WriteIdx() = %d, want 10", database.WriteIdx())
	}
	database.SetWriteIdx(11)
	if database.WriteIdx() != 11 {
		t.Errorf("WriteIdx() = %d, want 11", database.WriteIdx())
	}
}

func testInfo(t *testing.T, database db.ChainDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureAppend)

	for i := 0; i < 10; i++ {
		mustAppend(t, database, uint64(i), "info")
	}
	info := database.GetInfo()
	if info.DbType == "" {
		t.Errorf("GetInfo().DbType is empty")
	}
	if len(info.SupportedFeatures) == 0 {
		t.Errorf("GetInfo().SupportedFeatures is empty")
	}
	for _, f := range info.SupportedFeatures {
		if !database.SupportsFeature(f) {
			t.Errorf("GetInfo() lists %s but SupportsFeature() is false", f)
		}
	}
	if info.Keys != 10 {
		t.Errorf("GetInfo().Keys = %d, want 10", info.Keys)
	}
}
