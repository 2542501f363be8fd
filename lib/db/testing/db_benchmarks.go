package testing

import (
	"bytes"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dChain/lib/chain"
	"github.com/ValentinKolb/dChain/lib/db"
)

// RunChainDBBenchmarks runs all benchmarks for a chain database implementation
func RunChainDBBenchmarks(b *testing.B, name string, factory DBFactory) {

	b.Run("Append", func(b *testing.B) {
		benchmarkAppend(b, factory(b))
	})

	b.Run("AppendSameKey", func(b *testing.B) {
		benchmarkAppendSameKey(b, factory(b))
	})

	b.Run("AppendLargePayload", func(b *testing.B) {
		benchmarkAppendLargePayload(b, factory(b))
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, factory(b))
	})

	b.Run("GetAndAppend", func(b *testing.B) {
		benchmarkGetAndAppend(b, factory(b))
	})

	b.Run("ReplaceAtHead", func(b *testing.B) {
		benchmarkReplaceAtHead(b, factory(b))
	})

	b.Run("SaveLoad", func(b *testing.B) {
		benchmarkSaveLoad(b, factory)
	})

	b.Run("MixedUsage", func(b *testing.B) {
		benchmarkMixedUsage(b, factory(b))
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

const benchKeys = 1024

var benchPayload = []byte("benchmark-payload-0123456789")

// Benchmark for Append with every call on a new key
func benchmarkAppend(b *testing.B, database db.ChainDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureAppend)

	var counter atomic.Uint64
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			key := counter.Add(1)
			_, _ = database.Append(key, benchPayload)
		}
	})
}

// Benchmark for Append with all goroutines contending on one key
func benchmarkAppendSameKey(b *testing.B, database db.ChainDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureAppend|db.FeatureGet|db.FeatureReplaceAtHead)

	var counter atomic.Uint64
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if counter.Add(1)%256 == 0 {
				// keep the chain short so the benchmark measures contention, not copying
				if c, err := database.Get(0); err == nil {
					_, _ = database.ReplaceAtHead(0, c, chain.Empty())
				}
			}
			_, _ = database.Append(0, benchPayload)
		}
	})
}

// Benchmark for Append with a 64 KB payload
func benchmarkAppendLargePayload(b *testing.B, database db.ChainDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureAppend)

	payload := bytes.Repeat([]byte{'x'}, 64*1024)
	var counter atomic.Uint64
	b.SetBytes(int64(len(payload)))
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = database.Append(counter.Add(1)%benchKeys, payload)
		}
	})
}

// Benchmark for Get on chains with a few elements
func benchmarkGet(b *testing.B, database db.ChainDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureAppend|db.FeatureGet)

	for i := uint64(0); i < benchKeys; i++ {
		for j := 0; j < 4; j++ {
			_, _ = database.Append(i, benchPayload)
		}
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			_, _ = database.Get(uint64(r.Intn(benchKeys)))
		}
	})
}

// Benchmark for GetAndAppend followed by a compaction of the returned prior chain
func benchmarkGetAndAppend(b *testing.B, database db.ChainDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureGetAndAppend|db.FeatureReplaceAtHead)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			key := uint64(r.Intn(benchKeys))
			prior, err := database.GetAndAppend(key, benchPayload)
			if err == nil && prior.Len() > 8 {
				_, _ = database.ReplaceAtHead(key, prior, chain.FromPayloads(benchPayload))
			}
		}
	})
}

// Benchmark for the get + replace compaction loop
func benchmarkReplaceAtHead(b *testing.B, database db.ChainDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureAppend|db.FeatureGet|db.FeatureReplaceAtHead)

	for i := uint64(0); i < benchKeys; i++ {
		_, _ = database.Append(i, benchPayload)
	}
	update := chain.FromPayloads(benchPayload)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			key := uint64(r.Intn(benchKeys))
			if c, err := database.Get(key); err == nil {
				_, _ = database.ReplaceAtHead(key, c, update)
			}
		}
	})
}

// Benchmark for Save and Load of 10k chains
func benchmarkSaveLoad(b *testing.B, factory DBFactory) {
	database := factory(b)
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureAppend|db.FeatureSave|db.FeatureLoad)

	for i := uint64(0); i < 10_000; i++ {
		_, _ = database.Append(i, benchPayload)
		_, _ = database.Append(i, benchPayload)
	}

	var snapshot bytes.Buffer
	if err := database.Save(&snapshot); err != nil {
		b.Fatalf("Save() error = %v", err)
	}

	b.Run("Save", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var buf bytes.Buffer
			if err := database.Save(&buf); err != nil {
				b.Fatalf("Save() error = %v", err)
			}
		}
	})

	b.Run("Load", func(b *testing.B) {
		target := factory(b)
		b.Cleanup(func() {
			target.Close()
		})
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if err := target.Load(bytes.NewReader(snapshot.Bytes())); err != nil {
				b.Fatalf("Load() error = %v", err)
			}
		}
	})
}

// Benchmark for a read heavy mix of all four operations
func benchmarkMixedUsage(b *testing.B, database db.ChainDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureGet|db.FeatureAppend|db.FeatureGetAndAppend|db.FeatureReplaceAtHead)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			key := uint64(r.Intn(benchKeys))
			switch n := r.Intn(10); {
			case n < 6:
				_, _ = database.Get(key)
			case n < 8:
				_, _ = database.Append(key, benchPayload)
			case n < 9:
				_, _ = database.GetAndAppend(key, benchPayload)
			default:
				if c, err := database.Get(key); err == nil && !c.IsEmpty() {
					_, _ = database.ReplaceAtHead(key, c, chain.FromPayloads(benchPayload))
				}
			}
		}
	})
}
