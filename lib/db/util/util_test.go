package util

import (
	"math"
	"sync"
	"testing"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want uint64
	}{
		{name: "decimal", in: "42", want: 42},
		{name: "decimal with spaces", in: " 7 ", want: 7},
		{name: "hex", in: "0xff", want: 255},
		{name: "max", in: "18446744073709551615", want: 1<<64 - 1},
		{name: "string", in: "user:1", want: uint64(HashString("user:1", 0))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseKey(tt.in); got != tt.want {
				t.Errorf("ParseKey(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	if ParseKey("a") == ParseKey("b") {
		t.Errorf("ParseKey() maps different strings to the same key")
	}
}

func TestKeyLocks(t *testing.T) {
	locks := NewKeyLocks(4)
	counters := make([]int, 8)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				key := uint64(i % len(counters))
				unlock := locks.Lock(key)
				counters[key]++
				unlock()
			}
		}()
	}
	wg.Wait()

	for key, c := range counters {
		if c != 1000 {
			t.Errorf("counter[%d] = %d, want 1000", key, c)
		}
	}
}

func TestSizeHistogram(t *testing.T) {
	h := NewSizeHistogram()
	for i := 1; i <= 100; i++ {
		h.AddSample(i)
	}
	if h.Count() != 100 {
		t.Errorf("Count() = %d, want 100", h.Count())
	}
	if h.Sum() != 5050 {
		t.Errorf("Sum() = %d, want 5050", h.Sum())
	}
	if h.Average() != 50 {
		t.Errorf("Average() = %d, want 50", h.Average())
	}
	// fewer samples than the reservoir, the percentiles are exact
	if got := h.Percentile(1); got != 100 {
		t.Errorf("Percentile(1) = %d, want 100", got)
	}
	if got := h.Median(); got < 50 || got > 51 {
		t.Errorf("Median() = %d, want 50 or 51", got)
	}

	h.Reset()
	if h.Count() != 0 || h.Average() != 0 {
		t.Errorf("after Reset() Count() = %d, Average() = %d, want 0, 0", h.Count(), h.Average())
	}
}

func TestDistributionStats(t *testing.T) {
	tests := []struct {
		name  string
		sizes []int64
		want  float64
	}{
		{"even", []int64{10, 10, 10, 10}, 1},
		{"empty shard", []int64{0, 20}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewDistributionStats(tt.sizes).DistributionQuality
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("NewDistributionStats(%v).DistributionQuality = %v, want %v", tt.sizes, got, tt.want)
			}
		})
	}
}
