// SizeHistogram and the distribution helpers in this file are used by the
// engines to report chain sizes and shard balance in GetInfo.

package util

import (
	"math"
	"sync"

	"github.com/rcrowley/go-metrics"
)

// ----------------------------------------------------------------------------
// Distribution
// ----------------------------------------------------------------------------

type Stats struct {
	StdDeviation float64 `json:"std_deviation"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	MinMaxRatio  float64 `json:"min_max_ratio"`
}

// NewStats computes the population standard deviation, minimum, maximum and
// mean of values
func NewStats(values []int64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	s := Stats{
		StdDeviation: metrics.SampleStdDev(values),
		Min:          float64(metrics.SampleMin(values)),
		Max:          float64(metrics.SampleMax(values)),
		Mean:         metrics.SampleMean(values),
		MinMaxRatio:  1.0,
	}
	if s.Max > 0 {
		s.MinMaxRatio = s.Min / s.Max
	}
	return s
}

type DistributionStats struct {
	Stats
	DistributionQuality float64 `json:"distribution_quality"`
}

// NewDistributionStats rates how evenly keys are spread over shards. A
// quality of 1 means all shards hold the same number of keys.
func NewDistributionStats(shardSizes []int64) DistributionStats {
	stats := NewStats(shardSizes)

	// coefficient of variation
	var cv float64
	if stats.Mean > 0 {
		cv = stats.StdDeviation / stats.Mean
	}

	return DistributionStats{
		Stats:               stats,
		DistributionQuality: (1.0-math.Min(1.0, cv))*0.5 + stats.MinMaxRatio*0.5,
	}
}

// ----------------------------------------------------------------------------
// SizeHistogram
// ----------------------------------------------------------------------------

// histogramReservoir is the number of samples kept for percentile estimates
const histogramReservoir = 1028

// SizeHistogram collects sizes (encoded bytes, chain lengths) during a scan.
// Count and sum are exact, percentiles are estimated from a uniform sample.
//
// Thread-safe: all methods are safe for concurrent use
type SizeHistogram struct {
	mu     sync.Mutex
	sample metrics.Sample
	count  int64
	sum    int64
}

// NewSizeHistogram creates an empty histogram
func NewSizeHistogram() *SizeHistogram {
	return &SizeHistogram{sample: metrics.NewUniformSample(histogramReservoir)}
}

// AddSample records one size
func (h *SizeHistogram) AddSample(size int) {
	h.mu.Lock()
	h.count++
	h.sum += int64(size)
	h.mu.Unlock()
	h.sample.Update(int64(size))
}

// Count returns the number of samples
func (h *SizeHistogram) Count() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Sum returns the sum of all samples
func (h *SizeHistogram) Sum() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sum
}

// Average returns the mean of all samples, 0 without samples
func (h *SizeHistogram) Average() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.count == 0 {
		return 0
	}
	return int(h.sum / h.count)
}

// Percentile estimates the p-th percentile (0 < p <= 1)
func (h *SizeHistogram) Percentile(p float64) int {
	return int(math.Round(h.sample.Percentile(p)))
}

// Median estimates the median
func (h *SizeHistogram) Median() int {
	return h.Percentile(0.5)
}

// Reset drops all samples
func (h *SizeHistogram) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count, h.sum = 0, 0
	h.sample.Clear()
}
