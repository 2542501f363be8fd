package management

import (
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/rcrowley/go-metrics"
)

var log = logger.GetLogger("management")

// Op names one of the four chain operations
type Op string

const (
	OpGet           Op = "get"
	OpAppend        Op = "append"
	OpGetAndAppend  Op = "get_and_append"
	OpReplaceAtHead Op = "replace_at_head"
)

// Ops lists all operations in a stable order
var Ops = []Op{OpGet, OpAppend, OpGetAndAppend, OpReplaceAtHead}

// Config configures the statistics of a registry
type Config struct {
	SampleSize  int       // reservoir size of the latency samples
	Alpha       float64   // decay of the exponential sample
	Percentiles []float64 // latency percentiles included in snapshots
}

// DefaultConfig returns the default registry configuration
func DefaultConfig() *Config {
	return &Config{
		SampleSize:  1028,
		Alpha:       0.015,
		Percentiles: []float64{0.5, 0.95, 0.99},
	}
}

// Registry holds the statistics of all named stores of a process
type Registry struct {
	cfg    *Config
	mu     sync.RWMutex
	root   metrics.Registry
	stores map[string]*StoreStatistics
}

// NewRegistry creates a new registry. A nil config means DefaultConfig().
func NewRegistry(cfg *Config) *Registry {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Registry{
		cfg:    cfg,
		root:   metrics.NewRegistry(),
		stores: make(map[string]*StoreStatistics),
	}
}

// Store returns the statistics of the store with the given name and creates
// them on first use.
func (r *Registry) Store(name string) *StoreStatistics {
	r.mu.RLock()
	s, ok := r.stores[name]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[name]; ok {
		return s
	}
	s = newStoreStatistics(r.cfg, metrics.NewPrefixedChildRegistry(r.root, name+"."))
	r.stores[name] = s
	log.Debugf("registered statistics for store %q", name)
	return s
}

// Unregister drops the statistics of a store
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[name]
	if !ok {
		return
	}
	s.unregister()
	delete(r.stores, name)
}

// Stores returns the names of all registered stores, sorted
func (r *Registry) Stores() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.stores))
	for name := range r.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns the current statistics of all stores
func (r *Registry) Snapshot() map[string]StoreSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]StoreSnapshot, len(r.stores))
	for name, s := range r.stores {
		out[name] = s.Snapshot()
	}
	return out
}

// --------------------------------------------------------------------------
// Per Store Statistics
// --------------------------------------------------------------------------

// StoreStatistics observes the operations of one store. Observations never
// influence the store itself.
type StoreStatistics struct {
	cfg          *Config
	registry     metrics.Registry
	timers       map[Op]metrics.Timer
	errors       metrics.Counter
	elements     metrics.Counter
	payloadBytes metrics.Meter
}

func newStoreStatistics(cfg *Config, registry metrics.Registry) *StoreStatistics {
	s := &StoreStatistics{
		cfg:          cfg,
		registry:     registry,
		timers:       make(map[Op]metrics.Timer, len(Ops)),
		errors:       metrics.GetOrRegisterCounter("errors", registry),
		elements:     metrics.GetOrRegisterCounter("chain_elements", registry),
		payloadBytes: metrics.GetOrRegisterMeter("payload_bytes", registry),
	}
	for _, op := range Ops {
		s.timers[op] = registry.GetOrRegister(string(op), func() metrics.Timer {
			return metrics.NewCustomTimer(metrics.NewHistogram(metrics.NewExpDecaySample(cfg.SampleSize, cfg.Alpha)), metrics.NewMeter())
		}).(metrics.Timer)
	}
	return s
}

// unregister removes all metrics of the store from the registry and stops its meters
func (s *StoreStatistics) unregister() {
	for _, op := range Ops {
		s.registry.Unregister(string(op))
	}
	for _, name := range []string{"errors", "chain_elements", "payload_bytes"} {
		s.registry.Unregister(name)
	}
}

// Observe records one call of op that started at start
func (s *StoreStatistics) Observe(op Op, start time.Time, err error) {
	if t, ok := s.timers[op]; ok {
		t.UpdateSince(start)
	}
	if err != nil {
		s.errors.Inc(1)
	}
}

// AddPayload records n payload bytes sent to the store
func (s *StoreStatistics) AddPayload(n int) {
	s.payloadBytes.Mark(int64(n))
}

// AddElements records n chain elements returned by the store
func (s *StoreStatistics) AddElements(n int) {
	s.elements.Inc(int64(n))
}

// OpSnapshot is the JSON friendly state of one operation timer
type OpSnapshot struct {
	Count       int64              `json:"count"`
	Rate1       float64            `json:"rate_1m"`
	MeanMs      float64            `json:"mean_ms"`
	MaxMs       float64            `json:"max_ms"`
	Percentiles map[string]float64 `json:"percentiles_ms"`
}

// StoreSnapshot is the JSON friendly state of one store
type StoreSnapshot struct {
	Ops           map[Op]OpSnapshot `json:"ops"`
	Errors        int64             `json:"errors"`
	ChainElements int64             `json:"chain_elements"`
	PayloadBytes  int64             `json:"payload_bytes"`
	PayloadRate1  float64           `json:"payload_bytes_rate_1m"`
}

// Snapshot returns the current state of the statistics
func (s *StoreStatistics) Snapshot() StoreSnapshot {
	ms := func(ns float64) float64 { return ns / float64(time.Millisecond) }

	out := StoreSnapshot{
		Ops:           make(map[Op]OpSnapshot, len(s.timers)),
		Errors:        s.errors.Snapshot().Count(),
		ChainElements: s.elements.Snapshot().Count(),
		PayloadBytes:  s.payloadBytes.Snapshot().Count(),
		PayloadRate1:  s.payloadBytes.Snapshot().Rate1(),
	}
	for op, t := range s.timers {
		snap := t.Snapshot()
		values := snap.Percentiles(s.cfg.Percentiles)
		percentiles := make(map[string]float64, len(values))
		for i, p := range s.cfg.Percentiles {
			percentiles[percentileName(p)] = ms(values[i])
		}
		out.Ops[op] = OpSnapshot{
			Count:       snap.Count(),
			Rate1:       snap.Rate1(),
			MeanMs:      ms(snap.Mean()),
			MaxMs:       ms(float64(snap.Max())),
			Percentiles: percentiles,
		}
	}
	return out
}

// percentileName formats 0.99 as "p99" and 0.999 as "p99.9"
func percentileName(p float64) string {
	return "p" + strconv.FormatFloat(math.Round(p*1000)/10, 'f', -1, 64)
}
