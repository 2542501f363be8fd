package management

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestRegistryStores(t *testing.T) {
	r := NewRegistry(nil)

	a := r.Store("b-cache")
	if r.Store("b-cache") != a {
		t.Errorf("Store() returned a new instance for a known name")
	}
	r.Store("a-cache")

	if got := r.Stores(); !reflect.DeepEqual(got, []string{"a-cache", "b-cache"}) {
		t.Errorf("Stores() = %v, want [a-cache b-cache]", got)
	}

	r.Unregister("b-cache")
	r.Unregister("unknown")
	if got := r.Stores(); !reflect.DeepEqual(got, []string{"a-cache"}) {
		t.Errorf("Stores() after Unregister = %v, want [a-cache]", got)
	}

	// the remaining store keeps working
	r.Store("a-cache").Observe(OpGet, time.Now(), nil)
	if got := r.Snapshot()["a-cache"].Ops[OpGet].Count; got != 1 {
		t.Errorf("get count = %d, want 1", got)
	}
}

func TestStoreStatistics(t *testing.T) {
	r := NewRegistry(&Config{SampleSize: 16, Alpha: 0.015, Percentiles: []float64{0.5, 0.999}})
	s := r.Store("cache")

	start := time.Now().Add(-2 * time.Millisecond)
	s.Observe(OpAppend, start, nil)
	s.Observe(OpAppend, start, nil)
	s.Observe(OpReplaceAtHead, start, errors.New("boom"))
	s.AddPayload(10)
	s.AddPayload(5)
	s.AddElements(3)

	snap := r.Snapshot()["cache"]

	tests := []struct {
		name string
		got  int64
		want int64
	}{
		{name: "append count", got: snap.Ops[OpAppend].Count, want: 2},
		{name: "replace count", got: snap.Ops[OpReplaceAtHead].Count, want: 1},
		{name: "get count", got: snap.Ops[OpGet].Count, want: 0},
		{name: "errors", got: snap.Errors, want: 1},
		{name: "payload bytes", got: snap.PayloadBytes, want: 15},
		{name: "chain elements", got: snap.ChainElements, want: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %d, want %d", tt.name, tt.got, tt.want)
			}
		})
	}

	if mean := snap.Ops[OpAppend].MeanMs; mean < 2 {
		t.Errorf("append mean = %.3fms, want >= 2ms", mean)
	}
	if _, ok := snap.Ops[OpAppend].Percentiles["p99.9"]; !ok {
		t.Errorf("percentiles = %v, want key p99.9", snap.Ops[OpAppend].Percentiles)
	}

	if _, err := json.Marshal(r.Snapshot()); err != nil {
		t.Errorf("json.Marshal(Snapshot()) error = %v", err)
	}
}

func TestPercentileName(t *testing.T) {
	tests := []struct {
		p    float64
		want string
	}{
		{0.5, "p50"},
		{0.95, "p95"},
		{0.99, "p99"},
		{0.999, "p99.9"},
	}
	for _, tt := range tests {
		if got := percentileName(tt.p); got != tt.want {
			t.Errorf("percentileName(%v) = %s, want %s", tt.p, got, tt.want)
		}
	}
}
