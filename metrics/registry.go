// Package metrics provides a small in-process metric registry and the
// bridge that publishes its snapshots as a backpressure-aware stream.
// What a downstream reporter does with a snapshot, and over which wire,
// is its own concern.
package metrics

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/go-openapi/strfmt"
)

// Registry tracks named counters and gauges. All operations are safe
// for concurrent use from any goroutine, including event-loop workers.
type Registry struct {
	counters *haxmap.Map[string, *atomic.Int64]
	gauges   *haxmap.Map[string, *atomic.Uint64]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		counters: haxmap.New[string, *atomic.Int64](),
		gauges:   haxmap.New[string, *atomic.Uint64](),
	}
}

// Counter returns the named counter, creating it on first use.
func (r *Registry) Counter(name string) *Counter {
	v, _ := r.counters.GetOrCompute(name, func() *atomic.Int64 {
		return new(atomic.Int64)
	})
	return &Counter{v: v}
}

// SetGauge records the current value of the named gauge.
func (r *Registry) SetGauge(name string, value float64) {
	v, _ := r.gauges.GetOrCompute(name, func() *atomic.Uint64 {
		return new(atomic.Uint64)
	})
	v.Store(math.Float64bits(value))
}

// Snapshot captures the current values of every metric.
func (r *Registry) Snapshot() Snapshot {
	s := Snapshot{
		Timestamp: strfmt.DateTime(time.Now()),
		Counters:  make(map[string]int64),
		Gauges:    make(map[string]float64),
	}
	r.counters.ForEach(func(name string, v *atomic.Int64) bool {
		s.Counters[name] = v.Load()
		return true
	})
	r.gauges.ForEach(func(name string, v *atomic.Uint64) bool {
		s.Gauges[name] = math.Float64frombits(v.Load())
		return true
	})
	return s
}

// Counter is a monotonically adjustable integer metric.
type Counter struct {
	v *atomic.Int64
}

// Inc adds one.
func (c *Counter) Inc() { c.v.Add(1) }

// Add adds delta.
func (c *Counter) Add(delta int64) { c.v.Add(delta) }

// Value returns the current count.
func (c *Counter) Value() int64 { return c.v.Load() }
