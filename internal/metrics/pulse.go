// Package metrics holds the counters and gauges the scheduler reports.
//
// The scheduler writes through the narrow Sink interface; Pulse is the
// in-memory implementation served by the status and metrics endpoints.
package metrics

import (
	"maps"
	"sync"
)

// Well-known metric names written by the orchestrator.
const (
	ActiveProcesses  = "activeProcesses"
	Throughput       = "throughput"
	Errors           = "errors"
	LatencyMs        = "latencyMs"
	ResearchProduced = "researchProduced"
)

// Sink receives counter increments and gauge updates. Implementations must be
// safe for concurrent use.
type Sink interface {
	// Record adds delta to the named counter.
	Record(name string, delta float64)
	// Set overwrites the named gauge.
	Set(name string, value float64)
	// Snapshot returns a copy of all current values.
	Snapshot() map[string]float64
}

// Pulse is an in-memory Sink.
type Pulse struct {
	mu     sync.RWMutex
	values map[string]float64
}

// NewPulse creates an empty Pulse.
func NewPulse() *Pulse {
	return &Pulse{values: make(map[string]float64)}
}

// Record adds delta to the named counter, creating it at zero if needed.
func (p *Pulse) Record(name string, delta float64) {
	p.mu.Lock()
	p.values[name] += delta
	p.mu.Unlock()
}

// Set overwrites the named gauge.
func (p *Pulse) Set(name string, value float64) {
	p.mu.Lock()
	p.values[name] = value
	p.mu.Unlock()
}

// Get returns the named value and whether it has been written.
func (p *Pulse) Get(name string) (float64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.values[name]
	return v, ok
}

// Snapshot returns a copy of all current values.
func (p *Pulse) Snapshot() map[string]float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return maps.Clone(p.values)
}

// Discard is a Sink that drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Record(string, float64)       {}
func (discard) Set(string, float64)          {}
func (discard) Snapshot() map[string]float64 { return map[string]float64{} }
