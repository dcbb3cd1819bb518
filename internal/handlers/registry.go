// Package handlers implements the domain work executed by the worker pool.
//
// Each task type maps to a Handler in a Registry. Handlers decode their own
// JSON payload, honor context cancellation between iterations, and return
// a JSON-serializable result. A type with no registered handler is not an
// error: it yields Unknown so the task still completes.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/Iron-Ham/fleetcore/internal/audit"
	"github.com/Iron-Ham/fleetcore/internal/metrics"
)

// Handler executes one task payload.
type Handler interface {
	Handle(ctx context.Context, payload json.RawMessage) (any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) (any, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, payload json.RawMessage) (any, error) {
	return f(ctx, payload)
}

// Result is the generic outcome for handlers that decline to do work.
type Result struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// Unknown is returned for task types with no registered handler.
var Unknown = Result{OK: false, Reason: "unknown"}

// Deps are the collaborators handlers may write to.
type Deps struct {
	Audit   audit.Sink
	Metrics metrics.Sink
	// NewRand returns a fresh source for one handler invocation.
	NewRand func() *rand.Rand
	Now     func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Audit == nil {
		d.Audit = audit.Discard
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Discard
	}
	if d.NewRand == nil {
		d.NewRand = func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// Registry maps task types to handlers.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds taskType to h, replacing any previous binding.
func (r *Registry) Register(taskType string, h Handler) {
	r.handlers[taskType] = h
}

// Lookup returns the handler for taskType.
func (r *Registry) Lookup(taskType string) (Handler, bool) {
	h, ok := r.handlers[taskType]
	return h, ok
}

// Types returns the registered task types in sorted order.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// Run executes the handler for taskType. Unregistered types return Unknown.
func (r *Registry) Run(ctx context.Context, taskType string, payload json.RawMessage) (any, error) {
	h, ok := r.handlers[taskType]
	if !ok {
		return Unknown, nil
	}
	return h.Handle(ctx, payload)
}

// Default returns a Registry with every built-in handler registered.
// Registration happens once at construction; the map is read-only after.
func Default(deps Deps) *Registry {
	deps = deps.withDefaults()
	r := NewRegistry()

	forecast := HandlerFunc(Forecast)
	r.Register("predict", forecast)
	r.Register("forecast", forecast)

	sim := HandlerFunc(func(ctx context.Context, payload json.RawMessage) (any, error) {
		return Simulate(ctx, payload, deps.NewRand())
	})
	r.Register("simulate", sim)

	match := HandlerFunc(Match)
	r.Register("mentorMatch", match)
	r.Register("match", match)

	r.Register("publish", HandlerFunc(PublishQuality))
	r.Register("growthTrack", HandlerFunc(GrowthTrack))
	r.Register("research", NewResearch(deps))
	return r
}

// decode unmarshals payload into v. An empty payload leaves v unchanged.
func decode(payload json.RawMessage, v any) error {
	if len(payload) == 0 || string(payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
