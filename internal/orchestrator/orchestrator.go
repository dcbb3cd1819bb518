// Package orchestrator ties the task queue to the worker pool.
//
// Callers submit tasks; a periodic dispatch tick moves eligible tasks from
// the queue onto the pool while enforcing a reserved-capacity partition for
// one task class, and a coarser replenishment loop keeps the reserved lane
// supplied with work. The pool reports task start and finish back to the
// orchestrator, which maintains the reserved-lane counters and writes
// metrics and audit records.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/Iron-Ham/fleetcore/internal/advisor"
	"github.com/Iron-Ham/fleetcore/internal/audit"
	"github.com/Iron-Ham/fleetcore/internal/event"
	"github.com/Iron-Ham/fleetcore/internal/handlers"
	"github.com/Iron-Ham/fleetcore/internal/logging"
	"github.com/Iron-Ham/fleetcore/internal/metrics"
	"github.com/Iron-Ham/fleetcore/internal/periodic"
	"github.com/Iron-Ham/fleetcore/internal/scaling"
	"github.com/Iron-Ham/fleetcore/internal/taskqueue"
	"github.com/Iron-Ham/fleetcore/internal/workerpool"
)

// ErrMissingType is returned when a submission has no task type.
var ErrMissingType = errors.New("task type required")

// Defaults applied when Config leaves a field zero.
const (
	DefaultReservedClass     = "research"
	DefaultPriority          = 5
	DefaultDispatchInterval  = 50 * time.Millisecond
	DefaultReplenishInterval = 5 * time.Second
)

// Config sizes and paces the orchestrator.
type Config struct {
	// Plan is the initial pool size and reserved slot count.
	Plan scaling.Plan

	// ReservedClass is the task class that owns the reserved slots.
	ReservedClass string

	// DispatchInterval paces the dispatch tick.
	DispatchInterval time.Duration

	// ReplenishInterval paces the reserved-lane replenishment loop. A
	// negative value disables it.
	ReplenishInterval time.Duration

	// DefaultPriority is applied to submissions that leave Priority unset.
	DefaultPriority int

	// QueueOptions are passed to the task queue.
	QueueOptions []taskqueue.Option
}

func (c Config) withDefaults() Config {
	if c.Plan.Concurrency < 1 {
		c.Plan = scaling.NewPolicy().Plan(0)
	}
	if c.ReservedClass == "" {
		c.ReservedClass = DefaultReservedClass
	}
	if c.DispatchInterval <= 0 {
		c.DispatchInterval = DefaultDispatchInterval
	}
	if c.ReplenishInterval == 0 {
		c.ReplenishInterval = DefaultReplenishInterval
	}
	if c.DefaultPriority == 0 {
		c.DefaultPriority = DefaultPriority
	}
	return c
}

// Deps are the orchestrator's collaborators. Nil fields get no-op defaults.
type Deps struct {
	Handlers *handlers.Registry
	Metrics  metrics.Sink
	Audit    audit.Sink
	Bus      *event.Bus
	Logger   *logging.Logger
	// Advisor, when set, is fed each task's outcome keyed by task type.
	Advisor *advisor.UCB
	Tracer  trace.Tracer
	Feeders []Feeder
	Now     func() time.Time
}

// Submission is a request to enqueue a task. A nil Priority takes the
// configured default. A nil CreditWeight is ranked by the advisor when one
// is set, and is zero otherwise.
type Submission struct {
	ID           string          `json:"id,omitempty"`
	Type         string          `json:"type"`
	Class        string          `json:"class,omitempty"`
	Priority     *int            `json:"priority,omitempty"`
	CreditWeight *int            `json:"creditWeight,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Timeout      time.Duration   `json:"-"`
}

// ReservedStatus describes the reserved lane.
type ReservedStatus struct {
	Class    string `json:"class"`
	Reserved int    `json:"reserved"`
	Running  int    `json:"running"`
	Queued   int    `json:"queued"`
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	SchedulerSize int                `json:"schedulerSize"`
	Pool          workerpool.Status  `json:"pool"`
	Metrics       map[string]float64 `json:"metrics"`
	Reserved      ReservedStatus     `json:"reserved"`
}

// gauges are the metric names derived from the reserved class, e.g.
// runningResearch, researchReserved and researchQueued.
type gauges struct {
	running  string
	reserved string
	queued   string
}

func newGauges(class string) gauges {
	title := class
	if class != "" {
		title = strings.ToUpper(class[:1]) + class[1:]
	}
	return gauges{
		running:  "running" + title,
		reserved: class + "Reserved",
		queued:   class + "Queued",
	}
}

// Orchestrator schedules tasks onto the worker pool.
type Orchestrator struct {
	cfg      Config
	queue    *taskqueue.Queue
	pool     *workerpool.Pool
	handlers *handlers.Registry
	metrics  metrics.Sink
	audit    audit.Sink
	bus      *event.Bus
	logger   *logging.Logger
	advisor  *advisor.UCB
	tracer   trace.Tracer
	feeders  []Feeder
	now      func() time.Time
	gauges   gauges

	reserved        atomic.Int64
	runningReserved atomic.Int64

	// tickMu serializes dispatch ticks; only a tick submits to the pool.
	tickMu sync.Mutex

	mu    sync.Mutex
	loops []*periodic.Loop
}

// New creates an Orchestrator with its own queue and pool.
func New(cfg Config, deps Deps) *Orchestrator {
	cfg = cfg.withDefaults()

	if deps.Handlers == nil {
		deps.Handlers = handlers.NewRegistry()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Discard
	}
	if deps.Audit == nil {
		deps.Audit = audit.Discard
	}
	if deps.Logger == nil {
		deps.Logger = logging.NopLogger()
	}
	if deps.Bus == nil {
		deps.Bus = event.NewBus(deps.Logger)
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer("github.com/Iron-Ham/fleetcore/internal/orchestrator")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	o := &Orchestrator{
		cfg:      cfg,
		handlers: deps.Handlers,
		metrics:  deps.Metrics,
		audit:    deps.Audit,
		bus:      deps.Bus,
		logger:   deps.Logger.WithComponent("orchestrator"),
		advisor:  deps.Advisor,
		tracer:   deps.Tracer,
		feeders:  deps.Feeders,
		now:      deps.Now,
		gauges:   newGauges(cfg.ReservedClass),
	}

	queueOpts := append([]taskqueue.Option{
		taskqueue.WithLogger(deps.Logger),
		taskqueue.WithObserver(queueEvents{bus: deps.Bus}),
	}, cfg.QueueOptions...)
	o.queue = taskqueue.New(queueOpts...)
	o.pool = workerpool.New(cfg.Plan.Concurrency, poolHooks{o: o})

	o.reserved.Store(int64(cfg.Plan.Reserved))
	o.metrics.Set(o.gauges.reserved, float64(cfg.Plan.Reserved))
	return o
}

// SubmitTask normalizes and enqueues a task, returning its ID. It rejects a
// missing type with ErrMissingType.
func (o *Orchestrator) SubmitTask(sub Submission) (string, error) {
	if strings.TrimSpace(sub.Type) == "" {
		return "", ErrMissingType
	}

	task := taskqueue.Task{
		ID:       sub.ID,
		Type:     sub.Type,
		Class:    sub.Class,
		Priority: o.cfg.DefaultPriority,
		Payload:  sub.Payload,
		Timeout:  sub.Timeout,
	}
	if task.ID == "" {
		task.ID = taskqueue.NewTaskID()
	}
	if sub.Priority != nil {
		task.Priority = *sub.Priority
	}
	switch {
	case sub.CreditWeight != nil:
		task.CreditWeight = *sub.CreditWeight
	case o.advisor != nil:
		task.CreditWeight = o.advisor.CreditWeight(o.creditCandidates(sub.Type), sub.Type)
	}
	if len(task.Payload) == 0 {
		task.Payload = json.RawMessage("{}")
	}
	task.CreatedAt = o.now()

	stored, err := o.queue.Push(task)
	if err != nil {
		return "", fmt.Errorf("enqueue task: %w", err)
	}

	o.audit.Log(audit.TaskSubmitted, map[string]any{
		"id":           stored.ID,
		"type":         stored.Type,
		"priority":     stored.Priority,
		"creditWeight": stored.CreditWeight,
	})
	o.metrics.Record(metrics.Throughput, 1)
	if stored.ClassName() == o.cfg.ReservedClass {
		o.metrics.Set(o.gauges.queued, float64(o.queue.CountClass(o.cfg.ReservedClass)))
	}
	return stored.ID, nil
}

// creditCandidates is the set the advisor ranks a submission against: every
// registered task type plus the submitted one.
func (o *Orchestrator) creditCandidates(taskType string) []string {
	types := o.handlers.Types()
	if !slices.Contains(types, taskType) {
		types = append(types, taskType)
	}
	return types
}

// Status returns queue size, pool counters, metrics and the reserved lane.
// It has no side effects.
func (o *Orchestrator) Status() Status {
	return Status{
		SchedulerSize: o.queue.Size(),
		Pool:          o.pool.Status(),
		Metrics:       o.metrics.Snapshot(),
		Reserved: ReservedStatus{
			Class:    o.cfg.ReservedClass,
			Reserved: int(o.reserved.Load()),
			Running:  int(o.runningReserved.Load()),
			Queued:   o.queue.CountClass(o.cfg.ReservedClass),
		},
	}
}

// Resize applies a new pool plan. Lowering concurrency does not interrupt
// running tasks.
func (o *Orchestrator) Resize(plan scaling.Plan) {
	previous := o.pool.Status().Concurrency
	o.reserved.Store(int64(plan.Reserved))
	o.pool.SetConcurrency(plan.Concurrency)
	o.metrics.Set(o.gauges.reserved, float64(plan.Reserved))

	o.logger.Info("pool resized",
		"previous", previous,
		"concurrency", plan.Concurrency,
		"reserved", plan.Reserved,
	)
	o.bus.Publish(event.NewConcurrencyChangedEvent(previous, plan.Concurrency, plan.Reserved))
}

// Concurrency returns the pool's current bound.
func (o *Orchestrator) Concurrency() int {
	return o.pool.Status().Concurrency
}

// Bus returns the event bus the orchestrator publishes on.
func (o *Orchestrator) Bus() *event.Bus {
	return o.bus
}

// Start launches the dispatch tick, the replenishment loop and every
// feeder. Call Shutdown to stop them.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.loops) > 0 {
		return
	}

	onPanic := periodic.WithPanicHandler(func(name string, err error) {
		o.logger.Error("loop iteration panicked", "loop", name, "error", err)
		o.metrics.Record(metrics.Errors, 1)
	})

	o.loops = append(o.loops,
		periodic.New("dispatch", o.cfg.DispatchInterval, func(context.Context) { o.DispatchOnce() }, onPanic),
		periodic.New("replenish", o.cfg.ReplenishInterval, func(context.Context) { o.ReplenishOnce() }, onPanic),
	)
	for _, f := range o.feeders {
		o.loops = append(o.loops, periodic.New("feeder."+f.Name, f.Interval, o.feed(f), onPanic))
	}
	names := make([]string, 0, len(o.loops))
	for _, l := range o.loops {
		l.Start(ctx)
		names = append(names, l.Name())
	}

	o.logger.Info("orchestrator started",
		"concurrency", o.pool.Status().Concurrency,
		"reserved", o.reserved.Load(),
		"reserved_class", o.cfg.ReservedClass,
		"starvation_threshold", o.queue.Threshold(),
		"loops", names,
	)
}

// Shutdown stops all loops, rejects tasks still pending in the pool and
// waits for in-flight handlers until ctx is done. Tasks left in the queue
// are discarded.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	loops := o.loops
	o.loops = nil
	o.mu.Unlock()

	for _, l := range loops {
		l.Stop()
	}
	o.pool.Stop()

	dropped := len(o.queue.Drain())
	if err := o.pool.Wait(ctx); err != nil {
		return fmt.Errorf("wait for in-flight tasks: %w", err)
	}
	o.logger.Info("orchestrator stopped", "dropped_queued", dropped)
	return nil
}
