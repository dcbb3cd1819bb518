package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Iron-Ham/fleetcore/internal/advisor"
	"github.com/Iron-Ham/fleetcore/internal/api"
	"github.com/Iron-Ham/fleetcore/internal/audit"
	"github.com/Iron-Ham/fleetcore/internal/config"
	"github.com/Iron-Ham/fleetcore/internal/event"
	"github.com/Iron-Ham/fleetcore/internal/handlers"
	"github.com/Iron-Ham/fleetcore/internal/logging"
	"github.com/Iron-Ham/fleetcore/internal/metrics"
	"github.com/Iron-Ham/fleetcore/internal/orchestrator"
	"github.com/Iron-Ham/fleetcore/internal/scaling"
	"github.com/Iron-Ham/fleetcore/internal/snapshot"
	"github.com/Iron-Ham/fleetcore/internal/taskqueue"
)

const tracerName = "github.com/Iron-Ham/fleetcore"

// runtime is every long-lived component of a running server.
type runtime struct {
	cfg     *config.Config
	logger  *logging.Logger
	policy  *scaling.Policy
	pulse   *metrics.Pulse
	audit   *audit.MemorySink
	advisor *advisor.UCB
	store   snapshot.Store
	orch    *orchestrator.Orchestrator
	api     *api.Server
	nc      *nats.Conn
}

// newRuntime wires the components described by cfg. The caller owns the
// logger; everything else is released by close.
func newRuntime(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*runtime, error) {
	rt := &runtime{
		cfg:    cfg,
		logger: logger,
		policy: newPolicy(cfg.Scheduler),
		pulse:  metrics.NewPulse(),
		audit:  audit.NewMemorySink(cfg.Audit.BufferSize),
	}

	sinks := audit.Multi{rt.audit, audit.NewLogSink(logger)}
	if cfg.Audit.NATSURL != "" {
		natsCfg := audit.DefaultNATSConfig()
		natsCfg.URL = cfg.Audit.NATSURL
		nc, err := audit.DialNATS(natsCfg)
		if err != nil {
			return nil, err
		}
		rt.nc = nc
		sinks = append(sinks, audit.NewNATSSink(nc, cfg.Audit.NATSSubject, logger))
	}

	store, err := openStore(cfg.Snapshot)
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.store = store

	rt.advisor = advisor.New(cfg.Advisor.Exploration)
	if err := restoreAdvisor(ctx, rt.advisor, store); err != nil {
		logger.Warn("advisor state not restored", "error", err)
	}

	var feeders []orchestrator.Feeder
	if cfg.Feeders.Forex.Enabled {
		feeders = append(feeders, orchestrator.ForexFeeder(cfg.Feeders.Forex.Interval()))
	}

	plan := initialPlan(rt.policy, cfg.Scheduler)
	rt.orch = orchestrator.New(orchestrator.Config{
		Plan:              plan,
		ReservedClass:     cfg.Scheduler.ReservedClass,
		DispatchInterval:  cfg.Scheduler.DispatchInterval(),
		ReplenishInterval: cfg.Scheduler.ReplenishInterval(),
		DefaultPriority:   cfg.Scheduler.DefaultPriority,
		QueueOptions: []taskqueue.Option{
			taskqueue.WithStarvationThreshold(cfg.Scheduler.StarvationThreshold()),
		},
	}, orchestrator.Deps{
		Handlers: handlers.Default(handlers.Deps{Audit: sinks, Metrics: rt.pulse}),
		Metrics:  rt.pulse,
		Audit:    sinks,
		Logger:   logger,
		Advisor:  rt.advisor,
		Tracer:   newTracer(cfg.Tracing),
		Feeders:  feeders,
	})

	// Every orchestration event at DEBUG, for tracing dispatch decisions.
	eventLog := logger.WithComponent("events")
	rt.orch.Bus().SubscribeAll(func(e event.Event) {
		eventLog.Debug("event", "type", e.EventType())
	})

	rt.api = api.New(rt.orch,
		api.WithMetrics(rt.pulse),
		api.WithAdvisor(rt.advisor),
		api.WithSnapshotStore(store),
		api.WithAuditLog(rt.audit),
		api.WithLogger(logger),
		api.WithStreamInterval(cfg.Server.StreamInterval()),
	)
	return rt, nil
}

// applyConfig resizes the pool for a reloaded configuration. Only pool
// sizing is applied at runtime; other settings need a restart. rt.policy
// keeps the cooldown across reloads.
func (rt *runtime) applyConfig(cfg *config.Config) scaling.Decision {
	next := initialPlan(newPolicy(cfg.Scheduler), cfg.Scheduler)
	status := rt.orch.Status()

	decision := rt.policy.Evaluate(next, status.Pool.Concurrency)
	switch {
	case decision.Action != scaling.ActionNone:
		rt.orch.Resize(decision.Plan)
	case next.Concurrency == status.Pool.Concurrency && next.Reserved != status.Reserved.Reserved:
		rt.orch.Resize(next)
	}
	rt.logger.Info("config reloaded",
		"action", decision.Action.String(),
		"reason", decision.Reason,
	)
	return decision
}

// close releases the store and the NATS connection.
func (rt *runtime) close() {
	if rt.api != nil {
		rt.api.Close()
	}
	if rt.orch != nil {
		rt.orch.Bus().Clear()
	}
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			rt.logger.Warn("close snapshot store", "error", err)
		}
	}
	if rt.nc != nil {
		if err := rt.nc.Drain(); err != nil {
			rt.logger.Warn("drain nats connection", "error", err)
		}
	}
}

func newPolicy(cfg config.SchedulerConfig) *scaling.Policy {
	return scaling.NewPolicy(scaling.WithReservedShare(cfg.ReservedShare))
}

// initialPlan pins the pool when concurrency is set and derives it from the
// target otherwise.
func initialPlan(p *scaling.Policy, cfg config.SchedulerConfig) scaling.Plan {
	if cfg.Concurrency > 0 {
		return p.Fixed(cfg.Concurrency)
	}
	return p.Plan(cfg.TargetConcurrency)
}

func openStore(cfg config.SnapshotConfig) (snapshot.Store, error) {
	switch cfg.Backend {
	case "sqlite":
		return snapshot.NewSQLiteStore(cfg.SQLitePath)
	case "file", "":
		return snapshot.NewFileStore(cfg.Dir)
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", cfg.Backend)
	}
}

func restoreAdvisor(ctx context.Context, a *advisor.UCB, store snapshot.Store) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	data, err := store.Load(ctx, api.AdvisorKey)
	if errors.Is(err, snapshot.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return a.Restore(data)
}

func newTracer(cfg config.TracingConfig) trace.Tracer {
	if cfg.Enabled {
		return otel.Tracer(tracerName)
	}
	return noop.NewTracerProvider().Tracer(tracerName)
}
