package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/panics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Iron-Ham/fleetcore/internal/audit"
	"github.com/Iron-Ham/fleetcore/internal/event"
	"github.com/Iron-Ham/fleetcore/internal/metrics"
	"github.com/Iron-Ham/fleetcore/internal/taskqueue"
	"github.com/Iron-Ham/fleetcore/internal/workerpool"
)

// canSchedule is the admission predicate for the next task's class.
//
// The reserved class is admitted while it holds fewer than its reserved
// slots and the pool has room. Any other class may only use the capacity
// left after setting aside the reserved slots the reserved class has not
// yet claimed.
func (o *Orchestrator) canSchedule(class string) bool {
	st := o.pool.Status()
	reserved := int(o.reserved.Load())
	running := int(o.runningReserved.Load())

	if class == o.cfg.ReservedClass {
		return running < reserved && st.Running < st.Concurrency
	}
	shortfall := max(0, reserved-running)
	return st.Running < st.Concurrency-shortfall
}

// DispatchOnce runs one dispatch tick and returns how many tasks it handed
// to the pool.
//
// The tick stops at the first head task that admission denies rather than
// skipping to a lower-priority task. When the starvation override pops a
// task other than the peeked head, admission is checked again for that
// task; if denied it is pushed back unchanged, keeping its age, and the
// tick ends.
//
// A panic inside the tick is recovered, logged and counted in errors.
func (o *Orchestrator) DispatchOnce() (dispatched int) {
	o.tickMu.Lock()
	defer o.tickMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("dispatch tick panicked: %v", r)
			o.logger.Error("dispatch tick failed", "error", err)
			o.metrics.Record(metrics.Errors, 1)
			o.bus.Publish(event.NewTickFailedEvent(err.Error()))
		}
	}()

	for o.queue.Size() > 0 {
		if st := o.pool.Status(); st.Running >= st.Concurrency {
			break
		}
		head, ok := o.queue.Peek()
		if !ok || !o.canSchedule(head.ClassName()) {
			break
		}
		task, ok := o.queue.Pop()
		if !ok {
			break
		}
		if task.ID != head.ID && !o.canSchedule(task.ClassName()) {
			if _, err := o.queue.Push(task); err != nil {
				o.logger.Error("requeue denied task", "task_id", task.ID, "error", err)
			}
			break
		}
		o.pool.Submit(o.execute(task), workerpool.Meta{
			TaskID: task.ID,
			Type:   task.Type,
			Class:  task.ClassName(),
		})
		dispatched++
	}

	o.bus.Publish(event.NewMetricsSnapshotEvent(o.metrics.Snapshot()))
	return dispatched
}

// execute wraps a task for the pool: it resolves the handler by type,
// traces the run, and writes the completion or error record.
func (o *Orchestrator) execute(task taskqueue.Task) workerpool.Func {
	return func() (any, error) {
		start := o.now()
		logger := o.logger.WithTask(task.ID, task.Type)

		ctx := context.Background()
		if task.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, task.Timeout)
			defer cancel()
		}
		ctx, span := o.tracer.Start(ctx, "task."+task.Type,
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(
				attribute.String("task.id", task.ID),
				attribute.String("task.class", task.ClassName()),
				attribute.Int("task.priority", task.Priority),
				attribute.Int("task.credit_weight", task.CreditWeight),
			),
		)
		defer span.End()

		var (
			result any
			err    error
		)
		if r := panics.Try(func() { result, err = o.handlers.Run(ctx, task.Type, task.Payload) }); r != nil {
			err = fmt.Errorf("handler panicked: %w", r.AsError())
		}

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				err = fmt.Errorf("task timed out after %s: %w", task.Timeout, err)
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			o.audit.Log(audit.TaskError, map[string]any{
				"id":    task.ID,
				"type":  task.Type,
				"error": err.Error(),
			})
			logger.Debug("task handler failed", "error", err)
			return nil, err
		}

		span.SetStatus(codes.Ok, "")
		o.audit.Log(audit.TaskComplete, map[string]any{
			"id":     task.ID,
			"type":   task.Type,
			"result": result,
		})
		o.metrics.Set(metrics.LatencyMs, float64(o.now().Sub(start)/time.Millisecond))
		return result, nil
	}
}
