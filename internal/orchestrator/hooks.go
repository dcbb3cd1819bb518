package orchestrator

import (
	"github.com/Iron-Ham/fleetcore/internal/event"
	"github.com/Iron-Ham/fleetcore/internal/metrics"
	"github.com/Iron-Ham/fleetcore/internal/taskqueue"
	"github.com/Iron-Ham/fleetcore/internal/workerpool"
)

// poolHooks is the single writer of runningReserved.
type poolHooks struct {
	o *Orchestrator
}

func (h poolHooks) TaskStarted(meta workerpool.Meta) {
	o := h.o
	o.metrics.Record(metrics.ActiveProcesses, 1)

	reserved := meta.Class == o.cfg.ReservedClass
	if reserved {
		n := o.runningReserved.Add(1)
		o.metrics.Set(o.gauges.running, float64(n))
	}
	o.bus.Publish(event.NewTaskStartedEvent(meta.TaskID, meta.Type, reserved))
}

func (h poolHooks) TaskFinished(meta workerpool.Meta, result any, err error) {
	o := h.o
	o.metrics.Record(metrics.ActiveProcesses, -1)

	if meta.Class == o.cfg.ReservedClass {
		n := o.runningReserved.Add(-1)
		o.metrics.Set(o.gauges.running, float64(n))
	}

	reward := 1.0
	errMsg := ""
	if err != nil {
		reward = 0
		errMsg = err.Error()
		o.metrics.Record(metrics.Errors, 1)
		o.logger.Error("task failed", "task_id", meta.TaskID, "task_type", meta.Type, "error", err)
	}
	if o.advisor != nil {
		o.advisor.Observe(meta.Type, reward)
	}
	o.bus.Publish(event.NewTaskFinishedEvent(meta.TaskID, meta.Type, err == nil, errMsg))
}

// queueEvents republishes queue notifications on the event bus.
type queueEvents struct {
	bus *event.Bus
}

func (q queueEvents) TaskPushed(task taskqueue.Task, size int) {
	q.bus.Publish(event.NewTaskQueuedEvent(task.ID, task.Type, task.Priority, size))
}

func (q queueEvents) TaskPopped(task taskqueue.Task, starved bool, size int) {
	q.bus.Publish(event.NewTaskDequeuedEvent(task.ID, task.Type, starved, size))
}
