package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "task.started", "metrics.snapshot")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeTaskQueued       = "task.queued"
	TypeTaskDequeued     = "task.dequeued"
	TypeTaskStarted      = "task.started"
	TypeTaskFinished     = "task.finished"
	TypeReplenished      = "reserved.replenished"
	TypeTickFailed       = "tick.failed"
	TypeMetricsSnapshot  = "metrics.snapshot"
	TypeConcurrencyReset = "pool.concurrency_changed"
)

type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Queue Events
// -----------------------------------------------------------------------------

// TaskQueuedEvent is emitted when a task is pushed onto the scheduler queue.
type TaskQueuedEvent struct {
	baseEvent
	TaskID    string
	TaskType  string
	Priority  int
	QueueSize int
}

// NewTaskQueuedEvent creates a TaskQueuedEvent.
func NewTaskQueuedEvent(taskID, taskType string, priority, queueSize int) TaskQueuedEvent {
	return TaskQueuedEvent{
		baseEvent: newBaseEvent(TypeTaskQueued),
		TaskID:    taskID,
		TaskType:  taskType,
		Priority:  priority,
		QueueSize: queueSize,
	}
}

// TaskDequeuedEvent is emitted when a task leaves the queue.
// Starved is true when the starvation override selected it.
type TaskDequeuedEvent struct {
	baseEvent
	TaskID    string
	TaskType  string
	Starved   bool
	QueueSize int
}

// NewTaskDequeuedEvent creates a TaskDequeuedEvent.
func NewTaskDequeuedEvent(taskID, taskType string, starved bool, queueSize int) TaskDequeuedEvent {
	return TaskDequeuedEvent{
		baseEvent: newBaseEvent(TypeTaskDequeued),
		TaskID:    taskID,
		TaskType:  taskType,
		Starved:   starved,
		QueueSize: queueSize,
	}
}

// -----------------------------------------------------------------------------
// Execution Events
// -----------------------------------------------------------------------------

// TaskStartedEvent is emitted when the worker pool begins running a task.
type TaskStartedEvent struct {
	baseEvent
	TaskID   string
	TaskType string
	Reserved bool
}

// NewTaskStartedEvent creates a TaskStartedEvent.
func NewTaskStartedEvent(taskID, taskType string, reserved bool) TaskStartedEvent {
	return TaskStartedEvent{
		baseEvent: newBaseEvent(TypeTaskStarted),
		TaskID:    taskID,
		TaskType:  taskType,
		Reserved:  reserved,
	}
}

// TaskFinishedEvent is emitted when a task handler settles.
type TaskFinishedEvent struct {
	baseEvent
	TaskID   string
	TaskType string
	Success  bool
	Error    string // Error message (if failed)
}

// NewTaskFinishedEvent creates a TaskFinishedEvent.
func NewTaskFinishedEvent(taskID, taskType string, success bool, errMsg string) TaskFinishedEvent {
	return TaskFinishedEvent{
		baseEvent: newBaseEvent(TypeTaskFinished),
		TaskID:    taskID,
		TaskType:  taskType,
		Success:   success,
		Error:     errMsg,
	}
}

// -----------------------------------------------------------------------------
// Scheduler Events
// -----------------------------------------------------------------------------

// ReplenishedEvent is emitted when the replenishment loop synthesizes a
// reserved-class task.
type ReplenishedEvent struct {
	baseEvent
	TaskID          string
	RunningReserved int
	QueuedReserved  int
	Reserved        int
}

// NewReplenishedEvent creates a ReplenishedEvent.
func NewReplenishedEvent(taskID string, running, queued, reserved int) ReplenishedEvent {
	return ReplenishedEvent{
		baseEvent:       newBaseEvent(TypeReplenished),
		TaskID:          taskID,
		RunningReserved: running,
		QueuedReserved:  queued,
		Reserved:        reserved,
	}
}

// TickFailedEvent is emitted when a dispatch tick aborts with a recovered panic.
type TickFailedEvent struct {
	baseEvent
	Reason string
}

// NewTickFailedEvent creates a TickFailedEvent.
func NewTickFailedEvent(reason string) TickFailedEvent {
	return TickFailedEvent{
		baseEvent: newBaseEvent(TypeTickFailed),
		Reason:    reason,
	}
}

// MetricsSnapshotEvent carries the metrics snapshot taken after a dispatch tick.
type MetricsSnapshotEvent struct {
	baseEvent
	Values map[string]float64
}

// NewMetricsSnapshotEvent creates a MetricsSnapshotEvent.
func NewMetricsSnapshotEvent(values map[string]float64) MetricsSnapshotEvent {
	return MetricsSnapshotEvent{
		baseEvent: newBaseEvent(TypeMetricsSnapshot),
		Values:    values,
	}
}

// ConcurrencyChangedEvent is emitted when the pool bound is adjusted at runtime.
type ConcurrencyChangedEvent struct {
	baseEvent
	Previous int
	Current  int
	Reserved int
}

// NewConcurrencyChangedEvent creates a ConcurrencyChangedEvent.
func NewConcurrencyChangedEvent(previous, current, reserved int) ConcurrencyChangedEvent {
	return ConcurrencyChangedEvent{
		baseEvent: newBaseEvent(TypeConcurrencyReset),
		Previous:  previous,
		Current:   current,
		Reserved:  reserved,
	}
}
