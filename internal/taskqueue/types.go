package taskqueue

import (
	"encoding/json"
	"time"
)

// Task is the unit of schedulable work.
type Task struct {
	// ID is unique within the live queue. Generated at push time when empty.
	ID string `json:"id"`

	// Type selects the handler that executes the task (e.g. "simulate").
	Type string `json:"type"`

	// Class is the reservation accounting tag. When empty the task's Type
	// is used, so a "research" task belongs to the "research" class.
	Class string `json:"class,omitempty"`

	// Priority orders the queue; higher values are dequeued first.
	Priority int `json:"priority"`

	// CreditWeight is the secondary ordering key used as a priority tie-break.
	CreditWeight int `json:"creditWeight"`

	// Payload is opaque handler input.
	Payload json.RawMessage `json:"payload,omitempty"`

	// CreatedAt is stamped at enqueue time when zero. It breaks ties between
	// equal priorities (FIFO) and drives starvation detection.
	CreatedAt time.Time `json:"createdAt"`

	// Attempts is carried for callers but never incremented: the scheduler
	// does not retry failed tasks.
	Attempts int `json:"attempts"`

	// Timeout bounds the handler's context. Zero means no deadline.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// ClassName returns the reservation class of the task.
func (t Task) ClassName() string {
	if t.Class != "" {
		return t.Class
	}
	return t.Type
}

// Age returns how long the task has been queued as of now.
func (t Task) Age(now time.Time) time.Duration {
	return now.Sub(t.CreatedAt)
}

// Observer receives queue notifications. Methods are called after the
// queue's lock is released, so observers may call back into the queue.
type Observer interface {
	TaskPushed(task Task, size int)
	TaskPopped(task Task, starved bool, size int)
}
