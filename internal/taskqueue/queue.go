package taskqueue

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/fleetcore/internal/logging"
)

// DefaultStarvationThreshold is the age after which a queued task is
// dequeued ahead of the nominal head.
const DefaultStarvationThreshold = 30 * time.Second

// Sentinel errors returned by queue operations.
var (
	ErrDuplicateTask = errors.New("task already queued")
)

// entry pairs a task with its insertion sequence so that tasks stamped with
// the same CreatedAt still leave in push order.
type entry struct {
	task Task
	seq  uint64
}

// Queue is an in-memory priority queue with starvation protection.
// All methods are safe for concurrent use via an internal mutex.
type Queue struct {
	mu        sync.Mutex
	entries   []entry // kept sorted by less
	ids       map[string]struct{}
	seq       uint64
	threshold time.Duration
	now       func() time.Time
	newID     func() string
	observers []Observer
	logger    *logging.Logger
}

// Option configures a Queue.
type Option func(*Queue)

// WithStarvationThreshold sets the maximum age a task may reach before Pop
// returns it ahead of higher-priority work. Zero or negative disables the
// override.
func WithStarvationThreshold(d time.Duration) Option {
	return func(q *Queue) { q.threshold = d }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithIDGenerator replaces the generator used for tasks pushed without an ID.
func WithIDGenerator(gen func() string) Option {
	return func(q *Queue) { q.newID = gen }
}

// WithObserver registers an observer for push and pop notifications.
func WithObserver(o Observer) Option {
	return func(q *Queue) { q.observers = append(q.observers, o) }
}

// WithLogger sets the logger used to report tolerated malformed tasks.
func WithLogger(l *logging.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// New creates an empty Queue.
func New(opts ...Option) *Queue {
	q := &Queue{
		ids:       make(map[string]struct{}),
		threshold: DefaultStarvationThreshold,
		now:       time.Now,
		newID:     NewTaskID,
		logger:    logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.logger = q.logger.WithComponent("taskqueue")
	return q
}

// NewTaskID returns a fresh task identifier.
func NewTaskID() string {
	return "t-" + uuid.NewString()
}

// less reports whether a sorts before b:
// priority desc, credit weight desc, created-at asc, then push order.
func less(a, b entry) bool {
	if a.task.Priority != b.task.Priority {
		return a.task.Priority > b.task.Priority
	}
	if a.task.CreditWeight != b.task.CreditWeight {
		return a.task.CreditWeight > b.task.CreditWeight
	}
	if !a.task.CreatedAt.Equal(b.task.CreatedAt) {
		return a.task.CreatedAt.Before(b.task.CreatedAt)
	}
	return a.seq < b.seq
}

// Push inserts a task, stamping CreatedAt when it is zero. A task without an
// ID is accepted with a generated one and the substitution is logged. It
// returns the task as stored.
func (q *Queue) Push(task Task) (Task, error) {
	q.mu.Lock()

	if task.ID == "" {
		task.ID = q.newID()
		q.logger.Warn("task pushed without id, generated one", "task_id", task.ID, "task_type", task.Type)
	}
	if _, dup := q.ids[task.ID]; dup {
		q.mu.Unlock()
		return Task{}, fmt.Errorf("%w: %s", ErrDuplicateTask, task.ID)
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = q.now()
	}

	q.seq++
	e := entry{task: task, seq: q.seq}
	i := sort.Search(len(q.entries), func(i int) bool { return less(e, q.entries[i]) })
	q.entries = append(q.entries, entry{})
	copy(q.entries[i+1:], q.entries[i:])
	q.entries[i] = e
	q.ids[task.ID] = struct{}{}
	size := len(q.entries)
	observers := q.observers
	q.mu.Unlock()

	for _, o := range observers {
		o.TaskPushed(task, size)
	}
	return task, nil
}

// Peek returns the nominal head without removing it. The starvation
// override is not applied.
func (q *Queue) Peek() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return Task{}, false
	}
	return q.entries[0].task, true
}

// Pop removes and returns the next task. The first task in queue order
// whose age exceeds the starvation threshold wins; otherwise the nominal
// head is returned.
func (q *Queue) Pop() (Task, bool) {
	q.mu.Lock()

	if len(q.entries) == 0 {
		q.mu.Unlock()
		return Task{}, false
	}

	idx, starved := 0, false
	if q.threshold > 0 {
		now := q.now()
		for i, e := range q.entries {
			if e.task.Age(now) > q.threshold {
				idx, starved = i, i != 0
				break
			}
		}
	}

	task := q.entries[idx].task
	q.entries = append(q.entries[:idx], q.entries[idx+1:]...)
	delete(q.ids, task.ID)
	size := len(q.entries)
	observers := q.observers
	q.mu.Unlock()

	for _, o := range observers {
		o.TaskPopped(task, starved, size)
	}
	return task, true
}

// Size returns the number of pending tasks.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// CountClass returns the number of pending tasks of the given class.
func (q *Queue) CountClass(class string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, e := range q.entries {
		if e.task.ClassName() == class {
			n++
		}
	}
	return n
}

// Drain atomically empties the queue and returns the pending tasks in
// nominal order. Observers are not notified.
func (q *Queue) Drain() []Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	tasks := make([]Task, len(q.entries))
	for i, e := range q.entries {
		tasks[i] = e.task
	}
	q.entries = nil
	q.ids = make(map[string]struct{})
	return tasks
}

// Threshold returns the configured starvation threshold.
func (q *Queue) Threshold() time.Duration {
	return q.threshold
}
