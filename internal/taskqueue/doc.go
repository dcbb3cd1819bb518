// Package taskqueue provides the scheduler's in-memory priority queue.
//
// Tasks are ordered by priority (descending), then credit weight
// (descending), then enqueue time (ascending), so equal tasks leave in
// submission order. Pure priority ordering can starve low-priority work
// under sustained high-priority load; [Queue.Pop] therefore scans for the
// first task older than the starvation threshold and returns it ahead of
// the nominal head. The scan is O(n), which is fine because the queue is
// bounded by submission rate times processing latency.
//
// [Queue.Peek] never applies the override: it always reports the nominal
// head. Callers that admit by peeking and then pop must be prepared for
// Pop to return a different, starved task.
//
// Usage:
//
//	q := taskqueue.New(taskqueue.WithStarvationThreshold(30 * time.Second))
//	_, _ = q.Push(taskqueue.Task{Type: "simulate", Priority: 8})
//	if head, ok := q.Peek(); ok && admit(head) {
//	    task, _ := q.Pop()
//	    run(task)
//	}
package taskqueue
