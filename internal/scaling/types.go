package scaling

// Action represents a resize decision.
type Action string

const (
	// ActionScaleUp indicates the pool should grow.
	ActionScaleUp Action = "scale_up"

	// ActionScaleDown indicates the pool should shrink.
	ActionScaleDown Action = "scale_down"

	// ActionNone indicates no change is needed.
	ActionNone Action = "none"
)

// String returns the string representation of the action.
func (a Action) String() string {
	return string(a)
}

// Plan is a pool size and its reserved slot count.
type Plan struct {
	Concurrency int `json:"concurrency"`
	Reserved    int `json:"reserved"`
}

// Decision is the result of comparing a new Plan against the current pool.
type Decision struct {
	// Action is the recommended resize.
	Action Action

	// Plan is the plan to apply. Equal to the current size for ActionNone.
	Plan Plan

	// Delta is the change in concurrency; positive when growing.
	Delta int

	// Reason is a human-readable explanation of the decision.
	Reason string
}
