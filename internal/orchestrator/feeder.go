package orchestrator

import (
	"context"
	"encoding/json"
	"time"
)

// DefaultForexInterval paces the forex research feeder.
const DefaultForexInterval = 10 * time.Second

// Feeder periodically submits a task built by Build. Feeders are declared
// at startup from configuration.
type Feeder struct {
	Name     string
	Interval time.Duration
	Build    func() Submission
}

// ForexFeeder submits a forex research task every interval.
func ForexFeeder(interval time.Duration) Feeder {
	if interval <= 0 {
		interval = DefaultForexInterval
	}
	return Feeder{
		Name:     "forex",
		Interval: interval,
		Build: func() Submission {
			priority := replenishPriority
			return Submission{
				Type:     DefaultReservedClass,
				Priority: &priority,
				Payload:  json.RawMessage(`{"category":"forex","runForex":true}`),
			}
		},
	}
}

func (o *Orchestrator) feed(f Feeder) func(context.Context) {
	return func(context.Context) {
		if _, err := o.SubmitTask(f.Build()); err != nil {
			o.logger.Warn("feeder submit failed", "feeder", f.Name, "error", err)
		}
	}
}
