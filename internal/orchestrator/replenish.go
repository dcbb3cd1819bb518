package orchestrator

import (
	"encoding/json"
	"fmt"

	"github.com/Iron-Ham/fleetcore/internal/event"
	"github.com/Iron-Ham/fleetcore/internal/handlers"
)

// replenishPriority keeps synthesized reserved-class work below the default
// priority so it never jumps ahead of caller-submitted tasks.
const replenishPriority = 2

var replenishPayload = json.RawMessage(fmt.Sprintf(
	`{"category":%q,"sources":["global_feeds"]}`, handlers.DefaultResearchCategory,
))

// ReplenishOnce tops up the reserved lane. It updates the queued gauge and,
// when running plus queued reserved-class tasks fall short of the reserved
// slot count, submits one synthesized reserved-class task. It reports
// whether a task was submitted. Failures are logged and swallowed.
func (o *Orchestrator) ReplenishOnce() (submitted bool) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Warn("replenish tick failed", "error", fmt.Sprint(r))
			submitted = false
		}
	}()

	class := o.cfg.ReservedClass
	queued := o.queue.CountClass(class)
	running := int(o.runningReserved.Load())
	reserved := int(o.reserved.Load())
	o.metrics.Set(o.gauges.queued, float64(queued))

	if reserved == 0 || running+queued >= reserved {
		return false
	}

	priority, credit := replenishPriority, 0
	id, err := o.SubmitTask(Submission{
		Type:         class,
		Priority:     &priority,
		CreditWeight: &credit,
		Payload:      replenishPayload,
	})
	if err != nil {
		o.logger.Warn("replenish submit failed", "error", err)
		return false
	}

	o.logger.Debug("reserved lane replenished",
		"task_id", id,
		"running", running,
		"queued", queued,
		"reserved", reserved,
	)
	o.bus.Publish(event.NewReplenishedEvent(id, running, queued, reserved))
	return true
}
