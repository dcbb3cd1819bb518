// Package event provides a pub-sub event bus for decoupled communication
// between the scheduler and its observers.
//
// The orchestrator publishes lifecycle events (task queued, started,
// finished, reserved-lane replenishment, failed ticks, metrics snapshots)
// and observers such as the websocket stream subscribe without the
// orchestrator knowing about them.
//
// # Thread Safety
//
// [Bus] is safe for concurrent use. Handlers run synchronously on the
// publishing goroutine and must not block; a panicking handler is logged
// and does not prevent delivery to the remaining handlers.
//
// # Basic Usage
//
//	bus := event.NewBus(logger)
//
//	bus.Subscribe(event.TypeTaskFinished, func(e event.Event) {
//	    finished := e.(event.TaskFinishedEvent)
//	    if !finished.Success {
//	        alert(finished.TaskID, finished.Error)
//	    }
//	})
//
//	bus.Publish(event.NewTaskFinishedEvent("t-1", "simulate", true, ""))
package event
