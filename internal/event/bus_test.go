package event

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/Iron-Ham/fleetcore/internal/logging"
)

func TestBus_Subscribe(t *testing.T) {
	bus := NewBus(nil)

	called := false
	id := bus.Subscribe(TypeTaskQueued, func(e Event) {
		called = true
	})

	if id == "" {
		t.Error("Subscribe should return a non-empty ID")
	}
	if bus.SubscriptionCount() != 1 {
		t.Errorf("SubscriptionCount() = %d, want 1", bus.SubscriptionCount())
	}
	if called {
		t.Error("handler should not be called until an event is published")
	}
}

func TestBus_Publish(t *testing.T) {
	bus := NewBus(nil)

	var received Event
	bus.Subscribe(TypeTaskFinished, func(e Event) {
		received = e
	})

	bus.Publish(NewTaskFinishedEvent("t-1", "simulate", false, "boom"))

	finished, ok := received.(TaskFinishedEvent)
	if !ok {
		t.Fatalf("received %T, want TaskFinishedEvent", received)
	}
	if finished.TaskID != "t-1" || finished.Success || finished.Error != "boom" {
		t.Errorf("unexpected event payload: %+v", finished)
	}
	if finished.Timestamp().IsZero() {
		t.Error("event timestamp should be set")
	}
}

func TestBus_SpecificBeforeWildcard(t *testing.T) {
	bus := NewBus(nil)

	var order []string
	bus.SubscribeAll(func(e Event) {
		order = append(order, "wildcard")
	})
	bus.Subscribe(TypeTaskStarted, func(e Event) {
		order = append(order, "specific")
	})

	bus.Publish(NewTaskStartedEvent("t-1", "research", true))

	if len(order) != 2 || order[0] != "specific" || order[1] != "wildcard" {
		t.Errorf("dispatch order = %v, want [specific wildcard]", order)
	}
}

func TestBus_NoMatchingHandlers(t *testing.T) {
	bus := NewBus(nil)

	bus.Subscribe(TypeTickFailed, func(e Event) {
		t.Error("handler should not be called for a non-matching event type")
	})

	bus.Publish(NewTaskQueuedEvent("t-1", "predict", 5, 1))
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(nil)

	calls := make(map[string]int)
	id1 := bus.Subscribe(TypeTaskQueued, func(e Event) { calls["first"]++ })
	bus.Subscribe(TypeTaskQueued, func(e Event) { calls["second"]++ })

	if !bus.Unsubscribe(id1) {
		t.Fatal("Unsubscribe should return true for an existing subscription")
	}
	if bus.Unsubscribe(id1) {
		t.Error("second Unsubscribe should return false")
	}

	bus.Publish(NewTaskQueuedEvent("t-1", "predict", 5, 1))

	if calls["first"] != 0 {
		t.Error("first handler should not be called after unsubscribing")
	}
	if calls["second"] != 1 {
		t.Errorf("second handler calls = %d, want 1", calls["second"])
	}
}

func TestBus_Clear(t *testing.T) {
	bus := NewBus(nil)
	bus.Subscribe(TypeTaskQueued, func(e Event) {})
	bus.SubscribeAll(func(e Event) {})

	bus.Clear()

	if bus.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() after Clear = %d, want 0", bus.SubscriptionCount())
	}
}

func TestBus_HandlerPanicRecovery(t *testing.T) {
	var buf bytes.Buffer
	bus := NewBus(logging.NewWriterLogger(&buf, logging.LevelDebug))

	calls := 0
	bus.Subscribe(TypeTickFailed, func(e Event) {
		calls++
		panic("handler panic")
	})
	bus.Subscribe(TypeTickFailed, func(e Event) {
		calls++
	})

	bus.Publish(NewTickFailedEvent("test"))

	if calls != 2 {
		t.Errorf("expected both handlers to be called despite panic, got %d calls", calls)
	}
	if !strings.Contains(buf.String(), "event handler panicked") {
		t.Errorf("panic was not logged: %s", buf.String())
	}
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus(nil)

	var mu sync.Mutex
	calls := 0
	bus.Subscribe(TypeMetricsSnapshot, func(e Event) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for range 100 {
		wg.Go(func() {
			bus.Publish(NewMetricsSnapshotEvent(map[string]float64{"throughput": 1}))
		})
	}
	wg.Wait()

	if calls != 100 {
		t.Errorf("expected 100 calls, got %d", calls)
	}
}

func TestBus_UniqueIDs(t *testing.T) {
	bus := NewBus(nil)

	ids := make(map[string]bool)
	for range 100 {
		id := bus.Subscribe(TypeTaskQueued, func(e Event) {})
		if ids[id] {
			t.Errorf("duplicate subscription ID: %s", id)
		}
		ids[id] = true
	}
}
