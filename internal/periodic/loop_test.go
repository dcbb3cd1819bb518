package periodic

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoop_RunsUntilStopped(t *testing.T) {
	var runs atomic.Int32
	l := New("tick", time.Millisecond, func(ctx context.Context) { runs.Add(1) })

	l.Start(context.Background())
	if !l.Running() {
		t.Fatal("Running() = false after Start")
	}

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	l.Stop()

	if runs.Load() < 3 {
		t.Fatalf("runs = %d, want >= 3", runs.Load())
	}
	if l.Running() {
		t.Error("Running() = true after Stop")
	}

	after := runs.Load()
	time.Sleep(10 * time.Millisecond)
	if runs.Load() != after {
		t.Errorf("loop kept running after Stop: %d -> %d", after, runs.Load())
	}
}

func TestLoop_StopWithoutStart(t *testing.T) {
	l := New("idle", time.Second, func(ctx context.Context) {})
	l.Stop()
	l.Stop()
}

func TestLoop_ParentContextCancels(t *testing.T) {
	l := New("ctx", time.Millisecond, func(ctx context.Context) {})
	ctx, cancel := context.WithCancel(context.Background())
	l.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		l.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after parent cancellation")
	}
}

func TestLoop_ZeroIntervalDoesNotStart(t *testing.T) {
	l := New("disabled", 0, func(ctx context.Context) { t.Error("should not run") })
	l.Start(context.Background())
	if l.Running() {
		t.Error("Running() = true for zero interval")
	}
}

func TestRunOnce_RecoversPanic(t *testing.T) {
	var reported error
	l := New("boom", time.Second, func(ctx context.Context) {
		panic("bad tick")
	}, WithPanicHandler(func(name string, err error) { reported = err }))

	l.RunOnce(context.Background())

	if reported == nil || !strings.Contains(reported.Error(), "bad tick") {
		t.Errorf("reported = %v, want panic error", reported)
	}
}
