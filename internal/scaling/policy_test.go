package scaling

import (
	"testing"
	"time"
)

func TestNewPolicy_Defaults(t *testing.T) {
	p := NewPolicy()
	if p.minConcurrency != defaultMinConcurrency {
		t.Errorf("minConcurrency = %d, want %d", p.minConcurrency, defaultMinConcurrency)
	}
	if p.maxConcurrency != defaultMaxConcurrency {
		t.Errorf("maxConcurrency = %d, want %d", p.maxConcurrency, defaultMaxConcurrency)
	}
	if p.targetDivisor != defaultTargetDivisor {
		t.Errorf("targetDivisor = %d, want %d", p.targetDivisor, defaultTargetDivisor)
	}
	if p.reservedShare != defaultReservedShare {
		t.Errorf("reservedShare = %v, want %v", p.reservedShare, defaultReservedShare)
	}
	if p.cooldownPeriod != defaultCooldownPeriod {
		t.Errorf("cooldownPeriod = %v, want %v", p.cooldownPeriod, defaultCooldownPeriod)
	}
}

func TestNewPolicy_Options(t *testing.T) {
	p := NewPolicy(
		WithMinConcurrency(2),
		WithMaxConcurrency(16),
		WithTargetDivisor(4),
		WithReservedShare(0.5),
		WithCooldownPeriod(time.Minute),
	)
	if p.minConcurrency != 2 {
		t.Errorf("minConcurrency = %d, want 2", p.minConcurrency)
	}
	if p.maxConcurrency != 16 {
		t.Errorf("maxConcurrency = %d, want 16", p.maxConcurrency)
	}
	if p.targetDivisor != 4 {
		t.Errorf("targetDivisor = %d, want 4", p.targetDivisor)
	}
	if p.reservedShare != 0.5 {
		t.Errorf("reservedShare = %v, want 0.5", p.reservedShare)
	}
	if p.cooldownPeriod != time.Minute {
		t.Errorf("cooldownPeriod = %v, want %v", p.cooldownPeriod, time.Minute)
	}
}

func TestPolicy_Plan(t *testing.T) {
	tests := []struct {
		name   string
		target int
		want   Plan
	}{
		{"default target", 1000, Plan{Concurrency: 200, Reserved: 60}},
		{"above max", 5000, Plan{Concurrency: 200, Reserved: 60}},
		{"below min", 10, Plan{Concurrency: 10, Reserved: 3}},
		{"mid range", 250, Plan{Concurrency: 50, Reserved: 15}},
		{"zero target", 0, Plan{Concurrency: 10, Reserved: 3}},
	}
	p := NewPolicy()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Plan(tt.target); got != tt.want {
				t.Errorf("Plan(%d) = %+v, want %+v", tt.target, got, tt.want)
			}
		})
	}
}

func TestReservedSlots(t *testing.T) {
	tests := []struct {
		concurrency int
		share       float64
		want        int
	}{
		{10, 0.3, 3},
		{2, 0.3, 1},
		{1, 0.3, 1},
		{10, 0, 0},
		{10, 1.5, 10},
		{0, 0.3, 0},
	}
	for _, tt := range tests {
		if got := ReservedSlots(tt.concurrency, tt.share); got != tt.want {
			t.Errorf("ReservedSlots(%d, %v) = %d, want %d", tt.concurrency, tt.share, got, tt.want)
		}
	}
}

func TestPolicy_Fixed(t *testing.T) {
	p := NewPolicy(WithMaxConcurrency(20))
	if got := p.Fixed(100); got != (Plan{Concurrency: 100, Reserved: 30}) {
		t.Errorf("Fixed(100) = %+v, want {100 30}", got)
	}
	if got := p.Fixed(0); got.Concurrency != 1 {
		t.Errorf("Fixed(0).Concurrency = %d, want 1", got.Concurrency)
	}
}

func TestPolicy_Evaluate(t *testing.T) {
	now := time.Unix(0, 0)
	p := NewPolicy(
		WithCooldownPeriod(10*time.Second),
		WithClock(func() time.Time { return now }),
	)

	d := p.Evaluate(Plan{Concurrency: 20, Reserved: 6}, 20)
	if d.Action != ActionNone {
		t.Errorf("same size: Action = %s, want %s", d.Action, ActionNone)
	}

	d = p.Evaluate(Plan{Concurrency: 40, Reserved: 12}, 20)
	if d.Action != ActionScaleUp || d.Delta != 20 {
		t.Errorf("grow: got %s delta %d, want %s delta 20", d.Action, d.Delta, ActionScaleUp)
	}

	now = now.Add(time.Second)
	d = p.Evaluate(Plan{Concurrency: 10, Reserved: 3}, 40)
	if d.Action != ActionNone || d.Plan.Concurrency != 40 {
		t.Errorf("within cooldown: got %s plan %+v, want none at 40", d.Action, d.Plan)
	}

	now = now.Add(10 * time.Second)
	d = p.Evaluate(Plan{Concurrency: 10, Reserved: 3}, 40)
	if d.Action != ActionScaleDown || d.Delta != -30 {
		t.Errorf("shrink: got %s delta %d, want %s delta -30", d.Action, d.Delta, ActionScaleDown)
	}
}

func TestAction_String(t *testing.T) {
	if ActionScaleUp.String() != "scale_up" {
		t.Errorf("ActionScaleUp.String() = %q, want scale_up", ActionScaleUp.String())
	}
}
