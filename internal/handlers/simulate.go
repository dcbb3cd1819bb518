package handlers

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"slices"
)

// Agent is one simulated entity.
type Agent struct {
	ID         string  `json:"id"`
	Value      float64 `json:"value"`
	Growth     float64 `json:"growth"`
	Volatility float64 `json:"volatility"`
}

type simulatePayload struct {
	Agents   []Agent `json:"agents"`
	Steps    int     `json:"steps"`
	Rollouts int     `json:"rollouts"`
}

// Outcome is the distribution of one agent's final value across rollouts.
type Outcome struct {
	ID   string  `json:"id"`
	Mean float64 `json:"mean"`
	P10  float64 `json:"p10"`
	P90  float64 `json:"p90"`
}

const (
	defaultSimSteps    = 20
	defaultSimRollouts = 100

	// MaxSimSteps and MaxSimRollouts bound a single simulation.
	MaxSimSteps    = 10_000
	MaxSimRollouts = 10_000
)

// Reasons reported when a payload asks for more work than the bounds allow.
const (
	reasonStepsOutOfRange    = "steps-out-of-range"
	reasonRolloutsOutOfRange = "rollouts-out-of-range"
)

// simBoundsReason returns the rejection reason for an oversized
// simulation, or "" when it is within bounds.
func simBoundsReason(steps, rollouts int) string {
	switch {
	case steps > MaxSimSteps:
		return reasonStepsOutOfRange
	case rollouts > MaxSimRollouts:
		return reasonRolloutsOutOfRange
	}
	return ""
}

// Simulate runs Monte Carlo rollouts of multiplicative random growth for
// each agent. It stops early with ctx's error if ctx is done. Oversized
// steps or rollouts yield a Result with OK false.
func Simulate(ctx context.Context, payload json.RawMessage, rng *rand.Rand) (any, error) {
	p := simulatePayload{Steps: defaultSimSteps, Rollouts: defaultSimRollouts}
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	if reason := simBoundsReason(p.Steps, p.Rollouts); reason != "" {
		return Result{OK: false, Reason: reason}, nil
	}
	out, err := runSimulation(ctx, p, rng)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func runSimulation(ctx context.Context, p simulatePayload, rng *rand.Rand) ([]Outcome, error) {
	if p.Steps < 1 {
		p.Steps = defaultSimSteps
	}
	if p.Rollouts < 1 {
		p.Rollouts = defaultSimRollouts
	}
	p.Steps = min(p.Steps, MaxSimSteps)
	p.Rollouts = min(p.Rollouts, MaxSimRollouts)

	out := make([]Outcome, 0, len(p.Agents))
	finals := make([]float64, p.Rollouts)
	for _, a := range p.Agents {
		start := a.Value
		if start == 0 {
			start = 1
		}
		var sum float64
		for r := range p.Rollouts {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			v := start
			for range p.Steps {
				v *= 1 + a.Growth + a.Volatility*rng.NormFloat64()
			}
			finals[r] = v
			sum += v
		}
		slices.Sort(finals)
		out = append(out, Outcome{
			ID:   a.ID,
			Mean: sum / float64(p.Rollouts),
			P10:  finals[p.Rollouts/10],
			P90:  finals[p.Rollouts*9/10],
		})
	}
	return out, nil
}
