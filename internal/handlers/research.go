package handlers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/Iron-Ham/fleetcore/internal/audit"
	"github.com/Iron-Ham/fleetcore/internal/metrics"
)

// DefaultResearchCategory labels research tasks that do not name one.
const DefaultResearchCategory = "research.global"

// forexPairs seed the Monte Carlo exploration when a forex run carries no
// agents of its own.
var forexPairs = []Agent{
	{ID: "EURUSD", Value: 1, Volatility: 0.004},
	{ID: "GBPUSD", Value: 1, Volatility: 0.005},
	{ID: "USDJPY", Value: 1, Volatility: 0.006},
}

type researchPayload struct {
	Category        string    `json:"category"`
	Series          []float64 `json:"series"`
	Sources         []string  `json:"sources"`
	Alpha           float64   `json:"alpha"`
	Steps           int       `json:"steps"`
	Rollouts        int       `json:"rollouts"`
	SyntheticAgents []Agent   `json:"syntheticAgents"`
	RunForex        bool      `json:"runForex"`
}

// Prediction is the artifact a research task produces.
type Prediction struct {
	ID            string         `json:"id"`
	TS            int64          `json:"ts"`
	Category      string         `json:"category"`
	InputsSummary InputsSummary  `json:"inputsSummary"`
	Predictions   []PredictionOf `json:"predictions"`
	Confidence    float64        `json:"confidence"`
	Sources       []string       `json:"sources"`
}

// InputsSummary describes what a prediction was computed from.
type InputsSummary struct {
	SeriesLength int      `json:"seriesLength"`
	Sources      []string `json:"sources"`
}

// PredictionOf is one component of a Prediction.
type PredictionOf struct {
	Type       string  `json:"type"`
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
}

// ResearchResult wraps a research outcome.
type ResearchResult struct {
	OK         bool        `json:"ok"`
	Prediction *Prediction `json:"prediction,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Research runs the research pipeline: an exponential-smoothing forecast of
// the supplied series plus an optional Monte Carlo exploration. Each
// prediction is written to the audit log and counted.
type Research struct {
	deps Deps
}

// NewResearch creates a Research handler.
func NewResearch(deps Deps) *Research {
	return &Research{deps: deps.withDefaults()}
}

// Handle implements Handler. Pipeline failures are reported in the result
// and audit log rather than returned, so a bad research payload never
// counts as a task failure.
func (r *Research) Handle(ctx context.Context, payload json.RawMessage) (any, error) {
	p := researchPayload{Alpha: 0.25, Steps: 3}
	if err := decode(payload, &p); err != nil {
		return r.fail(err, payload), nil
	}
	if reason := researchBoundsReason(p); reason != "" {
		return r.fail(errors.New(reason), payload), nil
	}
	if p.Category == "" {
		p.Category = DefaultResearchCategory
	}
	if p.Sources == nil {
		p.Sources = []string{}
	}

	s := NewSmoother(p.Alpha)
	for _, v := range p.Series {
		s.Update(v)
	}
	forecast := s.Forecast(p.Steps)

	agents := p.SyntheticAgents
	if len(agents) == 0 && p.RunForex {
		agents = forexPairs
	}
	var mc []Outcome
	if len(agents) > 0 {
		var err error
		mc, err = runSimulation(ctx, simulatePayload{
			Agents:   agents,
			Steps:    defaultSimSteps,
			Rollouts: p.Rollouts,
		}, r.deps.NewRand())
		if err != nil {
			return nil, err
		}
	}
	mcConfidence := 0.0
	if len(mc) > 0 {
		mcConfidence = 0.5
	}
	if mc == nil {
		mc = []Outcome{}
	}

	pred := &Prediction{
		ID:       "research-" + uuid.NewString(),
		TS:       r.deps.Now().UnixMilli(),
		Category: p.Category,
		InputsSummary: InputsSummary{
			SeriesLength: len(p.Series),
			Sources:      p.Sources,
		},
		Predictions: []PredictionOf{
			{Type: "forecast", Value: forecast, Confidence: 0.6},
			{Type: "mc_sim", Value: mc, Confidence: mcConfidence},
		},
		Confidence: 0.55,
		Sources:    p.Sources,
	}

	r.deps.Audit.Log(audit.ResearchPrediction, map[string]any{
		"id":       pred.ID,
		"category": pred.Category,
		"forecast": forecast,
	})
	r.deps.Metrics.Record(metrics.ResearchProduced, 1)
	return ResearchResult{OK: true, Prediction: pred}, nil
}

func researchBoundsReason(p researchPayload) string {
	if p.Steps > MaxForecastSteps {
		return reasonStepsOutOfRange
	}
	return simBoundsReason(defaultSimSteps, p.Rollouts)
}

func (r *Research) fail(err error, payload json.RawMessage) ResearchResult {
	r.deps.Audit.Log(audit.ResearchError, map[string]any{
		"error":   err.Error(),
		"payload": string(payload),
	})
	r.deps.Metrics.Record(metrics.Errors, 1)
	return ResearchResult{OK: false, Error: err.Error()}
}
