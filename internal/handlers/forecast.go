package handlers

import (
	"context"
	"encoding/json"
	"math"
)

// MaxForecastSteps bounds how far ahead a forecast may project.
const MaxForecastSteps = 10_000

// Smoother is a simple exponential smoother.
type Smoother struct {
	alpha float64
	level float64
	seen  bool
}

// NewSmoother creates a Smoother. alpha outside (0, 1] falls back to 0.3.
func NewSmoother(alpha float64) *Smoother {
	if alpha <= 0 || alpha > 1 {
		alpha = 0.3
	}
	return &Smoother{alpha: alpha}
}

// Update folds one observation into the level.
func (s *Smoother) Update(v float64) {
	if !s.seen {
		s.level, s.seen = v, true
		return
	}
	s.level = s.alpha*v + (1-s.alpha)*s.level
}

// Forecast returns steps flat forecasts of the current level, with steps
// clamped to [1, MaxForecastSteps].
func (s *Smoother) Forecast(steps int) []float64 {
	steps = min(max(steps, 1), MaxForecastSteps)
	out := make([]float64, steps)
	for i := range out {
		out[i] = s.level
	}
	return out
}

type forecastPayload struct {
	Series []float64 `json:"series"`
	Alpha  float64   `json:"alpha"`
	Steps  int       `json:"steps"`
}

// ForecastResult is the outcome of a forecast task.
type ForecastResult struct {
	OK       bool      `json:"ok"`
	Reason   string    `json:"reason,omitempty"`
	Forecast []float64 `json:"forecast,omitempty"`
}

// Forecast smooths payload.series and projects it payload.steps ahead.
func Forecast(ctx context.Context, payload json.RawMessage) (any, error) {
	p := forecastPayload{Alpha: 0.3, Steps: 1}
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	if len(p.Series) == 0 {
		return ForecastResult{OK: false, Reason: "no-series"}, nil
	}
	if p.Steps > MaxForecastSteps {
		return ForecastResult{OK: false, Reason: reasonStepsOutOfRange}, nil
	}
	s := NewSmoother(p.Alpha)
	for _, v := range p.Series {
		s.Update(v)
	}
	return ForecastResult{OK: true, Forecast: s.Forecast(p.Steps)}, nil
}

// GrowthResult summarizes the trend of a series.
type GrowthResult struct {
	OK         bool    `json:"ok"`
	Reason     string  `json:"reason,omitempty"`
	Slope      float64 `json:"slope"`
	GrowthRate float64 `json:"growthRate"`
	Trend      string  `json:"trend,omitempty"`
}

// GrowthTrack fits a least-squares line through payload.series.
func GrowthTrack(ctx context.Context, payload json.RawMessage) (any, error) {
	var p forecastPayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	if len(p.Series) == 0 {
		return GrowthResult{OK: false, Reason: "no-series"}, nil
	}

	slope := linearSlope(p.Series)
	first, last := p.Series[0], p.Series[len(p.Series)-1]
	rate := 0.0
	if first != 0 {
		rate = last/first - 1
	}

	trend := "flat"
	switch {
	case slope > 1e-9:
		trend = "up"
	case slope < -1e-9:
		trend = "down"
	}
	return GrowthResult{OK: true, Slope: slope, GrowthRate: rate, Trend: trend}, nil
}

func linearSlope(ys []float64) float64 {
	n := float64(len(ys))
	if n < 2 {
		return 0
	}
	var sx, sy, sxy, sxx float64
	for i, y := range ys {
		x := float64(i)
		sx += x
		sy += y
		sxy += x * y
		sxx += x * x
	}
	den := n*sxx - sx*sx
	if math.Abs(den) < 1e-12 {
		return 0
	}
	return (n*sxy - sx*sy) / den
}
