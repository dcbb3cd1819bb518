package handlers

import (
	"context"
	"encoding/json"
	"math"
)

type publishPayload struct {
	WordCount   int     `json:"wordCount"`
	Citations   int     `json:"citations"`
	Figures     int     `json:"figures"`
	ReviewScore float64 `json:"reviewScore"`
}

// PublishResult is the predicted publication quality.
type PublishResult struct {
	OK          bool    `json:"ok"`
	Quality     float64 `json:"quality"`
	Publishable bool    `json:"publishable"`
}

// PublishQuality scores a draft with a fixed logistic model over length,
// citations, figures and reviewer score.
func PublishQuality(ctx context.Context, payload json.RawMessage) (any, error) {
	var p publishPayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}

	z := -2.0 +
		0.0004*math.Min(float64(p.WordCount), 8000) +
		0.08*math.Min(float64(p.Citations), 30) +
		0.1*math.Min(float64(p.Figures), 10) +
		2*math.Max(0, math.Min(p.ReviewScore, 1))
	q := 1 / (1 + math.Exp(-z))
	return PublishResult{OK: true, Quality: q, Publishable: q >= 0.5}, nil
}
