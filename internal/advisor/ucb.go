// Package advisor ranks candidate keys by observed reward using a Gaussian
// upper-confidence-bound policy.
//
// Keys that have never been observed score +Inf so they are tried first.
// The advisor is advisory only: the orchestrator may use its ranking to
// derive a task's credit weight, but scheduling correctness never depends
// on it.
package advisor

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sync"
)

// DefaultExploration is the exploration coefficient c.
const DefaultExploration = 2.0

const (
	minVariance = 1e-4
	epsilon     = 1e-8
)

type stats struct {
	N     int     `json:"n"`
	Sum   float64 `json:"sum"`
	SumSq float64 `json:"sumSq"`
}

// UCB is a Gaussian upper-confidence-bound reward tracker. It is safe for
// concurrent use.
type UCB struct {
	mu    sync.RWMutex
	c     float64
	stats map[string]*stats
	total int
}

// New creates a UCB with exploration coefficient c. A non-positive c uses
// DefaultExploration.
func New(c float64) *UCB {
	if c <= 0 {
		c = DefaultExploration
	}
	return &UCB{c: c, stats: make(map[string]*stats)}
}

// Observe records a reward for key.
func (u *UCB) Observe(key string, reward float64) {
	u.mu.Lock()
	defer u.mu.Unlock()

	s, ok := u.stats[key]
	if !ok {
		s = &stats{}
		u.stats[key] = s
	}
	s.N++
	s.Sum += reward
	s.SumSq += reward * reward
	u.total++
}

// Score returns the UCB score for key, or +Inf when key is unobserved.
func (u *UCB) Score(key string) float64 {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.score(key)
}

func (u *UCB) score(key string) float64 {
	s, ok := u.stats[key]
	if !ok || s.N == 0 {
		return math.Inf(1)
	}
	n := float64(s.N)
	mean := s.Sum / n
	variance := math.Max(minVariance, s.SumSq/n-mean*mean)
	bonus := u.c * math.Sqrt(2*math.Log(float64(u.total)+1)/n) * math.Sqrt(variance+epsilon)
	return mean + bonus
}

// Select returns the top k candidates by score. Unobserved candidates rank
// first; ties keep candidate order. k <= 0 or k > len(candidates) returns
// every candidate ranked.
func (u *UCB) Select(candidates []string, k int) []string {
	u.mu.RLock()
	scores := make(map[string]float64, len(candidates))
	for _, c := range candidates {
		scores[c] = u.score(c)
	}
	u.mu.RUnlock()

	ranked := slices.Clone(candidates)
	slices.SortStableFunc(ranked, func(a, b string) int {
		sa, sb := scores[a], scores[b]
		switch {
		case sa > sb:
			return -1
		case sa < sb:
			return 1
		default:
			return 0
		}
	})
	if k <= 0 || k > len(ranked) {
		return ranked
	}
	return ranked[:k]
}

// Weights returns positive weights for candidates by shifting their finite
// scores so the minimum becomes zero and adding one. Unobserved candidates
// get the largest weight present plus one.
func (u *UCB) Weights(candidates []string) map[string]float64 {
	u.mu.RLock()
	raw := make(map[string]float64, len(candidates))
	for _, c := range candidates {
		raw[c] = u.score(c)
	}
	u.mu.RUnlock()

	lowest, highest := math.Inf(1), math.Inf(-1)
	for _, s := range raw {
		if math.IsInf(s, 1) {
			continue
		}
		lowest = math.Min(lowest, s)
		highest = math.Max(highest, s)
	}
	if math.IsInf(lowest, 1) {
		lowest, highest = 0, 0
	}

	out := make(map[string]float64, len(raw))
	for c, s := range raw {
		if math.IsInf(s, 1) {
			out[c] = highest - lowest + 2
			continue
		}
		out[c] = s - lowest + 1
	}
	return out
}

// CreditWeight maps chosen's rank among candidates onto an integer credit
// weight: the best-ranked candidate gets len(candidates)-1, the worst gets 0.
// A chosen key absent from candidates gets 0.
func (u *UCB) CreditWeight(candidates []string, chosen string) int {
	ranked := u.Select(candidates, 0)
	idx := slices.Index(ranked, chosen)
	if idx < 0 {
		return 0
	}
	return len(ranked) - 1 - idx
}

// Stat is a read-only view of one key's statistics.
type Stat struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Score float64 `json:"score"`
}

// Stats returns the statistics for every observed key.
func (u *UCB) Stats() map[string]Stat {
	u.mu.RLock()
	defer u.mu.RUnlock()

	out := make(map[string]Stat, len(u.stats))
	for k, s := range u.stats {
		out[k] = Stat{Count: s.N, Mean: s.Sum / float64(s.N), Score: u.score(k)}
	}
	return out
}

type snapshot struct {
	C     float64           `json:"c"`
	Total int               `json:"total"`
	Stats map[string]*stats `json:"stats"`
}

// Snapshot serializes the advisor state as JSON.
func (u *UCB) Snapshot() ([]byte, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	data, err := json.Marshal(snapshot{C: u.c, Total: u.total, Stats: u.stats})
	if err != nil {
		return nil, fmt.Errorf("marshal advisor state: %w", err)
	}
	return data, nil
}

// Restore replaces the advisor state with a previously taken snapshot.
func (u *UCB) Restore(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("unmarshal advisor state: %w", err)
	}
	if snap.Stats == nil {
		snap.Stats = make(map[string]*stats)
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if snap.C > 0 {
		u.c = snap.C
	}
	u.total = snap.Total
	u.stats = snap.Stats
	return nil
}
