package handlers

import (
	"context"
	"encoding/json"
)

// Person is a mentor or mentee with a skill set. Capacity only applies to
// mentors and defaults to 1.
type Person struct {
	ID       string   `json:"id"`
	Skills   []string `json:"skills"`
	Capacity int      `json:"capacity,omitempty"`
}

type matchPayload struct {
	Mentors []Person `json:"mentors"`
	Mentees []Person `json:"mentees"`
}

// Pair is one mentor assignment.
type Pair struct {
	Mentee string  `json:"mentee"`
	Mentor string  `json:"mentor"`
	Score  float64 `json:"score"`
}

// MatchResult lists the assignments and the mentees left without one.
type MatchResult struct {
	Pairs     []Pair   `json:"pairs"`
	Unmatched []string `json:"unmatched"`
}

// Match greedily assigns each mentee, in order, to the mentor with the
// highest skill overlap (Jaccard) that still has capacity.
func Match(ctx context.Context, payload json.RawMessage) (any, error) {
	var p matchPayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}

	capacity := make([]int, len(p.Mentors))
	for i, m := range p.Mentors {
		capacity[i] = m.Capacity
		if capacity[i] <= 0 {
			capacity[i] = 1
		}
	}

	res := MatchResult{Pairs: []Pair{}, Unmatched: []string{}}
	for _, mentee := range p.Mentees {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		best, bestScore := -1, 0.0
		for i, mentor := range p.Mentors {
			if capacity[i] == 0 {
				continue
			}
			if s := jaccard(mentee.Skills, mentor.Skills); s > bestScore {
				best, bestScore = i, s
			}
		}
		if best < 0 {
			res.Unmatched = append(res.Unmatched, mentee.ID)
			continue
		}
		capacity[best]--
		res.Pairs = append(res.Pairs, Pair{Mentee: mentee.ID, Mentor: p.Mentors[best].ID, Score: bestScore})
	}
	return res, nil
}

func jaccard(a, b []string) float64 {
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[s] = true
	}
	union := len(set)
	inter := 0
	seen := make(map[string]bool, len(b))
	for _, s := range b {
		if seen[s] {
			continue
		}
		seen[s] = true
		if set[s] {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
