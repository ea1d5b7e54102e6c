package service

import (
	"sort"

	model "idnames-go/internal/model/ngram"
)

// Defaults shared by runners and the aggregator
const (
	DefaultPredictionCutoff = 10
	DefaultMinScore         = 0.001
)

type scoredID struct {
	id    int
	score float64
}

// rankScored sorts descending by score keeping encounter order for ties,
// drops scores below minScore and truncates to cutoff
func rankScored(items []scoredID, cutoff int, minScore float64) []scoredID {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].score > items[j].score
	})

	kept := items[:0]
	for _, item := range items {
		if item.score < minScore {
			continue
		}
		kept = append(kept, item)
		if cutoff > 0 && len(kept) == cutoff {
			break
		}
	}
	return kept
}

// RankAggregator merges the predictions of several runners into one ranked list
type RankAggregator struct {
	cutoff   int
	minScore float64
}

// NewRankAggregator creates an aggregator; non-positive arguments fall back to the defaults
func NewRankAggregator(cutoff int, minScore float64) *RankAggregator {
	if cutoff <= 0 {
		cutoff = DefaultPredictionCutoff
	}
	if minScore <= 0 {
		minScore = DefaultMinScore
	}
	return &RankAggregator{
		cutoff:   cutoff,
		minScore: minScore,
	}
}

// Combine weights each contribution by priority/Σpriorities and sums scores per name.
// Contributions are read in slice order, which decides ties. An empty result is
// returned when the priorities sum to zero.
func (a *RankAggregator) Combine(contributions []model.Contribution) []model.Suggestion {
	var totalPriority int
	for _, c := range contributions {
		totalPriority += c.Priority
	}
	if totalPriority == 0 {
		return []model.Suggestion{}
	}

	var names []string
	index := make(map[string]int)
	var scored []scoredID
	for _, c := range contributions {
		weight := float64(c.Priority) / float64(totalPriority)
		for _, p := range c.Predictions {
			i, seen := index[p.Name]
			if !seen {
				i = len(names)
				index[p.Name] = i
				names = append(names, p.Name)
				scored = append(scored, scoredID{id: i})
			}
			scored[i].score += p.Probability * weight
		}
	}

	ranked := rankScored(scored, a.cutoff, a.minScore)
	suggestions := make([]model.Suggestion, 0, len(ranked))
	for _, s := range ranked {
		suggestions = append(suggestions, model.Suggestion{Name: names[s.id], Score: s.score})
	}
	return suggestions
}

// CombineProbability averages per-runner probabilities weighted by priority; 0 when
// the priorities sum to zero
func CombineProbability(probabilities []float64, priorities []int) float64 {
	var weighted float64
	var total int
	for i, p := range probabilities {
		weighted += p * float64(priorities[i])
		total += priorities[i]
	}
	if total == 0 {
		return 0
	}
	return weighted / float64(total)
}
