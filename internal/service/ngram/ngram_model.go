package ngram

import (
	"math"
	"sort"
)

// Estimate is a smoothed probability paired with the confidence backing it
type Estimate struct {
	Probability float64 `json:"probability"`
	Confidence  float64 `json:"confidence"`
}

// Candidate is a predicted continuation id with its estimate
type Candidate struct {
	ID int
	Estimate
}

// NGramModel is an interpolated n-gram model over a Counter.
// A window is a sequence of ids whose last element is the position being
// learned, forgotten or predicted; everything before it is context.
type NGramModel struct {
	counter  *Counter
	smoother Smoother
}

// NewNGramModel creates a model over counter; a nil smoother defaults to Jelinek-Mercer with λ=0.5
func NewNGramModel(counter *Counter, smoother Smoother) *NGramModel {
	if smoother == nil {
		smoother = &JelinekMercerSmoother{lambda: 0.5}
	}
	return &NGramModel{
		counter:  counter,
		smoother: smoother,
	}
}

// Order returns the maximum n-gram order
func (m *NGramModel) Order() int {
	return m.counter.Order()
}

// Counter returns the underlying counter
func (m *NGramModel) Counter() *Counter {
	return m.counter
}

// Smoother returns the smoothing algorithm
func (m *NGramModel) Smoother() Smoother {
	return m.smoother
}

// Learn feeds a token stream, counting every window of length <= K ending at each position
func (m *NGramModel) Learn(ids []int) {
	k := m.Order()
	for i := range ids {
		start := i - k + 1
		if start < 0 {
			start = 0
		}
		m.counter.Increment(ids[start : i+1])
	}
}

// LearnAt counts a single window
func (m *NGramModel) LearnAt(window []int) {
	m.counter.Increment(window)
}

// ForgetAt removes a single window previously counted by Learn or LearnAt
func (m *NGramModel) ForgetAt(window []int) error {
	return m.counter.Decrement(window)
}

// IsLearned reports whether the window's longest counted suffix has a positive count.
// Suffix counts never fall below the count of a longer sequence, so this is
// exactly the condition under which ForgetAt succeeds.
func (m *NGramModel) IsLearned(window []int) bool {
	if len(window) == 0 {
		return false
	}
	return m.counter.CountsAt(window, m.Order()) > 0
}

// trimContext keeps the last K-1 ids of a context
func (m *NGramModel) trimContext(context []int) []int {
	limit := m.Order() - 1
	if len(context) > limit {
		return context[len(context)-limit:]
	}
	return context
}

// contextCounts returns the continuation count for every context suffix, shortest first
func (m *NGramModel) contextCounts(context []int) []int64 {
	counts := make([]int64, len(context)+1)
	for j := 0; j <= len(context); j++ {
		counts[j] = m.counter.ContextCount(context[len(context)-j:])
	}
	return counts
}

// Predict returns every id that has been observed after some suffix of context and
// passes filter, each with its interpolated estimate, ordered by id
func (m *NGramModel) Predict(context []int, vocabularySize int, filter func(id int) bool) []Candidate {
	ctx := m.trimContext(context)

	seen := make(map[int]struct{})
	for j := 0; j <= len(ctx); j++ {
		for _, id := range m.counter.Continuations(ctx[len(ctx)-j:]) {
			if filter != nil && !filter(id) {
				continue
			}
			seen[id] = struct{}{}
		}
	}

	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	counts := m.contextCounts(ctx)
	candidates := make([]Candidate, 0, len(ids))
	for _, id := range ids {
		candidates = append(candidates, Candidate{
			ID:       id,
			Estimate: m.estimate(ctx, counts, id, vocabularySize),
		})
	}
	return candidates
}

// Estimate scores one candidate id after context
func (m *NGramModel) Estimate(context []int, id int, vocabularySize int) Estimate {
	ctx := m.trimContext(context)
	return m.estimate(ctx, m.contextCounts(ctx), id, vocabularySize)
}

// estimate interpolates upward from the uniform distribution, stopping at the first
// context suffix with no counted continuations. Confidence is the fraction of
// non-empty context suffixes that were observed; with no context it is 1 once any
// unigram has been counted.
func (m *NGramModel) estimate(ctx []int, counts []int64, id int, vocabularySize int) Estimate {
	if vocabularySize <= 0 {
		return Estimate{}
	}

	prob := 1.0 / float64(vocabularySize)
	observed := 0
	seq := make([]int, 0, len(ctx)+1)
	for j := 0; j <= len(ctx); j++ {
		if counts[j] == 0 {
			break
		}
		seq = append(seq[:0], ctx[len(ctx)-j:]...)
		seq = append(seq, id)
		prob = m.smoother.Smooth(m.counter.CountsAt(seq, len(seq)), counts[j], prob, vocabularySize)
		observed++
	}

	var confidence float64
	switch {
	case observed == 0:
		confidence = 0
	case len(ctx) == 0:
		confidence = 1
	default:
		confidence = float64(observed-1) / float64(len(ctx))
	}

	return Estimate{
		Probability: math.Min(math.Max(prob, 0), 1),
		Confidence:  confidence,
	}
}

// ContextPriority weights how well attested a context is: the continuation count of
// each context suffix, halved once per step away from the longest suffix, summed
func (m *NGramModel) ContextPriority(context []int) float64 {
	ctx := m.trimContext(context)
	counts := m.contextCounts(ctx)

	var priority float64
	for j, count := range counts {
		priority += float64(count) * math.Pow(0.5, float64(len(ctx)-j))
	}
	return priority
}

// ToProbability blends an estimate with the uniform prior by its confidence:
// prob·conf + (1−conf)/V. The result is never zero for a non-empty vocabulary.
func ToProbability(estimate Estimate, vocabularySize int) float64 {
	if vocabularySize <= 0 {
		return 0
	}
	return estimate.Probability*estimate.Confidence + (1-estimate.Confidence)/float64(vocabularySize)
}
