package service

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"idnames-go/internal/config"
	model "idnames-go/internal/model/ngram"
	"idnames-go/internal/service/ngram"

	"go.uber.org/zap"
)

// ErrTokenFlagMismatch is returned when tokens and identifier flags differ in length
var ErrTokenFlagMismatch = errors.New("tokens and identifier flags differ in length")

// RunnerOptions configures a ModelRunner
type RunnerOptions struct {
	Order                  int
	Lambda                 float64
	Smoother               string
	Cutoff                 int
	MinScore               float64
	UseBloom               bool
	BloomExpectedItems     uint
	BloomFalsePositiveRate float64
}

// DefaultRunnerOptions returns order 6, λ=0.5 Jelinek-Mercer, cutoff 10, epsilon 1e-3
func DefaultRunnerOptions() RunnerOptions {
	return RunnerOptions{
		Order:                  6,
		Lambda:                 0.5,
		Smoother:               ngram.SmootherJelinekMercer,
		Cutoff:                 10,
		MinScore:               0.001,
		UseBloom:               true,
		BloomExpectedItems:     100000,
		BloomFalsePositiveRate: 0.01,
	}
}

// RunnerOptionsFromConfig maps the model section of the configuration to runner options
func RunnerOptionsFromConfig(m config.ModelConfig) RunnerOptions {
	return RunnerOptions{
		Order:                  m.Order,
		Lambda:                 m.Lambda,
		Smoother:               m.Smoother,
		Cutoff:                 m.PredictionCutoff,
		MinScore:               m.MinScore,
		UseBloom:               m.Bloom.Enabled,
		BloomExpectedItems:     m.Bloom.ExpectedItems,
		BloomFalsePositiveRate: m.Bloom.FalsePositiveRate,
	}
}

// ModelRunner owns one trained model: vocabulary, counts and the set of ids
// known to be identifier names. All operations are serialized by mu, so a
// forget/predict/relearn cycle never interleaves with training or another cycle.
type ModelRunner struct {
	name          string
	opts          RunnerOptions
	vocabulary    *ngram.Vocabulary
	model         *ngram.NGramModel
	remembered    map[int]struct{}
	trainedFiles  int
	trainedTokens int64
	sourceCommit  string
	logger        *zap.Logger
	mu            sync.Mutex
}

// NewModelRunner creates an empty runner
func NewModelRunner(name string, opts RunnerOptions, logger *zap.Logger) (*ModelRunner, error) {
	counter, err := ngram.NewCounterWithBloom(opts.Order, opts.UseBloom, opts.BloomExpectedItems, opts.BloomFalsePositiveRate)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	smoother, err := ngram.NewSmoother(opts.Smoother, opts.Lambda)
	if err != nil {
		return nil, fmt.Errorf("failed to create smoother: %w", err)
	}

	return &ModelRunner{
		name:       name,
		opts:       opts,
		vocabulary: ngram.NewVocabulary(),
		model:      ngram.NewNGramModel(counter, smoother),
		remembered: make(map[int]struct{}),
		logger:     logger,
	}, nil
}

// Name returns the runner's name (the corpus or file it was trained on)
func (r *ModelRunner) Name() string {
	return r.name
}

// Order returns the maximum n-gram order
func (r *ModelRunner) Order() int {
	return r.opts.Order
}

// TrainOnTokens registers tokens, remembers the flagged ones as identifier names and
// counts the stream. Training the same tokens twice doubles their counts.
func (r *ModelRunner) TrainOnTokens(tokens []string, identifierFlags []bool) error {
	if len(tokens) != len(identifierFlags) {
		return fmt.Errorf("%w: %d tokens, %d flags", ErrTokenFlagMismatch, len(tokens), len(identifierFlags))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ids := r.vocabulary.ToIndices(tokens)
	for i, isIdentifier := range identifierFlags {
		if isIdentifier {
			r.remembered[ids[i]] = struct{}{}
		}
	}
	r.model.Learn(ids)
	r.trainedFiles++
	r.trainedTokens += int64(len(ids))
	return nil
}

// TrainOnSequence trains on a lexed file, using declaration categories as identifier flags
func (r *ModelRunner) TrainOnSequence(seq model.TokenSequence) error {
	return r.TrainOnTokens(seq.Values(), seq.IdentifierFlags())
}

// SuggestNames ranks remembered identifier names for the variable whose occurrences are given.
// Each occurrence window is forgotten before predicting and relearned afterwards, so counts are
// unchanged when it returns.
func (r *ModelRunner) SuggestNames(occurrences []model.Occurrence) ([]model.Prediction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	windows := r.windows(occurrences)
	forgotten, err := r.forget(windows)
	if err != nil {
		return nil, err
	}
	defer r.relearn(forgotten)

	vocabularySize := r.vocabulary.Size()
	isRemembered := func(id int) bool {
		_, ok := r.remembered[id]
		return ok
	}

	var order []int
	sums := make(map[int]float64)
	var totalPriority float64
	for _, window := range windows {
		context := window[:len(window)-1]
		priority := r.model.ContextPriority(context)
		totalPriority += priority

		for _, candidate := range r.model.Predict(context, vocabularySize, isRemembered) {
			if _, seen := sums[candidate.ID]; !seen {
				order = append(order, candidate.ID)
			}
			sums[candidate.ID] += ngram.ToProbability(candidate.Estimate, vocabularySize) * priority
		}
	}

	if totalPriority == 0 {
		return []model.Prediction{}, nil
	}

	ranked := make([]scoredID, 0, len(order))
	for _, id := range order {
		ranked = append(ranked, scoredID{id: id, score: sums[id] / totalPriority})
	}
	ranked = rankScored(ranked, r.opts.Cutoff, r.opts.MinScore)

	predictions := make([]model.Prediction, 0, len(ranked))
	for _, s := range ranked {
		name, err := r.vocabulary.ToWord(s.id)
		if err != nil {
			return nil, err
		}
		predictions = append(predictions, model.Prediction{
			Name:        name,
			Probability: s.score,
			Priority:    vocabularySize,
		})
	}
	return predictions, nil
}

// GetProbability returns how plausible the variable's current name is, averaged over its
// occurrences with the same weighting as SuggestNames, plus the runner's priority
func (r *ModelRunner) GetProbability(occurrences []model.Occurrence) (float64, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	windows := r.windows(occurrences)
	forgotten, err := r.forget(windows)
	if err != nil {
		return 0, 0, err
	}
	defer r.relearn(forgotten)

	vocabularySize := r.vocabulary.Size()
	var weighted, totalPriority float64
	for _, window := range windows {
		context := window[:len(window)-1]
		priority := r.model.ContextPriority(context)
		estimate := r.model.Estimate(context, window[len(window)-1], vocabularySize)
		weighted += ngram.ToProbability(estimate, vocabularySize) * priority
		totalPriority += priority
	}

	if totalPriority == 0 {
		return 0, vocabularySize, nil
	}
	return weighted / totalPriority, vocabularySize, nil
}

// Priority returns the vocabulary size, used to weight this runner against others
func (r *ModelRunner) Priority() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.vocabulary.Size()
}

// IsRemembered reports whether name was ever trained as a declared identifier
func (r *ModelRunner) IsRemembered(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.vocabulary.Lookup(name)
	if !ok {
		return false
	}
	_, ok = r.remembered[id]
	return ok
}

// SetSourceCommit records the revision the runner was trained from
func (r *ModelRunner) SetSourceCommit(commit string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sourceCommit = commit
}

// unknownID stands for tokens the runner has never seen; it has no counts
const unknownID = -1

// windows converts occurrences to id windows, dropping occurrences without a name.
// Queries never register new tokens.
func (r *ModelRunner) windows(occurrences []model.Occurrence) [][]int {
	windows := make([][]int, 0, len(occurrences))
	for _, occurrence := range occurrences {
		if occurrence.Name == "" {
			continue
		}
		tokens := occurrence.Window()
		window := make([]int, len(tokens))
		for i, token := range tokens {
			id, ok := r.vocabulary.Lookup(token)
			if !ok {
				id = unknownID
			}
			window[i] = id
		}
		windows = append(windows, window)
	}
	return windows
}

// forget removes every window the model currently counts. Windows that were never
// learned (e.g. from a file edited after training) carry no leaked answer and are skipped.
func (r *ModelRunner) forget(windows [][]int) ([][]int, error) {
	forgotten := make([][]int, 0, len(windows))
	for _, window := range windows {
		if !r.model.IsLearned(window) {
			continue
		}
		if err := r.model.ForgetAt(window); err != nil {
			r.relearn(forgotten)
			r.logger.Error("Counter invariant violated while forgetting occurrence",
				zap.String("runner", r.name),
				zap.Error(err))
			return nil, fmt.Errorf("failed to forget occurrence: %w", err)
		}
		forgotten = append(forgotten, window)
	}
	return forgotten, nil
}

func (r *ModelRunner) relearn(windows [][]int) {
	for _, window := range windows {
		r.model.LearnAt(window)
	}
}

// Stats returns statistics about the runner
func (r *ModelRunner) Stats() RunnerStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return RunnerStats{
		Name:            r.name,
		Order:           r.opts.Order,
		SmootherName:    r.model.Smoother().Name(),
		VocabularySize:  r.vocabulary.Size(),
		RememberedNames: len(r.remembered),
		TotalNGrams:     r.model.Counter().TotalNGrams(),
		TrainedFiles:    r.trainedFiles,
		TrainedTokens:   r.trainedTokens,
		SourceCommit:    r.sourceCommit,
		Memory:          r.model.Counter().MemoryStats(),
	}
}

// RunnerStats contains statistics about a trained runner
type RunnerStats struct {
	Name            string                `json:"name"`
	Order           int                   `json:"order"`
	SmootherName    string                `json:"smoother"`
	VocabularySize  int                   `json:"vocabulary_size"`
	RememberedNames int                   `json:"remembered_names"`
	TotalNGrams     int64                 `json:"total_ngrams"`
	TrainedFiles    int                   `json:"trained_files"`
	TrainedTokens   int64                 `json:"trained_tokens"`
	SourceCommit    string                `json:"source_commit,omitempty"`
	Memory          ngram.TrieMemoryStats `json:"memory"`
}

// runnerState is everything persisted for a runner
type runnerState struct {
	counter       ngram.CounterSnapshot
	words         []string
	remembered    []int
	trainedFiles  int
	trainedTokens int64
	sourceCommit  string
}

func (r *ModelRunner) snapshot() runnerState {
	r.mu.Lock()
	defer r.mu.Unlock()

	remembered := make([]int, 0, len(r.remembered))
	for id := range r.remembered {
		remembered = append(remembered, id)
	}
	sort.Ints(remembered)

	return runnerState{
		counter:       r.model.Counter().Snapshot(),
		words:         r.vocabulary.Words(),
		remembered:    remembered,
		trainedFiles:  r.trainedFiles,
		trainedTokens: r.trainedTokens,
		sourceCommit:  r.sourceCommit,
	}
}

// restore replaces the runner's state wholesale; on error the runner is unchanged
func (r *ModelRunner) restore(state runnerState) error {
	if state.counter.Order != r.opts.Order {
		return fmt.Errorf("saved order %d does not match configured order %d", state.counter.Order, r.opts.Order)
	}

	counter, err := ngram.RestoreCounter(state.counter, r.opts.UseBloom, r.opts.BloomExpectedItems, r.opts.BloomFalsePositiveRate)
	if err != nil {
		return fmt.Errorf("failed to restore counter: %w", err)
	}
	vocabulary, err := ngram.NewVocabularyFromWords(state.words)
	if err != nil {
		return fmt.Errorf("failed to restore vocabulary: %w", err)
	}
	for _, node := range state.counter.Nodes {
		for tokenID := range node.ChildrenIDs {
			if tokenID < 0 || tokenID >= vocabulary.Size() {
				return fmt.Errorf("counter token id %d outside vocabulary of size %d", tokenID, vocabulary.Size())
			}
		}
	}
	remembered := make(map[int]struct{}, len(state.remembered))
	for _, id := range state.remembered {
		if id < 0 || id >= vocabulary.Size() {
			return fmt.Errorf("remembered id %d outside vocabulary of size %d", id, vocabulary.Size())
		}
		remembered[id] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.model = ngram.NewNGramModel(counter, r.model.Smoother())
	r.vocabulary = vocabulary
	r.remembered = remembered
	r.trainedFiles = state.trainedFiles
	r.trainedTokens = state.trainedTokens
	r.sourceCommit = state.sourceCommit
	return nil
}
