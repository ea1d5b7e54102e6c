package service

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"idnames-go/internal/service/ngram"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	artifactVersion = "1.0"

	counterFileName    = "counter.gob"
	vocabularyFileName = "vocabulary.gob"
	rememberedFileName = "remembered.gob"
)

// ErrArtifactMismatch is returned when the saved artifacts were not written by the same save
var ErrArtifactMismatch = errors.New("model artifacts come from different saves")

// SerializableCounter is the counter artifact
type SerializableCounter struct {
	Version       string                // Format version
	Generation    string                // Shared by the three artifacts of one save
	CreatedAt     time.Time             // When the artifact was written
	RunnerName    string                // Corpus name
	SmootherName  string                // Smoother type at save time
	SourceCommit  string                // Git HEAD of the corpus, if any
	TrainedFiles  int                   // Files trained
	TrainedTokens int64                 // Tokens trained
	Counter       ngram.CounterSnapshot // Flattened trie
}

// SerializableVocabulary is the vocabulary artifact; Words[i] is the token with id i
type SerializableVocabulary struct {
	Version    string
	Generation string
	Words      []string
}

// SerializableRemembered is the remembered-identifier artifact
type SerializableRemembered struct {
	Version    string
	Generation string
	IDs        []int
}

// NGramPersistence saves and loads runners as three artifacts under <outputDir>/<runner>/
type NGramPersistence struct {
	outputDir string
	logger    *zap.Logger
}

// NewNGramPersistence creates a new persistence manager
func NewNGramPersistence(outputDir string, logger *zap.Logger) (*NGramPersistence, error) {
	// Create output directory if it doesn't exist
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &NGramPersistence{
		outputDir: outputDir,
		logger:    logger,
	}, nil
}

// GetModelPath returns the directory holding a runner's artifacts
func (p *NGramPersistence) GetModelPath(name string) string {
	return filepath.Join(p.outputDir, name)
}

func (p *NGramPersistence) artifactPaths(name string) (counterPath, vocabularyPath, rememberedPath string) {
	dir := p.GetModelPath(name)
	return filepath.Join(dir, counterFileName),
		filepath.Join(dir, vocabularyFileName),
		filepath.Join(dir, rememberedFileName)
}

// ModelExists reports whether all three artifacts exist for name
func (p *NGramPersistence) ModelExists(name string) bool {
	counterPath, vocabularyPath, rememberedPath := p.artifactPaths(name)
	for _, path := range []string{counterPath, vocabularyPath, rememberedPath} {
		if _, err := os.Stat(path); err != nil {
			return false
		}
	}
	return true
}

// SaveRunner writes the runner's counter, vocabulary and remembered ids.
// All three carry a fresh generation id, so a save that fails halfway leaves
// artifacts LoadRunner refuses to combine.
func (p *NGramPersistence) SaveRunner(r *ModelRunner) error {
	state := r.snapshot()
	generation := uuid.NewString()
	counterPath, vocabularyPath, rememberedPath := p.artifactPaths(r.Name())

	if err := os.MkdirAll(p.GetModelPath(r.Name()), 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	counter := &SerializableCounter{
		Version:       artifactVersion,
		Generation:    generation,
		CreatedAt:     time.Now(),
		RunnerName:    r.Name(),
		SmootherName:  r.Stats().SmootherName,
		SourceCommit:  state.sourceCommit,
		TrainedFiles:  state.trainedFiles,
		TrainedTokens: state.trainedTokens,
		Counter:       state.counter,
	}
	if err := saveToFile(counter, counterPath); err != nil {
		return fmt.Errorf("failed to save counter: %w", err)
	}

	vocabulary := &SerializableVocabulary{Version: artifactVersion, Generation: generation, Words: state.words}
	if err := saveToFile(vocabulary, vocabularyPath); err != nil {
		return fmt.Errorf("failed to save vocabulary: %w", err)
	}

	remembered := &SerializableRemembered{Version: artifactVersion, Generation: generation, IDs: state.remembered}
	if err := saveToFile(remembered, rememberedPath); err != nil {
		return fmt.Errorf("failed to save remembered identifiers: %w", err)
	}

	p.logger.Info("Saved n-gram model",
		zap.String("runner", r.Name()),
		zap.String("path", p.GetModelPath(r.Name())),
		zap.String("generation", generation),
		zap.Int("n", state.counter.Order),
		zap.Int("vocabulary", len(state.words)),
		zap.Int("remembered", len(state.remembered)))

	return nil
}

// LoadRunner replaces the runner's state with the saved one.
// It returns false without error when any artifact is missing, and leaves the runner
// untouched on any error, including artifacts from different saves.
func (p *NGramPersistence) LoadRunner(r *ModelRunner) (bool, error) {
	if !p.ModelExists(r.Name()) {
		p.logger.Debug("No complete saved model", zap.String("runner", r.Name()))
		return false, nil
	}
	counterPath, vocabularyPath, rememberedPath := p.artifactPaths(r.Name())

	var counter SerializableCounter
	if err := loadFromFile(counterPath, &counter); err != nil {
		return false, fmt.Errorf("failed to load counter: %w", err)
	}
	var vocabulary SerializableVocabulary
	if err := loadFromFile(vocabularyPath, &vocabulary); err != nil {
		return false, fmt.Errorf("failed to load vocabulary: %w", err)
	}
	var remembered SerializableRemembered
	if err := loadFromFile(rememberedPath, &remembered); err != nil {
		return false, fmt.Errorf("failed to load remembered identifiers: %w", err)
	}

	for _, v := range []string{counter.Version, vocabulary.Version, remembered.Version} {
		if v != artifactVersion {
			return false, fmt.Errorf("unsupported artifact version %q", v)
		}
	}
	if counter.Generation != vocabulary.Generation || counter.Generation != remembered.Generation {
		return false, fmt.Errorf("%w: counter %s, vocabulary %s, remembered %s", ErrArtifactMismatch,
			counter.Generation, vocabulary.Generation, remembered.Generation)
	}

	state := runnerState{
		counter:       counter.Counter,
		words:         vocabulary.Words,
		remembered:    remembered.IDs,
		trainedFiles:  counter.TrainedFiles,
		trainedTokens: counter.TrainedTokens,
		sourceCommit:  counter.SourceCommit,
	}
	if err := r.restore(state); err != nil {
		return false, err
	}

	p.logger.Info("Loaded n-gram model",
		zap.String("runner", r.Name()),
		zap.String("path", p.GetModelPath(r.Name())),
		zap.Int("n", counter.Counter.Order),
		zap.Int("vocabulary", len(vocabulary.Words)),
		zap.Time("created_at", counter.CreatedAt))

	return true, nil
}

// DeleteModel deletes the saved artifacts for a runner
func (p *NGramPersistence) DeleteModel(name string) error {
	if err := os.RemoveAll(p.GetModelPath(name)); err != nil {
		return fmt.Errorf("failed to delete model: %w", err)
	}
	p.logger.Info("Deleted n-gram model", zap.String("runner", name))
	return nil
}

// saveToFile writes value with gob encoding via a temporary file renamed into place
func saveToFile(value any, path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return err
	}

	if err := gob.NewEncoder(file).Encode(value); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

// loadFromFile decodes a gob-encoded value from path
func loadFromFile(path string, value any) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return gob.NewDecoder(file).Decode(value)
}
