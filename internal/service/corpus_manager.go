package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"idnames-go/internal/config"
	"idnames-go/internal/util"

	"go.uber.org/zap"
)

// ErrRunnerNotFound is returned when no runner is loaded for a corpus
var ErrRunnerNotFound = errors.New("runner not found")

// CorpusManager owns the project-wide runners, one per configured corpus, and
// trains, saves and loads them
type CorpusManager struct {
	runners     map[string]*corpusEntry
	tokenizers  *TokenizerRegistry
	persistence *NGramPersistence
	opts        RunnerOptions
	maxChars    int
	logger      *zap.Logger
	mu          sync.RWMutex // Protects runners map
}

type corpusEntry struct {
	runner         *ModelRunner
	path           string
	languageCounts map[string]int
	loadedFromDisk bool
	updatedAt      time.Time
}

// NewCorpusManager creates a corpus manager; persistence may be nil to keep models in memory only
func NewCorpusManager(tokenizers *TokenizerRegistry, persistence *NGramPersistence, opts RunnerOptions, maxChars int, logger *zap.Logger) *CorpusManager {
	if maxChars <= 0 {
		maxChars = DefaultMaxFileChars
	}
	return &CorpusManager{
		runners:     make(map[string]*corpusEntry),
		tokenizers:  tokenizers,
		persistence: persistence,
		opts:        opts,
		maxChars:    maxChars,
		logger:      logger,
	}
}

// Tokenizers returns the tokenizer registry used for training
func (cm *CorpusManager) Tokenizers() *TokenizerRegistry {
	return cm.tokenizers
}

// Options returns the options every runner is created with
func (cm *CorpusManager) Options() RunnerOptions {
	return cm.opts
}

// MaxChars returns the per-file lexing limit
func (cm *CorpusManager) MaxChars() int {
	return cm.maxChars
}

// Runner returns the runner for a corpus
func (cm *CorpusManager) Runner(name string) (*ModelRunner, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	entry, exists := cm.runners[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrRunnerNotFound, name)
	}
	return entry.runner, nil
}

// LoadOrTrain loads the saved runner for corpus unless override is set or the saved
// artifacts are incomplete or unreadable, in which case it trains and saves a new one
func (cm *CorpusManager) LoadOrTrain(ctx context.Context, corpus *config.Corpus, override bool) (*ModelRunner, error) {
	return cm.LoadOrTrainCombined(ctx, corpus.Name, []*config.Corpus{corpus}, override)
}

// LoadOrTrainCombined is LoadOrTrain for one runner named name spanning several corpora
func (cm *CorpusManager) LoadOrTrainCombined(ctx context.Context, name string, corpora []*config.Corpus, override bool) (*ModelRunner, error) {
	if !override && cm.persistence != nil && cm.persistence.ModelExists(name) {
		cm.logger.Info("Loading existing n-gram model from disk", zap.String("corpus", name))

		runner, err := NewModelRunner(name, cm.opts, cm.logger)
		if err != nil {
			return nil, err
		}
		loaded, err := cm.persistence.LoadRunner(runner)
		if err == nil && loaded {
			cm.store(name, &corpusEntry{
				runner:         runner,
				path:           joinCorpusPaths(corpora),
				loadedFromDisk: true,
				updatedAt:      time.Now(),
			})
			return runner, nil
		}

		cm.logger.Warn("Failed to load existing model, will rebuild",
			zap.String("corpus", name),
			zap.Error(err))
	}

	runner, err := cm.TrainCombined(ctx, name, corpora)
	if err != nil {
		return nil, err
	}

	if err := cm.Save(name); err != nil {
		cm.logger.Error("Failed to save n-gram model",
			zap.String("corpus", name),
			zap.Error(err))
	}
	return runner, nil
}

// Train builds a fresh runner from every supported file under the corpus path and
// registers it. Files are trained one at a time. If ctx is cancelled the context
// error is returned and the partial runner is registered only when no runner was
// registered for the corpus before.
func (cm *CorpusManager) Train(ctx context.Context, corpus *config.Corpus) (*ModelRunner, error) {
	return cm.TrainCombined(ctx, corpus.Name, []*config.Corpus{corpus})
}

// TrainCombined trains one runner named name over the corpora in order, with the
// same cancellation behaviour as Train
func (cm *CorpusManager) TrainCombined(ctx context.Context, name string, corpora []*config.Corpus) (*ModelRunner, error) {
	runner, err := NewModelRunner(name, cm.opts, cm.logger)
	if err != nil {
		return nil, err
	}

	entry := &corpusEntry{
		runner:         runner,
		path:           joinCorpusPaths(corpora),
		languageCounts: make(map[string]int),
	}
	start := time.Now()
	fileCount := 0

	var walkErr error
	for _, corpus := range corpora {
		cm.logger.Info("Training n-gram model for corpus",
			zap.String("corpus", name),
			zap.String("source", corpus.Name),
			zap.String("path", corpus.Path),
			zap.Int("n", cm.opts.Order),
			zap.Bool("use_git_head", corpus.UseGitHead))

		gitInfo := cm.gitInfo(ctx, corpus)
		if gitInfo != nil && gitInfo.IsGitRepo && len(corpora) == 1 {
			runner.SetSourceCommit(gitInfo.HeadCommitSHA)
		}

		detect := cm.languageFilter(corpus)
		walkErr = util.WalkFiles(ctx, corpus.Path, util.SkipDefaultDirs, func(path string) error {
			language, ok := detect(path)
			if !ok {
				return nil
			}

			source, err := util.ReadFileOptimized(ctx, corpus.Path, path, corpus.UseGitHead, gitInfo)
			if err != nil {
				cm.logger.Warn("Failed to read file",
					zap.String("path", path),
					zap.Error(err))
				return nil
			}

			tokens, err := cm.tokenizers.Lex(ctx, language, source, cm.maxChars)
			if err != nil {
				cm.logger.Warn("Failed to tokenize file",
					zap.String("path", util.ToRelativePath(corpus.Path, path)),
					zap.Error(err))
				return nil
			}
			if err := runner.TrainOnSequence(tokens); err != nil {
				return err
			}

			entry.languageCounts[language]++
			fileCount++
			if fileCount%100 == 0 {
				cm.logger.Info("Training progress",
					zap.String("corpus", name),
					zap.Int("files", fileCount))
			}
			return nil
		})
		if walkErr != nil {
			break
		}
	}

	entry.updatedAt = time.Now()
	if walkErr != nil {
		if ctx.Err() != nil {
			if cm.storeIfAbsent(name, entry) {
				cm.logger.Warn("Training abandoned, keeping partial model",
					zap.String("corpus", name),
					zap.Int("files_processed", fileCount))
			} else {
				cm.logger.Warn("Training abandoned, keeping previously loaded model",
					zap.String("corpus", name),
					zap.Int("files_processed", fileCount))
			}
			return runner, walkErr
		}
		return nil, fmt.Errorf("failed to walk corpus %s: %w", name, walkErr)
	}
	cm.store(name, entry)

	stats := runner.Stats()
	cm.logger.Info("Corpus training complete",
		zap.String("corpus", name),
		zap.Int("files_processed", fileCount),
		zap.Int64("total_tokens", stats.TrainedTokens),
		zap.Int("vocabulary", stats.VocabularySize),
		zap.Duration("elapsed", time.Since(start)))

	return runner, nil
}

// CorpusFile is a supported source file found under a corpus path
type CorpusFile struct {
	Path     string
	Language string
}

// ListFiles returns every file under the corpus path that training would read, in walk order
func (cm *CorpusManager) ListFiles(ctx context.Context, corpus *config.Corpus) ([]CorpusFile, error) {
	detect := cm.languageFilter(corpus)
	var files []CorpusFile
	err := util.WalkFiles(ctx, corpus.Path, util.SkipDefaultDirs, func(path string) error {
		if language, ok := detect(path); ok {
			files = append(files, CorpusFile{Path: path, Language: language})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// languageFilter detects a file's language, rejecting unsupported files and
// languages outside the corpus' list
func (cm *CorpusManager) languageFilter(corpus *config.Corpus) func(path string) (string, bool) {
	allowed := make(map[string]bool, len(corpus.Languages))
	for _, language := range corpus.Languages {
		allowed[language] = true
	}
	return func(path string) (string, bool) {
		language, ok := cm.tokenizers.DetectLanguage(path)
		if !ok || (len(allowed) > 0 && !allowed[language]) {
			return "", false
		}
		return language, true
	}
}

// gitInfo returns the corpus' git state when it reads from HEAD, nil otherwise
func (cm *CorpusManager) gitInfo(ctx context.Context, corpus *config.Corpus) *util.GitInfo {
	if !corpus.UseGitHead {
		return nil
	}
	info, err := util.GetGitInfo(ctx, corpus.Path)
	if err != nil {
		cm.logger.Warn("Failed to get git info, reading files from disk",
			zap.String("corpus", corpus.Name),
			zap.Error(err))
		return nil
	}
	return info
}

func joinCorpusPaths(corpora []*config.Corpus) string {
	paths := make([]string, 0, len(corpora))
	for _, corpus := range corpora {
		paths = append(paths, corpus.Path)
	}
	return strings.Join(paths, string(filepath.ListSeparator))
}

// AddRunner registers an externally built runner under its name
func (cm *CorpusManager) AddRunner(runner *ModelRunner) {
	cm.store(runner.Name(), &corpusEntry{runner: runner, updatedAt: time.Now()})
}

func (cm *CorpusManager) store(name string, entry *corpusEntry) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.runners[name] = entry
}

// storeIfAbsent registers entry unless name already has one and reports whether it did
func (cm *CorpusManager) storeIfAbsent(name string, entry *corpusEntry) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if _, exists := cm.runners[name]; exists {
		return false
	}
	cm.runners[name] = entry
	return true
}

// Save writes the runner for name to disk
func (cm *CorpusManager) Save(name string) error {
	if cm.persistence == nil {
		return nil
	}
	runner, err := cm.Runner(name)
	if err != nil {
		return err
	}
	return cm.persistence.SaveRunner(runner)
}

// Delete unregisters the runner for name and removes its saved artifacts
func (cm *CorpusManager) Delete(name string) error {
	cm.mu.Lock()
	delete(cm.runners, name)
	cm.mu.Unlock()

	if cm.persistence == nil {
		return nil
	}
	return cm.persistence.DeleteModel(name)
}

// ListCorpora returns the names of all loaded corpora, sorted
func (cm *CorpusManager) ListCorpora() []string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	names := make([]string, 0, len(cm.runners))
	for name := range cm.runners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetStats returns statistics about a loaded corpus
func (cm *CorpusManager) GetStats(name string) (*CorpusStats, error) {
	cm.mu.RLock()
	entry, exists := cm.runners[name]
	cm.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrRunnerNotFound, name)
	}

	return &CorpusStats{
		Corpus:         name,
		Path:           entry.path,
		LanguageCounts: entry.languageCounts,
		LoadedFromDisk: entry.loadedFromDisk,
		UpdatedAt:      entry.updatedAt,
		Runner:         entry.runner.Stats(),
	}, nil
}

// CorpusStats contains statistics about a corpus and its runner
type CorpusStats struct {
	Corpus         string         `json:"corpus"`
	Path           string         `json:"path,omitempty"`
	LanguageCounts map[string]int `json:"language_counts,omitempty"` // Only known for runners trained in this process
	LoadedFromDisk bool           `json:"loaded_from_disk"`
	UpdatedAt      time.Time      `json:"updated_at"`
	Runner         RunnerStats    `json:"runner"`
}
