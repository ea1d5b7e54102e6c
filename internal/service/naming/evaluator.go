package naming

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"idnames-go/internal/contributors"
	model "idnames-go/internal/model/ngram"
	"idnames-go/internal/service"
	"idnames-go/internal/util"

	"go.uber.org/zap"
)

// EvaluateRequest asks for predictions on every declared variable of a test corpus
type EvaluateRequest struct {
	TestCorpus   string   `json:"test_corpus"`
	ModelCorpus  string   `json:"model_corpus"` // Runner the corpus contributor consults
	OutputDir    string   `json:"output_dir"`
	Contributors []string `json:"contributors,omitempty"` // Empty means every registered contributor
}

// VariablePrediction is the evaluation record of one declared variable
type VariablePrediction struct {
	GroundTruth    string             `json:"ground_truth"`
	Predictions    []model.Suggestion `json:"predictions"`
	ElapsedSeconds float64            `json:"elapsed_seconds"`
	Line           int                `json:"line"`
	Category       string             `json:"category"`
}

// EvaluationSummary reports one evaluation run; files predicted by earlier runs are skipped
type EvaluationSummary struct {
	TestCorpus     string  `json:"test_corpus"`
	ModelCorpus    string  `json:"model_corpus"`
	OutputPath     string  `json:"output_path"`
	FilesSkipped   int     `json:"files_skipped"`
	FilesEvaluated int     `json:"files_evaluated"`
	Variables      int     `json:"variables"`
	TopOneHits     int     `json:"top_one_hits"`
	AnyHits        int     `json:"any_hits"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// PredictionsPath is where predictions for a test corpus are appended
func PredictionsPath(outputDir, testCorpus string) string {
	return filepath.Join(outputDir, testCorpus+"_predictions.jsonl")
}

// EvaluateCorpus predicts a name for every declared variable in the test corpus and
// appends one JSON line per file, {"<relative path>": [records...]}. Files already
// present in the output are skipped, so an interrupted run resumes where it stopped.
func (s *NamingService) EvaluateCorpus(ctx context.Context, req *EvaluateRequest) (*EvaluationSummary, error) {
	testCorpus, err := s.cfg.GetCorpus(req.TestCorpus)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCorpusNotConfigured, req.TestCorpus)
	}
	if _, err := s.corpora.Runner(req.ModelCorpus); err != nil {
		return nil, err
	}
	selected, err := s.selectContributors(req.Contributors)
	if err != nil {
		return nil, err
	}

	outputPath := PredictionsPath(req.OutputDir, req.TestCorpus)
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	predicted, terminated, err := readPredictedFiles(outputPath)
	if err != nil {
		return nil, err
	}

	files, err := s.corpora.ListFiles(ctx, testCorpus)
	if err != nil {
		return nil, fmt.Errorf("failed to list test corpus files: %w", err)
	}

	output, err := os.OpenFile(outputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open predictions file: %w", err)
	}
	defer output.Close()
	if !terminated {
		// Start a fresh line after a record cut short by an earlier crash
		if _, err := output.Write([]byte{'\n'}); err != nil {
			return nil, fmt.Errorf("failed to write predictions: %w", err)
		}
	}

	summary := &EvaluationSummary{
		TestCorpus:  req.TestCorpus,
		ModelCorpus: req.ModelCorpus,
		OutputPath:  outputPath,
	}
	start := time.Now()

	s.logger.Info("Evaluating corpus",
		zap.String("test_corpus", req.TestCorpus),
		zap.String("model_corpus", req.ModelCorpus),
		zap.Int("files", len(files)),
		zap.Int("already_predicted", len(predicted)))

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			summary.ElapsedSeconds = time.Since(start).Seconds()
			return summary, err
		}

		key := util.ToRelativePath(testCorpus.Path, file.Path)
		if predicted[key] {
			summary.FilesSkipped++
			continue
		}

		records, err := s.evaluateFile(ctx, req.ModelCorpus, selected, file)
		if err != nil {
			if ctx.Err() != nil {
				summary.ElapsedSeconds = time.Since(start).Seconds()
				return summary, ctx.Err()
			}
			s.logger.Warn("Failed to evaluate file", zap.String("path", key), zap.Error(err))
			continue
		}

		line, err := json.Marshal(map[string][]VariablePrediction{key: records})
		if err != nil {
			return summary, fmt.Errorf("failed to encode predictions: %w", err)
		}
		if _, err := output.Write(append(line, '\n')); err != nil {
			return summary, fmt.Errorf("failed to write predictions: %w", err)
		}

		summary.FilesEvaluated++
		for _, record := range records {
			summary.Variables++
			for i, suggestion := range record.Predictions {
				if suggestion.Name != record.GroundTruth {
					continue
				}
				if i == 0 {
					summary.TopOneHits++
				}
				summary.AnyHits++
				break
			}
		}
		if summary.FilesEvaluated%100 == 0 {
			s.logger.Info("Evaluation progress",
				zap.String("test_corpus", req.TestCorpus),
				zap.Int("files", summary.FilesEvaluated),
				zap.Int("variables", summary.Variables))
		}
	}

	summary.ElapsedSeconds = time.Since(start).Seconds()
	s.logger.Info("Evaluation complete",
		zap.String("test_corpus", req.TestCorpus),
		zap.Int("files_evaluated", summary.FilesEvaluated),
		zap.Int("files_skipped", summary.FilesSkipped),
		zap.Int("variables", summary.Variables),
		zap.Int("top_one_hits", summary.TopOneHits))
	return summary, nil
}

// evaluateFile predicts every declaration in the file, in source order
func (s *NamingService) evaluateFile(ctx context.Context, modelCorpus string, selected []contributors.Contributor, file service.CorpusFile) ([]VariablePrediction, error) {
	source, err := s.loadFile(ctx, &FileRequest{
		Corpus:   modelCorpus,
		Path:     file.Path,
		Language: file.Language,
	})
	if err != nil {
		return nil, err
	}

	records := []VariablePrediction{}
	for _, token := range source.Tokens {
		if token.Category == model.CategoryNone {
			continue
		}
		nameReq := &contributors.NameRequest{
			Corpus:      modelCorpus,
			File:        source,
			Category:    token.Category,
			Occurrences: source.Tokens.Occurrences(source.Tokens.OccurrencesOf(token.Value), s.order),
		}

		start := time.Now()
		suggestions, _, err := s.suggestWith(ctx, selected, nameReq)
		if err != nil {
			return nil, err
		}
		records = append(records, VariablePrediction{
			GroundTruth:    token.Value,
			Predictions:    suggestions,
			ElapsedSeconds: time.Since(start).Seconds(),
			Line:           token.Line,
			Category:       token.Category.String(),
		})
	}
	return records, nil
}

func (s *NamingService) selectContributors(names []string) ([]contributors.Contributor, error) {
	if len(names) == 0 {
		return s.registry.All(), nil
	}
	selected := make([]contributors.Contributor, 0, len(names))
	for _, name := range names {
		contributor, err := s.registry.Get(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		selected = append(selected, contributor)
	}
	return selected, nil
}

// readPredictedFiles returns the file keys already written to path and whether the
// last line is complete. Lines that do not decode, such as one cut short by a crash,
// are ignored.
func readPredictedFiles(path string) (map[string]bool, bool, error) {
	predicted := make(map[string]bool)
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return predicted, true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to open predictions file: %w", err)
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	terminated := true
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			terminated = line[len(line)-1] == '\n'
			var entry map[string]json.RawMessage
			if json.Unmarshal(line, &entry) == nil {
				for key := range entry {
					predicted[key] = true
				}
			}
		}
		if err == io.EOF {
			return predicted, terminated, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("failed to read predictions file: %w", err)
		}
	}
}
