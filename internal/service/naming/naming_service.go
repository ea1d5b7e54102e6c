package naming

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"idnames-go/internal/config"
	"idnames-go/internal/contributors"
	model "idnames-go/internal/model/ngram"
	"idnames-go/internal/service"
	"idnames-go/internal/util"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrIdentifierNotFound is returned when the requested variable is not in the file
	ErrIdentifierNotFound = errors.New("identifier not found")

	// ErrCorpusNotConfigured is returned for a corpus missing from the configuration
	ErrCorpusNotConfigured = errors.New("corpus not configured")

	// ErrInvalidRequest is returned for requests missing required fields
	ErrInvalidRequest = errors.New("invalid request")
)

// NamingService answers naming requests by fanning out to every registered contributor
// and combining their predictions
type NamingService struct {
	cfg          *config.Config
	corpora      *service.CorpusManager
	registry     *contributors.ContributorRegistry
	aggregator   *service.RankAggregator
	order        int
	maxChars     int
	inspectBelow float64
	logger       *zap.Logger
}

// NewNamingService wires the service; the contributor registry is consulted on every request
func NewNamingService(cfg *config.Config, corpora *service.CorpusManager, registry *contributors.ContributorRegistry, logger *zap.Logger) *NamingService {
	opts := corpora.Options()
	return &NamingService{
		cfg:          cfg,
		corpora:      corpora,
		registry:     registry,
		aggregator:   service.NewRankAggregator(opts.Cutoff, opts.MinScore),
		order:        opts.Order,
		maxChars:     corpora.MaxChars(),
		inspectBelow: cfg.Model.InspectionThreshold,
		logger:       logger,
	}
}

// FileRequest identifies a source file. Source, when set, is used instead of
// reading Path, and Language, when empty, is detected from Path.
type FileRequest struct {
	Corpus   string `json:"corpus,omitempty"`
	Path     string `json:"path"`
	Language string `json:"language,omitempty"`
	Source   string `json:"source,omitempty"`
}

// VariableRequest identifies a variable by position (1-based line and column) or by name
type VariableRequest struct {
	FileRequest
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
	Name   string `json:"name,omitempty"`
}

// ContributorTiming reports one contributor's share of a request
type ContributorTiming struct {
	Contributor string  `json:"contributor"`
	Priority    int     `json:"priority"`
	Predictions int     `json:"predictions"`
	Probability float64 `json:"probability,omitempty"`
	ElapsedMs   float64 `json:"elapsed_ms"`
	Error       string  `json:"error,omitempty"`
}

// SuggestResponse contains ranked name suggestions for a variable
type SuggestResponse struct {
	Name         string              `json:"name"`
	Category     string              `json:"category"`
	Occurrences  int                 `json:"occurrences"`
	Suggestions  []model.Suggestion  `json:"suggestions"`
	Contributors []ContributorTiming `json:"contributors"`
}

// ProbabilityResponse contains the combined probability of a variable's current name
type ProbabilityResponse struct {
	Name         string              `json:"name"`
	Category     string              `json:"category"`
	Probability  float64             `json:"probability"`
	Contributors []ContributorTiming `json:"contributors"`
}

// Inspection is a declared variable whose name the models find implausible
type Inspection struct {
	Name        string             `json:"name"`
	Line        int                `json:"line"`
	Column      int                `json:"column"`
	Probability float64            `json:"probability"`
	Suggestions []model.Suggestion `json:"suggestions"`
}

// InspectResponse lists the implausible names in a file
type InspectResponse struct {
	Path        string       `json:"path"`
	Language    string       `json:"language"`
	Checked     int          `json:"checked"`
	Threshold   float64      `json:"threshold"`
	Inspections []Inspection `json:"inspections"`
}

// CorpusSummary describes a configured corpus
type CorpusSummary struct {
	Name      string   `json:"name"`
	Path      string   `json:"path"`
	Languages []string `json:"languages,omitempty"`
	Loaded    bool     `json:"loaded"`
}

// SuggestNames ranks alternative names for the variable at the requested position
func (s *NamingService) SuggestNames(ctx context.Context, req *VariableRequest) (*SuggestResponse, error) {
	file, err := s.loadFile(ctx, &req.FileRequest)
	if err != nil {
		return nil, err
	}
	nameReq, err := s.variableRequest(req, file)
	if err != nil {
		return nil, err
	}

	name := nameReq.Occurrences[0].Name
	suggestions, timings, err := s.suggest(ctx, nameReq)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Suggested names",
		zap.String("path", file.Path),
		zap.String("name", name),
		zap.Int("occurrences", len(nameReq.Occurrences)),
		zap.Int("suggestions", len(suggestions)))

	return &SuggestResponse{
		Name:         name,
		Category:     nameReq.Category.String(),
		Occurrences:  len(nameReq.Occurrences),
		Suggestions:  suggestions,
		Contributors: timings,
	}, nil
}

// NameProbability returns Σ prob·priority / Σ priority over all contributors
func (s *NamingService) NameProbability(ctx context.Context, req *VariableRequest) (*ProbabilityResponse, error) {
	file, err := s.loadFile(ctx, &req.FileRequest)
	if err != nil {
		return nil, err
	}
	nameReq, err := s.variableRequest(req, file)
	if err != nil {
		return nil, err
	}

	probability, timings, err := s.probability(ctx, nameReq)
	if err != nil {
		return nil, err
	}

	return &ProbabilityResponse{
		Name:         nameReq.Occurrences[0].Name,
		Category:     nameReq.Category.String(),
		Probability:  probability,
		Contributors: timings,
	}, nil
}

// InspectFile reports every declared variable whose name probability is below the
// inspection threshold, with suggestions for each
func (s *NamingService) InspectFile(ctx context.Context, req *FileRequest) (*InspectResponse, error) {
	file, err := s.loadFile(ctx, req)
	if err != nil {
		return nil, err
	}

	response := &InspectResponse{
		Path:        file.Path,
		Language:    file.Language,
		Threshold:   s.inspectBelow,
		Inspections: []Inspection{},
	}

	checked := make(map[string]bool)
	for _, token := range file.Tokens {
		if token.Category == model.CategoryNone || checked[token.Value] {
			continue
		}
		checked[token.Value] = true
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		nameReq := &contributors.NameRequest{
			Corpus:      req.Corpus,
			File:        file,
			Category:    token.Category,
			Occurrences: file.Tokens.Occurrences(file.Tokens.OccurrencesOf(token.Value), s.order),
		}
		probability, _, err := s.probability(ctx, nameReq)
		if err != nil {
			return nil, err
		}
		if probability >= s.inspectBelow {
			continue
		}

		suggestions, _, err := s.suggest(ctx, nameReq)
		if err != nil {
			return nil, err
		}
		response.Inspections = append(response.Inspections, Inspection{
			Name:        token.Value,
			Line:        token.Line,
			Column:      token.Column,
			Probability: probability,
			Suggestions: suggestions,
		})
	}
	response.Checked = len(checked)

	s.logger.Info("Inspected file",
		zap.String("path", file.Path),
		zap.Int("checked", response.Checked),
		zap.Int("reported", len(response.Inspections)))

	return response, nil
}

// TrainCorpus loads or trains the runner of a configured corpus
func (s *NamingService) TrainCorpus(ctx context.Context, name string, override bool) (*service.CorpusStats, error) {
	corpus, err := s.cfg.GetCorpus(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCorpusNotConfigured, name)
	}
	if _, err := s.corpora.LoadOrTrain(ctx, corpus, override); err != nil {
		return nil, err
	}
	return s.corpora.GetStats(name)
}

// CorpusStats returns statistics for a loaded corpus
func (s *NamingService) CorpusStats(name string) (*service.CorpusStats, error) {
	return s.corpora.GetStats(name)
}

// ListCorpora returns every configured corpus and whether its runner is loaded
func (s *NamingService) ListCorpora() []CorpusSummary {
	loaded := make(map[string]bool)
	for _, name := range s.corpora.ListCorpora() {
		loaded[name] = true
	}

	summaries := make([]CorpusSummary, 0, len(s.cfg.Corpora))
	for _, corpus := range s.cfg.Corpora {
		summaries = append(summaries, CorpusSummary{
			Name:      corpus.Name,
			Path:      corpus.Path,
			Languages: corpus.Languages,
			Loaded:    loaded[corpus.Name],
		})
	}
	return summaries
}

// loadFile lexes the requested file
func (s *NamingService) loadFile(ctx context.Context, req *FileRequest) (*contributors.SourceFile, error) {
	if req.Path == "" && req.Source == "" {
		return nil, fmt.Errorf("%w: path or source is required", ErrInvalidRequest)
	}
	path := util.ExtractPathFromURI(req.Path)

	language := req.Language
	if language == "" {
		detected, ok := s.corpora.Tokenizers().DetectLanguage(path)
		if !ok {
			return nil, fmt.Errorf("%w: cannot detect language of %q", service.ErrUnsupportedLanguage, req.Path)
		}
		language = detected
	}

	source := []byte(req.Source)
	if req.Source == "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
		source = data
	}

	tokens, err := s.corpora.Tokenizers().Lex(ctx, language, source, s.maxChars)
	if err != nil {
		return nil, err
	}
	return contributors.NewSourceFile(path, language, tokens), nil
}

// variableRequest locates the target identifier and collects its occurrences
func (s *NamingService) variableRequest(req *VariableRequest, file *contributors.SourceFile) (*contributors.NameRequest, error) {
	var name string
	switch {
	case req.Line > 0:
		index, ok := file.Tokens.FindIdentifier(req.Line, req.Column)
		if !ok {
			return nil, fmt.Errorf("%w at %d:%d", ErrIdentifierNotFound, req.Line, req.Column)
		}
		name = file.Tokens[index].Value
	case req.Name != "":
		name = req.Name
	default:
		return nil, fmt.Errorf("%w: line/column or name is required", ErrInvalidRequest)
	}

	positions := file.Tokens.OccurrencesOf(name)
	if len(positions) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrIdentifierNotFound, name)
	}

	category := model.CategoryNone
	if index, ok := file.Tokens.FindDeclaration(name); ok {
		category = file.Tokens[index].Category
	}

	return &contributors.NameRequest{
		Corpus:      req.Corpus,
		File:        file,
		Category:    category,
		Occurrences: file.Tokens.Occurrences(positions, s.order),
	}, nil
}

// suggest collects a contribution from every supporting contributor concurrently and
// combines them in registration order. A failing contributor is logged and skipped.
func (s *NamingService) suggest(ctx context.Context, req *contributors.NameRequest) ([]model.Suggestion, []ContributorTiming, error) {
	return s.suggestWith(ctx, s.registry.All(), req)
}

func (s *NamingService) suggestWith(ctx context.Context, all []contributors.Contributor, req *contributors.NameRequest) ([]model.Suggestion, []ContributorTiming, error) {
	contributions := make([]model.Contribution, len(all))
	timings := make([]ContributorTiming, len(all))

	g, gctx := errgroup.WithContext(ctx)
	for i, contributor := range all {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			contribution, err := contributor.Contribute(gctx, req)
			timings[i] = ContributorTiming{
				Contributor: contributor.Name(),
				ElapsedMs:   float64(time.Since(start).Microseconds()) / 1000,
			}
			if err != nil {
				s.logger.Warn("Contributor failed",
					zap.String("contributor", contributor.Name()),
					zap.Error(err))
				timings[i].Error = err.Error()
				contributions[i] = model.Contribution{Contributor: contributor.Name()}
				return nil
			}
			contributions[i] = contribution
			timings[i].Priority = contribution.Priority
			timings[i].Predictions = len(contribution.Predictions)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return s.aggregator.Combine(contributions), timings, nil
}

// probability averages every contributor's probability weighted by its priority
func (s *NamingService) probability(ctx context.Context, req *contributors.NameRequest) (float64, []ContributorTiming, error) {
	all := s.registry.All()
	probabilities := make([]float64, len(all))
	priorities := make([]int, len(all))
	timings := make([]ContributorTiming, len(all))

	g, gctx := errgroup.WithContext(ctx)
	for i, contributor := range all {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			prob, priority, err := contributor.Probability(gctx, req)
			timings[i] = ContributorTiming{
				Contributor: contributor.Name(),
				ElapsedMs:   float64(time.Since(start).Microseconds()) / 1000,
			}
			if err != nil {
				s.logger.Warn("Contributor failed",
					zap.String("contributor", contributor.Name()),
					zap.Error(err))
				timings[i].Error = err.Error()
				return nil
			}
			probabilities[i] = prob
			priorities[i] = priority
			timings[i].Priority = priority
			timings[i].Probability = prob
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, nil, err
	}

	return service.CombineProbability(probabilities, priorities), timings, nil
}
