package contributors

import (
	"context"

	model "idnames-go/internal/model/ngram"
	"idnames-go/internal/service"

	"go.uber.org/zap"
)

// FileContributor predicts from a runner trained on the request's file alone
type FileContributor struct {
	opts   service.RunnerOptions
	logger *zap.Logger
}

// NewFileContributor creates a contributor whose per-file runners use opts
func NewFileContributor(opts service.RunnerOptions, logger *zap.Logger) *FileContributor {
	// A single file is small; the bloom filter would cost more than it saves
	opts.UseBloom = false
	return &FileContributor{
		opts:   opts,
		logger: logger,
	}
}

func (c *FileContributor) Name() string {
	return "file"
}

func (c *FileContributor) Supports(category model.IdentifierCategory) bool {
	return category == model.CategoryLocalVariable
}

func (c *FileContributor) Contribute(ctx context.Context, req *NameRequest) (model.Contribution, error) {
	contribution := model.Contribution{Contributor: c.Name(), Predictions: []model.Prediction{}}
	if !c.Supports(req.Category) || req.File == nil {
		return contribution, nil
	}
	runner, err := req.File.Runner(c.opts, c.logger)
	if err != nil {
		return contribution, err
	}

	predictions, err := runner.SuggestNames(req.Occurrences)
	if err != nil {
		return contribution, err
	}
	contribution.Priority = runner.Priority()
	contribution.Predictions = predictions
	return contribution, nil
}

func (c *FileContributor) Probability(ctx context.Context, req *NameRequest) (float64, int, error) {
	if !c.Supports(req.Category) || req.File == nil {
		return 0, 0, nil
	}
	runner, err := req.File.Runner(c.opts, c.logger)
	if err != nil {
		return 0, 0, err
	}
	return runner.GetProbability(req.Occurrences)
}
