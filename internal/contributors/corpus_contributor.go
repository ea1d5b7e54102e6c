package contributors

import (
	"context"
	"errors"

	model "idnames-go/internal/model/ngram"
	"idnames-go/internal/service"
)

// CorpusContributor predicts from the project-wide runner of the request's corpus
type CorpusContributor struct {
	corpora *service.CorpusManager
}

// NewCorpusContributor creates a contributor backed by the corpus manager
func NewCorpusContributor(corpora *service.CorpusManager) *CorpusContributor {
	return &CorpusContributor{corpora: corpora}
}

func (c *CorpusContributor) Name() string {
	return "corpus"
}

func (c *CorpusContributor) Supports(category model.IdentifierCategory) bool {
	return category == model.CategoryLocalVariable
}

// runner returns nil when the request names no corpus or the corpus is not loaded
func (c *CorpusContributor) runner(req *NameRequest) (*service.ModelRunner, error) {
	if req.Corpus == "" {
		return nil, nil
	}
	runner, err := c.corpora.Runner(req.Corpus)
	if errors.Is(err, service.ErrRunnerNotFound) {
		return nil, nil
	}
	return runner, err
}

func (c *CorpusContributor) Contribute(ctx context.Context, req *NameRequest) (model.Contribution, error) {
	contribution := model.Contribution{Contributor: c.Name(), Predictions: []model.Prediction{}}
	if !c.Supports(req.Category) {
		return contribution, nil
	}
	runner, err := c.runner(req)
	if err != nil || runner == nil {
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

func (c *CorpusContributor) Probability(ctx context.Context, req *NameRequest) (float64, int, error) {
	if !c.Supports(req.Category) {
		return 0, 0, nil
	}
	runner, err := c.runner(req)
	if err != nil || runner == nil {
		return 0, 0, err
	}
	return runner.GetProbability(req.Occurrences)
}
