package contributors

import (
	"context"
	"sync"

	model "idnames-go/internal/model/ngram"
	"idnames-go/internal/service"

	"go.uber.org/zap"
)

// Contributor suggests names for a variable from one model
type Contributor interface {
	// Name identifies the contributor in the registry and in responses
	Name() string

	// Supports reports whether the contributor handles identifiers of category
	Supports(category model.IdentifierCategory) bool

	// Contribute returns the contributor's ranked predictions and the priority of its model
	Contribute(ctx context.Context, req *NameRequest) (model.Contribution, error)

	// Probability returns how plausible the variable's current name is, and the priority
	Probability(ctx context.Context, req *NameRequest) (float64, int, error)
}

// NameRequest describes the variable being named
type NameRequest struct {
	Corpus      string                   // Corpus whose project runner to consult; may be empty
	File        *SourceFile              // File containing the variable
	Category    model.IdentifierCategory // Category of the variable's declaration
	Occurrences []model.Occurrence       // Every use of the variable, each with its context
}

// SourceFile is a lexed file shared by the contributors serving one request.
// Its single-file runner is trained on first use.
type SourceFile struct {
	Path     string
	Language string
	Tokens   model.TokenSequence

	once      sync.Once
	runner    *service.ModelRunner
	runnerErr error
}

// NewSourceFile wraps a lexed file
func NewSourceFile(path, language string, tokens model.TokenSequence) *SourceFile {
	return &SourceFile{
		Path:     path,
		Language: language,
		Tokens:   tokens,
	}
}

// Runner returns a runner trained on this file alone
func (f *SourceFile) Runner(opts service.RunnerOptions, logger *zap.Logger) (*service.ModelRunner, error) {
	f.once.Do(func() {
		runner, err := service.NewModelRunner(f.Path, opts, logger)
		if err != nil {
			f.runnerErr = err
			return
		}
		if err := runner.TrainOnSequence(f.Tokens); err != nil {
			f.runnerErr = err
			return
		}
		f.runner = runner
	})
	return f.runner, f.runnerErr
}
