package contributors

import (
	"context"
	"errors"
	"math"
	"testing"

	model "idnames-go/internal/model/ngram"
	"idnames-go/internal/service"

	"go.uber.org/zap"
)

func testOptions() service.RunnerOptions {
	opts := service.DefaultRunnerOptions()
	opts.Order = 3
	return opts
}

// declarationFile is "int x = 0 ;" with x declared
func declarationFile() *SourceFile {
	return NewSourceFile("Main.java", "java", model.TokenSequence{
		{Type: "int", Value: "int", Line: 1, Column: 1},
		{Type: "identifier", Value: "x", Line: 1, Column: 5, Category: model.CategoryLocalVariable},
		{Type: "=", Value: "=", Line: 1, Column: 7},
		{Type: "decimal_integer_literal", Value: "0", Line: 1, Column: 9},
		{Type: ";", Value: ";", Line: 1, Column: 10},
	})
}

func TestContributorRegistry_OrderAndDuplicates(t *testing.T) {
	registry := NewContributorRegistry(zap.NewNop())
	file := NewFileContributor(testOptions(), zap.NewNop())
	corpus := NewCorpusContributor(nil)

	if err := registry.Register(file); err != nil {
		t.Fatalf("Failed to register contributor: %v", err)
	}
	if err := registry.Register(corpus); err != nil {
		t.Fatalf("Failed to register contributor: %v", err)
	}
	if err := registry.Register(NewFileContributor(testOptions(), zap.NewNop())); !errors.Is(err, ErrDuplicateContributor) {
		t.Fatalf("Expected ErrDuplicateContributor, got %v", err)
	}

	all := registry.All()
	if len(all) != 2 || all[0].Name() != "file" || all[1].Name() != "corpus" {
		t.Fatalf("Expected [file corpus] in registration order, got %d contributors", len(all))
	}
	if _, err := registry.Get("corpus"); err != nil {
		t.Fatalf("Failed to get contributor: %v", err)
	}
	if _, err := registry.Get("missing"); err == nil {
		t.Fatalf("Expected error for unknown contributor")
	}
}

func TestFileContributor_Contribute(t *testing.T) {
	contributor := NewFileContributor(testOptions(), zap.NewNop())
	file := declarationFile()
	req := &NameRequest{
		File:        file,
		Category:    model.CategoryLocalVariable,
		Occurrences: file.Tokens.Occurrences([]int{1}, 3),
	}

	contribution, err := contributor.Contribute(context.Background(), req)
	if err != nil {
		t.Fatalf("Failed to contribute: %v", err)
	}
	if contribution.Priority != 5 {
		t.Errorf("Expected priority 5, got %d", contribution.Priority)
	}
	if len(contribution.Predictions) != 1 || contribution.Predictions[0].Name != "x" {
		t.Fatalf("Expected single prediction x, got %+v", contribution.Predictions)
	}
	if math.Abs(contribution.Predictions[0].Probability-0.2) > 1e-9 {
		t.Errorf("Expected probability 1/5, got %v", contribution.Predictions[0].Probability)
	}

	prob, priority, err := contributor.Probability(context.Background(), req)
	if err != nil {
		t.Fatalf("Failed to get probability: %v", err)
	}
	if priority != 5 || math.Abs(prob-0.2) > 1e-9 {
		t.Errorf("Expected (0.2, 5), got (%v, %d)", prob, priority)
	}
}

func TestFileContributor_UnsupportedCategory(t *testing.T) {
	contributor := NewFileContributor(testOptions(), zap.NewNop())
	req := &NameRequest{File: declarationFile(), Category: model.CategoryNone}

	contribution, err := contributor.Contribute(context.Background(), req)
	if err != nil {
		t.Fatalf("Failed to contribute: %v", err)
	}
	if contribution.Priority != 0 || len(contribution.Predictions) != 0 {
		t.Errorf("Expected empty contribution, got %+v", contribution)
	}
	prob, priority, err := contributor.Probability(context.Background(), req)
	if err != nil || prob != 0 || priority != 0 {
		t.Errorf("Expected (0, 0, nil), got (%v, %d, %v)", prob, priority, err)
	}
}

func TestCorpusContributor_MissingCorpus(t *testing.T) {
	corpora := service.NewCorpusManager(service.NewTokenizerRegistry(), nil, testOptions(), 0, zap.NewNop())
	contributor := NewCorpusContributor(corpora)

	req := &NameRequest{Corpus: "unknown", Category: model.CategoryLocalVariable}
	contribution, err := contributor.Contribute(context.Background(), req)
	if err != nil {
		t.Fatalf("Failed to contribute: %v", err)
	}
	if contribution.Priority != 0 || len(contribution.Predictions) != 0 {
		t.Errorf("Expected empty contribution for unknown corpus, got %+v", contribution)
	}
}

func TestCorpusContributor_Contribute(t *testing.T) {
	opts := testOptions()
	runner, err := service.NewModelRunner("proj", opts, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create runner: %v", err)
	}
	if err := runner.TrainOnSequence(declarationFile().Tokens); err != nil {
		t.Fatalf("Failed to train runner: %v", err)
	}
	corpora := service.NewCorpusManager(service.NewTokenizerRegistry(), nil, opts, 0, zap.NewNop())
	corpora.AddRunner(runner)

	contributor := NewCorpusContributor(corpora)
	req := &NameRequest{
		Corpus:      "proj",
		Category:    model.CategoryLocalVariable,
		Occurrences: []model.Occurrence{{Context: model.NGram{"int"}, Name: "x"}},
	}
	contribution, err := contributor.Contribute(context.Background(), req)
	if err != nil {
		t.Fatalf("Failed to contribute: %v", err)
	}
	if contribution.Contributor != "corpus" || contribution.Priority != 5 || len(contribution.Predictions) != 1 {
		t.Errorf("Unexpected contribution: %+v", contribution)
	}
}

func TestSourceFile_RunnerTrainedOnce(t *testing.T) {
	file := declarationFile()
	first, err := file.Runner(testOptions(), zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to build runner: %v", err)
	}
	second, err := file.Runner(testOptions(), zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to build runner: %v", err)
	}
	if first != second {
		t.Errorf("Expected the same runner on repeated calls")
	}
	if first.Stats().TrainedFiles != 1 {
		t.Errorf("Expected runner trained once, got %d", first.Stats().TrainedFiles)
	}
}
