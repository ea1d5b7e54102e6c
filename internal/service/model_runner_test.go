package service

import (
	"errors"
	"math"
	"testing"

	model "idnames-go/internal/model/ngram"

	"go.uber.org/zap"
)

const floatTolerance = 1e-9

func newTestRunner(t *testing.T, name string, order int) *ModelRunner {
	t.Helper()
	opts := DefaultRunnerOptions()
	opts.Order = order
	runner, err := NewModelRunner(name, opts, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create runner: %v", err)
	}
	return runner
}

func TestModelRunner_SuggestNamesScenario(t *testing.T) {
	runner := newTestRunner(t, "scenario", 3)
	tokens := []string{"int", "x", "=", "0", ";"}
	flags := []bool{false, true, false, false, false}
	if err := runner.TrainOnTokens(tokens, flags); err != nil {
		t.Fatalf("Failed to train runner: %v", err)
	}
	before := runner.Stats().TotalNGrams

	occurrences := []model.Occurrence{{Context: model.NGram{"int"}, Name: "x"}}
	predictions, err := runner.SuggestNames(occurrences)
	if err != nil {
		t.Fatalf("Failed to suggest names: %v", err)
	}

	if len(predictions) != 1 {
		t.Fatalf("Expected exactly one prediction, got %+v", predictions)
	}
	if predictions[0].Name != "x" {
		t.Errorf("Expected prediction 'x', got %q", predictions[0].Name)
	}
	if math.Abs(predictions[0].Probability-0.2) > floatTolerance {
		t.Errorf("Expected probability 1/5, got %v", predictions[0].Probability)
	}
	if predictions[0].Priority != 5 {
		t.Errorf("Expected priority equal to vocabulary size 5, got %d", predictions[0].Priority)
	}

	if after := runner.Stats().TotalNGrams; after != before {
		t.Errorf("Expected counts restored to %d, got %d", before, after)
	}
	ids := runner.vocabulary.ToIndices([]string{"int", "x"})
	if got := runner.model.Counter().CountsAt(ids, 2); got != 1 {
		t.Errorf("Expected bigram 'int x' relearned to 1, got %d", got)
	}
}

func TestModelRunner_OnlyRememberedNamesSuggested(t *testing.T) {
	runner := newTestRunner(t, "remembered", 3)
	tokens := []string{"int", "count", "=", "total", ";", "int", "index", "=", "0", ";"}
	flags := []bool{false, true, false, false, false, false, true, false, false, false}
	if err := runner.TrainOnTokens(tokens, flags); err != nil {
		t.Fatalf("Failed to train runner: %v", err)
	}

	predictions, err := runner.SuggestNames([]model.Occurrence{{Context: model.NGram{"int"}, Name: "index"}})
	if err != nil {
		t.Fatalf("Failed to suggest names: %v", err)
	}
	for _, p := range predictions {
		if p.Name != "count" && p.Name != "index" {
			t.Errorf("Unexpected non-identifier suggestion %q", p.Name)
		}
	}
	if len(predictions) == 0 || predictions[0].Name != "count" {
		t.Fatalf("Expected 'count' ranked first once 'index' is forgotten, got %+v", predictions)
	}
}

func TestModelRunner_UnlearnedWindowsAreSkipped(t *testing.T) {
	runner := newTestRunner(t, "unlearned", 3)
	if err := runner.TrainOnTokens([]string{"int", "x", ";"}, []bool{false, true, false}); err != nil {
		t.Fatalf("Failed to train runner: %v", err)
	}
	before := runner.Stats().TotalNGrams

	// "long y" was never trained, so forgetting it would underflow
	occurrences := []model.Occurrence{
		{Context: model.NGram{"long"}, Name: "y"},
		{Context: model.NGram{"int"}, Name: "x"},
	}
	if _, err := runner.SuggestNames(occurrences); err != nil {
		t.Fatalf("Failed to suggest names: %v", err)
	}
	if after := runner.Stats().TotalNGrams; after != before {
		t.Errorf("Expected counts restored to %d, got %d", before, after)
	}
}

func TestModelRunner_DuplicateWindowsForgottenOncePerCount(t *testing.T) {
	runner := newTestRunner(t, "duplicates", 2)
	if err := runner.TrainOnTokens([]string{"int", "x", ";"}, []bool{false, true, false}); err != nil {
		t.Fatalf("Failed to train runner: %v", err)
	}
	before := runner.Stats().TotalNGrams

	occurrences := []model.Occurrence{
		{Context: model.NGram{"int"}, Name: "x"},
		{Context: model.NGram{"int"}, Name: "x"},
	}
	if _, err := runner.SuggestNames(occurrences); err != nil {
		t.Fatalf("Failed to suggest names: %v", err)
	}
	if after := runner.Stats().TotalNGrams; after != before {
		t.Errorf("Expected counts restored to %d, got %d", before, after)
	}
}

func TestModelRunner_GetProbability(t *testing.T) {
	runner := newTestRunner(t, "probability", 3)
	if err := runner.TrainOnTokens([]string{"int", "x", "=", "0", ";"}, []bool{false, true, false, false, false}); err != nil {
		t.Fatalf("Failed to train runner: %v", err)
	}

	prob, priority, err := runner.GetProbability([]model.Occurrence{{Context: model.NGram{"int"}, Name: "x"}})
	if err != nil {
		t.Fatalf("Failed to get probability: %v", err)
	}
	if priority != 5 {
		t.Errorf("Expected priority 5, got %d", priority)
	}
	if math.Abs(prob-0.2) > floatTolerance {
		t.Errorf("Expected probability 1/5, got %v", prob)
	}
}

func TestModelRunner_EmptyRunner(t *testing.T) {
	runner := newTestRunner(t, "empty", 3)

	prob, priority, err := runner.GetProbability(nil)
	if err != nil {
		t.Fatalf("Failed to get probability: %v", err)
	}
	if prob != 0 || priority != 0 {
		t.Errorf("Expected (0, 0) for an empty runner, got (%v, %d)", prob, priority)
	}

	predictions, err := runner.SuggestNames(nil)
	if err != nil {
		t.Fatalf("Failed to suggest names: %v", err)
	}
	if len(predictions) != 0 {
		t.Errorf("Expected no predictions, got %+v", predictions)
	}
}

func TestModelRunner_FlagMismatch(t *testing.T) {
	runner := newTestRunner(t, "mismatch", 3)
	err := runner.TrainOnTokens([]string{"a", "b"}, []bool{true})
	if !errors.Is(err, ErrTokenFlagMismatch) {
		t.Fatalf("Expected ErrTokenFlagMismatch, got %v", err)
	}
	if runner.Priority() != 0 {
		t.Errorf("Expected nothing registered after a rejected training call")
	}
}

func TestModelRunner_TrainTwiceDoublesCounts(t *testing.T) {
	runner := newTestRunner(t, "twice", 3)
	tokens := []string{"int", "x", ";"}
	flags := []bool{false, true, false}
	for i := 0; i < 2; i++ {
		if err := runner.TrainOnTokens(tokens, flags); err != nil {
			t.Fatalf("Failed to train runner: %v", err)
		}
	}

	ids := runner.vocabulary.ToIndices([]string{"int", "x"})
	if got := runner.model.Counter().CountsAt(ids, 2); got != 2 {
		t.Errorf("Expected bigram counted twice, got %d", got)
	}
	if !runner.IsRemembered("x") || runner.IsRemembered("int") {
		t.Errorf("Expected only 'x' remembered")
	}
	stats := runner.Stats()
	if stats.TrainedFiles != 2 || stats.TrainedTokens != 6 {
		t.Errorf("Unexpected training stats: %+v", stats)
	}
}

func TestModelRunner_TrainOnSequence(t *testing.T) {
	runner := newTestRunner(t, "sequence", 3)
	seq := model.TokenSequence{
		{Type: "int", Value: "int"},
		{Type: "identifier", Value: "total", Category: model.CategoryLocalVariable},
		{Type: ";", Value: ";"},
	}
	if err := runner.TrainOnSequence(seq); err != nil {
		t.Fatalf("Failed to train on sequence: %v", err)
	}
	if !runner.IsRemembered("total") {
		t.Errorf("Expected declared local variable to be remembered")
	}
}

func TestModelRunner_RestoreRejectsMismatchedOrder(t *testing.T) {
	source := newTestRunner(t, "source", 3)
	if err := source.TrainOnTokens([]string{"int", "x"}, []bool{false, true}); err != nil {
		t.Fatalf("Failed to train runner: %v", err)
	}
	target := newTestRunner(t, "target", 4)

	if err := target.restore(source.snapshot()); err == nil {
		t.Fatalf("Expected order mismatch error")
	}
	if target.Priority() != 0 {
		t.Errorf("Expected target unchanged after failed restore")
	}
}
