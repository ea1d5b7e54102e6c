package ngram

import (
	"math"
	"testing"
)

const floatTolerance = 1e-9

func newTestModel(t *testing.T, order int, lambda float64) *NGramModel {
	t.Helper()
	counter, err := NewCounter(order)
	if err != nil {
		t.Fatalf("Failed to create counter: %v", err)
	}
	smoother, err := NewJelinekMercerSmoother(lambda)
	if err != nil {
		t.Fatalf("Failed to create smoother: %v", err)
	}
	return NewNGramModel(counter, smoother)
}

func TestNGramModel_LearnSlidesWindows(t *testing.T) {
	model := newTestModel(t, 3, 0.5)
	vocab := NewVocabulary()
	ids := vocab.ToIndices([]string{"int", "x", "=", "0", ";"})
	model.Learn(ids)

	counter := model.Counter()
	if got := counter.ContextCount(nil); got != 5 {
		t.Fatalf("Expected 5 unigrams, got %d", got)
	}
	if got := counter.CountsAt(ids[0:3], 3); got != 1 {
		t.Fatalf("Expected trigram 'int x =' counted once, got %d", got)
	}
	if got := counter.CountsAt(ids[0:4], 3); got != 1 {
		t.Fatalf("Expected trigram 'x = 0' counted once, got %d", got)
	}
}

func TestNGramModel_ForgetPredictScenario(t *testing.T) {
	model := newTestModel(t, 3, 0.5)
	vocab := NewVocabulary()
	model.Learn(vocab.ToIndices([]string{"int", "x", "=", "0", ";"}))

	x, _ := vocab.Lookup("x")
	window := vocab.ToIndices([]string{"int", "x"})
	if !model.IsLearned(window) {
		t.Fatalf("Expected window to be learned")
	}
	if err := model.ForgetAt(window); err != nil {
		t.Fatalf("Failed to forget window: %v", err)
	}

	candidates := model.Predict(window[:1], vocab.Size(), func(id int) bool { return id == x })
	if len(candidates) != 1 || candidates[0].ID != x {
		t.Fatalf("Expected single candidate x, got %+v", candidates)
	}
	if candidates[0].Confidence != 0 {
		t.Fatalf("Expected zero confidence after forgetting, got %v", candidates[0].Confidence)
	}
	prob := ToProbability(candidates[0].Estimate, vocab.Size())
	if math.Abs(prob-0.2) > floatTolerance {
		t.Fatalf("Expected probability 1/5, got %v", prob)
	}

	model.LearnAt(window)
	if got := model.Counter().CountsAt([]int{x}, 1); got != 1 {
		t.Fatalf("Expected count of x restored to 1, got %d", got)
	}
}

func TestNGramModel_InterpolationAndConfidence(t *testing.T) {
	model := newTestModel(t, 2, 0.5)
	vocab := NewVocabulary()
	// a b a b a c
	model.Learn(vocab.ToIndices([]string{"a", "b", "a", "b", "a", "c"}))
	a, _ := vocab.Lookup("a")
	b, _ := vocab.Lookup("b")

	est := model.Estimate([]int{a}, b, vocab.Size())
	// unigram: 0.5*2/6 + 0.5*(1/3) = 1/3; bigram: 0.5*2/3 + 0.5*(1/3) = 1/2
	if math.Abs(est.Probability-0.5) > floatTolerance {
		t.Fatalf("Expected interpolated probability 0.5, got %v", est.Probability)
	}
	if est.Confidence != 1 {
		t.Fatalf("Expected full confidence with observed context, got %v", est.Confidence)
	}
	if got := ToProbability(est, vocab.Size()); math.Abs(got-0.5) > floatTolerance {
		t.Fatalf("Expected confident estimate to be used as-is, got %v", got)
	}
}

func TestNGramModel_NoZeroProbability(t *testing.T) {
	model := newTestModel(t, 3, 0.5)
	vocab := NewVocabulary()
	model.Learn(vocab.ToIndices([]string{"a", "b", "c"}))
	unseen := vocab.ToIndex("z")

	for _, ctx := range [][]int{nil, {0}, {0, 1}, {2, 2}} {
		est := model.Estimate(ctx, unseen, vocab.Size())
		prob := ToProbability(est, vocab.Size())
		if prob <= 0 || prob > 1 {
			t.Fatalf("Expected probability in (0,1] for context %v, got %v", ctx, prob)
		}
		if est.Confidence < 0 || est.Confidence > 1 {
			t.Fatalf("Confidence out of bounds: %v", est.Confidence)
		}
	}
}

func TestNGramModel_EmptyModel(t *testing.T) {
	model := newTestModel(t, 3, 0.5)

	est := model.Estimate([]int{0, 1}, 2, 4)
	if est.Confidence != 0 {
		t.Fatalf("Expected zero confidence on empty model, got %v", est.Confidence)
	}
	if got := ToProbability(est, 4); math.Abs(got-0.25) > floatTolerance {
		t.Fatalf("Expected uniform 1/4, got %v", got)
	}
	if got := model.ContextPriority([]int{0, 1}); got != 0 {
		t.Fatalf("Expected zero priority on empty model, got %v", got)
	}
	if got := ToProbability(Estimate{}, 0); got != 0 {
		t.Fatalf("Expected 0 for empty vocabulary, got %v", got)
	}
}

func TestNGramModel_ContextPriorityPrefersSpecificContext(t *testing.T) {
	model := newTestModel(t, 3, 0.5)
	vocab := NewVocabulary()
	model.Learn(vocab.ToIndices([]string{"for", "(", "int", "i", "=", "0", ";", "int", "j", "=", "0", ";", "int", "i"}))

	intID, _ := vocab.Lookup("int")
	forID, _ := vocab.Lookup("for")
	parenID, _ := vocab.Lookup("(")
	semiID, _ := vocab.Lookup(";")

	specific := model.ContextPriority([]int{semiID, intID})
	rare := model.ContextPriority([]int{forID, parenID})
	if specific <= rare {
		t.Fatalf("Expected frequent context to outrank rare context: %v <= %v", specific, rare)
	}
}

func TestNGramModel_PredictOrderedByID(t *testing.T) {
	model := newTestModel(t, 2, 0.5)
	vocab := NewVocabulary()
	model.Learn(vocab.ToIndices([]string{"int", "b", "int", "a", "int", "c"}))
	intID, _ := vocab.Lookup("int")

	candidates := model.Predict([]int{intID}, vocab.Size(), func(id int) bool { return id != intID })
	if len(candidates) != 3 {
		t.Fatalf("Expected 3 candidates, got %d", len(candidates))
	}
	for i := 1; i < len(candidates); i++ {
		if candidates[i-1].ID >= candidates[i].ID {
			t.Fatalf("Expected candidates ordered by id, got %+v", candidates)
		}
	}
}
