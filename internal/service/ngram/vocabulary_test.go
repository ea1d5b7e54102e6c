package ngram

import (
	"errors"
	"testing"
)

func TestVocabulary_ToIndexIsStable(t *testing.T) {
	v := NewVocabulary()

	first := v.ToIndex("count")
	second := v.ToIndex("count")
	if first != second {
		t.Fatalf("Expected same id for repeated token, got %d and %d", first, second)
	}
	if v.Size() != 1 {
		t.Fatalf("Expected size 1, got %d", v.Size())
	}
}

func TestVocabulary_DenseIDs(t *testing.T) {
	v := NewVocabulary()
	ids := v.ToIndices([]string{"int", "x", "=", "x", ";"})

	expected := []int{0, 1, 2, 1, 3}
	for i := range expected {
		if ids[i] != expected[i] {
			t.Fatalf("Expected ids %v, got %v", expected, ids)
		}
	}
	if v.Size() != 4 {
		t.Fatalf("Expected size 4, got %d", v.Size())
	}

	word, err := v.ToWord(2)
	if err != nil {
		t.Fatalf("Failed to resolve id 2: %v", err)
	}
	if word != "=" {
		t.Fatalf("Expected '=', got '%s'", word)
	}
}

func TestVocabulary_UnknownID(t *testing.T) {
	v := NewVocabulary()
	v.ToIndex("a")

	if _, err := v.ToWord(1); !errors.Is(err, ErrUnknownSymbol) {
		t.Fatalf("Expected ErrUnknownSymbol, got %v", err)
	}
	if _, err := v.ToWord(-1); !errors.Is(err, ErrUnknownSymbol) {
		t.Fatalf("Expected ErrUnknownSymbol for negative id, got %v", err)
	}
}

func TestVocabulary_LookupDoesNotGrow(t *testing.T) {
	v := NewVocabulary()
	v.ToIndex("a")

	if _, ok := v.Lookup("b"); ok {
		t.Fatalf("Expected lookup of unseen token to fail")
	}
	if v.Size() != 1 {
		t.Fatalf("Expected lookup to leave size at 1, got %d", v.Size())
	}
}

func TestVocabulary_FromWords(t *testing.T) {
	original := NewVocabulary()
	original.ToIndices([]string{"for", "(", "int", "i"})

	restored, err := NewVocabularyFromWords(original.Words())
	if err != nil {
		t.Fatalf("Failed to restore vocabulary: %v", err)
	}
	if id, _ := restored.Lookup("int"); id != 2 {
		t.Fatalf("Expected 'int' at id 2, got %d", id)
	}
	if next := restored.ToIndex("j"); next != 4 {
		t.Fatalf("Expected next id 4, got %d", next)
	}

	if _, err := NewVocabularyFromWords([]string{"a", "a"}); err == nil {
		t.Fatalf("Expected error for duplicate words")
	}
}
