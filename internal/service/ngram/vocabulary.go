package ngram

import (
	"errors"
	"fmt"
)

// ErrUnknownSymbol is returned when an id has never been assigned
var ErrUnknownSymbol = errors.New("unknown symbol")

// Vocabulary maps token text to dense integer ids.
// Ids are assigned in first-seen order starting at 0 and are never reused.
// Not safe for concurrent use; the owning runner serializes access.
type Vocabulary struct {
	tokenToID map[string]int
	idToToken []string
}

// NewVocabulary creates an empty vocabulary
func NewVocabulary() *Vocabulary {
	return &Vocabulary{
		tokenToID: make(map[string]int),
	}
}

// NewVocabularyFromWords rebuilds a vocabulary whose id i maps to words[i]
func NewVocabularyFromWords(words []string) (*Vocabulary, error) {
	v := &Vocabulary{
		tokenToID: make(map[string]int, len(words)),
		idToToken: make([]string, 0, len(words)),
	}
	for i, w := range words {
		if _, exists := v.tokenToID[w]; exists {
			return nil, fmt.Errorf("duplicate word %q at id %d", w, i)
		}
		v.tokenToID[w] = i
		v.idToToken = append(v.idToToken, w)
	}
	return v, nil
}

// ToIndex returns the id of token, registering it if needed
func (v *Vocabulary) ToIndex(token string) int {
	if id, exists := v.tokenToID[token]; exists {
		return id
	}

	id := len(v.idToToken)
	v.tokenToID[token] = id
	v.idToToken = append(v.idToToken, token)
	return id
}

// ToIndices applies ToIndex element-wise
func (v *Vocabulary) ToIndices(tokens []string) []int {
	ids := make([]int, len(tokens))
	for i, token := range tokens {
		ids[i] = v.ToIndex(token)
	}
	return ids
}

// Lookup returns the id of token without registering it
func (v *Vocabulary) Lookup(token string) (int, bool) {
	id, ok := v.tokenToID[token]
	return id, ok
}

// ToWord returns the token text for id
func (v *Vocabulary) ToWord(id int) (string, error) {
	if id < 0 || id >= len(v.idToToken) {
		return "", fmt.Errorf("%w: id %d (size %d)", ErrUnknownSymbol, id, len(v.idToToken))
	}
	return v.idToToken[id], nil
}

// Size returns the number of distinct tokens seen
func (v *Vocabulary) Size() int {
	return len(v.idToToken)
}

// Words returns a copy of the id-ordered token list
func (v *Vocabulary) Words() []string {
	words := make([]string, len(v.idToToken))
	copy(words, v.idToToken)
	return words
}
