package ngram

import "strings"

// IdentifierCategory tags the kind of declaration an identifier token introduces
type IdentifierCategory int

const (
	// CategoryNone marks tokens that do not declare a supported identifier
	CategoryNone IdentifierCategory = iota
	// CategoryLocalVariable marks the name token of a local variable or parameter declaration
	CategoryLocalVariable
)

func (c IdentifierCategory) String() string {
	switch c {
	case CategoryLocalVariable:
		return "local_variable"
	default:
		return "none"
	}
}

// Token represents a single lexical token in source code
type Token struct {
	Type     string             // Grammar node kind (e.g. "identifier", "=", "decimal_integer_literal")
	Value    string             // Original token text
	Line     int                // Line number in source (1-based)
	Column   int                // Column number in source (1-based)
	Offset   int                // Byte offset in source
	Category IdentifierCategory // Declaration category, CategoryNone for everything else
}

// IsIdentifier reports whether the token is a plain identifier
func (t Token) IsIdentifier() bool {
	return t.Type == "identifier"
}

// TokenSequence is a slice of tokens
type TokenSequence []Token

// Values returns the token texts in order
func (s TokenSequence) Values() []string {
	values := make([]string, len(s))
	for i, token := range s {
		values[i] = token.Value
	}
	return values
}

// IdentifierFlags returns, in order, whether each token declares a supported identifier
func (s TokenSequence) IdentifierFlags() []bool {
	flags := make([]bool, len(s))
	for i, token := range s {
		flags[i] = token.Category != CategoryNone
	}
	return flags
}

// OccurrencesOf returns the indices of identifier tokens spelled name.
// Matching is lexical: shadowed variables of the same name are included.
func (s TokenSequence) OccurrencesOf(name string) []int {
	var positions []int
	for i, token := range s {
		if token.IsIdentifier() && token.Value == name {
			positions = append(positions, i)
		}
	}
	return positions
}

// FindIdentifier returns the index of the identifier token covering line:column
func (s TokenSequence) FindIdentifier(line, column int) (int, bool) {
	for i, token := range s {
		if !token.IsIdentifier() || token.Line != line {
			continue
		}
		if column >= token.Column && column < token.Column+len(token.Value) {
			return i, true
		}
	}
	return -1, false
}

// FindDeclaration returns the index of the first declaration of name
func (s TokenSequence) FindDeclaration(name string) (int, bool) {
	for i, token := range s {
		if token.Category != CategoryNone && token.Value == name {
			return i, true
		}
	}
	return -1, false
}

// OccurrenceAt builds the prediction window for the identifier at index:
// up to order-1 preceding tokens as context, the identifier itself as name
func (s TokenSequence) OccurrenceAt(index, order int) Occurrence {
	start := index - order + 1
	if start < 0 {
		start = 0
	}
	context := make(NGram, 0, index-start)
	for _, token := range s[start:index] {
		context = append(context, token.Value)
	}
	return Occurrence{
		Context: context,
		Name:    s[index].Value,
		Line:    s[index].Line,
		Column:  s[index].Column,
	}
}

// Occurrences builds the prediction windows for every index in positions
func (s TokenSequence) Occurrences(positions []int, order int) []Occurrence {
	occurrences := make([]Occurrence, 0, len(positions))
	for _, index := range positions {
		occurrences = append(occurrences, s.OccurrenceAt(index, order))
	}
	return occurrences
}

// NGram represents an n-gram (sequence of tokens)
type NGram []string

// String returns the n-gram as a space-separated string
func (ng NGram) String() string {
	return strings.Join(ng, " ")
}

// Occurrence is one syntactic use of a variable: the tokens preceding it and its name
type Occurrence struct {
	Context NGram  `json:"context"`
	Name    string `json:"name"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// Window returns the context followed by the name
func (o Occurrence) Window() NGram {
	window := make(NGram, 0, len(o.Context)+1)
	window = append(window, o.Context...)
	return append(window, o.Name)
}
