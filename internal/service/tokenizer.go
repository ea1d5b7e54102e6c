package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	model "idnames-go/internal/model/ngram"
	"idnames-go/internal/service/tokenizer"
)

// DefaultMaxFileChars bounds how much of a file is lexed
const DefaultMaxFileChars = 65536

// ErrUnsupportedLanguage is returned when no tokenizer is registered for a language or file
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Tokenizer defines the interface for language-specific tokenization
type Tokenizer interface {
	// Tokenize converts source code into a sequence of tokens
	Tokenize(ctx context.Context, source []byte) (model.TokenSequence, error)

	// Language returns the language this tokenizer handles
	Language() string
}

// TokenizerRegistry manages tokenizers for different languages
type TokenizerRegistry struct {
	tokenizers map[string]Tokenizer
	extensions map[string]string // file extension -> language
}

// NewTokenizerRegistry creates a new tokenizer registry
func NewTokenizerRegistry() *TokenizerRegistry {
	return &TokenizerRegistry{
		tokenizers: make(map[string]Tokenizer),
		extensions: make(map[string]string),
	}
}

// NewDefaultTokenizerRegistry registers the Java, Go, Python, JavaScript and TypeScript tokenizers
func NewDefaultTokenizerRegistry() (*TokenizerRegistry, error) {
	tr := NewTokenizerRegistry()

	javaTokenizer, err := tokenizer.NewJavaTokenizer()
	if err != nil {
		return nil, err
	}
	tr.Register("java", javaTokenizer, []string{".java"})

	goTokenizer, err := tokenizer.NewGoTokenizer()
	if err != nil {
		return nil, err
	}
	tr.Register("go", goTokenizer, []string{".go"})

	pythonTokenizer, err := tokenizer.NewPythonTokenizer()
	if err != nil {
		return nil, err
	}
	tr.Register("python", pythonTokenizer, []string{".py"})

	jsTokenizer, err := tokenizer.NewJavaScriptTokenizer()
	if err != nil {
		return nil, err
	}
	tr.Register("javascript", jsTokenizer, []string{".js", ".jsx", ".mjs", ".cjs"})

	tsTokenizer, err := tokenizer.NewTypeScriptTokenizer()
	if err != nil {
		return nil, err
	}
	tr.Register("typescript", tsTokenizer, []string{".ts"})

	tsxTokenizer, err := tokenizer.NewTSXTokenizer()
	if err != nil {
		return nil, err
	}
	tr.Register("tsx", tsxTokenizer, []string{".tsx"})

	return tr, nil
}

// Register adds a tokenizer for a specific language
func (tr *TokenizerRegistry) Register(language string, tokenizer Tokenizer, extensions []string) {
	tr.tokenizers[language] = tokenizer
	for _, ext := range extensions {
		tr.extensions[strings.ToLower(ext)] = language
	}
}

// GetTokenizer returns the tokenizer for a given language
func (tr *TokenizerRegistry) GetTokenizer(language string) (Tokenizer, bool) {
	tokenizer, ok := tr.tokenizers[language]
	return tokenizer, ok
}

// GetTokenizerByExtension returns the tokenizer for a given file extension
func (tr *TokenizerRegistry) GetTokenizerByExtension(extension string) (Tokenizer, bool) {
	language, ok := tr.extensions[strings.ToLower(extension)]
	if !ok {
		return nil, false
	}
	return tr.GetTokenizer(language)
}

// DetectLanguage returns the language registered for path's extension
func (tr *TokenizerRegistry) DetectLanguage(path string) (string, bool) {
	language, ok := tr.extensions[strings.ToLower(filepath.Ext(path))]
	return language, ok
}

// SupportedLanguages returns a sorted list of all supported languages
func (tr *TokenizerRegistry) SupportedLanguages() []string {
	languages := make([]string, 0, len(tr.tokenizers))
	for lang := range tr.tokenizers {
		languages = append(languages, lang)
	}
	sort.Strings(languages)
	return languages
}

// Lex tokenizes source with the tokenizer for language and drops every token that
// starts at or beyond the first maxChars characters. A non-positive maxChars uses
// DefaultMaxFileChars.
func (tr *TokenizerRegistry) Lex(ctx context.Context, language string, source []byte, maxChars int) (model.TokenSequence, error) {
	tokenizer, ok := tr.GetTokenizer(language)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxFileChars
	}

	tokens, err := tokenizer.Tokenize(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to tokenize %s source: %w", language, err)
	}

	limit := byteOffsetOfRune(source, maxChars)
	for i, token := range tokens {
		if token.Offset >= limit {
			return tokens[:i], nil
		}
	}
	return tokens, nil
}

// byteOffsetOfRune returns the byte offset of the n-th character, or len(source)
// when source has fewer characters
func byteOffsetOfRune(source []byte, n int) int {
	count := 0
	for offset := range string(source) {
		if count == n {
			return offset
		}
		count++
	}
	return len(source)
}
