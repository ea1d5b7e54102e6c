package tokenizer

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// TypeScriptTokenizer implements tokenization for TypeScript source code
type TypeScriptTokenizer struct {
	*treeSitterLexer
}

// NewTypeScriptTokenizer creates a new TypeScript tokenizer
func NewTypeScriptTokenizer() (*TypeScriptTokenizer, error) {
	return newTypeScriptTokenizer("typescript", tree_sitter.NewLanguage(typescript.LanguageTypescript()))
}

// NewTSXTokenizer creates a tokenizer for TypeScript with JSX
func NewTSXTokenizer() (*TypeScriptTokenizer, error) {
	return newTypeScriptTokenizer("tsx", tree_sitter.NewLanguage(typescript.LanguageTSX()))
}

func newTypeScriptTokenizer(name string, language *tree_sitter.Language) (*TypeScriptTokenizer, error) {
	lexer, err := newTreeSitterLexer(language, languageSpec{
		name:          name,
		comments:      kinds("comment", "html_comment"),
		atomic:        kinds("string", "template_string", "regex"),
		isDeclaration: isTypeScriptDeclaration,
	})
	if err != nil {
		return nil, err
	}
	return &TypeScriptTokenizer{lexer}, nil
}

func isTypeScriptDeclaration(path ancestry) bool {
	parent := path.up(0)
	switch parent.kind {
	case "required_parameter", "optional_parameter":
		return parent.field == "pattern"
	}
	return isScriptDeclaration(path)
}
