package tokenizer

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	golang "github.com/tree-sitter/tree-sitter-go/bindings/go"
)

// GoTokenizer implements tokenization for Go source code
type GoTokenizer struct {
	*treeSitterLexer
}

// NewGoTokenizer creates a new Go tokenizer
func NewGoTokenizer() (*GoTokenizer, error) {
	lexer, err := newTreeSitterLexer(tree_sitter.NewLanguage(golang.Language()), languageSpec{
		name:          "go",
		comments:      kinds("comment"),
		atomic:        kinds("interpreted_string_literal", "raw_string_literal", "rune_literal"),
		isDeclaration: isGoDeclaration,
	})
	if err != nil {
		return nil, err
	}
	return &GoTokenizer{lexer}, nil
}

var goFunctionScopes = kinds("function_declaration", "method_declaration", "func_literal")

func isGoDeclaration(path ancestry) bool {
	// Package-level vars and parameters of bare function types are not locals
	if path.innermost(goFunctionScopes) == "" {
		return false
	}
	parent := path.up(0)
	switch parent.kind {
	case "var_spec", "parameter_declaration", "variadic_parameter_declaration":
		return parent.field == "name"
	case "expression_list":
		// a, b := ... and for k, v := range ...
		grand := path.up(1)
		return grand.field == "left" && (grand.kind == "short_var_declaration" || grand.kind == "range_clause")
	}
	return false
}
