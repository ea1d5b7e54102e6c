package tokenizer

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
)

// JavaScriptTokenizer implements tokenization for JavaScript source code
type JavaScriptTokenizer struct {
	*treeSitterLexer
}

// NewJavaScriptTokenizer creates a new JavaScript tokenizer
func NewJavaScriptTokenizer() (*JavaScriptTokenizer, error) {
	lexer, err := newTreeSitterLexer(tree_sitter.NewLanguage(javascript.Language()), languageSpec{
		name:          "javascript",
		comments:      kinds("comment", "html_comment"),
		atomic:        kinds("string", "template_string", "regex"),
		isDeclaration: isScriptDeclaration,
	})
	if err != nil {
		return nil, err
	}
	return &JavaScriptTokenizer{lexer}, nil
}

// isScriptDeclaration covers the declaration forms JavaScript and TypeScript share
var scriptScopes = kinds(
	"function_declaration", "function_expression", "function", "arrow_function",
	"method_definition", "generator_function_declaration", "generator_function",
	"class_body",
)

func isScriptDeclaration(path ancestry) bool {
	// Module-level bindings and class members are not locals
	switch path.innermost(scriptScopes) {
	case "", "class_body":
		return false
	}
	parent := path.up(0)
	switch parent.kind {
	case "variable_declarator":
		return parent.field == "name"
	case "formal_parameters", "rest_pattern":
		return true
	case "assignment_pattern":
		return parent.field == "left" && path.up(1).kind == "formal_parameters"
	case "catch_clause":
		return parent.field == "parameter"
	case "arrow_function":
		return parent.field == "parameter"
	case "for_in_statement":
		// for (const x of xs); a bare "for (x of xs)" is treated the same
		return parent.field == "left"
	}
	return false
}
