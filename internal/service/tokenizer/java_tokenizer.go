package tokenizer

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	java "github.com/tree-sitter/tree-sitter-java/bindings/go"
)

// JavaTokenizer implements tokenization for Java source code
type JavaTokenizer struct {
	*treeSitterLexer
}

// NewJavaTokenizer creates a new Java tokenizer
func NewJavaTokenizer() (*JavaTokenizer, error) {
	lexer, err := newTreeSitterLexer(tree_sitter.NewLanguage(java.Language()), languageSpec{
		name:          "java",
		comments:      kinds("line_comment", "block_comment", "comment"),
		atomic:        kinds("string_literal", "character_literal", "text_block"),
		isDeclaration: isJavaDeclaration,
	})
	if err != nil {
		return nil, err
	}
	return &JavaTokenizer{lexer}, nil
}

func isJavaDeclaration(path ancestry) bool {
	parent := path.up(0)
	switch parent.kind {
	case "variable_declarator":
		// Fields are declared with variable_declarator too; only locals and varargs count
		grand := path.up(1).kind
		return parent.field == "name" && (grand == "local_variable_declaration" || grand == "spread_parameter")
	case "formal_parameter", "catch_formal_parameter", "enhanced_for_statement", "resource":
		return parent.field == "name"
	case "lambda_expression":
		return parent.field == "parameters"
	case "inferred_parameters":
		return true
	}
	return false
}
