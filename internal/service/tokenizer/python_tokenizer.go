package tokenizer

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

// PythonTokenizer implements tokenization for Python source code
type PythonTokenizer struct {
	*treeSitterLexer
}

// NewPythonTokenizer creates a new Python tokenizer
func NewPythonTokenizer() (*PythonTokenizer, error) {
	lexer, err := newTreeSitterLexer(tree_sitter.NewLanguage(python.Language()), languageSpec{
		name:          "python",
		comments:      kinds("comment"),
		atomic:        kinds("string"),
		isDeclaration: isPythonDeclaration,
	})
	if err != nil {
		return nil, err
	}
	return &PythonTokenizer{lexer}, nil
}

var pythonScopes = kinds("function_definition", "lambda", "class_definition")

func isPythonDeclaration(path ancestry) bool {
	// Module-level names and class attributes are not locals
	switch path.innermost(pythonScopes) {
	case "function_definition", "lambda":
	default:
		return false
	}
	parent := path.up(0)
	switch parent.kind {
	case "assignment", "for_statement", "for_in_clause":
		return parent.field == "left"
	case "pattern_list", "tuple_pattern":
		// a, b = ... and for k, v in ...
		grand := path.up(1)
		return grand.field == "left" && (grand.kind == "assignment" || grand.kind == "for_statement")
	case "parameters", "lambda_parameters", "typed_parameter", "list_splat_pattern", "dictionary_splat_pattern":
		return true
	case "default_parameter", "typed_default_parameter":
		return parent.field == "name"
	}
	return false
}
