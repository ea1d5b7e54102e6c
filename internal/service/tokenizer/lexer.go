package tokenizer

import (
	"context"
	"fmt"
	"strings"
	"sync"

	model "idnames-go/internal/model/ngram"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// frame records one step of the path from the root to a token: the kind of the
// enclosing node and the field under which the step was taken ("" if none)
type frame struct {
	kind  string
	field string
}

// ancestry is the path to a token, outermost first
type ancestry []frame

// up returns the frame n levels above the token; 0 is the direct parent
func (a ancestry) up(n int) frame {
	i := len(a) - 1 - n
	if i < 0 {
		return frame{}
	}
	return a[i]
}

// innermost returns the kind of the nearest enclosing node whose kind is in set, or ""
func (a ancestry) innermost(set map[string]bool) string {
	for i := len(a) - 1; i >= 0; i-- {
		if set[a[i].kind] {
			return a[i].kind
		}
	}
	return ""
}

// languageSpec describes how to lex one tree-sitter grammar
type languageSpec struct {
	name     string
	comments map[string]bool // Node kinds dropped with their subtree
	atomic   map[string]bool // Node kinds emitted as a single token (string literals)

	// isDeclaration reports whether an identifier at the end of path names a
	// local variable or parameter being declared
	isDeclaration func(path ancestry) bool
}

func kinds(names ...string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[name] = true
	}
	return set
}

// treeSitterLexer turns a parse tree into the leaf token stream the model trains on
type treeSitterLexer struct {
	parser *tree_sitter.Parser
	spec   languageSpec
	mu     sync.Mutex // Protects parser (tree-sitter parsers are not thread-safe)
}

func newTreeSitterLexer(language *tree_sitter.Language, spec languageSpec) (*treeSitterLexer, error) {
	parser := tree_sitter.NewParser()
	if err := parser.SetLanguage(language); err != nil {
		parser.Close()
		return nil, fmt.Errorf("failed to set %s language: %w", spec.name, err)
	}
	return &treeSitterLexer{
		parser: parser,
		spec:   spec,
	}, nil
}

// Tokenize parses source and returns its non-blank, non-comment leaf tokens in order.
// Identifiers that declare a local variable carry CategoryLocalVariable.
func (l *treeSitterLexer) Tokenize(ctx context.Context, source []byte) (model.TokenSequence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tree := l.parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse %s source", l.spec.name)
	}
	defer tree.Close()

	var tokens model.TokenSequence
	l.traverseNode(tree.RootNode(), nil, source, &tokens)
	return tokens, nil
}

func (l *treeSitterLexer) traverseNode(node *tree_sitter.Node, path ancestry, source []byte, tokens *model.TokenSequence) {
	if node == nil {
		return
	}

	nodeType := node.Kind()
	if l.spec.comments[nodeType] {
		return
	}

	if node.ChildCount() == 0 || l.spec.atomic[nodeType] {
		content := node.Utf8Text(source)
		if strings.TrimSpace(content) == "" {
			return
		}

		startPoint := node.StartPosition()
		token := model.Token{
			Type:   nodeType,
			Value:  content,
			Line:   int(startPoint.Row) + 1,
			Column: int(startPoint.Column) + 1,
			Offset: int(node.StartByte()),
		}
		if token.IsIdentifier() && l.spec.isDeclaration(path) {
			token.Category = model.CategoryLocalVariable
		}
		*tokens = append(*tokens, token)
		return
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		step := frame{kind: nodeType, field: node.FieldNameForChild(uint32(i))}
		l.traverseNode(node.Child(i), append(path, step), source, tokens)
	}
}

// Language returns the language this tokenizer handles
func (l *treeSitterLexer) Language() string {
	return l.spec.name
}

// Close releases the parser
func (l *treeSitterLexer) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.parser.Close()
}
