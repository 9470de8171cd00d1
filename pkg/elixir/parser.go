// Package elixir turns Elixir source into function records using the
// tree-sitter Elixir grammar.
package elixir

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/alexaandru/go-sitter-forest/elixir"
	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/Oeditus/propwise/pkg/source"
	"github.com/Oeditus/propwise/pkg/syntax"
)

// LanguageName is the enry name of the language handled by this parser.
const LanguageName = "Elixir"

// errorNodeType is the tree-sitter node type of unparseable input.
const errorNodeType = "ERROR"

// Sentinel errors.
var (
	ErrSyntax     = errors.New("elixir: syntax error")
	errNoRootNode = errors.New("elixir: no root node")
	errPoolType   = errors.New("elixir: pool returned unexpected type")
)

// Parser parses Elixir files. It is safe for concurrent use; tree-sitter
// parsers are pooled.
type Parser struct {
	tsParserPool sync.Pool
}

// NewParser creates a parser for the Elixir grammar.
func NewParser() *Parser {
	lang := sitter.NewLanguage(elixir.GetLanguage())

	return &Parser{
		tsParserPool: sync.Pool{
			New: func() any {
				tsParser := sitter.NewParser()
				tsParser.SetLanguage(lang)

				return tsParser
			},
		},
	}
}

// Language returns the language name for this parser.
func (parser *Parser) Language() string {
	return LanguageName
}

// Parse extracts every def/defp clause with a body from content, in source
// order. Files containing syntax errors yield ErrSyntax.
func (parser *Parser) Parse(path string, content []byte) ([]source.Function, error) {
	var functions []source.Function

	err := parser.withRoot(content, func(root sitter.Node) {
		conv := newConverter(content)
		functions = conv.extractFunctions(root, path)
	})
	if err != nil {
		return nil, err
	}

	return functions, nil
}

// ParseExpression converts a code fragment into a syntax tree. Several
// top-level expressions produce a Block.
func (parser *Parser) ParseExpression(code string) (*syntax.Node, error) {
	var result *syntax.Node

	content := []byte(code)

	err := parser.withRoot(content, func(root sitter.Node) {
		conv := newConverter(content)
		result = conv.bodyOf(conv.convertChildren(root))
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (parser *Parser) withRoot(content []byte, visit func(root sitter.Node)) error {
	tsParser, ok := parser.tsParserPool.Get().(*sitter.Parser)
	if !ok {
		return errPoolType
	}

	defer parser.tsParserPool.Put(tsParser)

	tree, err := tsParser.ParseString(context.Background(), nil, content)
	if err != nil {
		return fmt.Errorf("elixir: failed to parse: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.IsNull() {
		return errNoRootNode
	}

	if line, found := findErrorLine(root); found {
		return fmt.Errorf("%w at line %d", ErrSyntax, line)
	}

	visit(root)

	return nil
}

// findErrorLine returns the 1-based line of the first ERROR node.
func findErrorLine(root sitter.Node) (uint, bool) {
	stack := []sitter.Node{root}

	for len(stack) > 0 {
		curr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if curr.Type() == errorNodeType {
			return curr.StartPoint().Row + 1, true
		}

		for idx := range curr.NamedChildCount() {
			stack = append(stack, curr.NamedChild(idx))
		}
	}

	return 0, false
}
