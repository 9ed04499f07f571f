package codeindex

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// Parser wraps tree-sitter, grounded on the teacher chunk package's Parser
// type, adapted to produce our own parent-linked Node tree instead of a
// flat one.
type Parser struct {
	parser   *sitter.Parser
	registry *Registry
}

// NewParser builds a parser over the default language registry.
func NewParser() *Parser {
	return &Parser{parser: sitter.NewParser(), registry: DefaultRegistry()}
}

// Parse parses source bytes as the named language.
func (p *Parser) Parse(ctx context.Context, source []byte, language string) (*Tree, error) {
	tsLang, ok := p.registry.TreeSitterLanguage(language)
	if !ok {
		return nil, fmt.Errorf("codeindex: unsupported language %q", language)
	}
	p.parser.SetLanguage(tsLang)

	tsTree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("codeindex: parse failed: %w", err)
	}
	if tsTree == nil {
		return nil, fmt.Errorf("codeindex: parse produced a nil tree")
	}

	root := convertNode(tsTree.RootNode(), nil)
	return &Tree{Root: root, Source: source, Language: language}, nil
}

// Close releases the underlying tree-sitter parser.
func (p *Parser) Close() {
	if p.parser != nil {
		p.parser.Close()
	}
}
