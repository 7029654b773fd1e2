// Package extract holds the per-language extractor packages and the
// shared types they all consume: the Tree wrapper, the FileInfo record,
// and the Signals struct passed down from the Framework Detector (spec
// §4.2, §9 "Tree wrapping vs raw nodes").
package extract

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
)

// Tree is the tagged wrapper around a parsed syntax tree. Extractors
// receive a Tree, never a raw *sitter.Node, so parser internals never
// leak into extractor code (spec §4.2, §9). Ground: termfx-morfx's
// providers pass a *sitter.Node directly; this wrapper generalizes that
// into the spec's mandated accessor shape.
type Tree struct {
	root    *sitter.Node
	content []byte
	lang    string
}

// NewTree constructs a Tree from a parsed root node, the source bytes
// it was parsed from, and the language tag that produced it.
func NewTree(root *sitter.Node, content []byte, lang string) Tree {
	return Tree{root: root, content: content, lang: lang}
}

// Root returns the root AST node. This is the only documented accessor
// extractors use to reach parser state.
func (t Tree) Root() *sitter.Node { return t.root }

// Content returns the original source bytes the tree was parsed from,
// needed to slice out identifier and literal text by byte range.
func (t Tree) Content() []byte { return t.content }

// Lang returns the language tag ("go", "python", "javascript",
// "typescript") this tree was parsed under.
func (t Tree) Lang() string { return t.lang }

// Text returns the source slice covered by n.
func (t Tree) Text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(t.content)
}

// Parse runs a tree-sitter parser for the given language over content
// and returns the wrapped Tree. Kept here (rather than per-language) so
// every caller goes through one parsing entry point.
func Parse(ctx context.Context, lang *sitter.Language, langTag string, content []byte) (Tree, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	root, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return Tree{}, err
	}
	return NewTree(root.RootNode(), content, langTag), nil
}
