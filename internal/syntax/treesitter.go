package syntax

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// ParseTreeSitter parses src with a tree-sitter grammar and converts the
// result into a syntax tree. Any grammar shipped for smacker/go-tree-sitter
// can feed the IR builders this way. The sv-lint binary parses with the sv
// front-end; this path drives the builders from real third-party trees in
// tests, since smacker ships no SystemVerilog grammar.
func ParseTreeSitter(ctx context.Context, lang *sitter.Language, src []byte) (*Node, error) {
	if lang == nil {
		return nil, fmt.Errorf("tree-sitter language not set")
	}
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, fmt.Errorf("parser produced no tree")
	}
	return FromTreeSitter(root, src), nil
}

// FromTreeSitter copies a tree-sitter subtree. Childless nodes become
// leaves; zero-width missing nodes inserted by error recovery are dropped.
func FromTreeSitter(n *sitter.Node, src []byte) *Node {
	if n == nil {
		return nil
	}
	count := int(n.ChildCount())
	if count == 0 {
		if n.IsMissing() || n.StartByte() == n.EndByte() {
			return nil
		}
		return NewLeaf(n.Type(), int(n.StartByte()), int(n.EndByte()), n.Content(src))
	}
	out := &Node{Kind: n.Type(), Start: int(n.StartByte()), End: int(n.EndByte())}
	for i := 0; i < count; i++ {
		out.Append(FromTreeSitter(n.Child(i), src))
	}
	return out
}
