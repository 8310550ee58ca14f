// Package syntax is the contract between a language front-end and the IR
// builders: a typed node tree with byte-accurate spans, traversed as a
// stream of enter/leave/token events.
package syntax

import "github.com/robert-at-pretension-io/sv-lint/internal/source"

// Node is one node of a concrete syntax tree. Leaves carry the literal text
// of a lexical unit; internal nodes carry a stable kind name and children.
type Node struct {
	Kind     string
	Start    int
	End      int
	Text     string
	Leaf     bool
	Children []*Node
}

// NewLeaf builds a token node.
func NewLeaf(kind string, start, end int, text string) *Node {
	return &Node{Kind: kind, Start: start, End: end, Text: text, Leaf: true}
}

// NewNode builds an internal node. Its span is filled in by Finish.
func NewNode(kind string, children ...*Node) *Node {
	n := &Node{Kind: kind}
	for _, c := range children {
		if c != nil {
			n.Children = append(n.Children, c)
		}
	}
	return n
}

// Append adds children, skipping nil entries.
func (n *Node) Append(children ...*Node) {
	for _, c := range children {
		if c != nil {
			n.Children = append(n.Children, c)
		}
	}
}

// Span returns the node's byte range.
func (n *Node) Span() source.Span {
	return source.Span{Start: n.Start, End: n.End}
}

// Finish recomputes internal node spans bottom-up from their leaves.
// A node without leaves keeps a zero-width span at its parent's cursor.
func (n *Node) Finish() {
	finish(n, 0)
}

func finish(n *Node, cursor int) (int, int, bool) {
	if n.Leaf {
		return n.Start, n.End, true
	}
	start, end, seen := cursor, cursor, false
	for _, c := range n.Children {
		cs, ce, ok := finish(c, end)
		if !ok {
			continue
		}
		if !seen {
			start = cs
			seen = true
		}
		end = ce
	}
	n.Start, n.End = start, end
	return start, end, seen
}

// Find returns the first node in depth-first order (n included) whose kind
// is one of kinds.
func (n *Node) Find(kinds ...string) *Node {
	if n == nil {
		return nil
	}
	for _, k := range kinds {
		if n.Kind == k {
			return n
		}
	}
	for _, c := range n.Children {
		if found := c.Find(kinds...); found != nil {
			return found
		}
	}
	return nil
}

// FirstLeaf returns the first token under n.
func (n *Node) FirstLeaf() *Node {
	if n == nil {
		return nil
	}
	if n.Leaf {
		return n
	}
	for _, c := range n.Children {
		if l := c.FirstLeaf(); l != nil {
			return l
		}
	}
	return nil
}

// Leaves returns every token under n in source order.
func (n *Node) Leaves() []*Node {
	var out []*Node
	_ = Walk(n, func(ev Event) error {
		if ev.Type == Token {
			out = append(out, ev.Node)
		}
		return nil
	})
	return out
}
