package syntax

import (
	"strings"
	"testing"
)

func sampleTree() *Node {
	//  Root
	//   ├─ A: "x" "="
	//   ├─ Empty
	//   └─ B: "y"
	root := NewNode("Root",
		NewNode("A", NewLeaf("tok", 0, 1, "x"), NewLeaf("tok", 2, 3, "=")),
		NewNode("Empty"),
		NewNode("B", NewLeaf("tok", 4, 5, "y")),
	)
	root.Finish()
	return root
}

func TestWalkOrder(t *testing.T) {
	var trace []string
	err := Walk(sampleTree(), func(ev Event) error {
		switch ev.Type {
		case Token:
			trace = append(trace, "tok:"+ev.Node.Text)
		default:
			trace = append(trace, ev.Type.String()+":"+ev.Node.Kind)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	got := strings.Join(trace, " ")
	want := "enter:Root enter:A tok:x tok:= leave:A enter:Empty leave:Empty enter:B tok:y leave:B leave:Root"
	if got != want {
		t.Fatalf("trace:\n got %s\nwant %s", got, want)
	}
}

func TestWalkSkipChildren(t *testing.T) {
	var tokens int
	err := Walk(sampleTree(), func(ev Event) error {
		if ev.Type == Enter && ev.Node.Kind == "A" {
			return SkipChildren
		}
		if ev.Type == Token {
			tokens++
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if tokens != 1 {
		t.Fatalf("tokens = %d, want 1", tokens)
	}
}

func TestFinishComputesSpans(t *testing.T) {
	root := sampleTree()
	if root.Start != 0 || root.End != 5 {
		t.Fatalf("root span = %d..%d", root.Start, root.End)
	}
	a := root.Find("A")
	if a.Start != 0 || a.End != 3 {
		t.Fatalf("A span = %d..%d", a.Start, a.End)
	}
	empty := root.Find("Empty")
	if empty.Start != empty.End {
		t.Fatalf("empty node should be zero width, got %d..%d", empty.Start, empty.End)
	}
}

func TestFindAndLeaves(t *testing.T) {
	root := sampleTree()
	if root.Find("B").FirstLeaf().Text != "y" {
		t.Fatalf("FirstLeaf of B")
	}
	if root.Find("Missing") != nil {
		t.Fatalf("Find should return nil for unknown kind")
	}
	leaves := root.Leaves()
	if len(leaves) != 3 {
		t.Fatalf("leaves = %d", len(leaves))
	}
}

type countingVisitor struct {
	enters, leaves, tokens int
}

func (c *countingVisitor) Enter(*Node) error { c.enters++; return nil }
func (c *countingVisitor) Leave(*Node) error { c.leaves++; return nil }
func (c *countingVisitor) Token(*Node) error { c.tokens++; return nil }

func TestVisitSharesTraversal(t *testing.T) {
	a, b := &countingVisitor{}, &countingVisitor{}
	if err := Visit(sampleTree(), a, b); err != nil {
		t.Fatalf("Visit: %v", err)
	}
	for _, v := range []*countingVisitor{a, b} {
		if v.enters != 4 || v.leaves != 4 || v.tokens != 3 {
			t.Fatalf("counts = %+v", *v)
		}
	}
}
