// Package cstir flattens a syntax tree into the CST interchange format:
// an interned token table and a node table addressed by integer ids.
package cstir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"fortio.org/safecast"

	"github.com/robert-at-pretension-io/sv-lint/internal/source"
	"github.com/robert-at-pretension-io/sv-lint/internal/syntax"
)

// SchemaVersion is bumped on incompatible changes to IR.
const SchemaVersion = 1

// Token is one leaf of the tree. ID equals its index in IR.Tokens.
type Token struct {
	ID    int    `json:"id"`
	Kind  int    `json:"kind"`
	Start uint32 `json:"start"`
	End   uint32 `json:"end"`
	Text  string `json:"text"`
}

// Node is one internal node that covers at least one token. Its span is the
// union of the tokens between FirstToken and LastToken.
type Node struct {
	ID         int    `json:"id"`
	Kind       int    `json:"kind"`
	Start      uint32 `json:"start"`
	End        uint32 `json:"end"`
	Parent     *int   `json:"parent,omitempty"`
	FirstToken int    `json:"first_token"`
	LastToken  int    `json:"last_token"`
}

type Include struct {
	Text   bool `json:"text"`
	Tokens bool `json:"tokens"`
}

// IR is the serialized form handed to cst-stage plugins.
type IR struct {
	Schema       int      `json:"schema"`
	Format       string   `json:"format"`
	File         string   `json:"file"`
	Hash         string   `json:"hash"`
	LineStarts   []uint32 `json:"line_starts"`
	Include      Include  `json:"include"`
	SourceText   string   `json:"source_text"`
	PPText       string   `json:"pp_text"`
	KindTable    []string `json:"kind_table"`
	TokKindTable []string `json:"tok_kind_table"`
	Tokens       []Token  `json:"tokens"`
	Nodes        []Node   `json:"nodes"`
}

type interner struct {
	ids   map[string]int
	names []string
}

func newInterner() *interner {
	return &interner{ids: make(map[string]int)}
}

func (t *interner) intern(name string) int {
	if id, ok := t.ids[name]; ok {
		return id
	}
	id := len(t.names)
	t.ids[name] = id
	t.names = append(t.names, name)
	return id
}

// frame is an open internal node. id stays -1 until the first token
// arrives, so nodes that never cover a token are never allocated.
type frame struct {
	kind int
	id   int
}

// Builder implements syntax.Visitor. The token offsets it receives must
// refer to the preprocessed text.
type Builder struct {
	file     string
	text     string
	ppText   string
	kinds    *interner
	tokKinds *interner
	tokens   []Token
	nodes    []Node
	frames   []frame
}

// NewBuilder returns a builder for one file. Kind tables are local to the
// builder, so identical trees always produce identical ids.
func NewBuilder(file, text, ppText string) *Builder {
	return &Builder{
		file:     file,
		text:     text,
		ppText:   ppText,
		kinds:    newInterner(),
		tokKinds: newInterner(),
	}
}

func (b *Builder) Enter(n *syntax.Node) error {
	b.frames = append(b.frames, frame{kind: b.kinds.intern(n.Kind), id: -1})
	return nil
}

func (b *Builder) Leave(*syntax.Node) error {
	if len(b.frames) == 0 {
		return fmt.Errorf("cstir: leave without enter")
	}
	b.frames = b.frames[:len(b.frames)-1]
	return nil
}

func (b *Builder) Token(n *syntax.Node) error {
	start, err := safecast.Conv[uint32](n.Start)
	if err != nil {
		return fmt.Errorf("cstir: token start: %w", err)
	}
	end, err := safecast.Conv[uint32](n.End)
	if err != nil {
		return fmt.Errorf("cstir: token end: %w", err)
	}
	id := len(b.tokens)
	b.tokens = append(b.tokens, Token{
		ID:    id,
		Kind:  b.tokKinds.intern(Classify(n.Text)),
		Start: start,
		End:   end,
		Text:  n.Text,
	})

	// Every open frame contains this token, not only the innermost one.
	for i := range b.frames {
		f := &b.frames[i]
		if f.id < 0 {
			f.id = len(b.nodes)
			rec := Node{ID: f.id, Kind: f.kind, Start: start, FirstToken: id}
			if i > 0 {
				parent := b.frames[i-1].id
				rec.Parent = &parent
			}
			b.nodes = append(b.nodes, rec)
		}
		rec := &b.nodes[f.id]
		rec.End = end
		rec.LastToken = id
	}
	return nil
}

// IR returns the finished tables. It fails if the traversal was not
// balanced.
func (b *Builder) IR() (*IR, error) {
	if len(b.frames) != 0 {
		return nil, fmt.Errorf("cstir: %d nodes left open", len(b.frames))
	}
	starts, err := source.NewLineMap(b.ppText).StartsU32()
	if err != nil {
		return nil, fmt.Errorf("cstir: %w", err)
	}
	sum := sha256.Sum256([]byte(b.ppText))
	ir := &IR{
		Schema:       SchemaVersion,
		Format:       "json",
		File:         b.file,
		Hash:         hex.EncodeToString(sum[:]),
		LineStarts:   starts,
		Include:      Include{Text: true, Tokens: true},
		SourceText:   b.text,
		PPText:       b.ppText,
		KindTable:    append([]string{}, b.kinds.names...),
		TokKindTable: append([]string{}, b.tokKinds.names...),
		Tokens:       b.tokens,
		Nodes:        b.nodes,
	}
	if ir.Tokens == nil {
		ir.Tokens = []Token{}
	}
	if ir.Nodes == nil {
		ir.Nodes = []Node{}
	}
	return ir, nil
}

// Build runs a builder over root in one traversal.
func Build(file, text, ppText string, root *syntax.Node) (*IR, error) {
	b := NewBuilder(file, text, ppText)
	if err := syntax.Visit(root, b); err != nil {
		return nil, err
	}
	return b.IR()
}
