package usage

import (
	"github.com/robert-at-pretension-io/sv-lint/internal/source"
	"github.com/robert-at-pretension-io/sv-lint/internal/syntax"
)

// nameWrappers hold identifiers that name a declaration or something other
// than a signal. They never produce reads.
var nameWrappers = map[string]bool{
	"ModuleIdentifier":           true,
	"PackageIdentifier":          true,
	"ImportedIdentifier":         true,
	"ParameterIdentifier":        true,
	"TypeIdentifier":             true,
	"PsTypeIdentifier":           true,
	"PortIdentifier":             true,
	"TfPortIdentifier":           true,
	"NetIdentifier":              true,
	"VariableIdentifier":         true,
	"FunctionIdentifier":         true,
	"TaskIdentifier":             true,
	"TfIdentifier":               true,
	"GenvarIdentifier":           true,
	"BlockIdentifier":            true,
	"GenerateBlockIdentifier":    true,
	"InstanceIdentifier":         true,
	"EnumIdentifier":             true,
	"MemberIdentifier":           true,
	"InterfaceIdentifier":        true,
	"ModportIdentifier":          true,
	"ArgumentIdentifier":         true,
	"PackageScope":               true,
	"HierarchicalTaskIdentifier": true,
}

// hierarchical kinds: only the first direct identifier names the signal,
// the rest are member or instance path components.
var hierarchical = map[string]bool{
	"HierarchicalIdentifier":         true,
	"HierarchicalEventIdentifier":    true,
	"HierarchicalVariableIdentifier": true,
	"PsOrHierarchicalNetIdentifier":  true,
}

var portDirections = map[string]string{
	"PortDeclarationInput":  "input",
	"PortDeclarationOutput": "output",
	"PortDeclarationInout":  "inout",
	"PortDeclarationRef":    "ref",
}

type openNode struct {
	kind      string
	identSeen bool
}

// Locator turns a span of the collected text into a reported location.
// A *source.LineMap reports positions in the text itself.
type Locator interface {
	ToLines(sp source.Span) source.Location
}

// Collector implements syntax.Visitor. Offsets in the tree must refer to
// the text given to NewCollector.
type Collector struct {
	text  string
	lines Locator
	res   Result

	stack   []openNode
	scopes  []string
	lastDir string
	lvDepth int

	readOffsets  map[int]bool
	writeOffsets map[int]bool
	declOffsets  map[int]bool
}

// NewCollector collects over text. Locations come from loc, or from the
// text's own line map when loc is nil.
func NewCollector(text string, loc Locator) *Collector {
	if loc == nil {
		loc = source.NewLineMap(text)
	}
	return &Collector{
		text:         text,
		lines:        loc,
		lastDir:      "inout",
		readOffsets:  make(map[int]bool),
		writeOffsets: make(map[int]bool),
		declOffsets:  make(map[int]bool),
	}
}

// Collect walks root once and returns the collected tables.
func Collect(text string, root *syntax.Node) (*Result, error) {
	c := NewCollector(text, nil)
	if err := syntax.Visit(root, c); err != nil {
		return nil, err
	}
	return c.Result(), nil
}

func (c *Collector) Result() *Result {
	res := c.res
	return &res
}

func (c *Collector) module() string {
	if len(c.scopes) == 0 {
		return ""
	}
	return c.scopes[len(c.scopes)-1]
}

func (c *Collector) loc(n *syntax.Node) source.Location {
	return c.lines.ToLines(n.Span())
}

func (c *Collector) Enter(n *syntax.Node) error {
	parent := ""
	if len(c.stack) > 0 {
		parent = c.stack[len(c.stack)-1].kind
	}
	c.stack = append(c.stack, openNode{kind: n.Kind})

	switch n.Kind {
	case "ModuleDeclarationAnsi", "ModuleDeclarationNonansi":
		id := identOf(n.Find("ModuleIdentifier"))
		if id == nil {
			return nil
		}
		name := id.Text()
		c.res.Declarations = append(c.res.Declarations, Declaration{Kind: DeclModule, Name: name, Module: c.module(), Loc: c.loc(id.node)})
		c.res.Scopes = append(c.res.Scopes, Scope{Kind: "module", Name: name, Loc: c.loc(id.node)})
		c.declOffsets[id.node.Start] = true
		c.scopes = append(c.scopes, name)
		c.lastDir = "inout"
	case "ParamAssignment":
		c.declare(n, childOfKind(n, "ParameterIdentifier"), DeclParam, false)
	case "NetDeclAssignment":
		c.declare(n, childOfKind(n, "NetIdentifier"), DeclNet, true)
	case "VariableDeclAssignment":
		c.declare(n, childOfKind(n, "VariableIdentifier"), DeclVar, true)
	case "TypeDeclaration":
		c.declare(n, childOfKind(n, "TypeIdentifier"), DeclTypedef, false)
	case "AnsiPortDeclarationNet", "AnsiPortDeclarationVariable", "AnsiPortDeclarationParen":
		if dir := childOfKind(n, "PortDirection"); dir != nil {
			if leaf := dir.FirstLeaf(); leaf != nil {
				c.lastDir = leaf.Text
			}
		}
		c.port(childOfKind(n, "PortIdentifier"), c.lastDir)
	case "PortDeclarationInput", "PortDeclarationOutput", "PortDeclarationInout", "PortDeclarationRef":
		dir := portDirections[n.Kind]
		if list := childOfKind(n, "ListOfPortIdentifiers"); list != nil {
			for _, ch := range list.Children {
				if ch.Kind == "PortIdentifier" {
					c.port(ch, dir)
				}
			}
		}
	case "NamedPortConnectionIdentifier":
		if !hasLeaf(n, "(") {
			if id := identOf(childOfKind(n, "PortIdentifier")); id != nil {
				c.read(id)
			}
		}
	case "NetLvalue", "VariableLvalue":
		c.lvDepth++
		var target *ident
		// {a, b} = ... writes through the nested lvalues.
		if len(n.Children) > 0 && !(n.Children[0].Leaf && n.Children[0].Text == "{") {
			if target = identOf(n); target != nil {
				c.write(target)
			}
		}
		if c.lvDepth == 1 {
			c.assignmentAt(n.Start, target)
		}
	case "SimpleIdentifier", "EscapedIdentifier":
		c.identifier(n, parent)
	}
	return nil
}

func (c *Collector) Leave(n *syntax.Node) error {
	c.stack = c.stack[:len(c.stack)-1]
	switch n.Kind {
	case "ModuleDeclarationAnsi", "ModuleDeclarationNonansi":
		if len(c.scopes) > 0 {
			c.scopes = c.scopes[:len(c.scopes)-1]
		}
	case "NetLvalue", "VariableLvalue":
		c.lvDepth--
	}
	return nil
}

func (c *Collector) Token(*syntax.Node) error { return nil }

// identifier turns a bare identifier into a read unless its context says it
// is a name, a member path component or something already recorded.
func (c *Collector) identifier(n *syntax.Node, parent string) {
	if nameWrappers[parent] {
		return
	}
	if hierarchical[parent] {
		top := &c.stack[len(c.stack)-2]
		if top.identSeen {
			return
		}
		top.identSeen = true
	}
	if id := identOf(n); id != nil {
		c.read(id)
	}
}

func (c *Collector) declare(n *syntax.Node, wrapper *syntax.Node, kind DeclKind, assignable bool) {
	id := identOf(wrapper)
	if id == nil {
		return
	}
	name, module := id.Text(), c.module()
	if assignable && hasLeaf(n, "=") {
		if scan, ok := scanAssignment(c.text, id.node.Start); ok {
			c.res.References = append(c.res.References, Reference{Name: name, Module: module, Kind: Write, Loc: c.loc(id.node)})
			c.writeOffsets[id.node.Start] = true
			c.addAssignment(scan)
		}
	}
	c.res.Declarations = append(c.res.Declarations, Declaration{Kind: kind, Name: name, Module: module, Loc: c.loc(id.node)})
	c.declOffsets[id.node.Start] = true
}

func (c *Collector) port(wrapper *syntax.Node, dir string) {
	id := identOf(wrapper)
	if id == nil {
		return
	}
	name, module, loc := id.Text(), c.module(), c.loc(id.node)
	c.res.Ports = append(c.res.Ports, PortInfo{Module: module, Name: name, Direction: dir, Loc: loc})
	c.res.Declarations = append(c.res.Declarations, Declaration{Kind: DeclPort, Name: name, Module: module, Loc: loc})
	c.declOffsets[id.node.Start] = true
}

func (c *Collector) write(id *ident) {
	off := id.node.Start
	if c.writeOffsets[off] {
		return
	}
	c.res.References = append(c.res.References, Reference{Name: id.Text(), Module: c.module(), Kind: Write, Loc: c.loc(id.node)})
	c.writeOffsets[off] = true
}

func (c *Collector) read(id *ident) {
	off := id.node.Start
	if c.writeOffsets[off] || c.declOffsets[off] || c.readOffsets[off] {
		return
	}
	c.res.References = append(c.res.References, Reference{Name: id.Text(), Module: c.module(), Kind: Read, Loc: c.loc(id.node)})
	c.readOffsets[off] = true
}

func (c *Collector) assignmentAt(start int, target *ident) {
	scan, ok := scanAssignment(c.text, start)
	if !ok {
		return
	}
	if scan.compound && target != nil && !c.readOffsets[target.node.Start] {
		c.res.References = append(c.res.References, Reference{Name: target.Text(), Module: c.module(), Kind: Read, Loc: c.loc(target.node)})
		c.readOffsets[target.node.Start] = true
	}
	c.addAssignment(scan)
}

func (c *Collector) addAssignment(scan assignScan) {
	c.res.Assignments = append(c.res.Assignments, Assignment{
		Module: c.module(),
		Op:     scan.op,
		LHS:    scan.lhs,
		RHS:    scan.rhs,
		Loc:    c.lines.ToLines(source.Span{Start: scan.rhsStart, End: scan.rhsEnd}),
	})
}

// ident is a resolved identifier: the SimpleIdentifier or EscapedIdentifier
// node and its token.
type ident struct {
	node *syntax.Node
}

func (i *ident) Text() string {
	if leaf := i.node.FirstLeaf(); leaf != nil {
		return leaf.Text
	}
	return ""
}

// identOf finds the identifier that names n. Package scopes and selects are
// skipped so that pkg::x resolves to x and a[i] to a.
func identOf(n *syntax.Node) *ident {
	if n == nil || n.Leaf {
		return nil
	}
	if n.Kind == "SimpleIdentifier" || n.Kind == "EscapedIdentifier" {
		return &ident{node: n}
	}
	for _, ch := range n.Children {
		switch ch.Kind {
		case "PackageScope", "Select", "PackedDimension", "UnpackedDimension":
			continue
		}
		if id := identOf(ch); id != nil {
			return id
		}
	}
	return nil
}

func childOfKind(n *syntax.Node, kind string) *syntax.Node {
	for _, ch := range n.Children {
		if ch.Kind == kind {
			return ch
		}
	}
	return nil
}

func hasLeaf(n *syntax.Node, text string) bool {
	for _, ch := range n.Children {
		if ch.Leaf && ch.Text == text {
			return true
		}
	}
	return false
}
