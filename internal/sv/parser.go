package sv

import (
	"fmt"

	"github.com/robert-at-pretension-io/sv-lint/internal/source"
	"github.com/robert-at-pretension-io/sv-lint/internal/syntax"
)

// ParseOptions controls the parser.
type ParseOptions struct {
	// AllowIncomplete keeps the descriptions that parsed cleanly when a later
	// one fails. The failed module is skipped up to its endmodule.
	AllowIncomplete bool
}

// bailout carries a parse error through panic/recover inside the parser.
type bailout struct{ err *ParseError }

type parser struct {
	file    string
	text    string
	toks    []Token
	pos     int
	pending []Token
	lines   *source.LineMap
}

// ParseText builds a concrete syntax tree from preprocessed text. With
// AllowIncomplete the returned tree is non-nil even when err is set.
func ParseText(file, text string, opts ParseOptions) (*syntax.Node, error) {
	p := &parser{file: file, text: text, toks: Lex(text), lines: source.NewLineMap(text)}
	p.skipTrivia()

	root := syntax.NewNode("SourceText")
	var first *ParseError
	for p.cur().Kind != TokEOF {
		if err := p.guard(func() { root.Append(p.description()) }); err != nil {
			if !opts.AllowIncomplete {
				return nil, err
			}
			if first == nil {
				first = err
			}
			p.resync()
		}
	}
	root.Append(p.flushComments()...)
	root.Finish()
	if first != nil {
		return root, first
	}
	return root, nil
}

func (p *parser) guard(fn func()) (err *ParseError) {
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			err = b.err
		}
	}()
	fn()
	return nil
}

// resync drops tokens up to and including the next endmodule.
func (p *parser) resync() {
	p.pending = nil
	for p.cur().Kind != TokEOF {
		done := p.cur().is("endmodule")
		p.pos++
		p.skipTrivia()
		if done {
			break
		}
	}
	p.pending = nil
}

// ---- token plumbing ----

func (p *parser) skipTrivia() {
	for p.pos < len(p.toks) && p.toks[p.pos].trivia() {
		p.pending = append(p.pending, p.toks[p.pos])
		p.pos++
	}
}

func (p *parser) cur() Token {
	return p.toks[p.pos]
}

// peek returns the n-th significant token after the current one.
func (p *parser) peek(n int) Token {
	i := p.pos
	for n > 0 && i < len(p.toks)-1 {
		i++
		if !p.toks[i].trivia() {
			n--
		}
	}
	return p.toks[i]
}

func (p *parser) flushComments() []*syntax.Node {
	out := make([]*syntax.Node, 0, len(p.pending))
	for _, t := range p.pending {
		out = append(out, syntax.NewLeaf(t.Kind.String(), t.Start, t.End, t.Text))
	}
	p.pending = p.pending[:0]
	return out
}

// take moves the current token, and any comments before it, into n.
func (p *parser) take(n *syntax.Node) Token {
	t := p.cur()
	if t.Kind == TokEOF {
		p.errorf("unexpected end of input")
	}
	n.Append(p.flushComments()...)
	n.Append(syntax.NewLeaf(t.Kind.String(), t.Start, t.End, t.Text))
	p.pos++
	p.skipTrivia()
	return t
}

func (p *parser) expect(n *syntax.Node, text string) {
	if !p.cur().is(text) {
		p.errorf("expected %q, found %s", text, p.describe())
	}
	p.take(n)
}

func (p *parser) accept(n *syntax.Node, texts ...string) bool {
	for _, text := range texts {
		if p.cur().is(text) {
			p.take(n)
			return true
		}
	}
	return false
}

func (p *parser) describe() string {
	t := p.cur()
	if t.Kind == TokEOF {
		return "end of input"
	}
	return fmt.Sprintf("%q", t.Text)
}

func (p *parser) errorf(format string, args ...any) {
	loc := p.lines.Point(p.cur().Start)
	panic(bailout{&ParseError{
		Kind:   ParseFailed,
		File:   p.file,
		Line:   loc.Line,
		Col:    loc.Col,
		Detail: fmt.Sprintf(format, args...),
	}})
}

// ident consumes an identifier and wraps it in the given kinds, innermost
// last: ident("PortIdentifier") yields PortIdentifier{SimpleIdentifier}.
func (p *parser) ident(wrap ...string) *syntax.Node {
	t := p.cur()
	if t.Kind != TokIdent {
		p.errorf("expected identifier, found %s", p.describe())
	}
	kind := "SimpleIdentifier"
	if len(t.Text) > 0 && t.Text[0] == '\\' {
		kind = "EscapedIdentifier"
	}
	n := syntax.NewNode(kind)
	p.take(n)
	for i := len(wrap) - 1; i >= 0; i-- {
		n = syntax.NewNode(wrap[i], n)
	}
	return n
}

func (p *parser) atIdent() bool {
	return p.cur().Kind == TokIdent
}

// ---- lookahead helpers ----

var (
	netTypes = set("wire", "tri", "tri0", "tri1", "triand", "trior", "trireg",
		"wand", "wor", "uwire", "supply0", "supply1")
	vectorTypes  = set("logic", "reg", "bit")
	atomTypes    = set("byte", "shortint", "int", "longint", "integer", "time")
	scalarTypes  = set("real", "shortreal", "realtime", "string", "chandle", "event", "void")
	gateTypes    = set("and", "nand", "or", "nor", "xor", "xnor", "not", "buf")
	assignOps    = set("+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "<<=", ">>=", "<<<=", ">>>=")
	directionKws = set("input", "output", "inout", "ref")
)

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

func (p *parser) atTypeKeyword() bool {
	t := p.cur()
	if t.Kind != TokKeyword {
		return false
	}
	return vectorTypes[t.Text] || atomTypes[t.Text] || scalarTypes[t.Text] ||
		t.Text == "enum" || t.Text == "struct" || t.Text == "union"
}

// skipBrackets returns the index past a run of balanced [...] groups that
// starts at significant offset i.
func (p *parser) skipBrackets(i int) int {
	for p.peek(i).is("[") {
		depth := 0
		for {
			t := p.peek(i)
			if t.Kind == TokEOF {
				return i
			}
			i++
			if t.is("[") {
				depth++
			} else if t.is("]") {
				depth--
				if depth == 0 {
					break
				}
			}
		}
	}
	return i
}

// identTypeAhead reports whether the identifier at the cursor names a type
// that is followed by a declared name.
func (p *parser) identTypeAhead() bool {
	if !p.atIdent() {
		return false
	}
	i := 1
	if p.peek(1).is("::") {
		if p.peek(2).Kind != TokIdent {
			return false
		}
		i = 3
	}
	i = p.skipBrackets(i)
	if p.peek(i).Kind != TokIdent {
		return false
	}
	next := p.peek(i + 1)
	return !next.is("(")
}

func (p *parser) atDeclaration() bool {
	t := p.cur()
	switch {
	case p.atTypeKeyword():
		return true
	case t.is("var"), t.is("const"), t.is("parameter"), t.is("localparam"), t.is("typedef"):
		return true
	case t.is("automatic"), t.is("static"):
		return true
	case netTypes[t.Text] && t.Kind == TokKeyword:
		return true
	}
	return p.identTypeAhead()
}

// hierEnd returns the significant offset just past a hierarchical
// reference starting at the cursor.
func (p *parser) hierEnd() int {
	i := 0
	if p.peek(1).is("::") {
		i = 2
	}
	for {
		if p.peek(i).Kind != TokIdent {
			return i
		}
		i = p.skipBrackets(i + 1)
		if p.peek(i).is(".") && p.peek(i+1).Kind == TokIdent {
			i++
			continue
		}
		return i
	}
}

// ---- descriptions ----

func (p *parser) description() *syntax.Node {
	t := p.cur()
	switch {
	case t.is("module"), t.is("macromodule"):
		return p.module()
	case t.is("package"):
		return p.packageDecl()
	case t.is("import"):
		return p.importDecl()
	case t.is("typedef"):
		return p.typedef()
	case t.is("parameter"):
		return p.paramDecl("ParameterDeclaration", false)
	case t.is("localparam"):
		return p.paramDecl("LocalParameterDeclaration", false)
	case t.is("function"):
		return p.function()
	case t.is("task"):
		return p.task()
	case t.is(";"):
		n := syntax.NewNode("NullItem")
		p.take(n)
		return n
	}
	if p.atDeclaration() {
		return p.dataDecl()
	}
	p.errorf("expected module, found %s", p.describe())
	return nil
}

func (p *parser) module() *syntax.Node {
	header := syntax.NewNode("")
	p.take(header)
	p.accept(header, "automatic", "static")
	header.Append(p.ident("ModuleIdentifier"))
	for p.cur().is("import") {
		header.Append(p.importDecl())
	}
	if p.cur().is("#") {
		header.Append(p.paramPortList())
	}
	ansi := true
	if p.cur().is("(") {
		if p.peek(1).Kind == TokIdent && (p.peek(2).is(",") || p.peek(2).is(")")) {
			ansi = false
			header.Append(p.listOfPorts())
		} else {
			header.Append(p.listOfPortDecls())
		}
	}
	p.expect(header, ";")

	n := syntax.NewNode("ModuleDeclarationAnsi")
	header.Kind = "ModuleAnsiHeader"
	if !ansi {
		n.Kind = "ModuleDeclarationNonansi"
		header.Kind = "ModuleNonansiHeader"
	}
	n.Append(header)
	for !p.cur().is("endmodule") {
		if p.cur().Kind == TokEOF {
			p.errorf("missing endmodule")
		}
		n.Append(p.moduleItem())
	}
	p.take(n)
	p.endLabel(n, "ModuleIdentifier")
	return n
}

func (p *parser) endLabel(n *syntax.Node, kind string) {
	if p.cur().is(":") {
		p.take(n)
		n.Append(p.ident(kind))
	}
}

func (p *parser) packageDecl() *syntax.Node {
	n := syntax.NewNode("PackageDeclaration")
	p.take(n)
	p.accept(n, "automatic", "static")
	n.Append(p.ident("PackageIdentifier"))
	p.expect(n, ";")
	for !p.cur().is("endpackage") {
		if p.cur().Kind == TokEOF {
			p.errorf("missing endpackage")
		}
		n.Append(p.description())
	}
	p.take(n)
	p.endLabel(n, "PackageIdentifier")
	return n
}

func (p *parser) importDecl() *syntax.Node {
	n := syntax.NewNode("PackageImportDeclaration")
	p.take(n)
	for {
		item := syntax.NewNode("PackageImportItem", p.ident("PackageIdentifier"))
		p.expect(item, "::")
		if !p.accept(item, "*") {
			item.Append(p.ident("ImportedIdentifier"))
		}
		n.Append(item)
		if !p.accept(n, ",") {
			break
		}
	}
	p.expect(n, ";")
	return n
}

func (p *parser) paramPortList() *syntax.Node {
	n := syntax.NewNode("ParameterPortList")
	p.take(n)
	p.expect(n, "(")
	for !p.cur().is(")") {
		switch {
		case p.cur().is("parameter"):
			n.Append(p.paramDecl("ParameterDeclaration", true))
		case p.cur().is("localparam"):
			n.Append(p.paramDecl("LocalParameterDeclaration", true))
		default:
			d := syntax.NewNode("ParameterPortDeclaration")
			if p.cur().is("type") {
				p.take(d)
				d.Append(p.typeAssignment())
			} else {
				d.Append(p.optDataType())
				d.Append(syntax.NewNode("ListOfParamAssignments", p.paramAssignment()))
			}
			n.Append(d)
		}
		if !p.accept(n, ",") {
			break
		}
	}
	p.expect(n, ")")
	return n
}

func (p *parser) paramDecl(kind string, inPortList bool) *syntax.Node {
	n := syntax.NewNode(kind)
	p.take(n)
	if p.cur().is("type") {
		p.take(n)
		list := syntax.NewNode("ListOfTypeAssignments", p.typeAssignment())
		for !inPortList && p.accept(list, ",") {
			list.Append(p.typeAssignment())
		}
		n.Append(list)
	} else {
		n.Append(p.optDataType())
		list := syntax.NewNode("ListOfParamAssignments", p.paramAssignment())
		for !inPortList && p.accept(list, ",") {
			list.Append(p.paramAssignment())
		}
		n.Append(list)
	}
	if !inPortList {
		p.expect(n, ";")
	}
	return n
}

func (p *parser) paramAssignment() *syntax.Node {
	n := syntax.NewNode("ParamAssignment", p.ident("ParameterIdentifier"))
	p.dimensions(n, "UnpackedDimension")
	if p.accept(n, "=") {
		n.Append(p.paramValue())
	}
	return n
}

// paramValue parses the right side of a parameter, which may be a type.
func (p *parser) paramValue() *syntax.Node {
	if p.atTypeKeyword() {
		return p.dataType()
	}
	return p.expression()
}

func (p *parser) typeAssignment() *syntax.Node {
	n := syntax.NewNode("TypeAssignment", p.ident("TypeIdentifier"))
	if p.accept(n, "=") {
		n.Append(p.dataTypeOrIdent())
	}
	return n
}

// ---- ports ----

func (p *parser) listOfPorts() *syntax.Node {
	n := syntax.NewNode("ListOfPorts")
	p.take(n)
	for {
		port := syntax.NewNode("Port")
		ref := syntax.NewNode("PortReference", p.ident("PortIdentifier"))
		p.dimensions(ref, "Select")
		port.Append(syntax.NewNode("PortExpression", ref))
		n.Append(port)
		if !p.accept(n, ",") {
			break
		}
	}
	p.expect(n, ")")
	return n
}

func (p *parser) listOfPortDecls() *syntax.Node {
	n := syntax.NewNode("ListOfPortDeclarations")
	p.take(n)
	for !p.cur().is(")") {
		n.Append(p.ansiPort())
		if !p.accept(n, ",") {
			break
		}
	}
	p.expect(n, ")")
	return n
}

func (p *parser) ansiPort() *syntax.Node {
	n := syntax.NewNode("AnsiPortDeclarationNet")
	if directionKws[p.cur().Text] && p.cur().Kind == TokKeyword {
		dir := syntax.NewNode("PortDirection")
		p.take(dir)
		n.Append(dir)
	}
	if p.cur().is(".") {
		n.Kind = "AnsiPortDeclarationParen"
		p.take(n)
		n.Append(p.ident("PortIdentifier"))
		p.expect(n, "(")
		if !p.cur().is(")") {
			n.Append(p.expression())
		}
		p.expect(n, ")")
		return n
	}
	switch {
	case netTypes[p.cur().Text] && p.cur().Kind == TokKeyword:
		p.take(n)
		n.Append(p.optDataType())
	case p.cur().is("var"):
		n.Kind = "AnsiPortDeclarationVariable"
		p.take(n)
		n.Append(p.optDataType())
	case p.atIdent() && p.peek(1).is("."):
		hdr := syntax.NewNode("InterfacePortHeader", p.ident("InterfaceIdentifier"))
		p.take(hdr)
		hdr.Append(p.ident("ModportIdentifier"))
		n.Append(hdr)
	default:
		if p.atTypeKeyword() || p.identTypeAhead() {
			n.Kind = "AnsiPortDeclarationVariable"
		}
		n.Append(p.optDataType())
	}
	n.Append(p.ident("PortIdentifier"))
	p.dimensions(n, "UnpackedDimension")
	if p.accept(n, "=") {
		n.Append(p.expression())
	}
	return n
}

var portDeclKinds = map[string]string{
	"input":  "PortDeclarationInput",
	"output": "PortDeclarationOutput",
	"inout":  "PortDeclarationInout",
	"ref":    "PortDeclarationRef",
}

// portDecl parses a body port declaration such as "input wire [3:0] a, b;".
// In subroutines the names are wrapped as TfPortIdentifier.
func (p *parser) portDecl(nameKind string) *syntax.Node {
	n := syntax.NewNode(portDeclKinds[p.cur().Text])
	if nameKind == "TfPortIdentifier" {
		n.Kind = "TfPortDeclaration"
	}
	dir := syntax.NewNode("PortDirection")
	p.take(dir)
	n.Append(dir)
	if netTypes[p.cur().Text] && p.cur().Kind == TokKeyword {
		p.take(n)
	} else {
		p.accept(n, "var")
	}
	if !(p.atIdent() && !p.identTypeAhead()) {
		n.Append(p.optDataType())
	}
	list := syntax.NewNode("ListOfPortIdentifiers")
	for {
		list.Append(p.ident(nameKind))
		p.dimensions(list, "UnpackedDimension")
		if p.accept(list, "=") {
			list.Append(p.expression())
		}
		if !p.accept(list, ",") {
			break
		}
	}
	n.Append(list)
	p.expect(n, ";")
	return n
}

// ---- types ----

// optDataType parses a data type if one starts at the cursor. Implicit
// types ("signed [7:0]") are returned as ImplicitDataType.
func (p *parser) optDataType() *syntax.Node {
	switch {
	case p.atTypeKeyword():
		return p.dataType()
	case p.cur().is("signed"), p.cur().is("unsigned"), p.cur().is("["):
		n := syntax.NewNode("ImplicitDataType")
		p.accept(n, "signed", "unsigned")
		p.dimensions(n, "PackedDimension")
		return n
	case p.identTypeAhead():
		return p.typeReference()
	}
	return nil
}

func (p *parser) dataTypeOrIdent() *syntax.Node {
	if p.atIdent() {
		return p.typeReference()
	}
	return p.dataType()
}

func (p *parser) typeReference() *syntax.Node {
	n := syntax.NewNode("DataType")
	if p.peek(1).is("::") {
		scope := syntax.NewNode("PackageScope", p.ident())
		p.take(scope)
		n.Append(scope)
	}
	n.Append(p.ident("PsTypeIdentifier"))
	p.dimensions(n, "PackedDimension")
	return n
}

func (p *parser) dataType() *syntax.Node {
	n := syntax.NewNode("DataType")
	t := p.cur()
	switch {
	case vectorTypes[t.Text]:
		p.take(n)
		p.accept(n, "signed", "unsigned")
		p.dimensions(n, "PackedDimension")
	case atomTypes[t.Text]:
		p.take(n)
		p.accept(n, "signed", "unsigned")
	case scalarTypes[t.Text]:
		p.take(n)
	case t.is("enum"):
		p.take(n)
		if p.atTypeKeyword() {
			n.Append(p.dataType())
		} else if p.atIdent() {
			n.Append(p.typeReference())
		}
		p.expect(n, "{")
		for {
			item := syntax.NewNode("EnumNameDeclaration", p.ident("EnumIdentifier"))
			p.dimensions(item, "Select")
			if p.accept(item, "=") {
				item.Append(p.expression())
			}
			n.Append(item)
			if !p.accept(n, ",") {
				break
			}
		}
		p.expect(n, "}")
		p.dimensions(n, "PackedDimension")
	case t.is("struct"), t.is("union"):
		p.take(n)
		if p.accept(n, "packed") {
			p.accept(n, "signed", "unsigned")
		}
		p.expect(n, "{")
		for !p.cur().is("}") {
			m := syntax.NewNode("StructUnionMember", p.dataTypeOrIdent())
			for {
				m.Append(p.ident("MemberIdentifier"))
				p.dimensions(m, "UnpackedDimension")
				if p.accept(m, "=") {
					m.Append(p.expression())
				}
				if !p.accept(m, ",") {
					break
				}
			}
			p.expect(m, ";")
			n.Append(m)
		}
		p.expect(n, "}")
		p.dimensions(n, "PackedDimension")
	default:
		p.errorf("expected data type, found %s", p.describe())
	}
	return n
}

// dimensions appends any [..] groups at the cursor to n.
func (p *parser) dimensions(n *syntax.Node, kind string) {
	for p.cur().is("[") {
		d := syntax.NewNode(kind)
		p.take(d)
		switch {
		case p.cur().is("]"):
		case p.cur().is("$") && p.peek(1).is("]"), p.cur().is("*") && p.peek(1).is("]"):
			p.take(d)
		default:
			d.Append(p.expression())
			if p.accept(d, ":", "+:", "-:") {
				d.Append(p.expression())
			}
		}
		p.expect(d, "]")
		n.Append(d)
	}
}

func (p *parser) typedef() *syntax.Node {
	n := syntax.NewNode("TypeDeclaration")
	p.take(n)
	n.Append(p.dataTypeOrIdent())
	n.Append(p.ident("TypeIdentifier"))
	p.dimensions(n, "UnpackedDimension")
	p.expect(n, ";")
	return n
}

// ---- declarations ----

func (p *parser) netDecl() *syntax.Node {
	n := syntax.NewNode("NetDeclaration")
	p.take(n)
	p.accept(n, "vectored", "scalared")
	n.Append(p.optDataType())
	if p.cur().is("#") {
		n.Append(p.delay("Delay3"))
	}
	list := syntax.NewNode("ListOfNetDeclAssignments")
	for {
		a := syntax.NewNode("NetDeclAssignment", p.ident("NetIdentifier"))
		p.dimensions(a, "UnpackedDimension")
		if p.accept(a, "=") {
			a.Append(p.expression())
		}
		list.Append(a)
		if !p.accept(list, ",") {
			break
		}
	}
	n.Append(list)
	p.expect(n, ";")
	return n
}

func (p *parser) dataDecl() *syntax.Node {
	n := syntax.NewNode("DataDeclaration")
	p.accept(n, "const")
	explicit := p.accept(n, "var")
	p.accept(n, "automatic", "static")
	dt := p.optDataType()
	if dt == nil && !explicit {
		p.errorf("expected data type, found %s", p.describe())
	}
	n.Append(dt)
	list := syntax.NewNode("ListOfVariableDeclAssignments")
	for {
		a := syntax.NewNode("VariableDeclAssignment", p.ident("VariableIdentifier"))
		p.dimensions(a, "UnpackedDimension")
		if p.accept(a, "=") {
			a.Append(p.expression())
		}
		list.Append(a)
		if !p.accept(list, ",") {
			break
		}
	}
	n.Append(list)
	p.expect(n, ";")
	return n
}

func (p *parser) genvarDecl() *syntax.Node {
	n := syntax.NewNode("GenvarDeclaration")
	p.take(n)
	for {
		n.Append(p.ident("GenvarIdentifier"))
		if !p.accept(n, ",") {
			break
		}
	}
	p.expect(n, ";")
	return n
}

// blockItem parses a declaration that may appear inside a block or
// subroutine body.
func (p *parser) blockItem() *syntax.Node {
	switch {
	case p.cur().is("parameter"):
		return p.paramDecl("ParameterDeclaration", false)
	case p.cur().is("localparam"):
		return p.paramDecl("LocalParameterDeclaration", false)
	case p.cur().is("typedef"):
		return p.typedef()
	case netTypes[p.cur().Text] && p.cur().Kind == TokKeyword:
		return p.netDecl()
	}
	return p.dataDecl()
}

// ---- module items ----

func (p *parser) moduleItem() *syntax.Node {
	t := p.cur()
	switch {
	case directionKws[t.Text] && t.Kind == TokKeyword:
		return p.portDecl("PortIdentifier")
	case t.is("parameter"):
		return p.paramDecl("ParameterDeclaration", false)
	case t.is("localparam"):
		return p.paramDecl("LocalParameterDeclaration", false)
	case netTypes[t.Text] && t.Kind == TokKeyword:
		return p.netDecl()
	case t.is("assign"):
		return p.continuousAssign()
	case t.is("always"), t.is("always_comb"), t.is("always_ff"), t.is("always_latch"):
		n := syntax.NewNode("AlwaysConstruct")
		kw := syntax.NewNode("AlwaysKeyword")
		p.take(kw)
		n.Append(kw, p.statement())
		return n
	case t.is("initial"):
		n := syntax.NewNode("InitialConstruct")
		p.take(n)
		n.Append(p.statement())
		return n
	case t.is("final"):
		n := syntax.NewNode("FinalConstruct")
		p.take(n)
		n.Append(p.statement())
		return n
	case t.is("typedef"):
		return p.typedef()
	case t.is("function"):
		return p.function()
	case t.is("task"):
		return p.task()
	case t.is("import"):
		return p.importDecl()
	case t.is("generate"):
		n := syntax.NewNode("GenerateRegion")
		p.take(n)
		for !p.cur().is("endgenerate") {
			if p.cur().Kind == TokEOF {
				p.errorf("missing endgenerate")
			}
			n.Append(p.moduleItem())
		}
		p.take(n)
		return n
	case t.is("genvar"):
		return p.genvarDecl()
	case t.is("for"):
		return p.loopGenerate()
	case t.is("if"):
		return p.ifGenerate()
	case t.is("case"):
		return p.caseGenerate()
	case t.is("begin"):
		return p.generateBlock()
	case t.is(";"):
		n := syntax.NewNode("NullItem")
		p.take(n)
		return n
	case gateTypes[t.Text] && t.Kind == TokKeyword:
		return p.gateInstantiation()
	case p.atDeclaration():
		return p.dataDecl()
	case p.atIdent():
		return p.moduleInstantiation()
	}
	p.errorf("unexpected %s in module body", p.describe())
	return nil
}

func (p *parser) continuousAssign() *syntax.Node {
	n := syntax.NewNode("ContinuousAssign")
	p.take(n)
	if p.cur().is("#") {
		n.Append(p.delay("Delay3"))
	}
	list := syntax.NewNode("ListOfNetAssignments")
	for {
		a := syntax.NewNode("NetAssignment", p.lvalue("NetLvalue", "PsOrHierarchicalNetIdentifier"))
		p.expect(a, "=")
		a.Append(p.expression())
		list.Append(a)
		if !p.accept(list, ",") {
			break
		}
	}
	n.Append(list)
	p.expect(n, ";")
	return n
}

func (p *parser) delay(kind string) *syntax.Node {
	n := syntax.NewNode(kind)
	p.expect(n, "#")
	switch {
	case p.cur().is("("):
		p.take(n)
		for {
			n.Append(p.expression())
			if p.accept(n, ":") {
				n.Append(p.expression())
				p.expect(n, ":")
				n.Append(p.expression())
			}
			if !p.accept(n, ",") {
				break
			}
		}
		p.expect(n, ")")
	case p.cur().Kind == TokNumber:
		p.take(n)
	case p.atIdent():
		n.Append(p.hierarchical("HierarchicalIdentifier"))
	default:
		p.errorf("expected delay value, found %s", p.describe())
	}
	return n
}

func (p *parser) moduleInstantiation() *syntax.Node {
	n := syntax.NewNode("ModuleInstantiation", p.ident("ModuleIdentifier"))
	if p.cur().is("#") {
		pv := syntax.NewNode("ParameterValueAssignment")
		p.take(pv)
		if p.cur().Kind == TokNumber {
			p.take(pv)
		} else {
			p.expect(pv, "(")
			for !p.cur().is(")") {
				if p.cur().is(".") {
					named := syntax.NewNode("NamedParameterAssignment")
					p.take(named)
					named.Append(p.ident("ParameterIdentifier"))
					p.expect(named, "(")
					if !p.cur().is(")") {
						named.Append(p.paramValue())
					}
					p.expect(named, ")")
					pv.Append(named)
				} else {
					pv.Append(syntax.NewNode("OrderedParameterAssignment", p.paramValue()))
				}
				if !p.accept(pv, ",") {
					break
				}
			}
			p.expect(pv, ")")
		}
		n.Append(pv)
	}
	for {
		inst := syntax.NewNode("HierarchicalInstance")
		inst.Append(syntax.NewNode("NameOfInstance", p.ident("InstanceIdentifier")))
		p.dimensions(inst, "UnpackedDimension")
		inst.Append(p.portConnections())
		n.Append(inst)
		if !p.accept(n, ",") {
			break
		}
	}
	p.expect(n, ";")
	return n
}

func (p *parser) portConnections() *syntax.Node {
	n := syntax.NewNode("ListOfPortConnections")
	p.expect(n, "(")
	for !p.cur().is(")") {
		switch {
		case p.cur().is(".*"):
			c := syntax.NewNode("NamedPortConnectionAsterisk")
			p.take(c)
			n.Append(c)
		case p.cur().is("."):
			c := syntax.NewNode("NamedPortConnectionIdentifier")
			p.take(c)
			c.Append(p.ident("PortIdentifier"))
			if p.accept(c, "(") {
				if !p.cur().is(")") {
					c.Append(p.expression())
				}
				p.expect(c, ")")
			}
			n.Append(c)
		case p.cur().is(","):
			n.Append(syntax.NewNode("OrderedPortConnection"))
		default:
			n.Append(syntax.NewNode("OrderedPortConnection", p.expression()))
		}
		if !p.accept(n, ",") {
			break
		}
	}
	p.expect(n, ")")
	return n
}

func (p *parser) gateInstantiation() *syntax.Node {
	n := syntax.NewNode("GateInstantiation")
	p.take(n)
	if p.cur().is("#") {
		n.Append(p.delay("Delay3"))
	}
	for {
		inst := syntax.NewNode("GateInstance")
		if p.atIdent() {
			inst.Append(syntax.NewNode("NameOfInstance", p.ident("InstanceIdentifier")))
		}
		p.expect(inst, "(")
		inst.Append(syntax.NewNode("OutputTerminal", p.lvalue("NetLvalue", "PsOrHierarchicalNetIdentifier")))
		for p.accept(inst, ",") {
			inst.Append(syntax.NewNode("InputTerminal", p.expression()))
		}
		p.expect(inst, ")")
		n.Append(inst)
		if !p.accept(n, ",") {
			break
		}
	}
	p.expect(n, ";")
	return n
}

// ---- generate ----

func (p *parser) generateBlock() *syntax.Node {
	if !p.cur().is("begin") {
		return syntax.NewNode("GenerateBlock", p.moduleItem())
	}
	n := syntax.NewNode("GenerateBlock")
	p.take(n)
	p.endLabel(n, "GenerateBlockIdentifier")
	for !p.cur().is("end") {
		if p.cur().Kind == TokEOF {
			p.errorf("missing end")
		}
		n.Append(p.moduleItem())
	}
	p.take(n)
	p.endLabel(n, "GenerateBlockIdentifier")
	return n
}

func (p *parser) loopGenerate() *syntax.Node {
	n := syntax.NewNode("LoopGenerateConstruct")
	p.take(n)
	p.expect(n, "(")
	init := syntax.NewNode("GenvarInitialization")
	p.accept(init, "genvar")
	init.Append(p.ident("GenvarIdentifier"))
	p.expect(init, "=")
	init.Append(p.expression())
	n.Append(init)
	p.expect(n, ";")
	n.Append(p.expression())
	p.expect(n, ";")
	iter := syntax.NewNode("GenvarIteration")
	if p.accept(iter, "++", "--") {
		iter.Append(p.ident("GenvarIdentifier"))
	} else {
		iter.Append(p.ident("GenvarIdentifier"))
		if !p.accept(iter, "++", "--") {
			if !assignOps[p.cur().Text] && !p.cur().is("=") {
				p.errorf("expected genvar iteration, found %s", p.describe())
			}
			p.take(iter)
			iter.Append(p.expression())
		}
	}
	n.Append(iter)
	p.expect(n, ")")
	n.Append(p.generateBlock())
	return n
}

func (p *parser) ifGenerate() *syntax.Node {
	n := syntax.NewNode("IfGenerateConstruct")
	p.take(n)
	p.expect(n, "(")
	n.Append(p.expression())
	p.expect(n, ")")
	n.Append(p.generateBlock())
	if p.accept(n, "else") {
		n.Append(p.generateBlock())
	}
	return n
}

func (p *parser) caseGenerate() *syntax.Node {
	n := syntax.NewNode("CaseGenerateConstruct")
	p.take(n)
	p.expect(n, "(")
	n.Append(p.expression())
	p.expect(n, ")")
	for !p.cur().is("endcase") {
		item := syntax.NewNode("CaseGenerateItem")
		if p.accept(item, "default") {
			p.accept(item, ":")
		} else {
			for {
				item.Append(p.expression())
				if !p.accept(item, ",") {
					break
				}
			}
			p.expect(item, ":")
		}
		item.Append(p.generateBlock())
		n.Append(item)
	}
	p.take(n)
	return n
}

// ---- subroutines ----

func (p *parser) function() *syntax.Node {
	n := syntax.NewNode("FunctionDeclaration")
	p.take(n)
	p.accept(n, "automatic", "static")
	switch {
	case p.atIdent() && (p.peek(1).is("(") || p.peek(1).is(";")):
	case p.atIdent():
		n.Append(p.typeReference())
	default:
		n.Append(p.optDataType())
	}
	p.subroutineBody(n, "FunctionIdentifier", "endfunction")
	return n
}

func (p *parser) task() *syntax.Node {
	n := syntax.NewNode("TaskDeclaration")
	p.take(n)
	p.accept(n, "automatic", "static")
	p.subroutineBody(n, "TaskIdentifier", "endtask")
	return n
}

func (p *parser) subroutineBody(n *syntax.Node, nameKind, end string) {
	n.Append(p.ident(nameKind))
	if p.cur().is("(") {
		ports := syntax.NewNode("TfPortList")
		p.take(ports)
		for !p.cur().is(")") {
			item := syntax.NewNode("TfPortItem")
			if directionKws[p.cur().Text] && p.cur().Kind == TokKeyword {
				dir := syntax.NewNode("TfPortDirection")
				p.take(dir)
				item.Append(dir)
			}
			p.accept(item, "var")
			if !(p.atIdent() && !p.identTypeAhead()) {
				item.Append(p.optDataType())
			}
			item.Append(p.ident("TfPortIdentifier"))
			p.dimensions(item, "UnpackedDimension")
			if p.accept(item, "=") {
				item.Append(p.expression())
			}
			ports.Append(item)
			if !p.accept(ports, ",") {
				break
			}
		}
		p.expect(ports, ")")
		n.Append(ports)
	}
	p.expect(n, ";")
	for !p.cur().is(end) {
		switch {
		case p.cur().Kind == TokEOF:
			p.errorf("missing %s", end)
		case directionKws[p.cur().Text] && p.cur().Kind == TokKeyword:
			n.Append(p.portDecl("TfPortIdentifier"))
		case p.atDeclaration():
			n.Append(p.blockItem())
		default:
			n.Append(p.statement())
		}
	}
	p.take(n)
	p.endLabel(n, nameKind)
}

// ---- statements ----

func (p *parser) statement() *syntax.Node {
	n := syntax.NewNode("Statement")
	if p.atIdent() && p.peek(1).is(":") && !p.peek(2).is(":") {
		n.Append(p.ident("BlockIdentifier"))
		p.take(n)
	}
	n.Append(p.statementItem())
	return n
}

func (p *parser) statementItem() *syntax.Node {
	t := p.cur()
	switch {
	case t.is(";"):
		n := syntax.NewNode("NullStatement")
		p.take(n)
		return n
	case t.is("begin"):
		return p.seqBlock()
	case t.is("unique"), t.is("unique0"), t.is("priority"):
		switch {
		case p.peek(1).is("if"):
			return p.conditional()
		case p.peek(1).is("case"), p.peek(1).is("casez"), p.peek(1).is("casex"):
			return p.caseStatement()
		}
		p.errorf("expected if or case after %q", t.Text)
	case t.is("if"):
		return p.conditional()
	case t.is("case"), t.is("casez"), t.is("casex"):
		return p.caseStatement()
	case t.is("for"):
		return p.forLoop()
	case t.is("while"), t.is("repeat"):
		n := syntax.NewNode("LoopStatement")
		p.take(n)
		p.expect(n, "(")
		n.Append(p.expression())
		p.expect(n, ")")
		n.Append(p.statement())
		return n
	case t.is("forever"):
		n := syntax.NewNode("LoopStatement")
		p.take(n)
		n.Append(p.statement())
		return n
	case t.is("do"):
		n := syntax.NewNode("LoopStatement")
		p.take(n)
		n.Append(p.statement())
		p.expect(n, "while")
		p.expect(n, "(")
		n.Append(p.expression())
		p.expect(n, ")")
		p.expect(n, ";")
		return n
	case t.is("@"):
		n := syntax.NewNode("ProceduralTimingControlStatement", p.eventControl())
		n.Append(p.statement())
		return n
	case t.is("#"):
		n := syntax.NewNode("ProceduralTimingControlStatement", p.delay("DelayControl"))
		n.Append(p.statement())
		return n
	case t.is("wait"):
		n := syntax.NewNode("WaitStatement")
		p.take(n)
		p.expect(n, "(")
		n.Append(p.expression())
		p.expect(n, ")")
		n.Append(p.statement())
		return n
	case t.is("return"):
		n := syntax.NewNode("JumpStatement")
		p.take(n)
		if !p.cur().is(";") {
			n.Append(p.expression())
		}
		p.expect(n, ";")
		return n
	case t.is("break"), t.is("continue"):
		n := syntax.NewNode("JumpStatement")
		p.take(n)
		p.expect(n, ";")
		return n
	case t.is("disable"):
		n := syntax.NewNode("DisableStatement")
		p.take(n)
		n.Append(p.hierarchical("HierarchicalTaskIdentifier"))
		p.expect(n, ";")
		return n
	case t.Kind == TokSystemIdent:
		n := syntax.NewNode("SubroutineCallStatement", p.systemCall())
		p.expect(n, ";")
		return n
	case t.is("++"), t.is("--"):
		n := syntax.NewNode("IncOrDecExpression")
		p.take(n)
		n.Append(p.lvalue("VariableLvalue", "HierarchicalVariableIdentifier"))
		p.expect(n, ";")
		return n
	case t.is("{"):
		return p.assignmentStatement()
	case p.atIdent():
		after := p.peek(p.hierEnd())
		if after.is("(") || after.is(";") {
			n := syntax.NewNode("SubroutineCallStatement", p.tfCall())
			p.expect(n, ";")
			return n
		}
		return p.assignmentStatement()
	}
	p.errorf("unexpected %s in statement", p.describe())
	return nil
}

func (p *parser) seqBlock() *syntax.Node {
	n := syntax.NewNode("SeqBlock")
	p.take(n)
	p.endLabel(n, "BlockIdentifier")
	for !p.cur().is("end") {
		if p.cur().Kind == TokEOF {
			p.errorf("missing end")
		}
		if p.atDeclaration() {
			n.Append(p.blockItem())
			continue
		}
		n.Append(p.statement())
	}
	p.take(n)
	p.endLabel(n, "BlockIdentifier")
	return n
}

func (p *parser) conditional() *syntax.Node {
	n := syntax.NewNode("ConditionalStatement")
	p.accept(n, "unique", "unique0", "priority")
	p.expect(n, "if")
	p.expect(n, "(")
	n.Append(syntax.NewNode("CondPredicate", p.expression()))
	p.expect(n, ")")
	n.Append(p.statement())
	if p.accept(n, "else") {
		n.Append(p.statement())
	}
	return n
}

func (p *parser) caseStatement() *syntax.Node {
	n := syntax.NewNode("CaseStatement")
	p.accept(n, "unique", "unique0", "priority")
	p.take(n)
	p.expect(n, "(")
	n.Append(p.expression())
	p.expect(n, ")")
	inside := p.accept(n, "inside")
	for !p.cur().is("endcase") {
		if p.cur().Kind == TokEOF {
			p.errorf("missing endcase")
		}
		item := syntax.NewNode("CaseItem")
		if p.accept(item, "default") {
			p.accept(item, ":")
		} else {
			for {
				if inside {
					item.Append(p.valueRange())
				} else {
					item.Append(p.expression())
				}
				if !p.accept(item, ",") {
					break
				}
			}
			p.expect(item, ":")
		}
		item.Append(p.statement())
		n.Append(item)
	}
	p.take(n)
	return n
}

func (p *parser) valueRange() *syntax.Node {
	if !p.cur().is("[") {
		return p.expression()
	}
	n := syntax.NewNode("ValueRange")
	p.take(n)
	n.Append(p.expression())
	p.expect(n, ":")
	n.Append(p.expression())
	p.expect(n, "]")
	return n
}

func (p *parser) forLoop() *syntax.Node {
	n := syntax.NewNode("LoopStatement")
	p.take(n)
	p.expect(n, "(")
	if !p.cur().is(";") {
		if p.atTypeKeyword() || p.cur().is("var") || p.identTypeAhead() {
			decl := syntax.NewNode("ForInitialization")
			for {
				v := syntax.NewNode("ForVariableDeclaration")
				p.accept(v, "var")
				v.Append(p.optDataType())
				v.Append(p.ident("VariableIdentifier"))
				p.expect(v, "=")
				v.Append(p.expression())
				decl.Append(v)
				if !p.accept(decl, ",") {
					break
				}
			}
			n.Append(decl)
		} else {
			list := syntax.NewNode("ListOfVariableAssignments")
			for {
				a := syntax.NewNode("VariableAssignment", p.lvalue("VariableLvalue", "HierarchicalVariableIdentifier"))
				p.expect(a, "=")
				a.Append(p.expression())
				list.Append(a)
				if !p.accept(list, ",") {
					break
				}
			}
			n.Append(list)
		}
	}
	p.expect(n, ";")
	if !p.cur().is(";") {
		n.Append(p.expression())
	}
	p.expect(n, ";")
	for !p.cur().is(")") {
		n.Append(p.forStep())
		if !p.accept(n, ",") {
			break
		}
	}
	p.expect(n, ")")
	n.Append(p.statement())
	return n
}

func (p *parser) forStep() *syntax.Node {
	if p.cur().is("++") || p.cur().is("--") {
		n := syntax.NewNode("IncOrDecExpression")
		p.take(n)
		n.Append(p.lvalue("VariableLvalue", "HierarchicalVariableIdentifier"))
		return n
	}
	lv := p.lvalue("VariableLvalue", "HierarchicalVariableIdentifier")
	switch {
	case p.cur().is("++"), p.cur().is("--"):
		n := syntax.NewNode("IncOrDecExpression", lv)
		p.take(n)
		return n
	case assignOps[p.cur().Text], p.cur().is("="):
		n := syntax.NewNode("OperatorAssignment", lv)
		p.take(n)
		n.Append(p.expression())
		return n
	}
	p.errorf("expected for-loop step, found %s", p.describe())
	return nil
}

func (p *parser) assignmentStatement() *syntax.Node {
	lv := p.lvalue("VariableLvalue", "HierarchicalVariableIdentifier")
	var n *syntax.Node
	switch {
	case p.cur().is("="):
		n = syntax.NewNode("BlockingAssignment", lv)
		p.take(n)
	case p.cur().is("<="):
		n = syntax.NewNode("NonblockingAssignment", lv)
		p.take(n)
	case assignOps[p.cur().Text]:
		n = syntax.NewNode("OperatorAssignment", lv)
		p.take(n)
		n.Append(p.expression())
		p.expect(n, ";")
		return n
	case p.cur().is("++"), p.cur().is("--"):
		n = syntax.NewNode("IncOrDecExpression", lv)
		p.take(n)
		p.expect(n, ";")
		return n
	default:
		p.errorf("expected assignment, found %s", p.describe())
	}
	switch {
	case p.cur().is("#"):
		n.Append(p.delay("DelayControl"))
	case p.cur().is("@"):
		n.Append(p.eventControl())
	}
	n.Append(p.expression())
	p.expect(n, ";")
	return n
}

func (p *parser) eventControl() *syntax.Node {
	n := syntax.NewNode("EventControl")
	p.take(n)
	switch {
	case p.cur().is("*"):
		p.take(n)
	case p.cur().is("(*"):
		p.take(n)
		p.expect(n, ")")
	case p.cur().is("("):
		p.take(n)
		if p.accept(n, "*") {
			p.expect(n, ")")
			return n
		}
		for {
			ev := syntax.NewNode("EventExpression")
			p.accept(ev, "posedge", "negedge", "edge")
			ev.Append(p.expression())
			if p.accept(ev, "iff") {
				ev.Append(p.expression())
			}
			n.Append(ev)
			if !p.accept(n, "or", ",") {
				break
			}
		}
		p.expect(n, ")")
	default:
		n.Append(p.hierarchical("HierarchicalEventIdentifier"))
	}
	return n
}

// lvalue parses an assignment target: a hierarchical name with selects or
// a brace-enclosed list of lvalues.
func (p *parser) lvalue(kind, nameKind string) *syntax.Node {
	n := syntax.NewNode(kind)
	if p.cur().is("{") {
		p.take(n)
		for {
			n.Append(p.lvalue(kind, nameKind))
			if !p.accept(n, ",") {
				break
			}
		}
		p.expect(n, "}")
		return n
	}
	n.Append(p.hierarchical(nameKind))
	return n
}

// hierarchical parses pkg::a.b[i].c[3:0]. The selects live inside the
// returned node; only its direct identifiers form the path.
func (p *parser) hierarchical(kind string) *syntax.Node {
	n := syntax.NewNode(kind)
	if p.peek(1).is("::") {
		scope := syntax.NewNode("PackageScope", p.ident())
		p.take(scope)
		n.Append(scope)
	}
	for {
		n.Append(p.ident())
		p.dimensions(n, "Select")
		if !(p.cur().is(".") && p.peek(1).Kind == TokIdent) {
			return n
		}
		p.take(n)
	}
}

func (p *parser) tfCall() *syntax.Node {
	n := syntax.NewNode("TfCall", p.hierarchical("TfIdentifier"))
	if p.cur().is("(") {
		n.Append(p.arguments())
	}
	return n
}

func (p *parser) systemCall() *syntax.Node {
	n := syntax.NewNode("SystemTfCall")
	p.take(n)
	if p.cur().is("(") {
		n.Append(p.arguments())
	}
	return n
}

func (p *parser) arguments() *syntax.Node {
	n := syntax.NewNode("ListOfArguments")
	p.expect(n, "(")
	for !p.cur().is(")") {
		switch {
		case p.cur().is("."):
			named := syntax.NewNode("NamedArgument")
			p.take(named)
			named.Append(p.ident("ArgumentIdentifier"))
			p.expect(named, "(")
			if !p.cur().is(")") {
				named.Append(p.expression())
			}
			p.expect(named, ")")
			n.Append(named)
		case p.cur().is(","):
		case p.atTypeKeyword():
			n.Append(p.dataType())
		default:
			n.Append(p.expression())
		}
		if !p.accept(n, ",") {
			break
		}
	}
	p.expect(n, ")")
	return n
}

// ---- expressions ----

var binaryPrec = map[string]int{
	"->": 1, "<->": 1,
	"||": 2,
	"&&": 3,
	"|":  4,
	"^":  5, "~^": 5, "^~": 5,
	"&":  6,
	"==": 7, "!=": 7, "===": 7, "!==": 7, "==?": 7, "!=?": 7,
	"<": 8, "<=": 8, ">": 8, ">=": 8, "inside": 8,
	"<<": 9, ">>": 9, "<<<": 9, ">>>": 9,
	"+": 10, "-": 10,
	"*": 11, "/": 11, "%": 11,
	"**": 12,
}

var unaryOps = set("+", "-", "!", "~", "&", "~&", "|", "~|", "^", "~^", "^~", "++", "--")

func (p *parser) expression() *syntax.Node {
	cond := p.binary(1)
	if !p.cur().is("?") {
		return cond
	}
	n := syntax.NewNode("ConditionalExpression", cond)
	p.take(n)
	n.Append(p.expression())
	p.expect(n, ":")
	n.Append(p.expression())
	return n
}

func (p *parser) binary(minPrec int) *syntax.Node {
	lhs := p.unary()
	for {
		t := p.cur()
		if t.Kind != TokOperator && !t.is("inside") {
			return lhs
		}
		prec, ok := binaryPrec[t.Text]
		if !ok || prec < minPrec {
			return lhs
		}
		if t.is("inside") {
			n := syntax.NewNode("InsideExpression", lhs)
			p.take(n)
			p.expect(n, "{")
			for {
				n.Append(p.valueRange())
				if !p.accept(n, ",") {
					break
				}
			}
			p.expect(n, "}")
			lhs = n
			continue
		}
		n := syntax.NewNode("BinaryExpression", lhs)
		p.take(n)
		next := prec + 1
		if t.Text == "**" {
			next = prec
		}
		n.Append(p.binary(next))
		lhs = n
	}
}

func (p *parser) unary() *syntax.Node {
	if unaryOps[p.cur().Text] && p.cur().Kind == TokOperator {
		n := syntax.NewNode("UnaryExpression")
		p.take(n)
		n.Append(p.unary())
		return n
	}
	return p.postfix(p.primary())
}

// postfix handles casts such as int'(x) and 8'(y).
func (p *parser) postfix(prim *syntax.Node) *syntax.Node {
	for p.cur().is("'") && p.peek(1).is("(") {
		n := syntax.NewNode("Cast", syntax.NewNode("CastingType", prim))
		p.take(n)
		p.take(n)
		n.Append(p.expression())
		p.expect(n, ")")
		prim = n
	}
	return prim
}

func (p *parser) primary() *syntax.Node {
	t := p.cur()
	switch {
	case t.Kind == TokNumber:
		n := syntax.NewNode("Number")
		p.take(n)
		return n
	case t.Kind == TokString:
		n := syntax.NewNode("StringLiteral")
		p.take(n)
		return n
	case t.Kind == TokSystemIdent:
		return p.systemCall()
	case t.is("("):
		n := syntax.NewNode("MintypmaxExpression")
		p.take(n)
		n.Append(p.expression())
		if p.accept(n, ":") {
			n.Append(p.expression())
			p.expect(n, ":")
			n.Append(p.expression())
		}
		p.expect(n, ")")
		p.dimensions(n, "Select")
		return n
	case t.is("{"):
		return p.concatenation()
	case t.is("'") && p.peek(1).is("{"):
		return p.assignmentPattern()
	case t.is("$"):
		n := syntax.NewNode("Dollar")
		p.take(n)
		return n
	case t.is("signed"), t.is("unsigned"), t.is("const"):
		n := syntax.NewNode("DataType")
		p.take(n)
		return n
	case p.atTypeKeyword():
		return p.dataType()
	case t.Kind == TokIdent:
		after := p.peek(p.hierEnd())
		if after.is("(") {
			n := syntax.NewNode("FunctionSubroutineCall", p.tfCall())
			p.dimensions(n, "Select")
			return n
		}
		return p.hierarchical("HierarchicalIdentifier")
	}
	p.errorf("unexpected %s in expression", p.describe())
	return nil
}

func (p *parser) concatenation() *syntax.Node {
	n := syntax.NewNode("Concatenation")
	p.take(n)
	if p.cur().is("}") {
		n.Kind = "EmptyUnpackedArrayConcatenation"
		p.take(n)
		return n
	}
	first := p.expression()
	if p.cur().is("{") {
		n.Kind = "MultipleConcatenation"
		n.Append(first, p.concatenation())
		p.expect(n, "}")
		p.dimensions(n, "Select")
		return n
	}
	n.Append(first)
	for p.accept(n, ",") {
		n.Append(p.expression())
	}
	p.expect(n, "}")
	p.dimensions(n, "Select")
	return n
}

func (p *parser) assignmentPattern() *syntax.Node {
	n := syntax.NewNode("AssignmentPattern")
	p.take(n)
	p.take(n)
	for !p.cur().is("}") {
		if p.accept(n, "default") {
			p.expect(n, ":")
			n.Append(p.expression())
		} else {
			e := p.expression()
			if p.cur().is(":") {
				item := syntax.NewNode("StructurePatternKey", e)
				p.take(item)
				item.Append(p.expression())
				n.Append(item)
			} else if p.cur().is("{") {
				n.Append(e, p.concatenation())
			} else {
				n.Append(e)
			}
		}
		if !p.accept(n, ",") {
			break
		}
	}
	p.expect(n, "}")
	return n
}
