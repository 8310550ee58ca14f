// Package usage collects declarations, references and assignments from a
// syntax tree and classifies how each declared symbol is used.
package usage

import "github.com/robert-at-pretension-io/sv-lint/internal/source"

// DeclKind is the kind of a declared name.
type DeclKind string

const (
	DeclModule  DeclKind = "module"
	DeclParam   DeclKind = "param"
	DeclNet     DeclKind = "net"
	DeclVar     DeclKind = "var"
	DeclTypedef DeclKind = "typedef"
	DeclPort    DeclKind = "port"
)

// RefKind separates reads from writes.
type RefKind string

const (
	Read  RefKind = "read"
	Write RefKind = "write"
)

// AssignOp is the operator of an assignment found in the source text.
type AssignOp string

const (
	BlockingOrCont AssignOp = "blocking_or_cont"
	Nonblocking    AssignOp = "nonblocking"
)

// Class is the usage class of a declared symbol.
type Class string

const (
	Unused    Class = "unused"
	ReadOnly  Class = "read_only"
	WriteOnly Class = "write_only"
	ReadWrite Class = "read_write"
)

type Declaration struct {
	Kind   DeclKind        `json:"kind"`
	Name   string          `json:"name"`
	Module string          `json:"module,omitempty"`
	Loc    source.Location `json:"loc"`
}

type Reference struct {
	Name   string          `json:"name"`
	Module string          `json:"module,omitempty"`
	Kind   RefKind         `json:"kind"`
	Loc    source.Location `json:"loc"`
}

// Assignment is derived from the text around an lvalue. Loc covers the
// right-hand side.
type Assignment struct {
	Module string          `json:"module,omitempty"`
	Op     AssignOp        `json:"op"`
	LHS    string          `json:"lhs"`
	RHS    string          `json:"rhs"`
	Loc    source.Location `json:"loc"`
}

type PortInfo struct {
	Module    string          `json:"module,omitempty"`
	Name      string          `json:"name"`
	Direction string          `json:"direction"`
	Loc       source.Location `json:"loc"`
}

type Scope struct {
	Kind string          `json:"kind"`
	Name string          `json:"name"`
	Loc  source.Location `json:"loc"`
}

// SymbolUsage is one row of the symbol table. ReadCount+WriteCount always
// equals RefCount.
type SymbolUsage struct {
	Module     string          `json:"module,omitempty"`
	Name       string          `json:"name"`
	Kind       DeclKind        `json:"kind"`
	Class      Class           `json:"class"`
	Used       bool            `json:"used"`
	RefCount   int             `json:"ref_count"`
	ReadCount  int             `json:"read_count"`
	WriteCount int             `json:"write_count"`
	Loc        source.Location `json:"loc"`
}

// Result is everything one walk produced.
type Result struct {
	Declarations []Declaration
	References   []Reference
	Assignments  []Assignment
	Ports        []PortInfo
	Scopes       []Scope
}
