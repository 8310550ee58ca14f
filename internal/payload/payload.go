package payload

import (
	"fmt"

	"github.com/robert-at-pretension-io/sv-lint/internal/cstir"
	"github.com/robert-at-pretension-io/sv-lint/internal/protocol"
	"github.com/robert-at-pretension-io/sv-lint/internal/sv"
	"github.com/robert-at-pretension-io/sv-lint/internal/usage"
)

// ASTSchemaVersion versions the ast payload.
const ASTSchemaVersion = 1

type RawText struct {
	Text string `json:"text"`
}

type PPText struct {
	Text    string      `json:"text"`
	Defines []sv.Define `json:"defines"`
}

// CSTInline carries the full IR.
type CSTInline struct {
	Mode  string    `json:"mode"`
	CSTIR *cstir.IR `json:"cst_ir"`
}

// CSTNone is sent when the file could not be parsed.
type CSTNone struct {
	Mode   string `json:"mode"`
	HasCST bool   `json:"has_cst"`
}

type AST struct {
	SchemaVersion int                 `json:"schema_version"`
	Declarations  []usage.Declaration `json:"declarations"`
	References    []usage.Reference   `json:"references"`
	Assignments   []usage.Assignment  `json:"assignments"`
	Ports         []usage.PortInfo    `json:"ports"`
	SymbolTable   []usage.SymbolUsage `json:"symbol_table"`
	Scopes        []usage.Scope       `json:"scopes"`
	PPText        string              `json:"pp_text"`
}

// For returns the payload of stage. It does no I/O.
func For(stage protocol.Stage, art *Artifacts) (any, error) {
	switch stage {
	case protocol.RawText:
		return RawText{Text: art.RawText}, nil
	case protocol.PpText:
		return PPText{Text: art.PPText, Defines: orEmpty(art.Defines)}, nil
	case protocol.Cst:
		if art.CST == nil {
			return CSTNone{Mode: "none", HasCST: false}, nil
		}
		return CSTInline{Mode: "inline", CSTIR: art.CST}, nil
	case protocol.Ast:
		u := art.Usage
		if u == nil {
			u = &usage.Result{}
		}
		return AST{
			SchemaVersion: ASTSchemaVersion,
			Declarations:  orEmpty(u.Declarations),
			References:    orEmpty(u.References),
			Assignments:   orEmpty(u.Assignments),
			Ports:         orEmpty(u.Ports),
			SymbolTable:   orEmpty(art.Symbols),
			Scopes:        orEmpty(u.Scopes),
			PPText:        art.PPText,
		}, nil
	}
	return nil, fmt.Errorf("payload: unknown stage %q", stage)
}

// Request wraps the stage payload in a CheckFileStage request.
func Request(stage protocol.Stage, art *Artifacts) (protocol.Request, error) {
	p, err := For(stage, art)
	if err != nil {
		return protocol.Request{}, err
	}
	return protocol.NewRequest(stage, art.Path, p), nil
}

// orEmpty keeps nil slices from serializing as null.
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
