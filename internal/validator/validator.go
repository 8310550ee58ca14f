package validator

// The CUE schemas are the contract guard between sv-lint and its plugins.
// A request that does not match is a host bug and a response that does not
// match is a plugin bug; neither is silently passed on.

import (
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed protocol_schema.cue
var protocolSchemaFS embed.FS

//go:embed rules_schema.cue
var rulesSchemaFS embed.FS

// Definitions looked up by the validator.
const (
	RequestDef  = "#Request"
	ResponseDef = "#Response"
	RuleSetDef  = "#RuleSet"
)

// Validator checks JSON documents against the embedded schemas. A cue
// context is not safe for concurrent use, so calls are serialized.
type Validator struct {
	mu       sync.Mutex
	ctx      *cue.Context
	protocol cue.Value
	rules    cue.Value
}

// New compiles the embedded schemas.
func New() (*Validator, error) {
	ctx := cuecontext.New()

	protocol, err := compile(ctx, protocolSchemaFS, "protocol_schema.cue")
	if err != nil {
		return nil, err
	}
	rules, err := compile(ctx, rulesSchemaFS, "rules_schema.cue")
	if err != nil {
		return nil, err
	}
	return &Validator{ctx: ctx, protocol: protocol, rules: rules}, nil
}

func compile(ctx *cue.Context, fs embed.FS, name string) (cue.Value, error) {
	schemaBytes, err := fs.ReadFile(name)
	if err != nil {
		return cue.Value{}, fmt.Errorf("loading embedded schema %s: %w", name, err)
	}
	schema := ctx.CompileBytes(schemaBytes, cue.Filename(name))
	if schema.Err() != nil {
		return cue.Value{}, fmt.Errorf("compiling schema %s: %w", name, schema.Err())
	}
	return schema, nil
}

// ValidateRequestJSON validates a serialized CheckFileStage request.
func (v *Validator) ValidateRequestJSON(jsonBytes []byte) error {
	return v.validateJSON(v.protocol, RequestDef, jsonBytes)
}

// ValidateResponseJSON validates a plugin response. The stage value is not
// compared here.
func (v *Validator) ValidateResponseJSON(jsonBytes []byte) error {
	return v.validateJSON(v.protocol, ResponseDef, jsonBytes)
}

// ValidateRuleSet validates a resolved rule list.
func (v *Validator) ValidateRuleSet(rules any) error {
	jsonBytes, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("marshaling rules to JSON: %w", err)
	}
	return v.validateJSON(v.rules, RuleSetDef, jsonBytes)
}

// ValidationErrors lists every schema error for a protocol document, for
// diagnostics. It returns nil when the document is valid.
func (v *Validator) ValidationErrors(def string, jsonBytes []byte) []string {
	err := v.validateJSON(v.protocol, def, jsonBytes)
	if err == nil {
		return nil
	}
	var out []string
	for _, e := range errors.Errors(err) {
		out = append(out, e.Error())
	}
	return out
}

func (v *Validator) validateJSON(schema cue.Value, path string, jsonBytes []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	dataValue := v.ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return fmt.Errorf("compiling JSON as CUE: %w", dataValue.Err())
	}

	def := schema.LookupPath(cue.ParsePath(path))
	if def.Err() != nil {
		return fmt.Errorf("looking up %s definition: %w", path, def.Err())
	}

	unified := def.Unify(dataValue)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%s schema validation failed: %w", path, err)
	}
	return nil
}
