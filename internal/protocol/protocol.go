// Package protocol defines the JSON messages exchanged with plugin processes.
package protocol

import (
	"fmt"

	"github.com/robert-at-pretension-io/sv-lint/internal/source"
)

// Message type tags.
const (
	RequestType  = "CheckFileStage"
	ResponseType = "ViolationsStage"
)

// Stage names one source representation handed to plugins.
type Stage string

const (
	RawText Stage = "raw_text"
	PpText  Stage = "pp_text"
	Cst     Stage = "cst"
	Ast     Stage = "ast"
)

// AllStages lists the stages in pipeline order.
var AllStages = []Stage{RawText, PpText, Cst, Ast}

// ParseStage converts a stage name, accepting the short script suffixes too.
func ParseStage(s string) (Stage, error) {
	switch s {
	case "raw_text", "raw":
		return RawText, nil
	case "pp_text", "pp":
		return PpText, nil
	case "cst":
		return Cst, nil
	case "ast":
		return Ast, nil
	}
	return "", fmt.Errorf("unknown stage %q", s)
}

// UnmarshalText validates the stage name.
func (s *Stage) UnmarshalText(b []byte) error {
	v, err := ParseStage(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Severity of a violation.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// ParseSeverity accepts error, warning and info.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(s) {
	case SeverityError, SeverityWarning, SeverityInfo:
		return Severity(s), nil
	}
	return "", fmt.Errorf("severity must be error|warning|info, got %q", s)
}

// Violation is one lint finding.
type Violation struct {
	RuleID   string          `json:"rule_id"`
	Severity Severity        `json:"severity"`
	Message  string          `json:"message"`
	Location source.Location `json:"location"`
}

// Request is sent once per (file, stage) on the plugin's stdin.
type Request struct {
	Type    string `json:"type"`
	Stage   Stage  `json:"stage"`
	Path    string `json:"path"`
	Payload any    `json:"payload"`
}

// NewRequest builds a CheckFileStage request.
func NewRequest(stage Stage, path string, payload any) Request {
	return Request{Type: RequestType, Stage: stage, Path: path, Payload: payload}
}

// Response is the single JSON document a plugin writes to stdout. Stage is
// kept as a plain string so an unknown stage surfaces as a protocol mismatch
// rather than a decode failure.
type Response struct {
	Type       string      `json:"type"`
	Stage      string      `json:"stage"`
	Violations []Violation `json:"violations"`
}
