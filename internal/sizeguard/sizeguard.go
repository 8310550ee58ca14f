// Package sizeguard enforces the transport limits on plugin requests and
// responses and synthesizes the stage outcomes for a breach.
package sizeguard

import (
	"encoding/json"
	"fmt"

	"github.com/robert-at-pretension-io/sv-lint/internal/protocol"
	"github.com/robert-at-pretension-io/sv-lint/internal/source"
)

// Synthetic rule ids.
const (
	RuleSkippedSize    = "sys.stage.skipped.size"
	RuleOutputTooLarge = "sys.stage.output.too_large"
	RuleSerializeError = "sys.stage.serialize.error"
)

// OnExceed selects what an oversized request does to the stage.
type OnExceed string

const (
	Skip  OnExceed = "skip"
	Error OnExceed = "error"
)

// Limits is the [transport] policy.
type Limits struct {
	MaxRequestBytes  int      `toml:"max_request_bytes"`
	WarnMarginBytes  int      `toml:"warn_margin_bytes"`
	MaxResponseBytes int      `toml:"max_response_bytes"`
	OnExceed         OnExceed `toml:"on_exceed"`
	FailCIOnSkip     bool     `toml:"fail_ci_on_skip"`
}

func DefaultLimits() Limits {
	return Limits{
		MaxRequestBytes:  16 << 20,
		WarnMarginBytes:  1 << 20,
		MaxResponseBytes: 16 << 20,
		OnExceed:         Skip,
	}
}

// Validate checks the limits are usable.
func (l Limits) Validate() error {
	switch {
	case l.MaxRequestBytes <= 0:
		return fmt.Errorf("max_request_bytes must be > 0, got %d", l.MaxRequestBytes)
	case l.MaxResponseBytes <= 0:
		return fmt.Errorf("max_response_bytes must be > 0, got %d", l.MaxResponseBytes)
	case l.WarnMarginBytes < 0 || l.WarnMarginBytes > l.MaxRequestBytes:
		return fmt.Errorf("warn_margin_bytes must be within 0..max_request_bytes, got %d", l.WarnMarginBytes)
	}
	switch l.OnExceed {
	case Skip, Error:
		return nil
	}
	return fmt.Errorf("on_exceed must be skip|error, got %q", l.OnExceed)
}

// Status is the result of one stage for one file.
type Status string

const (
	Ran     Status = "ran"
	Skipped Status = "skipped"
	Failed  Status = "failed"
)

// Outcome is what a stage produced. FailCI marks outcomes that taint the
// run.
type Outcome struct {
	Stage      protocol.Stage       `json:"stage"`
	Status     Status               `json:"status"`
	Violations []protocol.Violation `json:"violations"`
	DurationMS int64                `json:"duration_ms"`
	FailCI     bool                 `json:"fail_ci"`
}

// Request is a serialized request that passed the size check.
type Request struct {
	Body []byte
	// NearLimit is set when the body is within the warn margin of the
	// limit. It is a log-level condition only.
	NearLimit bool
}

// CheckRequest serializes req once and measures it. A body of exactly
// MaxRequestBytes is allowed. On a breach the request must not be sent and
// the returned outcome describes the stage.
func (l Limits) CheckRequest(stage protocol.Stage, req any, required bool) (Request, *Outcome) {
	body, err := json.Marshal(req)
	if err != nil {
		return Request{}, &Outcome{
			Stage:  stage,
			Status: Failed,
			Violations: []protocol.Violation{synthetic(RuleSerializeError, protocol.SeverityError,
				fmt.Sprintf("Failed to serialize JSON request for stage '%s': %v", stage, err))},
			FailCI: true,
		}
	}
	n := len(body)
	if n > l.MaxRequestBytes {
		sev := protocol.SeverityWarning
		if required || l.OnExceed == Error {
			sev = protocol.SeverityError
		}
		isErr := sev == protocol.SeverityError
		status := Skipped
		if isErr {
			status = Failed
		}
		return Request{}, &Outcome{
			Stage:  stage,
			Status: status,
			Violations: []protocol.Violation{synthetic(RuleSkippedSize, sev,
				fmt.Sprintf("Stage '%s' skipped: request payload %d bytes exceeds limit %d bytes.", stage, n, l.MaxRequestBytes))},
			FailCI: isErr || l.FailCIOnSkip,
		}
	}
	return Request{Body: body, NearLimit: n >= l.MaxRequestBytes-l.WarnMarginBytes}, nil
}

// CheckResponse rejects a response longer than MaxResponseBytes. It looks
// only at the length, so it runs before any decoding.
func (l Limits) CheckResponse(stage protocol.Stage, n int) *Outcome {
	if n <= l.MaxResponseBytes {
		return nil
	}
	return OutputTooLarge(stage, n, l.MaxResponseBytes)
}

// OutputTooLarge is the failed outcome for an oversized response.
func OutputTooLarge(stage protocol.Stage, n, limit int) *Outcome {
	return &Outcome{
		Stage:  stage,
		Status: Failed,
		Violations: []protocol.Violation{synthetic(RuleOutputTooLarge, protocol.SeverityError,
			fmt.Sprintf("Stage '%s' output %d bytes exceeds limit %d bytes.", stage, n, limit))},
		FailCI: true,
	}
}

func synthetic(rule string, sev protocol.Severity, msg string) protocol.Violation {
	return protocol.Violation{RuleID: rule, Severity: sev, Message: msg, Location: source.FileStart}
}
