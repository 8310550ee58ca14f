package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"github.com/robert-at-pretension-io/sv-lint/internal/diag"
	"github.com/robert-at-pretension-io/sv-lint/internal/protocol"
	"github.com/robert-at-pretension-io/sv-lint/internal/validator"
)

// Validate re-checks the config after command-line overrides. The error
// carries the config path.
func (c *Config) Validate() error {
	err := c.validate()
	var ce *Error
	if errors.As(err, &ce) && ce.Path == "" {
		ce.Path = c.Path
	}
	return err
}

func (c *Config) validate() error {
	checks := []func() error{
		c.validateDefaults,
		c.validatePlugin,
		c.validateStages,
		c.validateRules,
		c.validateTransport,
		c.validateLogging,
		c.validateOutput,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateDefaults() error {
	t := c.Defaults.TimeoutMSPerFile
	if t < MinTimeoutMS || t > MaxTimeoutMS {
		return invalid("defaults.timeout_ms_per_file must be within %d..%d, got %d", MinTimeoutMS, MaxTimeoutMS, t)
	}
	if c.Defaults.Jobs < 0 {
		return invalid("defaults.jobs must be >= 0, got %d", c.Defaults.Jobs)
	}
	for _, p := range append(append([]string(nil), c.Defaults.Include...), c.Defaults.Exclude...) {
		if _, err := glob.Compile(p, '/'); err != nil {
			return invalid("bad glob %q: %v", p, err)
		}
	}
	return nil
}

func (c *Config) validatePlugin() error {
	if strings.TrimSpace(c.Plugin.Cmd) == "" {
		return invalid("plugin.cmd empty")
	}
	return nil
}

func (c *Config) validateStages() error {
	if len(c.Stages.Enabled) == 0 {
		return invalid("stages.enabled empty")
	}
	for _, s := range c.Stages.Required {
		if !c.StageEnabled(s) {
			return invalid("required stage %s must also be enabled", s)
		}
	}
	return nil
}

func (c *Config) validateRules() error {
	seen := make(map[string]bool, len(c.Rules))
	for _, r := range c.Rules {
		if seen[r.ID] {
			return invalid("duplicate rule id %s", r.ID)
		}
		seen[r.ID] = true
		if !c.StageEnabled(r.Stage) {
			return invalid("rule %s references disabled stage %s", r.ID, r.Stage)
		}
		if r.Severity != "" {
			if _, err := protocol.ParseSeverity(string(r.Severity)); err != nil {
				return invalid("rule %s severity must be error|warning|info", r.ID)
			}
		}
	}
	return nil
}

func (c *Config) validateTransport() error {
	if err := c.Transport.Validate(); err != nil {
		return invalid("transport: %v", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if _, err := diag.ParseLevel(c.Logging.Level); err != nil {
		return invalid("logging.level: %v", err)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return invalid("logging.format must be text|json, got %q", c.Logging.Format)
	}
	if c.Logging.StderrSnippetBytes < 0 {
		return invalid("logging.stderr_snippet_bytes must be >= 0")
	}
	return nil
}

func (c *Config) validateOutput() error {
	switch c.Output.Color {
	case "auto", "always", "never":
		return nil
	}
	return invalid("output.color must be auto|always|never, got %q", c.Output.Color)
}

// checkRuleSchema validates the resolved rule list against the CUE
// rule-set schema.
func (c *Config) checkRuleSchema() error {
	if len(c.Rules) == 0 {
		return nil
	}
	v, err := validator.New()
	if err != nil {
		return fmt.Errorf("rule schema: %w", err)
	}
	if err := v.ValidateRuleSet(c.Rules); err != nil {
		return &Error{Kind: InvalidValue, Detail: "rule set", Err: err}
	}
	return nil
}
