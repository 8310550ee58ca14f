package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/BurntSushi/toml"

	"github.com/robert-at-pretension-io/sv-lint/internal/diag"
	"github.com/robert-at-pretension-io/sv-lint/internal/protocol"
	"github.com/robert-at-pretension-io/sv-lint/internal/sizeguard"
	"github.com/robert-at-pretension-io/sv-lint/internal/sv"
)

// FileName is the config file looked up in the working directory.
const FileName = "sv-lint.toml"

// Timeout bounds for defaults.timeout_ms_per_file.
const (
	MinTimeoutMS = 100
	MaxTimeoutMS = 60000
)

// Config is the top-level configuration for sv-lint
type Config struct {
	Logging   LoggingConfig    `toml:"logging"`
	Defaults  DefaultsConfig   `toml:"defaults"`
	Plugin    PluginConfig     `toml:"plugin"`
	Stages    StagesConfig     `toml:"stages"`
	SVParser  SVParserConfig   `toml:"svparser"`
	Transport sizeguard.Limits `toml:"transport"`
	Rules     []Rule           `toml:"rule"`
	Output    OutputConfig     `toml:"output"`

	// Path is the file the config was read from; empty for defaults.
	Path string `toml:"-"`
	// Dir anchors relative paths in the config.
	Dir string `toml:"-"`
	// Unknown lists keys present in the file that no field decodes.
	Unknown []string `toml:"-"`
}

type LoggingConfig struct {
	Level              string `toml:"level"`
	Format             string `toml:"format"`
	StderrSnippetBytes int    `toml:"stderr_snippet_bytes"`
	ShowStageEvents    bool   `toml:"show_stage_events"`
	ShowPluginEvents   bool   `toml:"show_plugin_events"`
	ShowParseEvents    bool   `toml:"show_parse_events"`
}

// DiagOptions converts the section for the event logger.
func (l LoggingConfig) DiagOptions() diag.Options {
	return diag.Options{
		Level:              l.Level,
		Format:             l.Format,
		ShowStageEvents:    l.ShowStageEvents,
		ShowPluginEvents:   l.ShowPluginEvents,
		ShowParseEvents:    l.ShowParseEvents,
		StderrSnippetBytes: l.StderrSnippetBytes,
	}
}

type DefaultsConfig struct {
	// TimeoutMSPerFile bounds each plugin invocation.
	TimeoutMSPerFile int `toml:"timeout_ms_per_file"`
	// Jobs is the number of files linted at once; 0 picks one per CPU.
	Jobs    int      `toml:"jobs"`
	Include []string `toml:"include"`
	Exclude []string `toml:"exclude"`
}

type PluginConfig struct {
	Cmd         string   `toml:"cmd"`
	Args        []string `toml:"args"`
	Root        string   `toml:"root,omitempty"`
	SearchPaths []string `toml:"search_paths"`
}

type StagesConfig struct {
	Enabled  []protocol.Stage `toml:"enabled"`
	Required []protocol.Stage `toml:"required"`
}

type SVParserConfig struct {
	IncludePaths    []string `toml:"include_paths"`
	Defines         []string `toml:"defines"`
	StripComments   bool     `toml:"strip_comments"`
	IgnoreInclude   bool     `toml:"ignore_include"`
	AllowIncomplete bool     `toml:"allow_incomplete"`
}

type OutputConfig struct {
	// Color is auto, always or never.
	Color       string `toml:"color"`
	MetricsFile string `toml:"metrics_file,omitempty"`
	TimingFile  string `toml:"timing_file,omitempty"`
	Trace       bool   `toml:"trace"`
}

// Rule is one [[rule]] entry. After loading, Script is absolute and Stage
// is set.
type Rule struct {
	ID       string            `toml:"id" json:"id"`
	Script   string            `toml:"script,omitempty" json:"script"`
	Stage    protocol.Stage    `toml:"stage,omitempty" json:"stage"`
	Enabled  *bool             `toml:"enabled,omitempty" json:"enabled"`
	Severity protocol.Severity `toml:"severity,omitempty" json:"severity,omitempty"`
}

// IsEnabled treats an unset flag as enabled.
func (r Rule) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// DefaultConfig returns the configuration used when no file is found.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:              "info",
			Format:             "text",
			StderrSnippetBytes: 2048,
		},
		Defaults: DefaultsConfig{
			TimeoutMSPerFile: 6000,
			Include:          []string{"**/*.sv", "**/*.svh", "**/*.v"},
			Exclude:          []string{},
		},
		Plugin: PluginConfig{
			Cmd:         "python3",
			Args:        []string{"-u", "-B"},
			SearchPaths: []string{},
		},
		Stages: StagesConfig{
			Enabled:  []protocol.Stage{protocol.RawText, protocol.PpText, protocol.Cst, protocol.Ast},
			Required: []protocol.Stage{protocol.RawText, protocol.PpText},
		},
		SVParser: SVParserConfig{
			IncludePaths: []string{},
			Defines:      []string{},
		},
		Transport: sizeguard.DefaultLimits(),
		Rules:     []Rule{},
		Output:    OutputConfig{Color: "auto"},
	}
}

func boolPtr(v bool) *bool {
	return &v
}

// Load finds and loads the configuration file
// Search order:
//  1. explicit (when non-empty; missing is an error)
//  2. ./sv-lint.toml, then ./.sv-lint.toml
//  3. <rootPath>/sv-lint.toml (if different from cwd)
//  4. ~/.config/sv-lint/config.toml
//
// Returns DefaultConfig anchored at the working directory if no config file
// is found.
func Load(explicit, rootPath string) (*Config, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return nil, &Error{Kind: NotFound, Path: explicit, Err: err}
		}
		return LoadFile(explicit)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("working directory: %w", err)
	}
	searchPaths := []string{
		filepath.Join(cwd, FileName),
		filepath.Join(cwd, "."+FileName),
	}
	if info, err := os.Stat(rootPath); err == nil && info.IsDir() {
		absRoot, _ := filepath.Abs(rootPath)
		if absRoot != cwd {
			searchPaths = append(searchPaths, filepath.Join(absRoot, FileName))
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", "sv-lint", "config.toml"))
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}

	cfg := DefaultConfig()
	cfg.Dir = cwd
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads configuration from a specific file
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &Error{Kind: NotFound, Path: path, Err: err}
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config path: %w", err)
	}
	return Parse(data, abs)
}

// Parse decodes config text as if read from path. Relative paths in the
// config resolve against the directory of path.
func Parse(data []byte, path string) (*Config, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return nil, &Error{Kind: InvalidUTF8, Path: path}
	}

	cfg := DefaultConfig()
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, &Error{Kind: InvalidTOML, Path: path, Err: err}
	}
	for _, key := range md.Undecoded() {
		cfg.Unknown = append(cfg.Unknown, key.String())
	}
	cfg.Path = path
	cfg.Dir = filepath.Dir(path)

	if err := cfg.finish(); err != nil {
		var ce *Error
		if errors.As(err, &ce) && ce.Path == "" {
			ce.Path = path
		}
		return nil, err
	}
	return cfg, nil
}

// finish fills rule defaults, resolves scripts and validates.
func (c *Config) finish() error {
	c.applyDefaults()
	if err := c.resolveRules(); err != nil {
		return err
	}
	if err := c.validate(); err != nil {
		return err
	}
	return c.checkRuleSchema()
}

// applyDefaults fills in values a file may have left empty.
func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Output.Color == "" {
		c.Output.Color = "auto"
	}
	if c.Transport.OnExceed == "" {
		c.Transport.OnExceed = sizeguard.Skip
	}
	for i := range c.Rules {
		if c.Rules[i].Enabled == nil {
			c.Rules[i].Enabled = boolPtr(true)
		}
	}
}

// TimeoutMS is the per-invocation plugin budget.
func (c *Config) TimeoutMS() int {
	return c.Defaults.TimeoutMSPerFile
}

// FrontEndOptions converts [svparser] for the front-end, anchoring
// relative include paths at the config directory.
func (c *Config) FrontEndOptions() sv.Options {
	incs := make([]string, 0, len(c.SVParser.IncludePaths))
	for _, p := range c.SVParser.IncludePaths {
		incs = append(incs, c.abs(p))
	}
	return sv.Options{
		IncludePaths:    incs,
		Defines:         append([]string(nil), c.SVParser.Defines...),
		StripComments:   c.SVParser.StripComments,
		IgnoreInclude:   c.SVParser.IgnoreInclude,
		AllowIncomplete: c.SVParser.AllowIncomplete,
	}
}

// StageEnabled reports whether stage is in stages.enabled.
func (c *Config) StageEnabled(stage protocol.Stage) bool {
	return containsStage(c.Stages.Enabled, stage)
}

// StageRequired reports whether stage is in stages.required.
func (c *Config) StageRequired(stage protocol.Stage) bool {
	return containsStage(c.Stages.Required, stage)
}

func containsStage(list []protocol.Stage, stage protocol.Stage) bool {
	for _, s := range list {
		if s == stage {
			return true
		}
	}
	return false
}

func (c *Config) abs(p string) string {
	if filepath.IsAbs(p) || c.Dir == "" {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// Save writes the configuration to a file atomically.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return writeAtomic(path, buf.Bytes())
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*.toml")
	if err != nil {
		return fmt.Errorf("temp config file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close config file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("chmod config file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename config file: %w", err)
	}
	return nil
}

// Template is the commented config written by `sv-lint init`.
const Template = `# sv-lint configuration

[logging]
level = "info"              # trace | debug | info | warn | error
format = "text"             # text | json
stderr_snippet_bytes = 2048
show_stage_events = false
show_plugin_events = false
show_parse_events = false

[defaults]
timeout_ms_per_file = 6000  # 100..60000
jobs = 0                    # 0 = one per CPU
include = ["**/*.sv", "**/*.svh", "**/*.v"]
exclude = []

[plugin]
cmd = "python3"
args = ["-u", "-B"]
# root = "plugins"
search_paths = []

[stages]
enabled = ["raw_text", "pp_text", "cst", "ast"]
required = ["raw_text", "pp_text"]

[svparser]
include_paths = []
defines = []                # "NAME" or "NAME=VALUE"
strip_comments = false
ignore_include = false
allow_incomplete = false

[transport]
max_request_bytes = 16777216
warn_margin_bytes = 1048576
max_response_bytes = 16777216
on_exceed = "skip"          # skip | error
fail_ci_on_skip = false

[output]
color = "auto"              # auto | always | never
trace = false

# [[rule]]
# id = "decl.unused_net"
# script = "decl.unused_net.ast.py"   # optional: derived from id
# stage = "ast"                       # optional: inferred from script suffix
# enabled = true
# severity = "warning"
`

// WriteTemplate writes Template to path unless a file already exists.
func WriteTemplate(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}
	return writeAtomic(path, []byte(Template))
}
