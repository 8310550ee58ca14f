// Package diag is the structured event log of the lint host. Every record
// carries event=<name>; stage, plugin and parse families can be switched
// off independently.
package diag

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// Event names one kind of log record.
type Event string

const (
	StageStart           Event = "stage_start"
	StageDone            Event = "stage_done"
	PluginInvoke         Event = "plugin_invoke"
	PluginDone           Event = "plugin_done"
	PluginTimeout        Event = "plugin_timeout"
	PluginExitNonzero    Event = "plugin_exit_nonzero"
	PluginError          Event = "plugin_error"
	PluginStderr         Event = "plugin_stderr"
	ParsePreprocessStart Event = "parse_preprocess_start"
	ParsePreprocessDone  Event = "parse_preprocess_done"
	ParseParseStart      Event = "parse_parse_start"
	ParseParseDone       Event = "parse_parse_done"
	ParseASTCollectDone  Event = "parse_ast_collect_done"
	SizeWarn             Event = "size_warn"
	ConfigUnknownKey     Event = "config_unknown_key"
	FileError            Event = "file_error"
	ParseFailed          Event = "parse_failed"
	StageFailed          Event = "stage_failed"
	WatchRun             Event = "watch_run"
)

type family int

const (
	always family = iota
	stageFamily
	pluginFamily
	parseFamily
)

func (e Event) family() family {
	switch e {
	case StageStart, StageDone:
		return stageFamily
	case PluginInvoke, PluginDone, PluginTimeout, PluginExitNonzero, PluginStderr:
		return pluginFamily
	case ParsePreprocessStart, ParsePreprocessDone, ParseParseStart, ParseParseDone, ParseASTCollectDone:
		return parseFamily
	}
	return always
}

// LevelTrace sits below slog.LevelDebug.
const LevelTrace = slog.Level(-8)

// ParseLevel accepts trace, debug, info, warn and error.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// Options configures the logger. It mirrors the [logging] config section.
type Options struct {
	Level              string
	Format             string
	ShowStageEvents    bool
	ShowPluginEvents   bool
	ShowParseEvents    bool
	StderrSnippetBytes int
}

// NewLogger builds the slog logger described by opts.
func NewLogger(w io.Writer, opts Options) (*slog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	hopts := &slog.HandlerOptions{Level: level}
	switch opts.Format {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, hopts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	}
	return nil, fmt.Errorf("unknown log format %q", opts.Format)
}

// Events emits gated event records through a slog logger.
type Events struct {
	log          *slog.Logger
	stage        bool
	plugin       bool
	parse        bool
	snippetLimit int
}

// New wraps log. A nil logger discards everything.
func New(log *slog.Logger, opts Options) *Events {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Events{
		log:          log,
		stage:        opts.ShowStageEvents,
		plugin:       opts.ShowPluginEvents,
		parse:        opts.ShowParseEvents,
		snippetLimit: opts.StderrSnippetBytes,
	}
}

// Discard returns an Events that logs nothing.
func Discard() *Events {
	return New(nil, Options{})
}

func (e *Events) Logger() *slog.Logger { return e.log }

// SnippetLimit is the configured stderr snippet size.
func (e *Events) SnippetLimit() int { return e.snippetLimit }

// With returns an Events whose records carry args.
func (e *Events) With(args ...any) *Events {
	c := *e
	c.log = e.log.With(args...)
	return &c
}

// Enabled reports whether ev would be emitted.
func (e *Events) Enabled(ev Event) bool {
	switch ev.family() {
	case stageFamily:
		return e.stage
	case pluginFamily:
		return e.plugin
	case parseFamily:
		return e.parse
	}
	return true
}

// Info logs ev at info level if its family is enabled.
func (e *Events) Info(ctx context.Context, ev Event, args ...any) {
	e.emit(ctx, slog.LevelInfo, ev, args)
}

// Warn logs ev at warn level if its family is enabled.
func (e *Events) Warn(ctx context.Context, ev Event, args ...any) {
	e.emit(ctx, slog.LevelWarn, ev, args)
}

// Error logs ev at error level if its family is enabled.
func (e *Events) Error(ctx context.Context, ev Event, args ...any) {
	e.emit(ctx, slog.LevelError, ev, args)
}

func (e *Events) emit(ctx context.Context, level slog.Level, ev Event, args []any) {
	if !e.Enabled(ev) {
		return
	}
	e.log.Log(ctx, level, string(ev), append([]any{slog.String("event", string(ev))}, args...)...)
}

// Snippet returns at most limit bytes of b, cut back to a UTF-8 boundary,
// with " ..." appended when anything was dropped. Newlines become spaces.
func Snippet(b []byte, limit int) string {
	truncated := false
	if limit >= 0 && len(b) > limit {
		cut := limit
		for i := 0; i < utf8.UTFMax && cut > 0 && !utf8.RuneStart(b[cut]); i++ {
			cut--
		}
		b = b[:cut]
		truncated = true
	}
	s := strings.ToValidUTF8(string(b), "�")
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
	if truncated {
		s += " ..."
	}
	return s
}
