// Package plugin runs one external rule process per (file, stage): it
// writes the request, drains stdout and stderr under hard caps, races the
// output against a deadline and validates what comes back.
package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/robert-at-pretension-io/sv-lint/internal/diag"
	"github.com/robert-at-pretension-io/sv-lint/internal/protocol"
	"github.com/robert-at-pretension-io/sv-lint/internal/validator"
)

// stderrGrace bounds how long Wait keeps copying stderr after the process
// has exited or been killed.
const stderrGrace = 50 * time.Millisecond

// Options configures a Dispatcher.
type Options struct {
	// Timeout covers one invocation from spawn to exit.
	Timeout time.Duration
	// MaxResponseBytes caps stdout below MaxStdoutBytes.
	MaxResponseBytes int
	MaxStderrBytes   int
	// Dir is the working directory of plugin processes.
	Dir string
	// Validator checks responses against the protocol schema when set.
	Validator *validator.Validator
	Events    *diag.Events
}

// Dispatcher spawns plugin processes. It holds no per-invocation state and
// may be used from several goroutines.
type Dispatcher struct {
	timeout   time.Duration
	maxStdout int
	maxStderr int
	dir       string
	validator *validator.Validator
	events    *diag.Events
	snippet   int
}

// defaultSnippetBytes applies when the logging config leaves the stderr
// snippet size unset.
const defaultSnippetBytes = 2048

func NewDispatcher(opts Options) *Dispatcher {
	d := &Dispatcher{
		timeout:   opts.Timeout,
		maxStdout: MaxStdoutBytes,
		maxStderr: MaxStderrBytes,
		dir:       opts.Dir,
		validator: opts.Validator,
		events:    opts.Events,
	}
	if opts.MaxResponseBytes > 0 && opts.MaxResponseBytes < d.maxStdout {
		d.maxStdout = opts.MaxResponseBytes
	}
	if opts.MaxStderrBytes > 0 && opts.MaxStderrBytes < d.maxStderr {
		d.maxStderr = opts.MaxStderrBytes
	}
	if d.timeout <= 0 {
		d.timeout = 6 * time.Second
	}
	if d.events == nil {
		d.events = diag.Discard()
	}
	d.snippet = d.events.SnippetLimit()
	if d.snippet <= 0 {
		d.snippet = defaultSnippetBytes
	}
	return d
}

// StdoutLimit is the effective stdout cap.
func (d *Dispatcher) StdoutLimit() int { return d.maxStdout }

// Invocation is one plugin call.
type Invocation struct {
	// Path is the linted file, for logging.
	Path  string
	Stage protocol.Stage
	// Argv is the full command line: program, arguments and rule scripts.
	Argv    []string
	Request []byte
}

// Reply is what a finished process left behind.
type Reply struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	// Killed is set when the process outlived its budget after writing a
	// complete response.
	Killed   bool
	Duration time.Duration
}

// Invoke runs the plugin and returns its raw output. A response that hits
// the stdout cap is reported as StdoutTooLarge even if the deadline passes
// at the same moment.
func (d *Dispatcher) Invoke(ctx context.Context, inv Invocation) (*Reply, error) {
	if len(inv.Argv) == 0 {
		return nil, &Error{Kind: SpawnFailed, Stage: inv.Stage, Detail: "empty plugin command"}
	}
	log := d.events.With("path", inv.Path, "stage", string(inv.Stage))
	log.Info(ctx, diag.PluginInvoke, "cmd", formatCommand(inv.Argv), "request_bytes", len(inv.Request))

	start := time.Now()
	cmd := exec.Command(inv.Argv[0], inv.Argv[1:]...)
	cmd.Dir = d.dir
	cmd.WaitDelay = stderrGrace
	stderr := newCappedBuffer(d.maxStderr)
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &Error{Kind: IOFailed, Stage: inv.Stage, Detail: "stdin pipe", Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &Error{Kind: IOFailed, Stage: inv.Stage, Detail: "stdout pipe", Err: err}
	}
	if err := cmd.Start(); err != nil {
		perr := &Error{Kind: SpawnFailed, Stage: inv.Stage, Detail: formatCommand(inv.Argv), Err: err}
		log.Error(ctx, diag.PluginError, "message", perr.Error())
		return nil, perr
	}

	writeErr := make(chan error, 1)
	go func() {
		_, err := stdin.Write(inv.Request)
		if cerr := stdin.Close(); err == nil {
			err = cerr
		}
		writeErr <- err
	}()

	outCh := make(chan readResult, 1)
	go func() {
		outCh <- readCapped(stdout, d.maxStdout)
	}()

	timer := time.NewTimer(d.timeout)
	defer timer.Stop()

	var out readResult
	select {
	case out = <-outCh:
	case <-timer.C:
		select {
		case out = <-outCh:
		default:
			d.kill(cmd)
			snippet := d.stderrSnippet(stderr)
			elapsed := time.Since(start)
			log.Warn(ctx, diag.PluginTimeout, "duration_ms", elapsed.Milliseconds(), "stderr_snippet", snippet)
			return nil, &Error{Kind: Timeout, Stage: inv.Stage,
				Detail: fmt.Sprintf("no response after %d ms", d.timeout.Milliseconds()), Stderr: snippet}
		}
	case <-ctx.Done():
		d.kill(cmd)
		return nil, &Error{Kind: IOFailed, Stage: inv.Stage, Detail: "cancelled", Err: ctx.Err()}
	}

	if out.tooLarge {
		d.kill(cmd)
		log.Error(ctx, diag.PluginError, "message", "stdout exceeded cap", "bytes", out.n, "limit", d.maxStdout)
		return nil, &Error{Kind: StdoutTooLarge, Stage: inv.Stage, Bytes: out.n,
			Detail: fmt.Sprintf("more than %d bytes", d.maxStdout), Stderr: d.stderrSnippet(stderr)}
	}
	if out.err != nil {
		d.kill(cmd)
		return nil, &Error{Kind: IOFailed, Stage: inv.Stage, Detail: "reading stdout", Err: out.err}
	}

	reply := &Reply{Stdout: out.data}
	reply.ExitCode, reply.Killed = d.reap(cmd, d.timeout-time.Since(start))
	reply.Duration = time.Since(start)
	errOut, overflow := stderr.Snapshot()
	reply.Stderr = errOut

	if err := <-writeErr; err != nil && !ignorableWriteError(err) {
		return nil, &Error{Kind: IOFailed, Stage: inv.Stage, Detail: "writing request", Err: err}
	}
	if len(errOut) > 0 {
		log.Info(ctx, diag.PluginStderr, "stderr_snippet", diag.Snippet(errOut, d.snippet))
	}
	if reply.ExitCode != 0 {
		log.Warn(ctx, diag.PluginExitNonzero, "exit_code", reply.ExitCode, "duration_ms", reply.Duration.Milliseconds())
	}
	if overflow {
		return reply, &Error{Kind: StderrTooLarge, Stage: inv.Stage,
			Detail: fmt.Sprintf("more than %d bytes", d.maxStderr)}
	}
	log.Info(ctx, diag.PluginDone, "duration_ms", reply.Duration.Milliseconds(), "response_bytes", len(reply.Stdout))
	return reply, nil
}

// reap waits for the process to exit within budget and kills it when the
// budget runs out. It returns the exit code and whether a kill was needed.
func (d *Dispatcher) reap(cmd *exec.Cmd, budget time.Duration) (int, bool) {
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	killed := false
	if budget <= 0 {
		budget = time.Millisecond
	}
	t := time.NewTimer(budget)
	defer t.Stop()
	select {
	case <-done:
	case <-t.C:
		_ = cmd.Process.Kill()
		<-done
		killed = true
	}
	return exitCode(cmd), killed
}

// kill terminates and reaps the process.
func (d *Dispatcher) kill(cmd *exec.Cmd) {
	_ = cmd.Process.Kill()
	_ = cmd.Wait()
}

func (d *Dispatcher) stderrSnippet(c *cappedBuffer) string {
	b, _ := c.Snapshot()
	if len(b) == 0 {
		return ""
	}
	return diag.Snippet(b, d.snippet)
}

func exitCode(cmd *exec.Cmd) int {
	if cmd.ProcessState == nil {
		return -1
	}
	return cmd.ProcessState.ExitCode()
}

// A plugin may exit without reading its input.
func ignorableWriteError(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, os.ErrClosed)
}

// Decode validates a reply and returns its violations. A nonzero exit is
// only an error when the response is unusable too; it then reports as
// ExitCode wrapping the response problem.
func (d *Dispatcher) Decode(stage protocol.Stage, r *Reply) ([]protocol.Violation, error) {
	vs, err := d.decode(stage, r.Stdout)
	if err != nil && r.ExitCode != 0 {
		return nil, &Error{Kind: ExitCode, Stage: stage, Code: r.ExitCode,
			Stderr: diag.Snippet(r.Stderr, d.snippet), Err: err}
	}
	return vs, err
}

func (d *Dispatcher) decode(stage protocol.Stage, raw []byte) ([]protocol.Violation, error) {
	body := bytes.TrimSpace(raw)
	if len(body) == 0 {
		return nil, &Error{Kind: BadJSON, Stage: stage, Detail: "empty response"}
	}
	if !utf8.Valid(body) {
		return nil, &Error{Kind: BadUTF8, Stage: stage, Detail: "response is not valid UTF-8"}
	}
	var resp protocol.Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &Error{Kind: BadJSON, Stage: stage, Err: err}
	}
	if resp.Type != protocol.ResponseType {
		return nil, &Error{Kind: ProtocolError, Stage: stage,
			Detail: fmt.Sprintf("response type %q, want %q", resp.Type, protocol.ResponseType)}
	}
	if resp.Stage != string(stage) {
		return nil, &Error{Kind: ProtocolError, Stage: stage,
			Detail: fmt.Sprintf("stage mismatch: response for %q, request was %q", resp.Stage, stage)}
	}
	if d.validator != nil {
		if err := d.validator.ValidateResponseJSON(body); err != nil {
			return nil, &Error{Kind: ProtocolError, Stage: stage, Err: err}
		}
	}
	if resp.Violations == nil {
		resp.Violations = []protocol.Violation{}
	}
	return resp.Violations, nil
}

// formatCommand renders argv for logs, quoting arguments with spaces.
func formatCommand(argv []string) string {
	parts := make([]string, len(argv))
	for i, a := range argv {
		if strings.ContainsAny(a, " \t\n") {
			a = fmt.Sprintf("%q", a)
		}
		parts[i] = a
	}
	return strings.Join(parts, " ")
}
