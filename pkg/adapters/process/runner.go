// Package process runs allow-listed external commands as source filters.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"sort"
	"strings"
	"time"
)

// ErrNotRegistered is returned for a command name missing from the allow-list.
var ErrNotRegistered = errors.New("process not registered")

// Command is an allowed program with its fixed arguments.
type Command struct {
	Command string            `mapstructure:"command"`
	Args    []string          `mapstructure:"args"`
	Env     map[string]string `mapstructure:"env"`
}

// String renders the command line, used in cache fingerprints.
func (c Command) String() string {
	parts := append([]string{c.Command}, c.Args...)
	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+"="+c.Env[k])
	}
	return strings.Join(parts, " ")
}

// ExecError is a command that could not start or exited non-zero.
type ExecError struct {
	Name   string
	Err    error
	Stderr string
}

func (e *ExecError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: execution failed: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("%s: execution failed: %v. Stderr: %s", e.Name, e.Err, e.Stderr)
}

func (e *ExecError) Unwrap() error { return e.Err }

// Runner executes commands from a strict allow-list.
type Runner struct {
	registry map[string]Command
	baseDir  string
	timeout  time.Duration
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// WithTimeout bounds every run. Zero leaves runs bounded only by their context.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.timeout = d
	}
}

// NewRunner creates a new process runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: make(map[string]Command),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted command to the allow-list.
func (r *Runner) Register(name string, cmd Command) {
	r.registry[name] = cmd
}

var envKey = regexp.MustCompile(`[^A-Z0-9_]`)

// Run pipes stdin through the command registered as name and returns its
// stdout. Each env entry is passed as BALE_<KEY>; values never become flags.
func (r *Runner) Run(ctx context.Context, name string, stdin []byte, env map[string]string) ([]byte, error) {
	proc, ok := r.registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, proc.Command, proc.Args...)
	cmd.Dir = r.baseDir
	// A child that ignores the kill signal must not hold the build forever.
	cmd.WaitDelay = time.Second

	vars := cmd.Environ()
	for k, v := range proc.Env {
		vars = append(vars, k+"="+v)
	}
	for k, v := range env {
		vars = append(vars, "BALE_"+envKey.ReplaceAllString(strings.ToUpper(k), "_")+"="+v)
	}
	cmd.Env = vars

	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w (%v)", ctx.Err(), err)
		}
		return nil, &ExecError{Name: name, Err: err, Stderr: strings.TrimSpace(stderr.String())}
	}
	return stdout.Bytes(), nil
}
