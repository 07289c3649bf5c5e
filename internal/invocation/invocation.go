package invocation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/oshokin/extbuild/internal/logger"
)

var (
	// ErrChildFailed is wrapped by every error caused by an unsuccessful child exit.
	ErrChildFailed = errors.New("child process failed")
	// errNoExecutable is returned for invocations without a program.
	errNoExecutable = errors.New("invocation has no executable")
)

// Invocation describes one child process.
type Invocation struct {
	// Executable is the program path or name.
	Executable string
	// Args are the arguments after the program name.
	Args []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env is the complete child environment in KEY=VALUE form.
	// Nil runs the child with an empty environment.
	Env []string
	// Success decides whether an exit code counts as success. Nil means code 0 only.
	Success func(exitCode int) bool
}

// Command returns the full argument vector, program first.
func (i *Invocation) Command() []string {
	return append([]string{i.Executable}, i.Args...)
}

// String renders the command line for logs.
func (i *Invocation) String() string {
	return strings.Join(i.Command(), " ")
}

// Succeeded applies the success predicate to an exit code.
func (i *Invocation) Succeeded(code int) bool {
	if i.Success == nil {
		return code == 0
	}

	return i.Success(code)
}

// ExitError reports an unsuccessful exit of a child process.
type ExitError struct {
	// Command is the rendered command line.
	Command string
	// Dir is the working directory the command ran in.
	Dir string
	// Code is the exit code; -1 when the process was killed by a signal.
	Code int
}

// Error implements error.
func (e *ExitError) Error() string {
	return fmt.Sprintf("%q exited with code %d in %s", e.Command, e.Code, e.Dir)
}

// Unwrap makes errors.Is(err, ErrChildFailed) hold.
func (e *ExitError) Unwrap() error {
	return ErrChildFailed
}

// Runner executes invocations.
type Runner interface {
	// Run executes inv, streaming its output, and fails unless its exit code passes inv.Success.
	Run(ctx context.Context, inv *Invocation) error
	// Output executes inv and returns its standard output under the same success rules.
	Output(ctx context.Context, inv *Invocation) ([]byte, error)
}

// ExecRunner runs invocations as OS processes.
type ExecRunner struct {
	// Stdout receives child standard output for Run; nil means os.Stdout.
	Stdout io.Writer
	// Stderr receives child standard error; nil means os.Stderr.
	Stderr io.Writer
}

// NewExecRunner returns a runner attached to the process standard streams.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, inv *Invocation) error {
	cmd, err := r.command(ctx, inv)
	if err != nil {
		return err
	}

	cmd.Stdout = writerOr(r.Stdout, os.Stdout)

	return finish(ctx, inv, cmd.Run())
}

// Output implements Runner.
func (r *ExecRunner) Output(ctx context.Context, inv *Invocation) ([]byte, error) {
	cmd, err := r.command(ctx, inv)
	if err != nil {
		return nil, err
	}

	var stdout bytes.Buffer

	cmd.Stdout = &stdout

	if err = finish(ctx, inv, cmd.Run()); err != nil {
		return nil, err
	}

	return stdout.Bytes(), nil
}

// command prepares the exec.Cmd shared by Run and Output.
func (r *ExecRunner) command(ctx context.Context, inv *Invocation) (*exec.Cmd, error) {
	if inv == nil || inv.Executable == "" {
		return nil, errNoExecutable
	}

	logger.DebugKV(ctx, "Running command", "command", inv.String(), "dir", inv.Dir)

	cmd := exec.CommandContext(ctx, inv.Executable, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Env = envOrEmpty(inv.Env)
	cmd.Stderr = writerOr(r.Stderr, os.Stderr)

	return cmd, nil
}

// finish maps the result of cmd.Run onto the invocation's success predicate.
func finish(ctx context.Context, inv *Invocation, runErr error) error {
	code := 0

	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return fmt.Errorf("run %s: %w", inv.Executable, runErr)
		}

		code = exitErr.ExitCode()
	}

	if inv.Succeeded(code) {
		return nil
	}

	logger.ErrorKV(ctx, "Command failed", "command", inv.String(), "exit_code", code)

	return &ExitError{
		Command: inv.String(),
		Dir:     inv.Dir,
		Code:    code,
	}
}

// EnvList renders an environment map as sorted KEY=VALUE pairs.
func EnvList(env map[string]string) []string {
	list := make([]string, 0, len(env))
	for key, value := range env {
		list = append(list, key+"="+value)
	}

	sort.Strings(list)

	return list
}

// envOrEmpty keeps a nil environment from silently inheriting the parent's.
func envOrEmpty(env []string) []string {
	if env == nil {
		return []string{}
	}

	return env
}

func writerOr(w, fallback io.Writer) io.Writer {
	if w == nil {
		return fallback
	}

	return w
}
