// Package toolchain wraps the external programs a build depends on: the
// vendor project generator and compiler (make) and the runtime fetch (git).
package toolchain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/ternarybob/arbor"
)

// Command is one external invocation.
type Command struct {
	Dir  string
	Name string
	Args []string
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Runner executes external commands and blocks until they exit.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// CommandError reports an external command that could not start or
// exited non-zero.
type CommandError struct {
	Command  Command
	ExitCode int
	Err      error
}

func (e *CommandError) Error() string {
	if e.ExitCode > 0 {
		return fmt.Sprintf("%s (in %s) exited with status %d", e.Command, e.Command.Dir, e.ExitCode)
	}
	return fmt.Sprintf("%s (in %s) failed: %v", e.Command, e.Command.Dir, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// ExecRunner runs commands on the host, streaming their output.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger arbor.ILogger
}

// NewExecRunner returns a runner wired to the process stdout and stderr.
func NewExecRunner(logger arbor.ILogger) *ExecRunner {
	return &ExecRunner{Stdout: os.Stdout, Stderr: os.Stderr, Logger: logger}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, c Command) error {
	if r.Logger != nil {
		r.Logger.Debug().Str("dir", c.Dir).Str("cmd", c.String()).Msg("Running external command")
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	if err := cmd.Run(); err != nil {
		cerr := &CommandError{Command: c, Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			cerr.ExitCode = exitErr.ExitCode()
		}
		return cerr
	}
	return nil
}
