// Package format runs external source formatters.
//
// A formatter is invoked once per file as `<command> [args...] <path>`.
// Standard input is not used; standard output carries the formatted
// content. A non-zero exit status is reported as an *ExitError and the
// output is discarded.
package format

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"strings"
	"time"
)

// waitDelay bounds how long a cancelled formatter's children may hold
// its output pipes open.
const waitDelay = 2 * time.Second

// Formatter returns the formatted content of the file at path.
type Formatter interface {
	Format(ctx context.Context, path string) ([]byte, error)
}

// Func adapts an ordinary function to the Formatter interface.
type Func func(ctx context.Context, path string) ([]byte, error)

func (f Func) Format(ctx context.Context, path string) ([]byte, error) {
	return f(ctx, path)
}

// Command is a Formatter backed by an external program.
type Command struct {
	Name string
	Args []string // placed before the input path
}

func (c Command) Format(ctx context.Context, path string) ([]byte, error) {
	args := append(slices.Clone(c.Args), path)
	cmd := exec.CommandContext(ctx, c.Name, args...)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &ExitError{
				Command: c.Name,
				Path:    path,
				Code:    exitErr.ExitCode(),
				Stderr:  strings.TrimSpace(stderr.String()),
			}
		}
		return nil, fmt.Errorf("running %s: %w", c.Name, err)
	}

	return stdout.Bytes(), nil
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// ExitError reports a formatter that ran but exited with a non-zero status.
type ExitError struct {
	Command string
	Path    string
	Code    int
	Stderr  string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d on %s", e.Command, e.Code, e.Path)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}
