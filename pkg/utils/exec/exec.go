package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	osexec "os/exec"
	"strings"

	"github.com/twosixlabs/magicwand/pkg/log"
)

// Command describes a local process invocation
type Command struct {
	Name string
	Args []string
	// Env is the complete process environment, nil inherits the parent environment
	Env []string
	Dir string
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Runner runs commands and returns their standard output
type Runner interface {
	Run(ctx context.Context, cmd Command) (string, error)
}

// ExitError is returned when the command ran but exited non-zero
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("Unable to run command '%s', exit code: %d; error output: %v", e.Command, e.ExitCode, e.Stderr)
}

// LocalRunner runs commands as child processes
type LocalRunner struct{}

// Run starts the command and waits for it, the process is killed when ctx is done
func (LocalRunner) Run(ctx context.Context, cmd Command) (string, error) {
	c := osexec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Env = cmd.Env
	c.Dir = cmd.Dir

	var out, stderr bytes.Buffer
	c.Stdout = &out
	c.Stderr = &stderr

	log.Debugf("[Exec]: running '%s'", cmd)
	err := c.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return out.String(), ctxErr
	}
	if err != nil {
		var exitErr *osexec.ExitError
		if errors.As(err, &exitErr) {
			return out.String(), &ExitError{Command: cmd.String(), ExitCode: exitErr.ExitCode(), Stderr: strings.TrimSpace(stderr.String())}
		}
		return out.String(), fmt.Errorf("Unable to run command '%s', err: %v", cmd, err)
	}
	return out.String(), nil
}
