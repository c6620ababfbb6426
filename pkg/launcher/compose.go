package launcher

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/twosixlabs/magicwand/pkg/cerrors"
	"github.com/twosixlabs/magicwand/pkg/log"
	"github.com/twosixlabs/magicwand/pkg/types"
	"github.com/twosixlabs/magicwand/pkg/utils/exec"
	"github.com/twosixlabs/magicwand/pkg/utils/retry"
)

// Launcher starts and stops the workloads of a run
type Launcher interface {
	Up(ctx context.Context, files []string, ec *types.ExecutionContext) error
	Down(ctx context.Context, files []string, ec *types.ExecutionContext) error
}

// Compose drives the workloads through docker-compose, the execution context
// becomes the process environment of every compose invocation
type Compose struct {
	Command []string
	Dir     string
	Runner  exec.Runner
	// DrainTimeout bounds the wait for containers to disappear after down
	DrainTimeout time.Duration
	DrainPoll    time.Duration
}

// NewCompose returns a compose launcher running command from dir
func NewCompose(command []string, dir string) *Compose {
	return &Compose{
		Command:      command,
		Dir:          dir,
		Runner:       exec.LocalRunner{},
		DrainTimeout: time.Minute,
		DrainPoll:    2 * time.Second,
	}
}

func (c *Compose) command(files []string, ec *types.ExecutionContext, args ...string) exec.Command {
	cmdArgs := append([]string(nil), c.Command[1:]...)
	for _, f := range files {
		cmdArgs = append(cmdArgs, "-f", f)
	}
	cmdArgs = append(cmdArgs, args...)
	return exec.Command{Name: c.Command[0], Args: cmdArgs, Env: ec.ProcessEnv(), Dir: c.Dir}
}

func runName(ec *types.ExecutionContext) string {
	if v, ok := ec.Get("CURR_RUN"); ok {
		return v
	}
	return "run"
}

func deadline(ctx context.Context) string {
	if d, ok := ctx.Deadline(); ok {
		return d.Format(time.RFC3339)
	}
	return "the deadline"
}

// Up starts every workload detached
func (c *Compose) Up(ctx context.Context, files []string, ec *types.ExecutionContext) error {
	if len(files) == 0 {
		return cerrors.Setup{Target: runName(ec), Reason: "no workload descriptors to start"}
	}
	log.Infof("[Status]: starting %d workload(s) for %s", len(files), runName(ec))
	if _, err := c.Runner.Run(ctx, c.command(files, ec, "up", "-d")); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return cerrors.Timeout{Operation: "start", Target: runName(ec), Deadline: deadline(ctx)}
		}
		return cerrors.Setup{Target: runName(ec), Reason: err.Error()}
	}
	return nil
}

// Down stops every workload and waits until no container of the run is left
func (c *Compose) Down(ctx context.Context, files []string, ec *types.ExecutionContext) error {
	log.Infof("[Status]: stopping workloads of %s", runName(ec))
	if _, err := c.Runner.Run(ctx, c.command(files, ec, "down")); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return cerrors.Timeout{Operation: "stop", Target: runName(ec), Deadline: deadline(ctx)}
		}
		return cerrors.Teardown{Target: runName(ec), Reason: err.Error()}
	}

	attempts := uint(1)
	if c.DrainPoll > 0 && c.DrainTimeout > c.DrainPoll {
		attempts = uint(c.DrainTimeout / c.DrainPoll)
	}
	err := retry.
		Times(attempts).
		Wait(c.DrainPoll).
		TryContext(ctx, func(attempt uint) error {
			out, err := c.Runner.Run(ctx, c.command(files, ec, "ps", "-q"))
			if err != nil {
				return retry.Permanent(err)
			}
			if left := len(strings.Fields(out)); left > 0 {
				return cerrors.Teardown{Target: runName(ec), Reason: "containers still running after down"}
			}
			return nil
		})
	if err != nil {
		log.Warnf("[Wait]: unable to confirm that the workloads of %s are gone, err: %v", runName(ec), err)
	}
	return nil
}
