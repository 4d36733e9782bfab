// Package shell executes host commands for the bot: interactive
// session commands through /bin/sh, allow-listed commands as plain
// argument vectors. Deadlines come from the caller's context; an
// expired deadline kills the whole process group.
package shell

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"syscall"
	"time"

	"github.com/gregkorneev/alt-station/internal/domain"
)

// killGrace is how long a command gets to exit after its context is
// canceled before the process group receives SIGKILL.
const killGrace = 5 * time.Second

// Runner implements domain.CommandRunner.
type Runner struct{}

// NewRunner creates a command runner.
func NewRunner() *Runner {
	return &Runner{}
}

// RunShell executes command via "/bin/sh -c" in dir.
func (r *Runner) RunShell(ctx context.Context, dir, command string) (domain.ExecResult, error) {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	cmd.Dir = dir
	return run(ctx, cmd)
}

// RunArgv executes an argument vector directly, never via a shell.
func (r *Runner) RunArgv(ctx context.Context, argv []string) (domain.ExecResult, error) {
	if len(argv) == 0 {
		return domain.ExecResult{}, errors.New("empty argv")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	return run(ctx, cmd)
}

func run(ctx context.Context, cmd *exec.Cmd) (domain.ExecResult, error) {
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	// Own process group so cancellation reaps children too, e.g. a
	// pipeline spawned by the shell.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = killGrace

	err := cmd.Run()

	result := domain.ExecResult{Output: buf.String()}

	if ctx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		return result, nil
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		// Start failure: command not found, bad dir, ...
		return result, err
	}

	return result, nil
}

// Ensure Runner implements domain.CommandRunner.
var _ domain.CommandRunner = (*Runner)(nil)
