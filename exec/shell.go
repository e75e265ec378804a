// Package exec runs the shell command attached to a watch session.
package exec

import (
	"context"
	"fmt"
	"io"
	"os"
	osexec "os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
)

const DefaultShell = "/bin/sh"

// KillDelay bounds how long RunCommand waits for output pipes to drain after
// the process group has been killed.
const KillDelay = 2 * time.Second

type ShellOptions struct {
	WorkDir string
	Env     []string
	Shell   string
	Stdout  io.Writer
	Stderr  io.Writer
	Timeout time.Duration
}

// ExitError reports a command that ran but exited non-zero.
type ExitError struct {
	Status int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command exited with status %d", e.Status)
}

// RunCommand runs cmdStr through the configured shell in its own process
// group. When ctx is done or the timeout expires the whole group is killed,
// and RunCommand returns only after the shell has been reaped.
func RunCommand(ctx context.Context, cmdStr string, opts ShellOptions) error {
	if strings.TrimSpace(cmdStr) == "" {
		return errors.New("empty command")
	}
	shell := strings.Fields(opts.Shell)
	if len(shell) == 0 {
		shell = []string{DefaultShell}
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	args := append(shell[1:], "-c", cmdStr)
	cmd := osexec.CommandContext(ctx, shell[0], args...)
	cmd.Dir = opts.WorkDir
	cmd.Env = opts.Env
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = KillDelay

	err := cmd.Run()
	if ctx.Err() != nil {
		return errors.Wrap(ctx.Err(), "command interrupted")
	}

	var exitErr *osexec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Status: exitErr.ExitCode()}
	}
	if err != nil {
		return errors.Wrapf(err, "start %s", shell[0])
	}
	return nil
}
