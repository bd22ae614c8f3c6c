// Package procrunner spawns child processes in capture or interactive mode
// with cancellation-driven process-tree kill (C1).
package procrunner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/creack/pty"

	"github.com/containai/cai/internal/secretmask"
)

// Runner spawns child processes, logging the argv vector at debug level
// with secretmask applied to any sensitive `-e KEY=VALUE` token.
type Runner struct {
	logger *slog.Logger
}

// New creates a Runner. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{logger: logger}
}

// CaptureResult holds the outcome of a Capture invocation.
type CaptureResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// setupCmd configures a *exec.Cmd to run in its own process group so the
// entire subtree can be killed together on cancellation.
func setupCmd(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killTree sends SIGKILL to the process group rooted at the child.
func killTree(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}

// Capture runs name(args...) to completion, capturing stdout/stderr
// separately, and returns its exit code without treating a non-zero exit as
// a Go error — only spawn failures (e.g. command not found) are errors.
func (r *Runner) Capture(ctx context.Context, name string, args []string, env []string) (CaptureResult, error) {
	return r.captureWithStdin(ctx, name, args, env, "")
}

// CaptureWithStdin behaves like Capture but feeds stdin to the child before
// waiting for completion, for the `run --rm -i` env-file write path.
func (r *Runner) CaptureWithStdin(ctx context.Context, name string, args []string, env []string, stdin string) (CaptureResult, error) {
	return r.captureWithStdin(ctx, name, args, env, stdin)
}

func (r *Runner) captureWithStdin(ctx context.Context, name string, args []string, env []string, stdin string) (CaptureResult, error) {
	r.logger.Debug("exec capture", "argv", secretmask.MaskArgv(append([]string{name}, args...)))

	cmd := exec.Command(name, args...)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	setupCmd(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	done := make(chan error, 1)
	if err := cmd.Start(); err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return CaptureResult{ExitCode: 127}, err
		}
		return CaptureResult{ExitCode: 1}, err
	}

	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		killTree(cmd)
		<-done
		return CaptureResult{ExitCode: -1, Stdout: stdout.String(), Stderr: stderr.String()}, ctx.Err()
	case err := <-done:
		code := exitCodeOf(err)
		return CaptureResult{ExitCode: code, Stdout: stdout.String(), Stderr: stderr.String()}, nil
	}
}

// Interactive runs name(args...) with stdio inherited from the parent
// process (or a pty, when usePty is set and the invoking terminal is a TTY),
// returning the child's exit code.
func (r *Runner) Interactive(ctx context.Context, name string, args []string, env []string, usePty bool) (int, error) {
	r.logger.Debug("exec interactive", "argv", secretmask.MaskArgv(append([]string{name}, args...)))

	cmd := exec.Command(name, args...)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	setupCmd(cmd)

	if usePty && isTerminal(os.Stdin) {
		return r.runWithPty(ctx, cmd)
	}

	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	done := make(chan error, 1)
	if err := cmd.Start(); err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return 127, err
		}
		return 1, err
	}
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		killTree(cmd)
		<-done
		return -1, ctx.Err()
	case err := <-done:
		return exitCodeOf(err), nil
	}
}

func (r *Runner) runWithPty(ctx context.Context, cmd *exec.Cmd) (int, error) {
	f, err := pty.Start(cmd)
	if err != nil {
		return 1, err
	}
	defer f.Close()

	go func() { _, _ = io.Copy(f, os.Stdin) }()
	go func() { _, _ = io.Copy(os.Stdout, f) }()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		killTree(cmd)
		<-done
		return -1, ctx.Err()
	case err := <-done:
		return exitCodeOf(err), nil
	}
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// WaitBounded runs fn and enforces the given timeout as a belt-and-braces
// bound on top of ctx cancellation; used by operations spec.md §5 says have
// no internal timeout beyond the caller's cancellation token.
func WaitBounded(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(cctx)
}
