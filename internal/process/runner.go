/*
PURPOSE:
  Runs the external benchmark as a child process with a wall-clock budget
  and classifies how it ended.

REQUIREMENTS:
  User-specified:
  - Capture stdout and stderr as text.
  - Kill a benchmark that exceeds its timeout; never block the sweep forever.
  - Distinguish ok / process_error / timeout / unexpected_error.

  Implementation-discovered:
  - run_benchmark.sh forks the real binary; killing only the shell leaves the
    grandchild holding our pipes. The child gets its own process group and the
    whole group is killed (see proc_unix.go), and WaitDelay bounds the pipe drain.

ARCHITECTURE INTEGRATION:
  - Called by: internal/sweep
  - Uses: internal/model, internal/output (logger)

ERROR HANDLING:
  - Failures are returned as a Status on Result, never as a Go error.
  - Result.Err keeps the underlying error for logging.

IMPLEMENTATION RULES:
  - One child per Run; Run returns only after the child has been reaped.
  - Parent context cancellation wins over the timeout classification.
  - A child that exited on its own is classified by its exit status, even if
    the deadline passed before Run looked at it.
  - After every run the child's process group is killed, so nothing it
    started in the background survives into the next trial.

USAGE:
  r := process.NewExec()
  res := r.Run(ctx, "./run_benchmark.sh", args, 5*time.Minute)

SELF-HEALING INSTRUCTIONS:
  - If hung benchmarks survive a timeout, check the process group handling.

RELATED FILES:
  - internal/process/proc_unix.go
  - internal/sweep/driver.go

MAINTENANCE:
  - Update classification when new failure classes are added to model.Status.
*/

package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/daryltucker/sweep-runner/internal/model"
	"github.com/daryltucker/sweep-runner/internal/output"
)

// DefaultWaitDelay is how long Run waits for output pipes to close after the
// child was killed or exited.
const DefaultWaitDelay = 5 * time.Second

// maxDetailBytes caps how much stderr ends up in Result.Detail.
const maxDetailBytes = 2048

// Runner runs one benchmark invocation.
type Runner interface {
	Run(ctx context.Context, command string, args []string, timeout time.Duration) Result
}

// Result is the outcome of a single child process.
type Result struct {
	Status    model.Status
	Stdout    string
	Stderr    string
	ExitCode  int
	Duration  time.Duration
	Truncated bool
	Err       error
}

// Detail is a one-line description of a failed run, suitable for logs and the journal.
func (r Result) Detail() string {
	switch r.Status {
	case model.StatusOK:
		return ""
	case model.StatusProcessError:
		msg := fmt.Sprintf("exit status %d", r.ExitCode)
		if tail := tail(strings.TrimSpace(r.Stderr), maxDetailBytes); tail != "" {
			msg += ": " + tail
		}
		return msg
	case model.StatusTimeout:
		return fmt.Sprintf("timed out after %s", r.Duration.Round(time.Millisecond))
	default:
		if r.Err != nil {
			return r.Err.Error()
		}
		return "unexpected error"
	}
}

// Exec is the os/exec backed Runner.
type Exec struct {
	// Dir is the working directory of the child. Empty means the current one.
	Dir string
	// Env is appended to the parent environment.
	Env []string
	// MaxOutputBytes limits each captured stream; 0 means unlimited.
	MaxOutputBytes int
	// WaitDelay overrides DefaultWaitDelay when positive.
	WaitDelay time.Duration
	// Stdout and Stderr, when set, receive a live copy of the child's output.
	Stdout io.Writer
	Stderr io.Writer
}

// NewExec returns an Exec with default settings.
func NewExec() *Exec {
	return &Exec{}
}

// Run starts command with args and waits up to timeout for it to exit.
// A non-positive timeout means no limit other than ctx.
func (e *Exec) Run(ctx context.Context, command string, args []string, timeout time.Duration) Result {
	var runCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	cmd := exec.CommandContext(runCtx, command, args...)
	cmd.Dir = e.Dir
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}
	setProcessGroup(cmd)
	cmd.WaitDelay = DefaultWaitDelay
	if e.WaitDelay > 0 {
		cmd.WaitDelay = e.WaitDelay
	}

	var stdout, stderr bytes.Buffer
	stdoutLimited := &limitedWriter{w: &stdout, limit: e.MaxOutputBytes}
	stderrLimited := &limitedWriter{w: &stderr, limit: e.MaxOutputBytes}
	cmd.Stdout = tee(stdoutLimited, e.Stdout)
	cmd.Stderr = tee(stderrLimited, e.Stderr)

	output.Logger.Debug("Executing command",
		slog.String("command", command),
		slog.Any("args", args),
		slog.Duration("timeout", timeout),
	)

	start := time.Now()
	err := cmd.Run()

	if killed, kerr := killProcessGroup(cmd); kerr != nil {
		output.Logger.Warn("Failed to kill leftover processes", slog.String("command", command), slog.Any("error", kerr))
	} else if killed {
		output.Logger.Debug("Killed leftover processes", slog.String("command", command))
	}

	res := Result{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Duration:  time.Since(start),
		Truncated: stdoutLimited.truncated || stderrLimited.truncated,
		Err:       err,
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	} else {
		res.ExitCode = -1
	}

	var exitErr *exec.ExitError
	exited := cmd.ProcessState != nil && cmd.ProcessState.Exited()
	switch {
	case err == nil:
		res.Status = model.StatusOK
	case errors.Is(err, exec.ErrWaitDelay) && exited && cmd.ProcessState.Success():
		// A background process kept the pipes open after a clean exit.
		res.Status = model.StatusOK
		res.Err = nil
		output.Logger.Warn("Output pipes force-closed after exit",
			slog.String("command", command),
			slog.Duration("wait_delay", cmd.WaitDelay),
		)
	case ctx.Err() != nil:
		res.Status = model.StatusUnexpectedError
		res.Err = fmt.Errorf("interrupted: %w", ctx.Err())
	case exited && errors.As(err, &exitErr):
		res.Status = model.StatusProcessError
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		res.Status = model.StatusTimeout
		res.Err = fmt.Errorf("%s: %w", command, context.DeadlineExceeded)
	case errors.As(err, &exitErr):
		res.Status = model.StatusProcessError
	default:
		res.Status = model.StatusUnexpectedError
		res.Err = fmt.Errorf("command execution failed: %w", err)
	}

	return res
}

func tee(primary, mirror io.Writer) io.Writer {
	if mirror == nil {
		return primary
	}
	return io.MultiWriter(primary, mirror)
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

// limitedWriter keeps at most limit bytes and silently drops the rest,
// so a chatty benchmark never fails on a short write.
type limitedWriter struct {
	w         io.Writer
	limit     int
	written   int
	truncated bool
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	if lw.limit <= 0 {
		return lw.w.Write(p)
	}
	remaining := lw.limit - lw.written
	if remaining <= 0 {
		lw.truncated = true
		return len(p), nil
	}
	chunk := p
	if len(chunk) > remaining {
		chunk = chunk[:remaining]
		lw.truncated = true
	}
	n, err := lw.w.Write(chunk)
	lw.written += n
	if err != nil {
		return n, err
	}
	return len(p), nil
}
