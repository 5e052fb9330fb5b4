// Package local runs toolchain processes directly on the host with os/exec.
//
// Every child is started in its own process group. When a deadline passes or
// the caller cancels, the whole group gets SIGKILL, so a launcher that forked
// helpers (mvn starts a JVM, a shell wrapper starts java) leaves nothing
// behind.
package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"time"

	"github.com/sakif/build-sandbox/internal/apperror"
	"github.com/sakif/build-sandbox/internal/executor"
)

var _ executor.Runner = (*Runner)(nil)

// Config tunes the host runner.
type Config struct {
	// BaseEnv replaces os.Environ() as the starting environment when non-nil.
	BaseEnv []string
	// WaitDelay bounds how long Wait keeps draining output pipes after the
	// process group was killed.
	WaitDelay time.Duration
}

// DefaultConfig inherits the caller's environment.
func DefaultConfig() Config {
	return Config{WaitDelay: 2 * time.Second}
}

// Runner implements executor.Runner on the host.
type Runner struct {
	config Config
	logger *slog.Logger
}

// New creates a host runner.
func New(cfg Config, logger *slog.Logger) *Runner {
	return &Runner{config: cfg, logger: logger}
}

// Run starts spec and blocks until the process exits, its deadline passes or
// ctx ends.
func (r *Runner) Run(ctx context.Context, spec executor.ProcessSpec) (*executor.ProcessResult, error) {
	if spec.Command == "" {
		return nil, apperror.Launch(spec.Command, errors.New("empty command"))
	}

	// Resolve up front so a missing toolchain is a launch error naming the
	// binary, not a generic start failure.
	path, err := exec.LookPath(spec.Command)
	if err != nil {
		return nil, apperror.Launch(spec.Command, err)
	}

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if spec.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
	}
	defer cancel()

	out := executor.NewCapture(executor.MaxCapture, spec.Progress)

	cmd := exec.CommandContext(runCtx, path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = r.environ(spec.Env)
	// Same writer for both streams: exec shares one pipe and the output stays
	// interleaved the way a terminal would show it.
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.WaitDelay = r.config.WaitDelay
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }

	r.logger.Debug("starting process",
		slog.String("command", spec.Command),
		slog.Any("args", spec.Args),
		slog.String("dir", spec.Dir),
		slog.Duration("timeout", spec.Timeout),
	)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		out.Flush()
		return nil, apperror.Launch(spec.Command, err)
	}
	waitErr := cmd.Wait()
	out.Flush()

	res := &executor.ProcessResult{
		Output:    out.String(),
		Truncated: out.Truncated(),
		Duration:  time.Since(start),
	}

	switch {
	case waitErr == nil:
		res.ExitCode = 0
	case ctx.Err() != nil:
		res.Cancelled = true
		res.ExitCode = -1
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		res.TimedOut = true
		res.ExitCode = -1
	default:
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return nil, fmt.Errorf("local: waiting for %s: %w", spec.Command, waitErr)
		}
		res.ExitCode = exitErr.ExitCode()
	}

	r.logger.Debug("process finished",
		slog.String("command", spec.Command),
		slog.Int("exitCode", res.ExitCode),
		slog.Bool("timedOut", res.TimedOut),
		slog.Bool("cancelled", res.Cancelled),
		slog.Duration("duration", res.Duration),
	)

	return res, nil
}

// environ merges extra variables over the base environment. Keys are applied
// in sorted order; exec keeps the last value of a duplicated key.
func (r *Runner) environ(extra map[string]string) []string {
	base := r.config.BaseEnv
	if base == nil {
		base = os.Environ()
	}
	env := append([]string(nil), base...)

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}
