// Package executor defines how the pipeline starts external toolchain
// processes. Implementations live in the local and docker subpackages.
package executor

import (
	"context"
	"io"
	"time"
)

// MaxCapture is how much combined output a ProcessResult keeps. Everything
// past it is still streamed to ProcessSpec.Progress, just not retained.
const MaxCapture = 64 * 1024

// ProcessSpec is the invocation contract for one subprocess.
type ProcessSpec struct {
	// Command is the executable name, resolved through PATH.
	Command string
	Args    []string
	// Dir is the working directory. It is always set explicitly; runners
	// never fall back to the caller's current directory.
	Dir string
	// Env holds extra variables on top of the runner's base environment.
	Env map[string]string
	// Timeout is a wall-clock deadline. Zero means wait for as long as the
	// process runs.
	Timeout time.Duration
	// Progress, when non-nil, receives combined stdout/stderr one line per
	// Write as the process produces it.
	Progress io.Writer
}

// ProcessResult is what came back from a process that was started.
//
// A process killed at its deadline is a normal result (TimedOut), not an
// error. Same for Cancelled, when the caller's context ended first.
type ProcessResult struct {
	ExitCode  int
	Output    string
	Truncated bool
	TimedOut  bool
	Cancelled bool
	Duration  time.Duration
}

// Success reports a clean zero exit.
func (r *ProcessResult) Success() bool {
	return !r.TimedOut && !r.Cancelled && r.ExitCode == 0
}

// Runner starts one process and waits for it.
//
// Run returns an *apperror.AppError wrapping ErrLaunch when the command
// cannot be started at all. Every other outcome, including non-zero exits,
// deadline kills and cancellation, is reported through ProcessResult.
type Runner interface {
	Run(ctx context.Context, spec ProcessSpec) (*ProcessResult, error)
}

// RunWithDeadline runs spec with its Timeout replaced by d. Stages with a
// bounded wall-clock budget go through here.
func RunWithDeadline(ctx context.Context, r Runner, spec ProcessSpec, d time.Duration) (*ProcessResult, error) {
	spec.Timeout = d
	return r.Run(ctx, spec)
}
