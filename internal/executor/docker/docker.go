// Package docker runs toolchain processes inside pre-warmed containers.
//
// The workspace base directory is bind mounted at the same path in every
// container, so a ProcessSpec built for the host (Dir, file arguments) runs
// unchanged. Each Run takes a container from the pool, execs one command in
// it and force-removes the container afterwards.
package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/sakif/build-sandbox/internal/apperror"
	"github.com/sakif/build-sandbox/internal/executor"
)

var _ executor.Runner = (*Executor)(nil)

// Executor implements executor.Runner using Docker.
type Executor struct {
	cli    *client.Client
	config Config
	logger *slog.Logger
	pool   *Pool
}

// New creates a new Docker Executor, pulls the image and starts the pool.
func New(cfg Config, logger *slog.Logger) (*Executor, error) {
	if cfg.MountRoot == "" {
		return nil, errors.New("docker: mount root is required")
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker: creating client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	logger.Info("ensuring docker image is available", slog.String("image", cfg.Image))
	reader, err := cli.ImagePull(ctx, cfg.Image, image.PullOptions{})
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("docker: pulling image: %w", err)
	}
	defer reader.Close()
	// Read everything to block until the pull is complete
	_, _ = io.Copy(io.Discard, reader)
	logger.Info("docker image is ready")

	exec := &Executor{
		cli:    cli,
		config: cfg,
		logger: logger,
	}

	exec.pool = NewPool(cli, cfg, logger)
	exec.pool.Start()

	return exec, nil
}

// Close shuts down the executor pool and docker client.
func (e *Executor) Close() error {
	e.pool.Stop()
	return e.cli.Close()
}

// Run execs spec in a fresh container and waits for it, its deadline or ctx.
func (e *Executor) Run(ctx context.Context, spec executor.ProcessSpec) (*executor.ProcessResult, error) {
	start := time.Now()

	containerID, err := e.pool.GetContainer(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return &executor.ProcessResult{Cancelled: true, ExitCode: -1, Duration: time.Since(start)}, nil
		}
		return nil, fmt.Errorf("docker: getting container from pool: %w", err)
	}

	var removeOnce sync.Once
	remove := func() { removeOnce.Do(func() { e.pool.Remove(containerID) }) }
	defer remove()

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if spec.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
	}
	defer cancel()

	execResp, err := e.cli.ContainerExecCreate(runCtx, containerID, container.ExecOptions{
		Cmd:          append([]string{spec.Command}, spec.Args...),
		Env:          envList(spec.Env),
		WorkingDir:   spec.Dir,
		User:         e.config.User,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, fmt.Errorf("docker: creating exec: %w", err)
	}

	attachResp, err := e.cli.ContainerExecAttach(runCtx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, fmt.Errorf("docker: attaching to exec: %w", err)
	}
	defer attachResp.Close()

	out := executor.NewCapture(executor.MaxCapture, spec.Progress)

	done := make(chan struct{})
	go func() {
		// stdcopy demultiplexes the attach stream; both halves go to one
		// capture so the output reads like a terminal.
		_, _ = stdcopy.StdCopy(out, out, attachResp.Reader)
		close(done)
	}()

	res := &executor.ProcessResult{}

	select {
	case <-done:
	case <-runCtx.Done():
		// Removing the container is the only way to kill an exec'd process
		// tree; closing the attach stream then unblocks the copier.
		remove()
		attachResp.Close()
		<-done
		if ctx.Err() != nil {
			res.Cancelled = true
		} else {
			res.TimedOut = true
		}
		res.ExitCode = -1
	}

	out.Flush()
	res.Output = out.String()
	res.Truncated = out.Truncated()
	res.Duration = time.Since(start)

	if res.TimedOut || res.Cancelled {
		return res, nil
	}

	inspectResp, err := e.cli.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return nil, fmt.Errorf("docker: inspecting exec: %w", err)
	}
	res.ExitCode = inspectResp.ExitCode

	if launchFailed(res.ExitCode, res.Output) {
		return nil, apperror.Launch(spec.Command, errors.New(strings.TrimSpace(res.Output)))
	}

	return res, nil
}

// launchFailed recognises the runtime's "could not exec" report. The OCI
// runtime exits 126 (not executable) or 127 (not found) and says so in the
// attach stream.
func launchFailed(exitCode int, output string) bool {
	if exitCode != 126 && exitCode != 127 {
		return false
	}
	return strings.Contains(output, "exec failed") ||
		strings.Contains(output, "executable file not found") ||
		strings.Contains(output, "permission denied")
}

func envList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	list := make([]string, 0, len(keys))
	for _, k := range keys {
		list = append(list, k+"="+env[k])
	}
	return list
}
