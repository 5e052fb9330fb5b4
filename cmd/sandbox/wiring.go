package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/build-sandbox/internal/config"
	"github.com/sakif/build-sandbox/internal/executor"
	"github.com/sakif/build-sandbox/internal/executor/docker"
	"github.com/sakif/build-sandbox/internal/executor/local"
	"github.com/sakif/build-sandbox/internal/pipeline"
	"github.com/sakif/build-sandbox/internal/publish"
	"github.com/sakif/build-sandbox/internal/repository/sqlite"
	"github.com/sakif/build-sandbox/internal/service"
)

func pipelineConfig(cfg *config.Config) pipeline.Config {
	return pipeline.Config{
		Package:         cfg.Pipeline.Package,
		GroupID:         cfg.Pipeline.GroupID,
		Version:         cfg.Pipeline.Version,
		JavaRelease:     cfg.Pipeline.JavaRelease,
		MavenOpts:       cfg.Pipeline.MavenOpts,
		ValidateTimeout: cfg.Pipeline.ValidateTimeout,
		ExecuteTimeout:  cfg.Pipeline.ExecuteTimeout,
		PackageTimeout:  cfg.Pipeline.PackageTimeout,
		RunTimeout:      cfg.Pipeline.RunTimeout,
		Toolchain: pipeline.Toolchain{
			Compiler:    cfg.Toolchain.Compiler,
			Launcher:    cfg.Toolchain.Launcher,
			BuildTool:   cfg.Toolchain.BuildTool,
			PackageArgs: cfg.Toolchain.PackageArgs,
		},
	}
}

// newRunner returns the configured process runner. mountRoot is the
// directory every workspace of this process lives under; the docker runner
// bind mounts it into its containers.
func newRunner(cfg *config.Config, mountRoot string, logger *slog.Logger) (executor.Runner, func(), error) {
	if cfg.Executor.Kind != config.ExecutorDocker {
		return local.New(local.DefaultConfig(), logger), func() {}, nil
	}

	dcfg, err := dockerConfig(cfg, mountRoot)
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(dcfg.MountRoot, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating workspace root: %w", err)
	}

	exec, err := docker.New(dcfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("starting docker executor: %w", err)
	}
	return exec, func() { exec.Close() }, nil
}

// dockerConfig maps the executor section onto docker.Config. The mount root
// is made absolute the same way workspace.New resolves its root; docker
// rejects relative bind sources.
func dockerConfig(cfg *config.Config, mountRoot string) (docker.Config, error) {
	abs, err := filepath.Abs(mountRoot)
	if err != nil {
		return docker.Config{}, fmt.Errorf("resolving workspace root %s: %w", mountRoot, err)
	}

	d := cfg.Executor.Docker
	return docker.Config{
		Image:       d.Image,
		MemoryLimit: d.MemoryMB * 1024 * 1024,
		CPULimit:    d.CPUs,
		PoolSize:    d.PoolSize,
		MountRoot:   abs,
		NetworkMode: d.NetworkMode,
		User:        d.User,
	}, nil
}

// newRunService opens the history store, the runner and, when configured,
// the publisher. The returned func releases all of them.
func newRunService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*service.RunService, func(), error) {
	db, err := sqlite.New(cfg.Storage.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening storage: %w", err)
	}

	runner, closeRunner, err := newRunner(cfg, cfg.Workspace.BaseDir, logger)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	cleanup := func() {
		closeRunner()
		db.Close()
	}

	var publisher service.Publisher
	if cfg.Publish.Enabled() {
		p, err := publish.New(publish.Config{
			Endpoint:  cfg.Publish.Endpoint,
			AccessKey: cfg.Publish.AccessKey,
			SecretKey: cfg.Publish.SecretKey,
			Bucket:    cfg.Publish.Bucket,
			Region:    cfg.Publish.Region,
			UseSSL:    cfg.Publish.UseSSL,
			Prefix:    cfg.Publish.Prefix,
		}, logger)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		if err := p.EnsureBucket(ctx); err != nil {
			cleanup()
			return nil, nil, err
		}
		publisher = p
	}

	svc := service.NewRunService(db, runner, publisher, service.RunServiceConfig{
		BaseDir:  cfg.Workspace.BaseDir,
		Pipeline: pipelineConfig(cfg),
	}, logger)

	return svc, cleanup, nil
}
