// Package service holds the application logic between the transports (HTTP,
// WebSocket, MCP, CLI) and the pipeline.
//
// Each submission gets its own workspace directory named after the run id,
// so concurrent submissions never share files.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/build-sandbox/internal/apperror"
	"github.com/sakif/build-sandbox/internal/descriptor"
	"github.com/sakif/build-sandbox/internal/executor"
	"github.com/sakif/build-sandbox/internal/model"
	"github.com/sakif/build-sandbox/internal/pipeline"
	"github.com/sakif/build-sandbox/internal/repository"
	"github.com/sakif/build-sandbox/internal/workspace"
)

const (
	MaxCodeLength    = 100000
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Publisher uploads the files of a successful run. publish.Publisher
// implements it.
type Publisher interface {
	Publish(ctx context.Context, runID string, files []string) ([]string, error)
}

type RunServiceConfig struct {
	// BaseDir is where per-run workspaces are created.
	BaseDir  string
	Pipeline pipeline.Config
}

type RunService struct {
	repo      repository.RunRepository
	runner    executor.Runner
	publisher Publisher
	config    RunServiceConfig
	logger    *slog.Logger
}

// NewRunService wires the service. publisher may be nil.
func NewRunService(
	repo repository.RunRepository,
	runner executor.Runner,
	publisher Publisher,
	cfg RunServiceConfig,
	logger *slog.Logger,
) *RunService {
	return &RunService{
		repo:      repo,
		runner:    runner,
		publisher: publisher,
		config:    cfg,
		logger:    logger,
	}
}

type SubmitRequest struct {
	Name    string
	Package string
	Code    string
	// SubmittedBy is the authenticated subject, empty when auth is off.
	SubmittedBy string
}

// Submit runs one source unit through the pipeline and records the run.
//
// A pipeline that stops at some stage is still a successful Submit: the
// returned Run carries the outcome. Errors are reserved for bad input and
// for infrastructure failures (workspace, job descriptor, history store).
// progress may be nil.
func (s *RunService) Submit(ctx context.Context, req SubmitRequest, progress io.Writer) (*model.Run, error) {
	unit := model.SourceUnit{
		Name:    strings.TrimSpace(req.Name),
		Package: strings.TrimSpace(req.Package),
		Text:    req.Code,
	}.WithDefaultPackage(s.config.Pipeline.Package)

	if strings.TrimSpace(unit.Text) == "" {
		return nil, apperror.ValidationFailed("code", "code is required")
	}
	if len(unit.Text) > MaxCodeLength {
		return nil, apperror.ValidationFailed("code",
			fmt.Sprintf("code must be %d characters or less", MaxCodeLength))
	}
	if err := pipeline.ValidateUnit(unit); err != nil {
		return nil, err
	}

	id := xid.New().String()
	logger := s.logger.With(slog.String("run", id))

	ws, err := workspace.New(filepath.Join(s.config.BaseDir, id))
	if err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}

	pcfg := s.config.Pipeline
	pcfg.Progress = progress

	outcome, err := pipeline.New(ws, s.runner, pcfg, logger).Run(ctx, unit)
	if err != nil {
		return nil, err
	}

	run := &model.Run{
		ID:          id,
		Name:        unit.Name,
		Package:     unit.Package,
		Workspace:   ws.Root(),
		Success:     outcome.Success,
		FailedStage: outcome.FailedStage,
		Outcome:     outcome,
		SubmittedBy: req.SubmittedBy,
	}

	if outcome.Success {
		job, err := descriptor.WriteJenkinsJob(ws, descriptor.JenkinsJobParams{
			JobName:      descriptor.JobName(unit.Name),
			ArtifactPath: outcome.Artifact(),
			Launcher:     s.config.Pipeline.Toolchain.Launcher,
		})
		if err != nil {
			return nil, fmt.Errorf("writing job descriptor: %w", err)
		}
		run.JobDescriptor = job
		run.PublishedKeys = s.publish(ctx, logger, id, outcome.Artifact(), job)
	}

	// A cancelled submission is still recorded.
	if err := s.repo.Create(context.WithoutCancel(ctx), run); err != nil {
		logger.Error("failed to record run", slog.String("error", err.Error()))
		return nil, fmt.Errorf("recording run: %w", err)
	}

	logger.Info("run recorded",
		slog.String("name", run.Name),
		slog.Bool("success", run.Success),
		slog.String("failedStage", string(run.FailedStage)),
	)

	return run, nil
}

// publish uploads the artifact and job descriptor. Upload failures are
// logged and do not fail the run; the keys that did upload are kept.
func (s *RunService) publish(ctx context.Context, logger *slog.Logger, id string, files ...string) []string {
	if s.publisher == nil {
		return nil
	}
	keys, err := s.publisher.Publish(ctx, id, files)
	if err != nil {
		logger.Warn("publishing run outputs failed", slog.String("error", err.Error()))
	}
	return keys
}

func (s *RunService) Get(ctx context.Context, id string) (*model.Run, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "run ID is required")
	}
	return s.repo.GetByID(ctx, id)
}

// List returns recorded runs newest first, clamping limit and offset.
func (s *RunService) List(ctx context.Context, opts repository.ListOptions) ([]model.Run, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultListLimit
	}
	if opts.Limit > MaxListLimit {
		opts.Limit = MaxListLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	runs, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}
