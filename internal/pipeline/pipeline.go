// Package pipeline runs one submitted source unit through the fixed sequence
// of toolchain stages: validate, execute, scaffold, package, verify and
// run-artifact.
//
// STAGE TABLE:
// The stages are a slice of Stage values (name + function) walked by a
// single loop in Run. The loop stops at the first result that is not a
// success, so a compile error means no process after javac is ever started.
//
// SIDE EFFECTS:
// Nothing is rolled back. Whatever the stages wrote before a failure (the
// source file, .class files, pom.xml, target/) stays in the workspace for
// inspection.
//
// EXECUTE vs RUN-ARTIFACT:
// Both stages run the submitted code: execute runs the compiled class from
// the source root, run-artifact runs the packaged jar. Execute is the cheap
// early exit before the packaging step, which usually dominates the run time.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/sakif/build-sandbox/internal/executor"
	"github.com/sakif/build-sandbox/internal/model"
	"github.com/sakif/build-sandbox/internal/workspace"
)

// Stage is one row of the stage table.
type Stage struct {
	Name model.StageName
	Run  func(ctx context.Context, sc *StageContext) model.StageResult
}

// StageContext is what a stage gets to work with: the workspace, the unit
// and the results of the stages before it.
type StageContext struct {
	Workspace *workspace.Workspace
	Unit      model.SourceUnit
	Prior     []model.StageResult
	Progress  io.Writer
}

// Pipeline binds the stage table to one workspace and one process runner.
type Pipeline struct {
	ws     *workspace.Workspace
	runner executor.Runner
	config Config
	logger *slog.Logger
	stages []Stage
}

// New creates a Pipeline. Zero-valued toolchain fields fall back to the
// defaults.
func New(ws *workspace.Workspace, runner executor.Runner, cfg Config, logger *slog.Logger) *Pipeline {
	def := DefaultToolchain()
	if cfg.Toolchain.Compiler == "" {
		cfg.Toolchain.Compiler = def.Compiler
	}
	if cfg.Toolchain.Launcher == "" {
		cfg.Toolchain.Launcher = def.Launcher
	}
	if cfg.Toolchain.BuildTool == "" {
		cfg.Toolchain.BuildTool = def.BuildTool
	}
	if len(cfg.Toolchain.PackageArgs) == 0 {
		cfg.Toolchain.PackageArgs = def.PackageArgs
	}
	if cfg.Progress == nil {
		cfg.Progress = io.Discard
	}

	p := &Pipeline{
		ws:     ws,
		runner: runner,
		config: cfg,
		logger: logger,
	}
	p.stages = []Stage{
		{Name: model.StageValidate, Run: p.validate},
		{Name: model.StageExecute, Run: p.execute},
		{Name: model.StageScaffold, Run: p.scaffold},
		{Name: model.StagePackage, Run: p.pack},
		{Name: model.StageVerify, Run: p.verify},
		{Name: model.StageRunArtifact, Run: p.runArtifact},
	}
	return p
}

// Stages returns the stage names in execution order.
func (p *Pipeline) Stages() []model.StageName {
	names := make([]model.StageName, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name
	}
	return names
}

// Run executes the stages in order against unit and returns the outcome.
//
// The only error Run returns is an ErrValidation AppError for a unit that
// cannot name a class. Every failure past that point, including a cancelled
// ctx, is reported inside the outcome.
func (p *Pipeline) Run(ctx context.Context, unit model.SourceUnit) (*model.PipelineOutcome, error) {
	unit = unit.WithDefaultPackage(p.config.Package)
	if err := ValidateUnit(unit); err != nil {
		return nil, err
	}

	sc := &StageContext{
		Workspace: p.ws,
		Unit:      unit,
		Progress:  p.config.Progress,
	}
	results := make([]model.StageResult, 0, len(p.stages))

	p.logger.Info("pipeline started",
		slog.String("unit", unit.QualifiedName()),
		slog.String("workspace", p.ws.Root()),
	)

	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			results = append(results, model.StageResult{
				Stage:      stage.Name,
				Status:     model.StatusCancelled,
				Diagnostic: fmt.Sprintf("not started: %v", err),
				ExitCode:   -1,
			})
			break
		}

		fmt.Fprintf(sc.Progress, "==> %s\n", stage.Name)
		start := time.Now()

		res := stage.Run(ctx, sc)
		res.Stage = stage.Name
		res.Duration = time.Since(start)

		results = append(results, res)
		sc.Prior = results

		p.logStage(res)
		if !res.OK() {
			break
		}
	}

	outcome := model.NewOutcome(results, len(p.stages))

	if outcome.Success {
		fmt.Fprintln(sc.Progress, "==> pipeline succeeded")
		p.logger.Info("pipeline succeeded", slog.String("artifact", outcome.Artifact()))
	} else {
		fmt.Fprintf(sc.Progress, "==> pipeline failed at %s\n", outcome.FailedStage)
		p.logger.Warn("pipeline failed", slog.String("stage", string(outcome.FailedStage)))
	}

	return outcome, nil
}

func (p *Pipeline) logStage(res model.StageResult) {
	attrs := []any{
		slog.String("stage", string(res.Stage)),
		slog.String("status", string(res.Status)),
		slog.Int("exitCode", res.ExitCode),
		slog.Duration("duration", res.Duration),
	}
	if res.OK() {
		p.logger.Info("stage finished", attrs...)
		return
	}
	attrs = append(attrs, slog.String("diagnostic", firstLine(res.Diagnostic)))
	p.logger.Warn("stage did not succeed", attrs...)
}
