package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sakif/build-sandbox/internal/apperror"
	"github.com/sakif/build-sandbox/internal/descriptor"
	"github.com/sakif/build-sandbox/internal/executor"
	"github.com/sakif/build-sandbox/internal/model"
	"github.com/sakif/build-sandbox/internal/workspace"
)

// testSourceDir is created by scaffold so the build tool sees the standard
// layout even though no tests are generated.
const testSourceDir = "src/test/java"

// validate writes the unit to its package path and compiles it in place.
// The .class file lands next to the source, which is what execute runs.
func (p *Pipeline) validate(ctx context.Context, sc *StageContext) model.StageResult {
	path, err := sc.Workspace.WriteSource(sc.Unit.QualifiedName(), sc.Unit.Text)
	if err != nil {
		return failed(err)
	}

	spec := executor.ProcessSpec{
		Command: p.config.Toolchain.Compiler,
		Args:    []string{path},
		Dir:     sc.Workspace.Root(),
	}
	return p.runProcess(ctx, spec, p.config.ValidateTimeout)
}

func (p *Pipeline) execute(ctx context.Context, sc *StageContext) model.StageResult {
	spec := executor.ProcessSpec{
		Command: p.config.Toolchain.Launcher,
		Args:    []string{"-cp", sc.Workspace.SourceRoot(), sc.Unit.QualifiedName()},
		Dir:     sc.Workspace.Root(),
	}
	return p.runProcess(ctx, spec, p.config.ExecuteTimeout)
}

// scaffold writes pom.xml at the workspace root. The artifactId is the unit
// name so the packaged jar is <Name>-<Version>.jar.
func (p *Pipeline) scaffold(_ context.Context, sc *StageContext) model.StageResult {
	pom, err := descriptor.RenderPOM(descriptor.POMParams{
		GroupID:     p.config.GroupID,
		ArtifactID:  sc.Unit.Name,
		Version:     p.config.Version,
		MainClass:   sc.Unit.QualifiedName(),
		JavaRelease: p.config.JavaRelease,
	})
	if err != nil {
		return failed(err)
	}
	path, err := sc.Workspace.WriteFile(descriptor.POMFile, pom)
	if err != nil {
		return failed(err)
	}
	if err := sc.Workspace.MkdirAll(testSourceDir); err != nil {
		return failed(err)
	}
	return model.StageResult{Status: model.StatusSuccess, Diagnostic: "wrote " + path}
}

// pack runs the build tool with its output streamed to the progress sink.
func (p *Pipeline) pack(ctx context.Context, sc *StageContext) model.StageResult {
	spec := executor.ProcessSpec{
		Command:  p.config.Toolchain.BuildTool,
		Args:     p.config.Toolchain.PackageArgs,
		Dir:      sc.Workspace.Root(),
		Progress: sc.Progress,
	}
	if p.config.MavenOpts != "" {
		spec.Env = map[string]string{"MAVEN_OPTS": p.config.MavenOpts}
	}
	return p.runProcess(ctx, spec, p.config.PackageTimeout)
}

// verify picks the packaged jar out of the output root, skipping the
// intermediate original-*.jar the shade plugin leaves behind.
func (p *Pipeline) verify(_ context.Context, sc *StageContext) model.StageResult {
	artifact, ok := sc.Workspace.FindOutputArtifact(workspace.IsPackagedArtifact)
	if !ok {
		return failed(apperror.ArtifactNotFound(sc.Workspace.OutputRoot()))
	}
	return model.StageResult{Status: model.StatusSuccess, Artifact: artifact, Diagnostic: artifact}
}

func (p *Pipeline) runArtifact(ctx context.Context, sc *StageContext) model.StageResult {
	artifact := priorArtifact(sc.Prior)
	if artifact == "" {
		return failed(apperror.ArtifactNotFound(sc.Workspace.OutputRoot()))
	}

	spec := executor.ProcessSpec{
		Command: p.config.Toolchain.Launcher,
		Args:    []string{"-jar", artifact},
		Dir:     sc.Workspace.Root(),
	}
	out := p.runProcess(ctx, spec, p.config.RunTimeout)
	out.Artifact = artifact
	return out
}

func (p *Pipeline) runProcess(ctx context.Context, spec executor.ProcessSpec, deadline time.Duration) model.StageResult {
	res, err := executor.RunWithDeadline(ctx, p.runner, spec, deadline)
	spec.Timeout = deadline
	return fromProcess(spec, res, err)
}

func priorArtifact(prior []model.StageResult) string {
	for _, r := range prior {
		if r.Stage == model.StageVerify && r.OK() {
			return r.Artifact
		}
	}
	return ""
}

func failed(err error) model.StageResult {
	return model.StageResult{Status: model.StatusFailure, Diagnostic: err.Error(), ExitCode: -1}
}

// fromProcess maps a runner result onto a stage result. The diagnostic is
// never empty for a stage that did not succeed.
func fromProcess(spec executor.ProcessSpec, res *executor.ProcessResult, err error) model.StageResult {
	if err != nil {
		return failed(err)
	}

	output := strings.TrimRight(res.Output, "\n")
	if res.Truncated {
		output += fmt.Sprintf("\n[output truncated at %d bytes]", executor.MaxCapture)
	}

	switch {
	case res.TimedOut:
		return model.StageResult{
			Status:     model.StatusTimedOut,
			Diagnostic: withOutput(apperror.TimedOut(spec.Command, spec.Timeout).Error(), output),
			ExitCode:   -1,
		}
	case res.Cancelled:
		return model.StageResult{
			Status:     model.StatusCancelled,
			Diagnostic: withOutput(apperror.Cancelled(spec.Command).Error(), output),
			ExitCode:   -1,
		}
	case res.ExitCode != 0:
		diag := output
		if strings.TrimSpace(diag) == "" {
			diag = fmt.Sprintf("%s exited with status %d", spec.Command, res.ExitCode)
		}
		return model.StageResult{Status: model.StatusFailure, Diagnostic: diag, ExitCode: res.ExitCode}
	}
	return model.StageResult{Status: model.StatusSuccess, Diagnostic: output}
}

func withOutput(msg, output string) string {
	if strings.TrimSpace(output) == "" {
		return msg
	}
	return msg + "\n" + output
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
