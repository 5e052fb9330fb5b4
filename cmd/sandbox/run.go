package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/xid"
	"github.com/spf13/cobra"

	"github.com/sakif/build-sandbox/internal/config"
	"github.com/sakif/build-sandbox/internal/descriptor"
	"github.com/sakif/build-sandbox/internal/model"
	"github.com/sakif/build-sandbox/internal/pipeline"
	"github.com/sakif/build-sandbox/internal/workspace"
)

var (
	runName    string
	runFile    string
	runPackage string
	runWorkdir string
	runOutput  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one Java class through the pipeline",
	Long: `Run compiles, runs, packages and re-runs one Java class, stopping at the
first stage that does not succeed. The build log streams to stderr; the
outcome is printed to stdout. Exits 1 when any stage fails.

Examples:
  sandbox run --name TestComponent --file TestComponent.java
  cat Hello.java | sandbox run --name Hello --file - --output json`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runName, "name", "", "Simple class name (required)")
	runCmd.Flags().StringVar(&runFile, "file", "", "Source file, or - for stdin (required)")
	runCmd.Flags().StringVar(&runPackage, "package", "", "Package of the class (default from config)")
	runCmd.Flags().StringVar(&runWorkdir, "workdir", "", "Workspace directory (default a fresh directory under workspace.base_dir)")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "text", "Output format: text, json or yaml")
	runCmd.MarkFlagRequired("name")
	runCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	code, err := readSource(runFile, cmd.InOrStdin())
	if err != nil {
		return err
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	workdir := runWorkdir
	if workdir == "" {
		workdir = filepath.Join(cfg.Workspace.BaseDir, xid.New().String())
	}

	unit := model.SourceUnit{Name: runName, Package: runPackage, Text: code}
	return runOnce(cmd, cfg, logger, unit, workdir, runOutput)
}

// runOnce executes a single pipeline in workdir, writes the job descriptor
// on success and prints the report. demo shares it.
func runOnce(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, unit model.SourceUnit, workdir, format string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ws, err := workspace.New(workdir)
	if err != nil {
		return err
	}

	runner, closeRunner, err := newRunner(cfg, ws.Root(), logger)
	if err != nil {
		return err
	}
	defer closeRunner()

	pcfg := pipelineConfig(cfg)
	pcfg.Progress = cmd.ErrOrStderr()

	outcome, err := pipeline.New(ws, runner, pcfg, logger).Run(ctx, unit)
	if err != nil {
		return err
	}

	rep := report{Workspace: ws.Root(), Outcome: outcome}
	if outcome.Success {
		job, err := descriptor.WriteJenkinsJob(ws, descriptor.JenkinsJobParams{
			JobName:      descriptor.JobName(unit.Name),
			ArtifactPath: outcome.Artifact(),
			Launcher:     pcfg.Toolchain.Launcher,
		})
		if err != nil {
			return fmt.Errorf("writing job descriptor: %w", err)
		}
		rep.JobDescriptor = job
	}

	if err := writeReport(cmd.OutOrStdout(), format, rep); err != nil {
		return err
	}
	if !outcome.Success {
		return errPipelineFailed
	}
	return nil
}

func readSource(path string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("reading source: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("reading source: %s is empty", path)
	}
	return string(data), nil
}
