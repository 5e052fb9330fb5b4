// Command sandbox validates, runs and packages submitted Java classes.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sakif/build-sandbox/internal/config"
)

var configFlag string

// errPipelineFailed makes the process exit 1 without printing anything
// beyond the outcome the command already wrote.
var errPipelineFailed = errors.New("pipeline failed")

var rootCmd = &cobra.Command{
	Use:   "sandbox",
	Short: "Java build sandbox",
	Long: `sandbox takes one Java class, compiles and runs it, packages it with
Maven and runs the packaged jar, stopping at the first stage that fails.

It runs once from the command line, serves an HTTP/WebSocket API, or
exposes the pipeline as an MCP tool.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default ./sandbox.yaml or $HOME/.sandbox/sandbox.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errPipelineFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// loadConfig reads the configuration and builds the logger. Logs go to
// stderr so stdout stays clean for outcomes and the MCP protocol.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))
	return cfg, logger, nil
}
