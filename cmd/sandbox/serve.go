package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sakif/build-sandbox/internal/auth"
	"github.com/sakif/build-sandbox/internal/server"
)

var portFlag int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP server with the run API and the WebSocket progress stream.

Endpoints:
  POST /api/runs          submit a class, answer when the pipeline is done
  GET  /api/runs          list recorded runs
  GET  /api/runs/{id}     one recorded run
  GET  /api/runs/stream   WebSocket: submit, then receive the build log live
  GET  /healthz

Set auth.jwt_secret to require bearer tokens (see "sandbox token").

Examples:
  sandbox serve
  sandbox serve --port 9090`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if portFlag != 0 {
		cfg.Server.Port = portFlag
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, cleanup, err := newRunService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	var tokens *auth.TokenService
	if cfg.Auth.JWTSecret != "" {
		tokens, err = auth.NewTokenService(cfg.Auth.JWTSecret)
		if err != nil {
			return fmt.Errorf("configuring auth: %w", err)
		}
	} else {
		logger.Warn("auth.jwt_secret not set, the run API is open")
	}

	logger.Info("run history", slog.String("database", cfg.Storage.DBPath))

	srvCfg := server.DefaultConfig()
	srvCfg.Port = cfg.Server.Port
	return server.New(srvCfg, svc, tokens, logger).Start(ctx)
}
