package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/dossier/internal/api"
	"github.com/MikeSquared-Agency/dossier/internal/hermes"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and NATS handlers",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.Default()
		logger.Info("dossier starting", "port", cfg.Port)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		a, err := newApp(ctx, logger, true)
		if err != nil {
			return err
		}
		defer a.close()

		if a.hermes != nil {
			if err := a.hermes.Subscribe(hermes.SubjectTranscriptSubmitted, a.proc.HandleTranscriptSubmitted); err != nil {
				return err
			}
		}

		srv := api.NewServer(cfg.Port, cfg.APIToken, a.proc, logger)
		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		if cfg.APIToken == "" {
			logger.Warn("DOSSIER_API_TOKEN not set, profile routes are unauthenticated")
		}
		logger.Info("dossier ready", "port", cfg.Port, "taxonomy", a.proc.Taxonomy().Version)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sigCh:
		case err := <-errCh:
			if err != nil {
				logger.Error("HTTP server error", "error", err)
				return err
			}
		}

		logger.Info("shutting down")
		shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
		defer stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP shutdown incomplete", "error", err)
		}
		cancel()
		logger.Info("dossier stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVarP(&cfg.Port, "port", "p", cfg.Port, "listen port")
	rootCmd.AddCommand(serveCmd)
}
