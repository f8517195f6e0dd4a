package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/server"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve /optimize, /retrieve, /health and /metrics over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

// #region serve
func serve(ctx context.Context) error {
	a, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	limiter, limiterCloser := newLimiter(cfg)
	defer limiterCloser.Close()

	if cfg.APIKey == "" && cfg.JWTSecret == "" {
		logger.Warn("neither api-key nor jwt-secret set, /retrieve will reject every request")
	}

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: server.NewRouter(&server.Container{
			Pipeline: a.pipeline,
			Runs:     a.ledger,
			Auth:     server.NewAuthenticator(cfg.APIKey, cfg.JWTSecret),
			Limiter:  limiter,
			Metrics:  a.metrics,
			Logger:   logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr, "db", cfg.DB, "primary", cfg.Primary.Kind)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen %s: %w", cfg.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// #endregion serve
