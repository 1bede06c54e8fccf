package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tendant/simple-image-handler/internal/logging"
	"github.com/tendant/simple-image-handler/pkg/runner"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long: `Run the HTTP server.

Endpoints:
  GET  /health
  GET  /metrics
  GET  /image?src=...        render (or return the cached rendition)
  POST /v1/warm              render ahead of demand
  GET  /v1/warm/{runID}      status of a queued warm (DBOS only)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), rootOpts, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")

	return cmd
}

func serve(ctx context.Context, rootOpts *RootOptions, addr string) error {
	cfg, _, err := rootOpts.load()
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	logger := logging.New(&cfg.Logging)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r, err := runner.New(ctx, cfg, logger)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("image handler listening",
			"addr", cfg.Server.Addr,
			"provider", cfg.Components.Provider,
			"tool", cfg.Components.Tool,
			"store", cfg.Components.Store,
			"parameters", cfg.Components.Parameters,
			"dbos", cfg.DBOS.Enabled(),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			r.Shutdown(cfg.ShutdownTimeoutDuration())
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeoutDuration())
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if err := r.Shutdown(cfg.ShutdownTimeoutDuration()); err != nil {
		logger.Warn("component shutdown failed", "error", err)
	}

	logger.Info("server stopped")
	return nil
}
