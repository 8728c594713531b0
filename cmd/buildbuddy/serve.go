package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-buildbuddy/internal/config"
	"go-buildbuddy/internal/container"
	"go-buildbuddy/internal/logger"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the BuildBuddy HTTP API",
	Long: `Start the HTTP API. The server starts even without ANTHROPIC_API_KEY;
analysis endpoints then answer 503 with setup instructions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return errors.Wrap(err, "failed to load config")
		}
		if host, _ := cmd.Flags().GetString("host"); host != "" {
			cfg.Host = host
		}
		if port, _ := cmd.Flags().GetString("port"); port != "" {
			cfg.Port = port
		}

		c, err := container.NewContainer(cfg)
		if err != nil {
			return errors.Wrap(err, "failed to initialize container")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return runServer(ctx, newServer(cfg, c.Handler()))
	},
}

func init() {
	serveCmd.Flags().String("host", "", "Host to bind to (overrides HOST)")
	serveCmd.Flags().String("port", "", "Port to bind to (overrides PORT)")
}

// newServer bounds reading the request with REQUEST_TIMEOUT. WriteTimeout is
// left unset so a slow model call, or the fallback written after it, is never
// cut off mid-response.
func newServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.ServerAddress(),
		Handler:           handler,
		ReadHeaderTimeout: cfg.RequestTimeout,
		ReadTimeout:       cfg.RequestTimeout,
	}
}

// runServer serves until ctx is done, then shuts down gracefully
func runServer(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)

	// Start server in a goroutine
	go func() {
		logger.WithFields(logrus.Fields{
			"address":      server.Addr,
			"read_timeout": server.ReadTimeout,
		}).Info("Starting HTTP server")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return errors.Wrap(err, "failed to start server")
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")

	// Create a deadline for shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "server forced to shutdown")
	}

	logger.Info("Server exited")
	return nil
}
