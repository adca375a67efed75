package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/allisson/panvault/internal/app"
	"github.com/allisson/panvault/internal/config"
)

// RunServer starts the HTTP server with graceful shutdown support.
//
// Startup order matters: the keyring must establish a current key before the
// server accepts traffic, so readiness flips only after the first rotation
// succeeds. The rotation loop, the retention sweeper and both HTTP servers
// then run until SIGINT/SIGTERM or a fatal component error.
func RunServer(ctx context.Context, version string) error {
	// Load configuration
	cfg := config.Load()

	// Set Gin mode based on log level
	gin.SetMode(cfg.GetGinMode())

	// Create DI container
	container := app.NewContainer(cfg)

	// Get logger from container
	logger := container.Logger()
	logger.Info("starting server", slog.String("version", version))

	// Ensure cleanup on exit (zeroes key material)
	defer closeContainer(container, logger)

	keyring, err := container.Keyring()
	if err != nil {
		return fmt.Errorf("failed to initialize keyring: %w", err)
	}

	sweeper, err := container.Sweeper()
	if err != nil {
		return fmt.Errorf("failed to initialize retention sweeper: %w", err)
	}

	// Get HTTP server from container (this initializes all dependencies)
	server, err := container.HTTPServer()
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	// Get Metrics server from container
	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Establish the first current key before accepting traffic. Init retries
	// on a fixed interval, so a database or KMS outage delays readiness
	// instead of crashing the process.
	logger.Info("establishing initial data key")
	if err := keyring.Init(ctx); err != nil {
		return fmt.Errorf("keyring initialization aborted: %w", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := keyring.Start(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("key rotation loop error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		if err := sweeper.Start(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("retention sweeper error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		if err := server.Start(groupCtx); err != nil {
			return fmt.Errorf("api server error: %w", err)
		}
		return nil
	})

	if metricsServer != nil {
		group.Go(func() error {
			if err := metricsServer.Start(groupCtx); err != nil {
				return fmt.Errorf("metrics server error: %w", err)
			}
			return nil
		})
	}

	// Wait for shutdown signal or component failure, then stop the servers so
	// their goroutines return.
	<-groupCtx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer shutdownCancel()

	var shutdownErrors []error

	if err := server.Shutdown(shutdownCtx); err != nil {
		shutdownErrors = append(shutdownErrors, fmt.Errorf("api server shutdown: %w", err))
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	if err := group.Wait(); err != nil {
		shutdownErrors = append(shutdownErrors, err)
	}

	if len(shutdownErrors) > 0 {
		return errors.Join(shutdownErrors...)
	}

	return nil
}
