package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/atmet-ai/foundry-facade/internal/observability"
	"github.com/atmet-ai/foundry-facade/internal/upstream"
)

// runServer starts the server and blocks until SIGINT or SIGTERM.
func runServer(ctx context.Context, app *application, logger observability.Logger) {
	if err := app.server.Start(ctx); err != nil {
		fatalWithSync(logger, "failed to start server", observability.Error(err))
		return
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", observability.String("signal", sig.String()))

	shutdownApplication(app, logger)
}

// shutdownApplication drains the server, then flushes traces.
func shutdownApplication(app *application, logger observability.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout.Duration())
	defer cancel()

	if app.server.IsRunning() {
		if err := app.server.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to stop server gracefully", observability.Error(err))
		}
	}

	if app.upstream != nil {
		upstream.StopSDKLogs()
	}

	if err := app.tracer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown tracer", observability.Error(err))
	}

	logger.Info("foundry-facade stopped")
}
