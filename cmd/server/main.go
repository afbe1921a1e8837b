package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newsfold/newsfold/internal/app"
	"github.com/newsfold/newsfold/internal/config"
	"github.com/newsfold/newsfold/internal/logging"
)

func main() {
	cfg := config.Load()

	application, err := app.New(cfg)
	if err != nil {
		fallback := logging.New(logging.LevelError)
		fallback.Error("Failed to initialize application", logging.WithField("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Run(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		application.Logger.Info("Received signal, shutting down", logging.WithField("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			application.Logger.Error("Server stopped", logging.WithField("error", err.Error()))
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		application.Logger.Error("Shutdown error", logging.WithField("error", err.Error()))
	}
}
