package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"raffle/internal/config"
	"raffle/internal/logger"

	"go.uber.org/zap"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "raffled: %v\n", err)
		os.Exit(1)
	}

	logger.Initialize(cfg.Log)
	defer logger.Sync()

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, cfg)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("raffled: stopped because of an error", zap.Error(err))
			logger.Sync()
			os.Exit(1)
		}
	case <-waitForInterrupt():
		logger.Info("raffled: interrupt received, shutting down...")
		cancel()
		if err := <-errCh; err != nil {
			logger.Error("raffled: shutdown failed", zap.Error(err))
		}
		logger.Info("raffled: shutting down... done")
	}
}

func waitForInterrupt() <-chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	return sigCh
}
