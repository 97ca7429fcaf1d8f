package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"sosnet/internal/components"
	"sosnet/internal/config"
)

func Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		components.SetupLogger("local").Error("load config failed", "err", err)
		return err
	}
	logger := components.SetupLogger(cfg.Env)

	comps, err := components.InitComponents(ctx, cfg, logger)
	if err != nil {
		logger.Error("could not init components", "err", err)
		return err
	}
	defer comps.ShutdownAll()

	if err := comps.Run(ctx); err != nil {
		logger.Error("component failed", "err", err)
		return err
	}

	logger.Info("captured signal, shut down gracefully")
	return nil
}
