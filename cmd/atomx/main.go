package main

import (
	"context"
	"flag"
	"os"

	"go.uber.org/zap"

	"github.com/atomx-labs/atomx/internal/app"
	"github.com/atomx-labs/atomx/internal/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.json", "path to configuration file")
	dev := flag.Bool("dev", false, "development logging")
	flag.Parse()

	log, err := logger.New(&logger.Config{
		LogFile:     "atomx.log",
		MaxSizeMB:   100,
		MaxAgeDays:  7,
		MaxBackups:  3,
		Compress:    true,
		Development: *dev,
	})
	if err != nil {
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting atomx daemon")

	runner := app.NewRunner(log.Logger)
	if err := runner.Initialize(*configPath); err != nil {
		log.Fatal("failed to initialize daemon", zap.Error(err))
	}

	if err := runner.Run(ctx); err != nil {
		log.Fatal("daemon execution error", zap.Error(err))
	}
}
