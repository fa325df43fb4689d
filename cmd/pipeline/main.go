package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"car-sales-pipeline/internal/config"
	"car-sales-pipeline/internal/pipeline"
	"car-sales-pipeline/internal/store"
	"car-sales-pipeline/pkg/log"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	envFile := flag.String("env", ".env", "optional .env file with CARSALES_* overrides")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := log.New(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("pipeline run failed")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := store.NewSQLiteStore(cfg.Database.Path, cfg.Database.Table)
	logger.WithFields(log.Fields{"database": st.Path(), "table": cfg.Database.Table}).Debug("store configured")

	p, err := pipeline.New(cfg, st, logger)
	if err != nil {
		return err
	}
	return p.Run(ctx)
}
