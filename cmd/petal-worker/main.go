package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"petal/internal/config"
	"petal/internal/db"
	"petal/internal/loyalty"
	"petal/internal/store"

	"github.com/joho/godotenv"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file, using environment")
	}

	cfg, err := config.LoadWorkerFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	pool, err := db.Connect(ctx, cfg.DatabaseURL, db.Options{MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	rec := loyalty.NewReconciler(store.NewPostgres(pool), logger, loyalty.ReconcilerConfig{
		CycleDays:      cfg.CycleDays,
		PageSize:       cfg.PageSize,
		MaxPagesPerRun: cfg.MaxPagesPerRun,
		StoreTimeout:   cfg.StoreTimeout,
	})

	runOnce := strings.EqualFold(strings.TrimSpace(os.Getenv("PETAL_WORKER_RUN_ONCE")), "true")
	if runOnce {
		if _, err := rec.Run(ctx, time.Now().UTC()); err != nil {
			logger.Error("reconciliation failed", "err", err)
			os.Exit(1)
		}
		logger.Info("worker run-once completed")
		return
	}

	ticker := time.NewTicker(cfg.RunEvery)
	defer ticker.Stop()

	logger.Info("worker started", "run_every", cfg.RunEvery.String(), "cycle_days", cfg.CycleDays)
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutdown")
			return
		case <-ticker.C:
			if _, err := rec.Run(ctx, time.Now().UTC()); err != nil {
				logger.Error("reconciliation failed", "err", err)
				continue
			}
		}
	}
}
