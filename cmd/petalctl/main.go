package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"petal/internal/config"
	"petal/internal/db"
	"petal/internal/game"
	"petal/internal/loyalty"
	"petal/internal/store"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:          "petalctl",
		Short:        "Petal loyalty admin tools",
		SilenceUsage: true,
	}

	root.AddCommand(
		newReconcileCmd(),
		newInspectCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run the cycle reconciliation pass once, now",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadWorkerFromEnv()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
			defer cancel()

			pool, err := db.Connect(ctx, cfg.DatabaseURL, db.Options{MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
			if err != nil {
				return err
			}
			defer pool.Close()

			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
			rec := loyalty.NewReconciler(store.NewPostgres(pool), logger, loyalty.ReconcilerConfig{
				CycleDays:      cfg.CycleDays,
				PageSize:       cfg.PageSize,
				MaxPagesPerRun: cfg.MaxPagesPerRun,
				StoreTimeout:   cfg.StoreTimeout,
			})
			sum, err := rec.Run(ctx, time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Printf("scanned=%d reset=%d skipped=%d failed=%d\n",
				sum.Scanned, sum.Reset, sum.Skipped, sum.Failed)
			return nil
		},
	}
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <customer-id>",
		Short: "Print a customer's loyalty and game documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadWorkerFromEnv()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			pool, err := db.Connect(ctx, cfg.DatabaseURL, db.Options{MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
			if err != nil {
				return err
			}
			defer pool.Close()

			rec, err := store.NewPostgres(pool).FindByExternalID(ctx, args[0])
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(map[string]any{
				"external_id": rec.ExternalID,
				"version":     rec.Version,
				"loyalty":     rec.Attributes[loyalty.AttributeKey],
				"game":        rec.Attributes[game.AttributeKey],
			}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}
