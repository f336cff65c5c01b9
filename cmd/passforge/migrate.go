package main

import (
	"fmt"
	"time"

	"passforge/config"
	"passforge/internal/infrastructure/postgres"
	"passforge/utils/logger"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending profile store migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		log := logger.Init(false)
		ctx := logger.WithOperation(cmd.Context(), "migrate")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for migrate")
		}

		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return err
		}
		defer pool.Close()

		start := time.Now()
		applied, err := postgres.NewMigrator(pool, log).Up(ctx)
		if err != nil {
			logger.GlobalContext.LogError(ctx, "migrate", err)
			return fmt.Errorf("apply migrations: %w", err)
		}
		logger.GlobalContext.LogDuration(ctx, "migrate", time.Since(start))
		log.InfoContext(ctx, "migrations complete", "applied", applied)
		return nil
	},
}
