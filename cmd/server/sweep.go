package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/edoardo-nicoli03/stock-market-project/internal/adapter/repository/postgres"
	"github.com/edoardo-nicoli03/stock-market-project/internal/config"
	"github.com/edoardo-nicoli03/stock-market-project/internal/logger"
	"github.com/edoardo-nicoli03/stock-market-project/internal/usecase/sweeper"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one retention sweep over the price history and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		log, err := logger.New(cfg.App.LogLevel)
		if err != nil {
			return err
		}
		defer log.Sync()

		db, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		priceRepo := postgres.NewPriceRepository(db)
		retentionSweeper := sweeper.New(priceRepo, log, sweeper.Config{
			Retention:  cfg.Sweeper.Retention,
			BatchSize:  cfg.Sweeper.BatchSize,
			BatchPause: cfg.Sweeper.BatchPause,
		})

		deleted, err := retentionSweeper.Sweep(context.Background())
		if err != nil {
			return err
		}

		log.Info("retention sweep finished", logger.NewField("deleted", deleted))
		return nil
	},
}
