package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edoardo-nicoli03/stock-market-project/internal/adapter/repository/postgres"
	"github.com/edoardo-nicoli03/stock-market-project/internal/config"
	"github.com/edoardo-nicoli03/stock-market-project/internal/logger"
	"github.com/edoardo-nicoli03/stock-market-project/internal/usecase/seeder"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Migrate the database and load the sample instruments and accounts",
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

		ctx := context.Background()
		if err := postgres.Migrate(ctx, db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		instrumentRepo := postgres.NewInstrumentRepository(db)
		priceRepo := postgres.NewPriceRepository(db)
		accountRepo := postgres.NewAccountRepository(db)

		return seeder.New(instrumentRepo, priceRepo, accountRepo, log).Seed(ctx)
	},
}
