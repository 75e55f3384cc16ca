package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	grpcadapter "github.com/edoardo-nicoli03/stock-market-project/internal/adapter/grpc"
	"github.com/edoardo-nicoli03/stock-market-project/internal/adapter/repository/postgres"
	"github.com/edoardo-nicoli03/stock-market-project/internal/config"
	"github.com/edoardo-nicoli03/stock-market-project/internal/logger"
	"github.com/edoardo-nicoli03/stock-market-project/internal/usecase/auth"
	"github.com/edoardo-nicoli03/stock-market-project/internal/usecase/engine"
	"github.com/edoardo-nicoli03/stock-market-project/internal/usecase/seeder"
	"github.com/edoardo-nicoli03/stock-market-project/internal/usecase/sweeper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the market: price engine, retention sweeper and gRPC API",
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
			log.Error(err, logger.NewField("component", "database"))
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

		if err := seeder.New(instrumentRepo, priceRepo, accountRepo, log).Seed(ctx); err != nil {
			return fmt.Errorf("seeding failed: %w", err)
		}

		authService := auth.NewService(accountRepo, cfg.Auth.JWTSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)

		priceEngine := engine.New(instrumentRepo, priceRepo, newNoise(cfg.Engine), log, engine.Config{
			Interval: cfg.Engine.Interval,
			Jitter:   cfg.Engine.Jitter,
			Backoff:  cfg.Engine.Backoff,
		})
		if err := priceEngine.Start(); err != nil {
			return err
		}

		retentionSweeper := sweeper.New(priceRepo, log, sweeper.Config{
			Interval:   cfg.Sweeper.Interval,
			Retention:  cfg.Sweeper.Retention,
			BatchSize:  cfg.Sweeper.BatchSize,
			BatchPause: cfg.Sweeper.BatchPause,
		})
		retentionSweeper.Start()

		server := grpcadapter.NewServer(authService, log, cfg.App.GRPCPort)

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Serve()
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

		select {
		case sig := <-sigCh:
			log.Info("shutting down", logger.NewField("signal", sig.String()))
		case err := <-errCh:
			return err
		}

		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.App.StopTimeout)
		defer cancel()

		if err := priceEngine.Stop(stopCtx); err != nil {
			log.Error(err, logger.NewField("component", "engine"))
		}
		if err := retentionSweeper.Stop(stopCtx); err != nil {
			log.Error(err, logger.NewField("component", "sweeper"))
		}
		server.GracefulStop()

		return nil
	},
}

// newNoise maps the configured distribution onto a noise source. Unknown
// names fall back to normal.
func newNoise(cfg config.EngineConfig) engine.NoiseSource {
	if cfg.Noise == "uniform" {
		return engine.UniformNoise{Bound: cfg.Volatility}
	}
	return engine.NormalNoise{Drift: cfg.Drift, Volatility: cfg.Volatility}
}
