package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/edoardo-nicoli03/stock-market-project/internal/adapter/repository/postgres"
	"github.com/edoardo-nicoli03/stock-market-project/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "stock-market",
	Short: "Continuously updating stock market simulation",
	Long: `A stock market simulation backend. A background engine walks every
instrument through a bounded random price step on a fixed interval,
while the gRPC API serves quotes, history, portfolios and trading.`,
}

func main() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(sweepCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openDatabase connects with the configured pool settings.
func openDatabase(cfg *config.Config) (*postgres.DB, error) {
	return postgres.NewDB(cfg.Database.DSN(), postgres.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		PingTimeout:     cfg.Database.PingTimeout,
	})
}
