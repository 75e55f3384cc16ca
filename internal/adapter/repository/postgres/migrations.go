package postgres

import (
	"context"
	"fmt"
)

// Migrate creates the schema if it does not exist yet. Statements are
// idempotent so the serve and seed commands can both run it safely.
//
// Money and price columns are NUMERIC with 2-digit scale; floating-point
// columns are not allowed for persisted money because rounding errors
// compound across thousands of price ticks.
func Migrate(ctx context.Context, db *DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id UUID PRIMARY KEY,
			email VARCHAR(120) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			first_name VARCHAR(50) NOT NULL,
			last_name VARCHAR(50) NOT NULL,
			tier VARCHAR(20) NOT NULL DEFAULT 'basic',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS instruments (
			id UUID PRIMARY KEY,
			symbol VARCHAR(10) UNIQUE NOT NULL,
			name VARCHAR(100) NOT NULL,
			sector VARCHAR(50),
			current_price NUMERIC(10,2) NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS price_points (
			id UUID PRIMARY KEY,
			instrument_id UUID NOT NULL REFERENCES instruments(id),
			ts TIMESTAMPTZ NOT NULL,
			price NUMERIC(10,2) NOT NULL,
			open_price NUMERIC(10,2),
			high_price NUMERIC(10,2),
			low_price NUMERIC(10,2),
			volume BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_price_points_instrument_ts
			ON price_points (instrument_id, ts)`,
		`CREATE INDEX IF NOT EXISTS idx_price_points_ts
			ON price_points (ts)`,
		`CREATE TABLE IF NOT EXISTS positions (
			account_id UUID NOT NULL REFERENCES accounts(id),
			instrument_id UUID NOT NULL REFERENCES instruments(id),
			quantity BIGINT NOT NULL CHECK (quantity >= 0),
			average_price NUMERIC(10,2) NOT NULL,
			PRIMARY KEY (account_id, instrument_id)
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id UUID PRIMARY KEY,
			account_id UUID NOT NULL REFERENCES accounts(id),
			instrument_id UUID NOT NULL REFERENCES instruments(id),
			side VARCHAR(10) NOT NULL CHECK (side IN ('buy', 'sell')),
			quantity BIGINT NOT NULL CHECK (quantity > 0),
			price NUMERIC(10,2) NOT NULL,
			total_amount NUMERIC(12,2) NOT NULL,
			ts TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_account_ts
			ON transactions (account_id, ts DESC)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
