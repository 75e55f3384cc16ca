package seeder

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/edoardo-nicoli03/stock-market-project/internal/domain"
	"github.com/edoardo-nicoli03/stock-market-project/internal/logger"
)

// historyDays is how much daily history Seed backfills per instrument,
// matching the deepest window the pro tier can request.
const historyDays = 1856

// sampleInstrument defines one instrument to be seeded
type sampleInstrument struct {
	Symbol     string
	Name       string
	Sector     string
	StartPrice string
}

var sampleInstruments = []sampleInstrument{
	{Symbol: "AAPL", Name: "Apple Inc.", Sector: "Technology", StartPrice: "180.00"},
	{Symbol: "GOOGL", Name: "Alphabet Inc.", Sector: "Technology", StartPrice: "135.00"},
	{Symbol: "MSFT", Name: "Microsoft Corporation", Sector: "Technology", StartPrice: "380.00"},
	{Symbol: "AMZN", Name: "Amazon.com Inc.", Sector: "Consumer Cyclical", StartPrice: "145.00"},
	{Symbol: "TSLA", Name: "Tesla Inc.", Sector: "Automotive", StartPrice: "250.00"},
	{Symbol: "NVDA", Name: "NVIDIA Corporation", Sector: "Technology", StartPrice: "450.00"},
	{Symbol: "META", Name: "Meta Platforms Inc.", Sector: "Technology", StartPrice: "350.00"},
	{Symbol: "NFLX", Name: "Netflix Inc.", Sector: "Entertainment", StartPrice: "480.00"},
}

// sampleAccount defines one demo account to be seeded
type sampleAccount struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Tier      domain.Tier
}

var sampleAccounts = []sampleAccount{
	{Email: "basic@example.com", Password: "password123", FirstName: "Basic", LastName: "User", Tier: domain.TierBasic},
	{Email: "pro@example.com", Password: "password123", FirstName: "Pro", LastName: "User", Tier: domain.TierPro},
}

// Seeder populates an empty database with sample instruments, demo
// accounts and backdated price history.
type Seeder struct {
	instruments domain.InstrumentRepository
	prices      domain.PriceRepository
	accounts    domain.AccountRepository
	log         *logger.Logger
}

// New creates a new Seeder instance
func New(instruments domain.InstrumentRepository, prices domain.PriceRepository, accounts domain.AccountRepository, log *logger.Logger) *Seeder {
	return &Seeder{
		instruments: instruments,
		prices:      prices,
		accounts:    accounts,
		log:         log,
	}
}

// Seed ensures the sample data exists. Instruments are only created when
// the table is empty, so re-running against a live database never resets
// prices that the engine has since moved.
func (s *Seeder) Seed(ctx context.Context) error {
	if err := s.seedAccounts(ctx); err != nil {
		return err
	}

	count, err := s.instruments.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count instruments: %w", err)
	}
	if count > 0 {
		s.log.Info("instruments already seeded, skipping",
			logger.NewField("count", count))
		return nil
	}

	for _, sample := range sampleInstruments {
		if err := s.seedInstrument(ctx, sample); err != nil {
			return err
		}
	}

	s.log.Info("seeded sample instruments",
		logger.NewField("count", len(sampleInstruments)),
		logger.NewField("history_days", historyDays))
	return nil
}

func (s *Seeder) seedAccounts(ctx context.Context) error {
	for _, sample := range sampleAccounts {
		_, err := s.accounts.GetByEmail(ctx, sample.Email)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(sample.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash seed password: %w", err)
		}

		account := &domain.Account{
			ID:           uuid.New(),
			Email:        sample.Email,
			PasswordHash: string(hash),
			FirstName:    sample.FirstName,
			LastName:     sample.LastName,
			Tier:         sample.Tier,
			CreatedAt:    time.Now().UTC(),
		}
		if err := s.accounts.Create(ctx, account); err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) seedInstrument(ctx context.Context, sample sampleInstrument) error {
	start := decimal.RequireFromString(sample.StartPrice)
	instrument := &domain.Instrument{
		ID:           uuid.New(),
		Symbol:       sample.Symbol,
		Name:         sample.Name,
		Sector:       sample.Sector,
		CurrentPrice: start,
		UpdatedAt:    time.Now().UTC(),
	}
	if err := s.instruments.Create(ctx, instrument); err != nil {
		return err
	}

	// Random-walk the daily closes backwards from today, so the series
	// ends exactly at the configured start price and the last publish
	// leaves it as the current quote.
	closes := make([]decimal.Decimal, historyDays+1)
	closes[0] = start
	for i := 1; i <= historyDays; i++ {
		step := decimal.NewFromFloat(1 + (rand.Float64()-0.5)*0.04)
		closes[i] = domain.ClampPrice(closes[i-1].Mul(step).Round(2))
	}

	now := time.Now().UTC()
	for day := historyDays; day >= 0; day-- {
		point := &domain.PricePoint{
			ID:           uuid.New(),
			InstrumentID: instrument.ID,
			Timestamp:    now.AddDate(0, 0, -day),
			Price:        closes[day],
			Volume:       1000 + rand.Int63n(9001),
		}
		if err := s.prices.Publish(ctx, point); err != nil {
			return fmt.Errorf("failed to backfill %s history: %w", sample.Symbol, err)
		}
	}
	return nil
}
