package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/edoardo-nicoli03/stock-market-project/internal/domain"
)

// instrumentRepository implements domain.InstrumentRepository
type instrumentRepository struct {
	db *DB
}

// NewInstrumentRepository creates a new instrument repository
func NewInstrumentRepository(db *DB) domain.InstrumentRepository {
	return &instrumentRepository{db: db}
}

const instrumentColumns = `id, symbol, name, sector, current_price, updated_at`

func scanInstrument(row interface{ Scan(...any) error }) (*domain.Instrument, error) {
	var inst domain.Instrument
	var sector sql.NullString
	var priceStr string

	err := row.Scan(&inst.ID, &inst.Symbol, &inst.Name, &sector, &priceStr, &inst.UpdatedAt)
	if err != nil {
		return nil, err
	}

	inst.Sector = sector.String

	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse current_price: %w", err)
	}
	inst.CurrentPrice = price

	return &inst, nil
}

// GetBySymbol retrieves an instrument by its normalized symbol
func (r *instrumentRepository) GetBySymbol(ctx context.Context, symbol string) (*domain.Instrument, error) {
	query := `
		SELECT ` + instrumentColumns + `
		FROM instruments
		WHERE symbol = $1
	`

	inst, err := scanInstrument(r.db.QueryRowContext(ctx, query, symbol))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: instrument %s", domain.ErrNotFound, symbol)
		}
		return nil, fmt.Errorf("failed to get instrument by symbol: %w", err)
	}
	return inst, nil
}

// GetByID retrieves an instrument by its ID
func (r *instrumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Instrument, error) {
	query := `
		SELECT ` + instrumentColumns + `
		FROM instruments
		WHERE id = $1
	`

	inst, err := scanInstrument(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: instrument %s", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get instrument by ID: %w", err)
	}
	return inst, nil
}

// List retrieves instruments ordered by symbol, optionally filtered by a
// search term matching symbol, name or sector
func (r *instrumentRepository) List(ctx context.Context, search string) ([]*domain.Instrument, error) {
	query := `
		SELECT ` + instrumentColumns + `
		FROM instruments
	`
	args := []any{}
	if search != "" {
		query += ` WHERE symbol ILIKE $1 OR name ILIKE $1 OR sector ILIKE $1`
		args = append(args, "%"+search+"%")
	}
	query += ` ORDER BY symbol`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list instruments: %w", err)
	}
	defer rows.Close()

	var instruments []*domain.Instrument
	for rows.Next() {
		inst, err := scanInstrument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instrument: %w", err)
		}
		instruments = append(instruments, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate instruments: %w", err)
	}

	return instruments, nil
}

// Create creates a new instrument
func (r *instrumentRepository) Create(ctx context.Context, instrument *domain.Instrument) error {
	query := `
		INSERT INTO instruments (id, symbol, name, sector, current_price, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		instrument.ID,
		instrument.Symbol,
		instrument.Name,
		instrument.Sector,
		instrument.CurrentPrice.StringFixed(2),
		instrument.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert instrument: %w", err)
	}

	return nil
}

// Count returns the number of tracked instruments
func (r *instrumentRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM instruments`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count instruments: %w", err)
	}
	return count, nil
}
