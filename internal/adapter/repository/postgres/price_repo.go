package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/edoardo-nicoli03/stock-market-project/internal/domain"
)

// priceRepository implements domain.PriceRepository
type priceRepository struct {
	db *DB
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(db *DB) domain.PriceRepository {
	return &priceRepository{db: db}
}

// GetCurrent returns the instrument's authoritative current price and the
// time it was last updated
func (r *priceRepository) GetCurrent(ctx context.Context, instrumentID uuid.UUID) (decimal.Decimal, time.Time, error) {
	query := `
		SELECT current_price, updated_at
		FROM instruments
		WHERE id = $1
	`

	var priceStr string
	var updatedAt time.Time

	err := r.db.QueryRowContext(ctx, query, instrumentID).Scan(&priceStr, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, time.Time{}, fmt.Errorf("%w: instrument %s", domain.ErrNotFound, instrumentID)
		}
		return decimal.Zero, time.Time{}, fmt.Errorf("failed to get current price: %w", err)
	}

	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("failed to parse current_price: %w", err)
	}

	return price, updatedAt, nil
}

const pricePointColumns = `id, instrument_id, ts, price, open_price, high_price, low_price, volume`

func scanPricePoint(row interface{ Scan(...any) error }) (*domain.PricePoint, error) {
	var point domain.PricePoint
	var priceStr string
	var openStr, highStr, lowStr sql.NullString

	err := row.Scan(&point.ID, &point.InstrumentID, &point.Timestamp,
		&priceStr, &openStr, &highStr, &lowStr, &point.Volume)
	if err != nil {
		return nil, err
	}

	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse price: %w", err)
	}
	point.Price = price

	for _, f := range []struct {
		src sql.NullString
		dst **decimal.Decimal
	}{
		{openStr, &point.Open},
		{highStr, &point.High},
		{lowStr, &point.Low},
	} {
		if !f.src.Valid {
			continue
		}
		d, err := decimal.NewFromString(f.src.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse ohlc price: %w", err)
		}
		*f.dst = &d
	}

	return &point, nil
}

// GetRecent returns up to n price points, newest first
func (r *priceRepository) GetRecent(ctx context.Context, instrumentID uuid.UUID, n int) ([]*domain.PricePoint, error) {
	query := `
		SELECT ` + pricePointColumns + `
		FROM price_points
		WHERE instrument_id = $1
		ORDER BY ts DESC
		LIMIT $2
	`

	return r.queryPoints(ctx, query, instrumentID, n)
}

// GetHistory returns price points at or after since, oldest first
func (r *priceRepository) GetHistory(ctx context.Context, instrumentID uuid.UUID, since time.Time) ([]*domain.PricePoint, error) {
	query := `
		SELECT ` + pricePointColumns + `
		FROM price_points
		WHERE instrument_id = $1 AND ts >= $2
		ORDER BY ts ASC
	`

	return r.queryPoints(ctx, query, instrumentID, since)
}

func (r *priceRepository) queryPoints(ctx context.Context, query string, args ...any) ([]*domain.PricePoint, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query price points: %w", err)
	}
	defer rows.Close()

	var points []*domain.PricePoint
	for rows.Next() {
		point, err := scanPricePoint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price point: %w", err)
		}
		points = append(points, point)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate price points: %w", err)
	}

	return points, nil
}

// Publish atomically updates the instrument's current price/timestamp and
// appends a price point. A reader never observes one write without the
// other.
func (r *priceRepository) Publish(ctx context.Context, point *domain.PricePoint) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	updateQuery := `
		UPDATE instruments
		SET current_price = $1, updated_at = $2
		WHERE id = $3
	`

	res, err := dbTx.ExecContext(ctx, updateQuery,
		point.Price.StringFixed(2),
		point.Timestamp,
		point.InstrumentID,
	)
	if err != nil {
		return fmt.Errorf("failed to update current price: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check updated rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: instrument %s", domain.ErrNotFound, point.InstrumentID)
	}

	insertQuery := `
		INSERT INTO price_points (id, instrument_id, ts, price, open_price, high_price, low_price, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = dbTx.ExecContext(ctx, insertQuery,
		point.ID,
		point.InstrumentID,
		point.Timestamp,
		point.Price.StringFixed(2),
		nullableDecimal(point.Open),
		nullableDecimal(point.High),
		nullableDecimal(point.Low),
		point.Volume,
	)
	if err != nil {
		return fmt.Errorf("failed to insert price point: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit publish: %w", err)
	}

	return nil
}

// DeleteOlderThan removes at most limit price points older than cutoff.
// The sweeper calls this in batches so no single statement holds a lock
// over the whole history table.
func (r *priceRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	query := `
		DELETE FROM price_points
		WHERE id IN (
			SELECT id FROM price_points
			WHERE ts < $1
			ORDER BY ts ASC
			LIMIT $2
		)
	`

	res, err := r.db.ExecContext(ctx, query, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to delete price points: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted price points: %w", err)
	}
	return deleted, nil
}

func nullableDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.StringFixed(2)
}
