package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/edoardo-nicoli03/stock-market-project/internal/domain"
)

// transactionRepository implements domain.TransactionRepository
type transactionRepository struct {
	db *DB
}

// NewTransactionRepository creates a new transaction journal repository
func NewTransactionRepository(db *DB) domain.TransactionRepository {
	return &transactionRepository{db: db}
}

// ListByAccount returns transaction records newest first
func (r *transactionRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int, since *time.Time) ([]*domain.TransactionRecord, error) {
	query := `
		SELECT id, account_id, instrument_id, side, quantity, price, total_amount, ts
		FROM transactions
		WHERE account_id = $1
	`
	args := []any{accountID}
	argIndex := 2

	if since != nil {
		query += fmt.Sprintf(" AND ts >= $%d", argIndex)
		args = append(args, *since)
		argIndex++
	}

	query += fmt.Sprintf(" ORDER BY ts DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var records []*domain.TransactionRecord
	for rows.Next() {
		var rec domain.TransactionRecord
		var side, priceStr, totalStr string

		err := rows.Scan(&rec.ID, &rec.AccountID, &rec.InstrumentID, &side,
			&rec.Quantity, &priceStr, &totalStr, &rec.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		rec.Side = domain.Side(side)

		if rec.Price, err = decimal.NewFromString(priceStr); err != nil {
			return nil, fmt.Errorf("failed to parse price: %w", err)
		}
		if rec.Total, err = decimal.NewFromString(totalStr); err != nil {
			return nil, fmt.Errorf("failed to parse total_amount: %w", err)
		}

		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	return records, nil
}

// CountByAccount returns the total number of records matching ListByAccount
func (r *transactionRepository) CountByAccount(ctx context.Context, accountID uuid.UUID, since *time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM transactions WHERE account_id = $1`
	args := []any{accountID}

	if since != nil {
		query += ` AND ts >= $2`
		args = append(args, *since)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// SumBySide totals one side of the book at or after since
func (r *transactionRepository) SumBySide(ctx context.Context, accountID uuid.UUID, side domain.Side, since time.Time) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(total_amount), 0)
		FROM transactions
		WHERE account_id = $1 AND side = $2 AND ts >= $3
	`

	var sumStr string
	if err := r.db.QueryRowContext(ctx, query, accountID, string(side), since).Scan(&sumStr); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum transactions: %w", err)
	}

	sum, err := decimal.NewFromString(sumStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse transaction sum: %w", err)
	}
	return sum, nil
}
