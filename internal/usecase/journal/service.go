package journal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/edoardo-nicoli03/stock-market-project/internal/domain"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// Page is one slice of an account's transaction history, newest first.
type Page struct {
	Records    []*domain.TransactionRecord
	Total      int
	TotalPages int
	Page       int
	PageSize   int
	HasNext    bool
	HasPrev    bool
}

// Performance summarizes trading activity over a window using cash-flow
// accounting: totals of money in versus money out, without matching
// individual lots.
type Performance struct {
	WindowDays  int
	Invested    decimal.Decimal
	Divested    decimal.Decimal
	NetCashFlow decimal.Decimal
	TradeCount  int
	WindowStart time.Time
	WindowEnd   time.Time
}

// Service reads the append-only transaction journal.
type Service struct {
	Transactions domain.TransactionRepository
}

// NewService creates a new journal service
func NewService(transactions domain.TransactionRepository) *Service {
	return &Service{Transactions: transactions}
}

// List returns one page of the account's transactions, newest first.
// Page numbers start at 1; out-of-range pages return an empty slice with
// the true total, not an error.
func (s *Service) List(ctx context.Context, accountID uuid.UUID, page, pageSize int, since *time.Time) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	total, err := s.Transactions.CountByAccount(ctx, accountID, since)
	if err != nil {
		return nil, err
	}

	offset := (page - 1) * pageSize
	records := []*domain.TransactionRecord{}
	if offset < total {
		records, err = s.Transactions.ListByAccount(ctx, accountID, pageSize, offset, since)
		if err != nil {
			return nil, err
		}
	}

	totalPages := (total + pageSize - 1) / pageSize

	return &Page{
		Records:    records,
		Total:      total,
		TotalPages: totalPages,
		Page:       page,
		PageSize:   pageSize,
		HasNext:    page < totalPages,
		HasPrev:    page > 1 && total > 0,
	}, nil
}

// GetPerformance computes cash-flow performance over the trailing window.
// Days at or below zero means the whole journal.
func (s *Service) GetPerformance(ctx context.Context, accountID uuid.UUID, days int) (*Performance, error) {
	now := time.Now().UTC()
	since := time.Time{}
	if days > 0 {
		since = now.AddDate(0, 0, -days)
	}

	invested, err := s.Transactions.SumBySide(ctx, accountID, domain.SideBuy, since)
	if err != nil {
		return nil, err
	}
	divested, err := s.Transactions.SumBySide(ctx, accountID, domain.SideSell, since)
	if err != nil {
		return nil, err
	}

	sincePtr := &since
	if since.IsZero() {
		sincePtr = nil
	}
	count, err := s.Transactions.CountByAccount(ctx, accountID, sincePtr)
	if err != nil {
		return nil, err
	}

	return &Performance{
		WindowDays:  days,
		Invested:    invested,
		Divested:    divested,
		NetCashFlow: divested.Sub(invested),
		TradeCount:  count,
		WindowStart: since,
		WindowEnd:   now,
	}, nil
}
