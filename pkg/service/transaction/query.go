package transaction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/amirasaad/ebanking/pkg/currency"
	domain "github.com/amirasaad/ebanking/pkg/domain/transaction"
	"github.com/amirasaad/ebanking/pkg/provider"
	repo "github.com/amirasaad/ebanking/pkg/repository/transaction"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	// DefaultMinYear and DefaultMaxYear bound the queryable years.
	DefaultMinYear = 2020
	DefaultMaxYear = 2030
	// DefaultPageSize applies when a query does not set one.
	DefaultPageSize = 20

	totalsScale = 2
)

// QueryConfig configures the QueryService.
type QueryConfig struct {
	MinYear int
	MaxYear int
}

// Query selects one page of a customer's month.
type Query struct {
	Month        int
	Year         int
	Page         int
	Size         int
	BaseCurrency string
}

// Result is one page of transactions plus totals over the whole month.
type Result struct {
	Transactions  []domain.Transaction
	TotalCredit   decimal.Decimal
	TotalDebit    decimal.Decimal
	BaseCurrency  string
	Page          int
	Size          int
	TotalPages    int
	TotalElements int64
	First         bool
	Last          bool
	// Excluded lists the ids left out of the totals because their amount
	// could not be converted.
	Excluded []string
}

// QueryService pages a customer's transactions for a month and computes
// credit and debit totals in a base currency.
type QueryService struct {
	store   repo.Repository
	rates   provider.RateSource
	cfg     QueryConfig
	metrics *Metrics
	logger  *slog.Logger
}

// NewQueryService creates a QueryService. Zero year bounds fall back to
// DefaultMinYear and DefaultMaxYear.
func NewQueryService(
	store repo.Repository,
	rates provider.RateSource,
	cfg QueryConfig,
	metrics *Metrics,
	logger *slog.Logger,
) *QueryService {
	if cfg.MinYear == 0 {
		cfg.MinYear = DefaultMinYear
	}
	if cfg.MaxYear == 0 {
		cfg.MaxYear = DefaultMaxYear
	}
	return &QueryService{
		store:   store,
		rates:   rates,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger.With("component", "query"),
	}
}

func (s *QueryService) validate(customerID string, q Query) error {
	switch {
	case strings.TrimSpace(customerID) == "":
		return fmt.Errorf("%w: customer id is required", ErrInvalidQuery)
	case q.Month < 1 || q.Month > 12:
		return fmt.Errorf("%w: month must be between 1 and 12", ErrInvalidQuery)
	case q.Year < s.cfg.MinYear || q.Year > s.cfg.MaxYear:
		return fmt.Errorf("%w: year must be between %d and %d", ErrInvalidQuery, s.cfg.MinYear, s.cfg.MaxYear)
	case q.Size < 1 || q.Size > repo.MaxPageSize:
		return fmt.Errorf("%w: size must be between 1 and %d", ErrInvalidQuery, repo.MaxPageSize)
	case q.Page < 0:
		return fmt.Errorf("%w: page must be >= 0", ErrInvalidQuery)
	case q.Page > repo.MaxIndex(q.Size):
		return fmt.Errorf("%w: page %d is too large", ErrInvalidQuery, q.Page)
	case !currency.IsValidFormat(q.BaseCurrency):
		return fmt.Errorf("%w: base currency must be a 3-letter ISO code", ErrInvalidQuery)
	}
	return nil
}

// GetTransactions returns the requested page of the month and the totals
// over every transaction of the month. Records whose amount cannot be
// converted stay in the listing but are left out of the totals.
func (s *QueryService) GetTransactions(
	ctx context.Context,
	customerID string,
	q Query,
) (*Result, error) {
	if err := s.validate(customerID, q); err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "transaction.query")
	defer span.End()
	span.SetAttributes(
		attribute.Int("query.year", q.Year),
		attribute.Int("query.month", q.Month),
		attribute.Int("query.page", q.Page),
		attribute.String("query.base_currency", q.BaseCurrency),
	)

	log := s.logger.With("customer_id", customerID, "year", q.Year, "month", q.Month)
	start, end := domain.MonthRange(q.Year, q.Month)

	page, err := s.store.FindByCustomerAndPeriod(ctx, customerID, start, end,
		repo.PageRequest{Index: q.Page, Size: q.Size})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("find page: %w", err)
	}

	all, err := s.store.ListByCustomerAndPeriod(ctx, customerID, start, end)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list period: %w", err)
	}

	credit, debit := decimal.Zero, decimal.Zero
	excluded := []string{}
	for _, tx := range all {
		converted, err := s.rates.Convert(ctx, tx.Amount, tx.Currency, q.BaseCurrency, tx.ValueDate)
		if err != nil {
			log.Warn("Transaction left out of totals",
				"transaction_id", tx.ID,
				"currency", tx.Currency,
				"base_currency", q.BaseCurrency,
				"error", err,
			)
			s.metrics.RecordConversionFailure(ctx, tx.Currency, q.BaseCurrency)
			excluded = append(excluded, tx.ID)
			continue
		}
		if converted.IsPositive() {
			credit = credit.Add(converted)
		} else {
			debit = debit.Add(converted.Abs())
		}
	}

	totalPages := 0
	if page.TotalElements > 0 {
		totalPages = int((page.TotalElements + int64(q.Size) - 1) / int64(q.Size))
	}

	log.Debug("Transactions queried",
		"page", q.Page,
		"returned", len(page.Items),
		"total_elements", page.TotalElements,
		"excluded", len(excluded),
	)
	return &Result{
		Transactions:  page.Items,
		TotalCredit:   credit.Round(totalsScale),
		TotalDebit:    debit.Round(totalsScale),
		BaseCurrency:  q.BaseCurrency,
		Page:          q.Page,
		Size:          q.Size,
		TotalPages:    totalPages,
		TotalElements: page.TotalElements,
		First:         q.Page == 0,
		Last:          q.Page+1 >= totalPages,
		Excluded:      excluded,
	}, nil
}
