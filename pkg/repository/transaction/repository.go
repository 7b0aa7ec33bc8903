package transaction

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/amirasaad/ebanking/pkg/domain/transaction"
)

// MaxPageSize bounds PageRequest.Size.
const MaxPageSize = 100

// ErrInvalidPage is returned for out of range page requests.
var ErrInvalidPage = errors.New("invalid page request")

// PageRequest selects one page of an ordered result. Index is zero based.
type PageRequest struct {
	Index int
	Size  int
}

// Validate checks the page bounds.
func (p PageRequest) Validate() error {
	if p.Index < 0 {
		return fmt.Errorf("%w: index must be >= 0, got %d", ErrInvalidPage, p.Index)
	}
	if p.Size < 1 || p.Size > MaxPageSize {
		return fmt.Errorf(
			"%w: size must be between 1 and %d, got %d",
			ErrInvalidPage,
			MaxPageSize,
			p.Size,
		)
	}
	if p.Index > MaxIndex(p.Size) {
		return fmt.Errorf("%w: index %d is too large", ErrInvalidPage, p.Index)
	}
	return nil
}

// MaxIndex is the largest page index whose offset and end fit in an int.
func MaxIndex(size int) int {
	if size < 1 {
		return 0
	}
	return (math.MaxInt - size) / size
}

// Offset is the number of records skipped before the page.
func (p PageRequest) Offset() int {
	return p.Index * p.Size
}

// Page is one page of records plus the size of the full result.
type Page struct {
	Items         []transaction.Transaction
	TotalElements int64
}

// Repository is the durable store of persisted transactions.
//
// Results are ordered by value date descending, then id ascending, so
// repeated calls over unchanged data page identically. Period bounds are
// inclusive calendar dates.
type Repository interface {
	// UpsertIfAbsent stores tx unless a record with the same id exists.
	// created is false when the call was a no-op.
	UpsertIfAbsent(ctx context.Context, tx transaction.Transaction) (created bool, err error)

	// FindByCustomerAndPeriod returns one page of the customer's records
	// with a value date in [start, end].
	FindByCustomerAndPeriod(
		ctx context.Context,
		customerID string,
		start, end time.Time,
		page PageRequest,
	) (*Page, error)

	// ListByCustomerAndPeriod returns every record of the period, in page order.
	ListByCustomerAndPeriod(
		ctx context.Context,
		customerID string,
		start, end time.Time,
	) ([]transaction.Transaction, error)
}
