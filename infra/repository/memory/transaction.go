// Package memory provides an in-process transaction store used by the
// memory driver and by tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domain "github.com/amirasaad/ebanking/pkg/domain/transaction"
	repo "github.com/amirasaad/ebanking/pkg/repository/transaction"
)

// TransactionStore keeps transactions keyed by id.
type TransactionStore struct {
	mu   sync.RWMutex
	byID map[string]domain.Transaction
}

var _ repo.Repository = (*TransactionStore)(nil)

// NewTransactionStore returns an empty store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{byID: make(map[string]domain.Transaction)}
}

// UpsertIfAbsent implements transaction.Repository.
func (s *TransactionStore) UpsertIfAbsent(
	ctx context.Context,
	tx domain.Transaction,
) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[tx.ID]; ok {
		return false, nil
	}
	s.byID[tx.ID] = tx
	return true, nil
}

// FindByCustomerAndPeriod implements transaction.Repository.
func (s *TransactionStore) FindByCustomerAndPeriod(
	ctx context.Context,
	customerID string,
	start, end time.Time,
	page repo.PageRequest,
) (*repo.Page, error) {
	if err := page.Validate(); err != nil {
		return nil, err
	}
	all, err := s.ListByCustomerAndPeriod(ctx, customerID, start, end)
	if err != nil {
		return nil, err
	}
	result := &repo.Page{Items: []domain.Transaction{}, TotalElements: int64(len(all))}
	from := page.Offset()
	if from >= len(all) {
		return result, nil
	}
	to := min(from+page.Size, len(all))
	result.Items = append(result.Items, all[from:to]...)
	return result, nil
}

// ListByCustomerAndPeriod implements transaction.Repository.
func (s *TransactionStore) ListByCustomerAndPeriod(
	ctx context.Context,
	customerID string,
	start, end time.Time,
) ([]domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]domain.Transaction, 0)
	for _, tx := range s.byID {
		if tx.CustomerID != customerID {
			continue
		}
		if tx.ValueDate.Before(start) || tx.ValueDate.After(end) {
			continue
		}
		out = append(out, tx)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].ValueDate.Equal(out[j].ValueDate) {
			return out[i].ValueDate.After(out[j].ValueDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Len returns the number of stored transactions.
func (s *TransactionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
