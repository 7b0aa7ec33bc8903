package transaction

import (
	"context"
	"errors"
	"time"

	domain "github.com/amirasaad/ebanking/pkg/domain/transaction"
	repo "github.com/amirasaad/ebanking/pkg/repository/transaction"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db *gorm.DB
}

// New creates a gorm backed transaction repository.
func New(db *gorm.DB) repo.Repository {
	return &repository{db: db}
}

// Migrate creates or updates the transactions table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Transaction{})
}

// UpsertIfAbsent implements transaction.Repository.
func (r *repository) UpsertIfAbsent(
	ctx context.Context,
	tx domain.Transaction,
) (bool, error) {
	m := mapDomainToModel(tx)
	res := r.db.WithContext(
		ctx,
	).Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		},
	).Create(&m)
	if res.Error != nil {
		// Dialects without ON CONFLICT support report the lost race as a
		// unique violation once errors are translated.
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// FindByCustomerAndPeriod implements transaction.Repository.
func (r *repository) FindByCustomerAndPeriod(
	ctx context.Context,
	customerID string,
	start, end time.Time,
	page repo.PageRequest,
) (*repo.Page, error) {
	if err := page.Validate(); err != nil {
		return nil, err
	}

	var total int64
	if err := r.db.WithContext(
		ctx,
	).Model(
		&Transaction{},
	).Scopes(
		inPeriod(customerID, start, end),
	).Count(
		&total,
	).Error; err != nil {
		return nil, err
	}

	result := &repo.Page{Items: []domain.Transaction{}, TotalElements: total}
	if total == 0 || int64(page.Offset()) >= total {
		return result, nil
	}

	var rows []Transaction
	if err := r.db.WithContext(
		ctx,
	).Scopes(
		inPeriod(customerID, start, end),
		ordered,
	).Limit(
		page.Size,
	).Offset(
		page.Offset(),
	).Find(
		&rows,
	).Error; err != nil {
		return nil, err
	}
	result.Items = mapModels(rows)
	return result, nil
}

// ListByCustomerAndPeriod implements transaction.Repository.
func (r *repository) ListByCustomerAndPeriod(
	ctx context.Context,
	customerID string,
	start, end time.Time,
) ([]domain.Transaction, error) {
	var rows []Transaction
	if err := r.db.WithContext(
		ctx,
	).Scopes(
		inPeriod(customerID, start, end),
		ordered,
	).Find(
		&rows,
	).Error; err != nil {
		return nil, err
	}
	return mapModels(rows), nil
}

func inPeriod(customerID string, start, end time.Time) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(
			"customer_id = ? AND value_date BETWEEN ? AND ?",
			customerID,
			start,
			end,
		)
	}
}

func ordered(db *gorm.DB) *gorm.DB {
	return db.Order("value_date DESC").Order("id ASC")
}

func mapModels(rows []Transaction) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(rows))
	for i := range rows {
		out = append(out, mapModelToDomain(&rows[i]))
	}
	return out
}
