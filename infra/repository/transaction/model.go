package transaction

import (
	"time"

	domain "github.com/amirasaad/ebanking/pkg/domain/transaction"
	"github.com/shopspring/decimal"
)

// Transaction represents a persisted customer transaction. The id is
// assigned by the producer and doubles as the idempotency key.
type Transaction struct {
	ID          string          `gorm:"type:uuid;primaryKey"`
	CustomerID  string          `gorm:"type:varchar(64);not null;index:idx_transactions_customer_value_date,priority:1"`
	Amount      decimal.Decimal `gorm:"type:numeric(19,4);not null"`
	Currency    string          `gorm:"type:varchar(3);not null"`
	AccountIBAN string          `gorm:"column:account_iban;type:varchar(64);not null"`
	ValueDate   time.Time       `gorm:"type:date;not null;index:idx_transactions_customer_value_date,priority:2"`
	Description string          `gorm:"type:varchar(255)"`
	CreatedAt   time.Time
}

// TableName specifies the table name for the Transaction model.
func (Transaction) TableName() string {
	return "transactions"
}

func mapDomainToModel(tx domain.Transaction) Transaction {
	return Transaction{
		ID:          tx.ID,
		CustomerID:  tx.CustomerID,
		Amount:      tx.Amount,
		Currency:    tx.Currency,
		AccountIBAN: tx.AccountIBAN,
		ValueDate:   tx.ValueDate,
		Description: tx.Description,
	}
}

func mapModelToDomain(m *Transaction) domain.Transaction {
	y, mo, d := m.ValueDate.Date()
	return domain.Transaction{
		ID:          m.ID,
		CustomerID:  m.CustomerID,
		Amount:      m.Amount,
		Currency:    m.Currency,
		AccountIBAN: m.AccountIBAN,
		ValueDate:   time.Date(y, mo, d, 0, 0, 0, 0, time.UTC),
		Description: m.Description,
	}
}
