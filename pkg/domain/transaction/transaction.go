// Package transaction holds the record that flows through the ingestion
// pipeline, from submission to the store.
package transaction

import (
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/amirasaad/ebanking/pkg/currency"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// DateLayout is the wire and query format of value dates.
	DateLayout = "2006-01-02"
	// MaxDescriptionLength bounds the free text description.
	MaxDescriptionLength = 255
)

// Transaction is a single customer transaction. A positive amount is a
// credit and a negative amount a debit. Records are immutable once built.
type Transaction struct {
	ID          string
	CustomerID  string
	Amount      decimal.Decimal
	Currency    string
	AccountIBAN string
	ValueDate   time.Time
	Description string
}

// New builds and validates a transaction with a freshly generated id.
func New(
	customerID string,
	amount decimal.Decimal,
	currencyCode, iban string,
	valueDate time.Time,
	description string,
) (*Transaction, error) {
	return NewWithID(uuid.NewString(), customerID, amount, currencyCode, iban, valueDate, description)
}

// NewWithID builds a transaction reusing a caller supplied id. Callers
// resubmitting after an ambiguous delivery failure must reuse the id so the
// store can drop the duplicate.
func NewWithID(
	id, customerID string,
	amount decimal.Decimal,
	currencyCode, iban string,
	valueDate time.Time,
	description string,
) (*Transaction, error) {
	tx := &Transaction{
		ID:          strings.ToLower(strings.TrimSpace(id)),
		CustomerID:  strings.TrimSpace(customerID),
		Amount:      amount,
		Currency:    currencyCode,
		AccountIBAN: strings.TrimSpace(iban),
		ValueDate:   truncateDate(valueDate),
		Description: description,
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	return tx, nil
}

// Validate checks every invariant of the record.
func (t *Transaction) Validate() error {
	if _, err := uuid.Parse(t.ID); err != nil {
		return ErrInvalidID
	}
	if t.CustomerID == "" {
		return ErrMissingCustomer
	}
	if t.Amount.IsZero() {
		return ErrZeroAmount
	}
	if !currency.IsValidFormat(t.Currency) {
		return ErrInvalidCurrency
	}
	if t.AccountIBAN == "" {
		return ErrMissingAccount
	}
	if utf8.RuneCountInString(t.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	if t.ValueDate.IsZero() {
		return ErrInvalidValueDate
	}
	return nil
}

// IsCredit reports whether money flows into the account.
func (t *Transaction) IsCredit() bool { return t.Amount.IsPositive() }

// IsDebit reports whether money flows out of the account.
func (t *Transaction) IsDebit() bool { return t.Amount.IsNegative() }

// ParseValueDate parses a yyyy-MM-dd date. An empty string means today.
func ParseValueDate(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return truncateDate(now), nil
	}
	d, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, ErrInvalidValueDate
	}
	return d, nil
}

// MonthRange returns the first and last calendar day of the month.
func MonthRange(year, month int) (start, end time.Time) {
	start = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, -1)
	return start, end
}

func truncateDate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type wireTransaction struct {
	ID          string          `json:"id"`
	CustomerID  string          `json:"customerId"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	AccountIBAN string          `json:"accountIban"`
	ValueDate   string          `json:"valueDate"`
	Description string          `json:"description"`
}

// MarshalJSON encodes the log payload. Amounts travel as decimal strings.
func (t Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireTransaction{
		ID:          t.ID,
		CustomerID:  t.CustomerID,
		Amount:      t.Amount,
		Currency:    t.Currency,
		AccountIBAN: t.AccountIBAN,
		ValueDate:   t.ValueDate.Format(DateLayout),
		Description: t.Description,
	})
}

// UnmarshalJSON decodes a log payload. It does not validate.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var w wireTransaction
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var vd time.Time
	if w.ValueDate != "" {
		d, err := time.ParseInLocation(DateLayout, w.ValueDate, time.UTC)
		if err != nil {
			return ErrInvalidValueDate
		}
		vd = d
	}
	*t = Transaction{
		ID:          w.ID,
		CustomerID:  w.CustomerID,
		Amount:      w.Amount,
		Currency:    w.Currency,
		AccountIBAN: w.AccountIBAN,
		ValueDate:   vd,
		Description: w.Description,
	}
	return nil
}
