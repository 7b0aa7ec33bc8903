package transaction

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var july = time.Date(2024, time.July, 15, 13, 45, 0, 0, time.UTC)

func TestNew(t *testing.T) {
	tx, err := New("C", decimal.NewFromInt(100), "USD", "CH93-0000", july, "salary")
	require.NoError(t, err)
	_, err = uuid.Parse(tx.ID)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.July, 15, 0, 0, 0, 0, time.UTC), tx.ValueDate)
	assert.True(t, tx.IsCredit())
	assert.False(t, tx.IsDebit())
}

func TestNewValidation(t *testing.T) {
	longText := strings.Repeat("x", MaxDescriptionLength+1)
	tests := []struct {
		name    string
		id      string
		cust    string
		amount  decimal.Decimal
		curr    string
		iban    string
		date    time.Time
		desc    string
		wantErr error
	}{
		{"zero amount", uuid.NewString(), "C", decimal.Zero, "USD", "IBAN", july, "", ErrZeroAmount},
		{"zero amount with scale", uuid.NewString(), "C", decimal.RequireFromString("0.00"), "CHF", "IBAN", july, "", ErrZeroAmount},
		{"lower-case currency", uuid.NewString(), "C", decimal.NewFromInt(1), "usd", "IBAN", july, "", ErrInvalidCurrency},
		{"short currency", uuid.NewString(), "C", decimal.NewFromInt(1), "US", "IBAN", july, "", ErrInvalidCurrency},
		{"missing customer", uuid.NewString(), " ", decimal.NewFromInt(1), "USD", "IBAN", july, "", ErrMissingCustomer},
		{"missing iban", uuid.NewString(), "C", decimal.NewFromInt(1), "USD", "", july, "", ErrMissingAccount},
		{"description too long", uuid.NewString(), "C", decimal.NewFromInt(1), "USD", "IBAN", july, longText, ErrDescriptionTooLong},
		{"missing date", uuid.NewString(), "C", decimal.NewFromInt(1), "USD", "IBAN", time.Time{}, "", ErrInvalidValueDate},
		{"bad id", "not-a-uuid", "C", decimal.NewFromInt(1), "USD", "IBAN", july, "", ErrInvalidID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := NewWithID(tt.id, tt.cust, tt.amount, tt.curr, tt.iban, tt.date, tt.desc)
			require.Error(t, err)
			assert.Nil(t, tx)
			assert.True(t, errors.Is(err, tt.wantErr))
			assert.True(t, errors.Is(err, ErrInvalidTransaction))
		})
	}
}

func TestNewWithIDKeepsID(t *testing.T) {
	id := uuid.NewString()
	tx, err := NewWithID(strings.ToUpper(id), "C", decimal.NewFromInt(-40), "USD", "IBAN", july, "")
	require.NoError(t, err)
	assert.Equal(t, id, tx.ID)
	assert.True(t, tx.IsDebit())
}

func TestParseValueDate(t *testing.T) {
	d, err := ParseValueDate("", july)
	require.NoError(t, err)
	assert.Equal(t, "2024-07-15", d.Format(DateLayout))

	d, err = ParseValueDate("2024-02-29", july)
	require.NoError(t, err)
	assert.Equal(t, time.February, d.Month())

	_, err = ParseValueDate("29/02/2024", july)
	assert.ErrorIs(t, err, ErrInvalidValueDate)

	_, err = ParseValueDate("2023-02-29", july)
	assert.ErrorIs(t, err, ErrInvalidValueDate)
}

func TestMonthRange(t *testing.T) {
	tests := []struct {
		year, month int
		last        string
	}{
		{2024, 7, "2024-07-31"},
		{2024, 2, "2024-02-29"},
		{2023, 2, "2023-02-28"},
		{2024, 12, "2024-12-31"},
		{2024, 4, "2024-04-30"},
	}
	for _, tt := range tests {
		start, end := MonthRange(tt.year, tt.month)
		assert.Equal(t, 1, start.Day())
		assert.Equal(t, tt.last, end.Format(DateLayout))
	}
}

func TestWireRoundTripKeepsDecimalPrecision(t *testing.T) {
	tx, err := New("C", decimal.RequireFromString("-0.10"), "CHF", "IBAN", july, "coffee")
	require.NoError(t, err)

	raw, err := json.Marshal(tx)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"amount":"-0.1"`)
	assert.Contains(t, string(raw), `"valueDate":"2024-07-15"`)

	var decoded Transaction
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.True(t, tx.Amount.Equal(decoded.Amount))
	assert.Equal(t, tx.ID, decoded.ID)
	assert.True(t, tx.ValueDate.Equal(decoded.ValueDate))
	assert.NoError(t, decoded.Validate())
}

func TestUnmarshalRejectsBadDate(t *testing.T) {
	var tx Transaction
	err := json.Unmarshal([]byte(`{"id":"x","valueDate":"15.07.2024"}`), &tx)
	assert.ErrorIs(t, err, ErrInvalidValueDate)
}
