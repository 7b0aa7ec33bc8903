package transaction_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	domain "github.com/amirasaad/ebanking/pkg/domain/transaction"
	"github.com/amirasaad/ebanking/pkg/eventbus"
	repo "github.com/amirasaad/ebanking/pkg/repository/transaction"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockPublisher is a mock implementation of eventbus.Publisher.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(
	ctx context.Context,
	topic string,
	key, value []byte,
) (eventbus.Ack, error) {
	args := m.Called(ctx, topic, key, value)
	return args.Get(0).(eventbus.Ack), args.Error(1)
}

func (m *MockPublisher) Close() error {
	return nil
}

// slowPublisher ignores ctx and answers after delay.
type slowPublisher struct {
	delay time.Duration
}

func (s slowPublisher) Publish(context.Context, string, []byte, []byte) (eventbus.Ack, error) {
	time.Sleep(s.delay)
	return eventbus.Ack{Partition: 0, Offset: 1}, nil
}

func (s slowPublisher) Close() error { return nil }

// failingStore fails every upsert until failures reaches zero.
type failingStore struct {
	repo.Repository
	failures int
}

func (f *failingStore) UpsertIfAbsent(ctx context.Context, tx domain.Transaction) (bool, error) {
	if f.failures != 0 {
		if f.failures > 0 {
			f.failures--
		}
		return false, errors.New("database unavailable")
	}
	return f.Repository.UpsertIfAbsent(ctx, tx)
}

func newTx(
	t *testing.T,
	id, customer, amount, code string,
	valueDate time.Time,
) domain.Transaction {
	t.Helper()
	tx, err := domain.NewWithID(
		id,
		customer,
		decimal.RequireFromString(amount),
		code,
		"CH93-0000-0000-0000-0000-0",
		valueDate,
		"Online payment",
	)
	require.NoError(t, err)
	return *tx
}

func july(day int) time.Time {
	return time.Date(2024, time.July, day, 0, 0, 0, 0, time.UTC)
}
