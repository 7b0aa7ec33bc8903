package transaction_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	infra_eventbus "github.com/amirasaad/ebanking/infra/eventbus"
	"github.com/amirasaad/ebanking/infra/repository/memory"
	domain "github.com/amirasaad/ebanking/pkg/domain/transaction"
	"github.com/amirasaad/ebanking/pkg/eventbus"
	svc "github.com/amirasaad/ebanking/pkg/service/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(t *testing.T, tx domain.Transaction) eventbus.Message {
	t.Helper()
	b, err := json.Marshal(tx)
	require.NoError(t, err)
	return eventbus.Message{Topic: svc.DefaultTopic, Key: []byte(tx.ID), Value: b}
}

func uid(i int) string {
	return fmt.Sprintf("00000000-0000-4000-8000-%012d", i)
}

func TestConsumer_HandleMessage(t *testing.T) {
	store := memory.NewTransactionStore()
	c := svc.NewConsumer(infra_eventbus.NewWithMemory(1, discardLogger()), store, svc.ConsumerConfig{}, nil, discardLogger())
	ctx := context.Background()
	msg := encode(t, newTx(t, uid(1), "P-1", "100", "USD", july(3)))

	assert.Equal(t, svc.Persisted, c.HandleMessage(ctx, msg))
	assert.Equal(t, svc.Duplicate, c.HandleMessage(ctx, msg))
	assert.Equal(t, 1, store.Len())
}

func TestConsumer_HandleMessage_Failures(t *testing.T) {
	valid := newTx(t, uid(1), "P-1", "100", "USD", july(3))
	invalid := valid
	invalid.Currency = "usd"
	invalidPayload, err := json.Marshal(invalid)
	require.NoError(t, err)

	tests := []struct {
		name  string
		store *failingStore
		msg   eventbus.Message
	}{
		{"malformed json", &failingStore{}, eventbus.Message{Value: []byte("{not json")}},
		{"bad date", &failingStore{}, eventbus.Message{Value: []byte(`{"id":"x","valueDate":"03.07.2024"}`)}},
		{"invalid record", &failingStore{}, eventbus.Message{Value: invalidPayload}},
		{"store error", &failingStore{failures: -1}, encode(t, valid)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.store.Repository = memory.NewTransactionStore()
			c := svc.NewConsumer(infra_eventbus.NewWithMemory(1, discardLogger()), tt.store, svc.ConsumerConfig{}, nil, discardLogger())
			assert.Equal(t, svc.PersistFailed, c.HandleMessage(context.Background(), tt.msg))
		})
	}
}

// runConsumer starts c and returns a stop function that waits for Run.
func runConsumer(t *testing.T, c *svc.Consumer) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, c.Run(ctx))
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}

func TestConsumer_Run_PersistsOutOfOrderAndDuplicateDeliveries(t *testing.T) {
	log := infra_eventbus.NewWithMemory(4, discardLogger())
	store := memory.NewTransactionStore()
	ctx := context.Background()

	const n = 30
	for i := n; i >= 1; i-- {
		msg := encode(t, newTx(t, uid(i), "P-1", fmt.Sprintf("%d", i), "USD", july(1+i%28)))
		_, err := log.Publish(ctx, svc.DefaultTopic, msg.Key, msg.Value)
		require.NoError(t, err)
		if i%5 == 0 {
			_, err = log.Publish(ctx, svc.DefaultTopic, msg.Key, msg.Value)
			require.NoError(t, err)
		}
	}

	c := svc.NewConsumer(log, store, svc.ConsumerConfig{Workers: 3}, nil, discardLogger())
	stop := runConsumer(t, c)
	defer stop()

	require.Eventually(t, func() bool {
		return log.Lag(svc.DefaultTopic, svc.DefaultGroupID) == 0
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, n, store.Len())
}

func TestConsumer_Run_DeadLettersAndCommitsFailures(t *testing.T) {
	log := infra_eventbus.NewWithMemory(2, discardLogger())
	store := &failingStore{Repository: memory.NewTransactionStore(), failures: 1}
	ctx := context.Background()

	good := encode(t, newTx(t, uid(7), "P-1", "10", "USD", july(2)))
	_, err := log.Publish(ctx, svc.DefaultTopic, []byte("poison"), []byte("{not json"))
	require.NoError(t, err)

	c := svc.NewConsumer(log, store, svc.ConsumerConfig{DeadLetter: true}, nil, discardLogger())
	stop := runConsumer(t, c)
	defer stop()

	dlq := eventbus.DeadLetterTopic(svc.DefaultTopic)
	require.Eventually(t, func() bool {
		return len(log.Published(dlq)) == 1
	}, 5*time.Second, 10*time.Millisecond)

	// the store fails once, so the good record is dead-lettered too
	_, err = log.Publish(ctx, svc.DefaultTopic, good.Key, good.Value)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(log.Published(dlq)) == 2 && log.Lag(svc.DefaultTopic, svc.DefaultGroupID) == 0
	}, 5*time.Second, 10*time.Millisecond)

	letters := map[string]eventbus.DeadLetter{}
	for _, msg := range log.Published(dlq) {
		dl, err := eventbus.DecodeDeadLetter(msg.Value)
		require.NoError(t, err)
		letters[string(dl.Payload)] = dl
	}
	poison := letters["{not json"]
	assert.Equal(t, svc.DefaultTopic, poison.Topic)
	assert.Equal(t, []byte("poison"), poison.Key)
	assert.Contains(t, poison.Reason, "decode")
	assert.False(t, poison.Retryable)

	failed := letters[string(good.Value)]
	assert.Equal(t, good.Key, failed.Key)
	assert.Contains(t, failed.Reason, "database unavailable")
	assert.True(t, failed.Retryable)
	assert.Equal(t, 0, store.Repository.(*memory.TransactionStore).Len())
}

func TestConsumer_Run_CommitsFailuresWithoutDeadLetter(t *testing.T) {
	log := infra_eventbus.NewWithMemory(1, discardLogger())
	ctx := context.Background()
	_, err := log.Publish(ctx, svc.DefaultTopic, []byte("k"), []byte("garbage"))
	require.NoError(t, err)

	c := svc.NewConsumer(log, memory.NewTransactionStore(), svc.ConsumerConfig{}, nil, discardLogger())
	stop := runConsumer(t, c)
	defer stop()

	require.Eventually(t, func() bool {
		return log.Lag(svc.DefaultTopic, svc.DefaultGroupID) == 0
	}, 5*time.Second, 10*time.Millisecond)
	assert.Empty(t, log.Published(eventbus.DeadLetterTopic(svc.DefaultTopic)))
}

func TestConsumer_Run_StopsOnClosedLog(t *testing.T) {
	log := infra_eventbus.NewWithMemory(1, discardLogger())
	c := svc.NewConsumer(log, memory.NewTransactionStore(), svc.ConsumerConfig{Workers: 2}, nil, discardLogger())

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, log.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop after the log closed")
	}
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "persisted", svc.Persisted.String())
	assert.Equal(t, "duplicate", svc.Duplicate.String())
	assert.Equal(t, "persist_failed", svc.PersistFailed.String())
	assert.Equal(t, "unknown", svc.Outcome(0).String())
}
