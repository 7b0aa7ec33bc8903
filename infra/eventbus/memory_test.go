package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/amirasaad/ebanking/pkg/eventbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemoryLog(partitions int) *MemoryLog {
	return NewWithMemory(partitions, slog.New(slog.NewTextHandler(os.Stdout, nil)))
}

func TestMemoryLog_PublishAssignsPartitionByKey(t *testing.T) {
	log := newTestMemoryLog(4)
	ctx := context.Background()

	first, err := log.Publish(ctx, "transactions", []byte("id-1"), []byte("a"))
	require.NoError(t, err)
	second, err := log.Publish(ctx, "transactions", []byte("id-1"), []byte("b"))
	require.NoError(t, err)

	assert.Equal(t, first.Partition, second.Partition)
	assert.Equal(t, first.Offset+1, second.Offset)
	assert.Equal(t, eventbus.PartitionFor([]byte("id-1"), 4), first.Partition)
	assert.Len(t, log.Published("transactions"), 2)
}

func TestMemoryLog_FetchCommit(t *testing.T) {
	log := newTestMemoryLog(1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	sub, err := log.Subscribe("transactions", "g")
	require.NoError(t, err)

	_, err = log.Publish(ctx, "transactions", []byte("k"), []byte("v1"))
	require.NoError(t, err)
	_, err = log.Publish(ctx, "transactions", []byte("k"), []byte("v2"))
	require.NoError(t, err)

	m1, err := sub.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(m1.Value))
	m2, err := sub.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(m2.Value))

	assert.Equal(t, int64(2), log.Lag("transactions", "g"))
	require.NoError(t, sub.Commit(ctx, m1))
	require.NoError(t, sub.Commit(ctx, m2))
	assert.Equal(t, int64(0), log.Lag("transactions", "g"))
}

func TestMemoryLog_FetchBlocksUntilPublishOrCancel(t *testing.T) {
	log := newTestMemoryLog(2)
	sub, err := log.Subscribe("transactions", "g")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = sub.Fetch(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	got := make(chan eventbus.Message, 1)
	go func() {
		msg, err := sub.Fetch(context.Background())
		if err == nil {
			got <- msg
		}
	}()
	time.Sleep(10 * time.Millisecond)
	_, err = log.Publish(context.Background(), "transactions", []byte("k"), []byte("late"))
	require.NoError(t, err)

	select {
	case msg := <-got:
		assert.Equal(t, "late", string(msg.Value))
	case <-time.After(time.Second):
		t.Fatal("fetch did not wake up after publish")
	}
}

func TestMemoryLog_RedeliversUncommittedAfterClose(t *testing.T) {
	log := newTestMemoryLog(1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := log.Publish(ctx, "transactions", []byte("k"), []byte("v1"))
	require.NoError(t, err)

	first, err := log.Subscribe("transactions", "g")
	require.NoError(t, err)
	msg, err := first.Fetch(ctx)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := log.Subscribe("transactions", "g")
	require.NoError(t, err)
	again, err := second.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, msg.Offset, again.Offset)
	assert.Equal(t, "v1", string(again.Value))

	_, err = first.Fetch(ctx)
	assert.ErrorIs(t, err, eventbus.ErrClosed)
}

func TestMemoryLog_GroupMembersSplitPartitions(t *testing.T) {
	log := newTestMemoryLog(4)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	const total = 40
	for i := 0; i < total; i++ {
		_, err := log.Publish(ctx, "transactions", []byte(fmt.Sprintf("id-%d", i)), []byte(fmt.Sprintf("%d", i)))
		require.NoError(t, err)
	}

	var (
		mu   sync.Mutex
		seen = make(map[string]int)
		wg   sync.WaitGroup
	)
	for w := 0; w < 2; w++ {
		sub, err := log.Subscribe("transactions", "g")
		require.NoError(t, err)
		wg.Add(1)
		go func(sub eventbus.Subscriber) {
			defer wg.Done()
			for {
				msg, err := sub.Fetch(ctx)
				if err != nil {
					return
				}
				mu.Lock()
				seen[string(msg.Value)]++
				done := len(seen) == total
				mu.Unlock()
				_ = sub.Commit(ctx, msg)
				if done {
					cancel()
				}
			}
		}(sub)
	}
	wg.Wait()

	assert.Len(t, seen, total)
	for v, n := range seen {
		assert.Equal(t, 1, n, "record %s delivered more than once", v)
	}
}

func TestMemoryLog_IndependentGroups(t *testing.T) {
	log := newTestMemoryLog(1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := log.Publish(ctx, "transactions", []byte("k"), []byte("v"))
	require.NoError(t, err)

	a, err := log.Subscribe("transactions", "a")
	require.NoError(t, err)
	b, err := log.Subscribe("transactions", "b")
	require.NoError(t, err)

	ma, err := a.Fetch(ctx)
	require.NoError(t, err)
	mb, err := b.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, ma.Offset, mb.Offset)
}

func TestMemoryLog_Closed(t *testing.T) {
	log := newTestMemoryLog(1)
	require.NoError(t, log.Close())

	_, err := log.Publish(context.Background(), "t", nil, nil)
	assert.ErrorIs(t, err, eventbus.ErrClosed)
	_, err = log.Subscribe("t", "g")
	assert.ErrorIs(t, err, eventbus.ErrClosed)
}
