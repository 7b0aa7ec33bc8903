//go:build rabbitmq

package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRabbitMQLog(tb testing.TB) (*RabbitMQLog, func()) {
	tb.Helper()
	if !dockerIsReachable() {
		tb.Skip("docker is not reachable")
	}
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "rabbitmq:3.13-alpine",
			ExposedPorts: []string{"5672/tcp"},
			WaitingFor:   wait.ForLog("Server startup complete").WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		tb.Fatalf("Failed to start container: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		tb.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5672")
	if err != nil {
		tb.Fatalf("Failed to get mapped port: %v", err)
	}

	cfg := DefaultRabbitMQConfig()
	cfg.Groups = map[string][]string{"transactions": {"g"}}
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	log, err := NewWithRabbitMQ(fmt.Sprintf("amqp://guest:guest@%s:%s/", host, port.Port()), logger, cfg)
	if err != nil {
		tb.Fatalf("Failed to create RabbitMQ log: %v", err)
	}
	return log, func() {
		_ = log.Close()
		_ = container.Terminate(ctx)
	}
}

func TestRabbitMQLog_ConfirmedPublishAndRedelivery(t *testing.T) {
	log, cleanup := setupRabbitMQLog(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	ack, err := log.Publish(ctx, "transactions", []byte("id-1"), []byte("v"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), ack.Offset)

	first, err := log.Subscribe("transactions", "g")
	require.NoError(t, err)
	msg, err := first.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "id-1", string(msg.Key))
	require.NoError(t, first.Close())

	second, err := log.Subscribe("transactions", "g")
	require.NoError(t, err)
	defer second.Close() //nolint:errcheck
	again, err := second.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v", string(again.Value))
	require.NoError(t, second.Commit(ctx, again))
}
