package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	infra_eventbus "github.com/amirasaad/ebanking/infra/eventbus"
	"github.com/google/uuid"
)

// RunSmokeTest publishes one record through the Kafka log and reads it back
// with a fresh consumer group to verify a local cluster end to end.
func RunSmokeTest(logger *slog.Logger) error {
	brokers := strings.TrimSpace(os.Getenv("BROKERS"))
	if brokers == "" {
		brokers = "localhost:9093,localhost:9092"
	}
	topic := strings.TrimSpace(os.Getenv("TOPIC"))
	if topic == "" {
		topic = "transactions.smoketest"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log, err := infra_eventbus.NewWithKafka(brokers, logger, infra_eventbus.DefaultKafkaConfig())
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() { _ = log.Close() }()

	key := uuid.NewString()
	ack, err := log.Publish(ctx, topic, []byte(key), []byte("smoke-"+time.Now().Format(time.RFC3339Nano)))
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	logger.Info("produced", "topic", topic, "partition", ack.Partition, "offset", ack.Offset)

	sub, err := log.Subscribe(topic, "smoketest-"+key[:8])
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer func() { _ = sub.Close() }()

	for {
		msg, err := sub.Fetch(ctx)
		if err != nil {
			return fmt.Errorf("fetch: %w", err)
		}
		if err := sub.Commit(ctx, msg); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		if string(msg.Key) == key {
			logger.Info("consumed", "topic", topic, "partition", msg.Partition, "offset", msg.Offset)
			break
		}
	}

	logger.Info("kafka smoke test passed")
	return nil
}

// main runs the smoke test and exits non-zero on failure.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	if err := RunSmokeTest(logger); err != nil {
		logger.Error("kafka smoke test failed", "error", err)
		os.Exit(1)
	}
}
