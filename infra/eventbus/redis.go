package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/amirasaad/ebanking/pkg/eventbus"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyField   = "key"
	redisValueField = "value"
)

// RedisConfig holds configuration for the Redis Streams log.
type RedisConfig struct {
	// Block bounds a single XREADGROUP call.
	Block time.Duration
	// ClaimIdle is how long an entry may stay pending on a departed
	// consumer before another member claims it.
	ClaimIdle time.Duration
	// MaxLen caps each stream approximately. Zero keeps everything.
	MaxLen int64
}

// DefaultRedisConfig returns default configuration for RedisLog.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Block:     2 * time.Second,
		ClaimIdle: 30 * time.Second,
	}
}

// RedisLog implements eventbus.Log using Redis Streams. Each topic is one
// stream and consumer groups map onto Redis consumer groups.
type RedisLog struct {
	client *redis.Client
	config *RedisConfig
	logger *slog.Logger
}

// NewWithRedis creates a new Redis-backed log.
// url: Redis connection URL (e.g., "redis://localhost:6379")
func NewWithRedis(url string, logger *slog.Logger, config *RedisConfig) (*RedisLog, error) {
	if url == "" {
		return nil, fmt.Errorf("redis log: url is required")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis log: invalid URL: %w", err)
	}
	return NewWithRedisClient(redis.NewClient(opt), logger, config)
}

// NewWithRedisClient wraps an existing client.
func NewWithRedisClient(client *redis.Client, logger *slog.Logger, config *RedisConfig) (*RedisLog, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}
	if config.Block <= 0 {
		config.Block = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis log: connection failed: %w", err)
	}
	return &RedisLog{
		client: client,
		config: config,
		logger: logger.With("bus", "redis"),
	}, nil
}

// Publish appends the record to the stream. The returned Ack carries the
// stream entry id. Redis streams are not partitioned.
func (l *RedisLog) Publish(ctx context.Context, topic string, key, value []byte) (eventbus.Ack, error) {
	if l.client == nil {
		return eventbus.Ack{}, fmt.Errorf("redis log: client not initialized")
	}
	args := &redis.XAddArgs{
		Stream: topic,
		Values: map[string]any{
			redisKeyField:   string(key),
			redisValueField: string(value),
		},
	}
	if l.config.MaxLen > 0 {
		args.MaxLen = l.config.MaxLen
		args.Approx = true
	}
	id, err := l.client.XAdd(ctx, args).Result()
	if err != nil {
		return eventbus.Ack{}, fmt.Errorf("redis log: publish failed: %w", err)
	}
	return eventbus.Ack{Topic: topic, Partition: 0, Offset: -1, ID: id}, nil
}

// Subscribe creates the consumer group if needed and joins it.
func (l *RedisLog) Subscribe(topic, group string) (eventbus.Subscriber, error) {
	if topic == "" || group == "" {
		return nil, fmt.Errorf("redis log: topic and group are required")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := l.client.XGroupCreateMkStream(ctx, topic, group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("redis log: create group failed: %w", err)
	}
	consumer := fmt.Sprintf("%s-%s", group, uuid.NewString()[:8])
	l.logger.Info("joined consumer group", "stream", topic, "group", group, "consumer", consumer)
	return &redisSubscriber{
		log:      l,
		stream:   topic,
		group:    group,
		consumer: consumer,
		done:     make(chan struct{}),
	}, nil
}

// Close closes the underlying client.
func (l *RedisLog) Close() error {
	return l.client.Close()
}

type redisSubscriber struct {
	log       *RedisLog
	stream    string
	group     string
	consumer  string
	lastClaim time.Time
	done      chan struct{}
	closeOnce sync.Once
}

func (s *redisSubscriber) Fetch(ctx context.Context) (eventbus.Message, error) {
	for {
		select {
		case <-s.done:
			return eventbus.Message{}, eventbus.ErrClosed
		case <-ctx.Done():
			return eventbus.Message{}, ctx.Err()
		default:
		}

		if msg, ok, err := s.claimStale(ctx); err != nil {
			return eventbus.Message{}, err
		} else if ok {
			return msg, nil
		}

		res, err := s.log.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    s.group,
			Consumer: s.consumer,
			Streams:  []string{s.stream, ">"},
			Count:    1,
			Block:    s.log.config.Block,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return eventbus.Message{}, ctx.Err()
			}
			return eventbus.Message{}, fmt.Errorf("redis log: read failed: %w", err)
		}
		for _, stream := range res {
			for _, m := range stream.Messages {
				return s.toMessage(m), nil
			}
		}
	}
}

// claimStale takes over one entry left pending by a departed consumer.
func (s *redisSubscriber) claimStale(ctx context.Context) (eventbus.Message, bool, error) {
	idle := s.log.config.ClaimIdle
	if idle <= 0 || time.Since(s.lastClaim) < idle {
		return eventbus.Message{}, false, nil
	}
	s.lastClaim = time.Now()
	msgs, _, err := s.log.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   s.stream,
		Group:    s.group,
		Consumer: s.consumer,
		MinIdle:  idle,
		Start:    "0-0",
		Count:    1,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return eventbus.Message{}, false, fmt.Errorf("redis log: claim failed: %w", err)
	}
	if len(msgs) == 0 {
		return eventbus.Message{}, false, nil
	}
	s.log.logger.Warn("claimed stale pending entry", "stream", s.stream, "id", msgs[0].ID)
	return s.toMessage(msgs[0]), true, nil
}

func (s *redisSubscriber) toMessage(m redis.XMessage) eventbus.Message {
	key, _ := m.Values[redisKeyField].(string)
	value, _ := m.Values[redisValueField].(string)
	return eventbus.Message{
		Topic:     s.stream,
		Partition: 0,
		Offset:    -1,
		ID:        m.ID,
		Key:       []byte(key),
		Value:     []byte(value),
		Time:      streamIDTime(m.ID),
	}
}

func (s *redisSubscriber) Commit(ctx context.Context, msg eventbus.Message) error {
	if err := s.log.client.XAck(ctx, s.stream, s.group, msg.ID).Err(); err != nil {
		return fmt.Errorf("redis log: ack failed: %w", err)
	}
	return nil
}

// Close stops fetching. Pending entries stay in the group and are claimed
// by another member after ClaimIdle.
func (s *redisSubscriber) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

// streamIDTime extracts the millisecond timestamp of a stream entry id.
func streamIDTime(id string) time.Time {
	ms, _, ok := strings.Cut(id, "-")
	if !ok {
		return time.Time{}
	}
	var v int64
	if _, err := fmt.Sscan(ms, &v); err != nil {
		return time.Time{}
	}
	return time.UnixMilli(v).UTC()
}

var _ eventbus.Log = (*RedisLog)(nil)
