package eventbus

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/amirasaad/ebanking/pkg/eventbus"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
)

const (
	correlationHeader = "x-publish-id"
	ackMetadataGrace  = 100 * time.Millisecond
)

// KafkaConfig holds configuration for the Kafka log.
type KafkaConfig struct {
	Partitions        int
	ReplicationFactor int
	// RequiredAcks is "one" or "all".
	RequiredAcks  string
	BatchTimeout  time.Duration
	SASLUsername  string
	SASLPassword  string
	TLSEnabled    bool
	TLSCAFile     string
	TLSCertFile   string
	TLSKeyFile    string
	TLSSkipVerify bool
}

// DefaultKafkaConfig returns default configuration for KafkaLog.
func DefaultKafkaConfig() *KafkaConfig {
	return &KafkaConfig{
		Partitions:        3,
		ReplicationFactor: 1,
		RequiredAcks:      "one",
		BatchTimeout:      10 * time.Millisecond,
	}
}

// KafkaLog implements eventbus.Log on top of Kafka.
type KafkaLog struct {
	brokers []string
	writer  *kafka.Writer
	dialer  *kafka.Dialer
	config  *KafkaConfig
	logger  *slog.Logger

	// inflight maps a correlation id to the channel waiting for its ack.
	inflight sync.Map

	topicsMtx sync.Mutex
	topics    map[string]struct{}
}

// NewWithKafka creates a Kafka-backed log.
// brokers: Comma-separated brokers list (e.g. "localhost:9092,localhost:9093").
func NewWithKafka(
	brokers string,
	logger *slog.Logger,
	config *KafkaConfig,
) (*KafkaLog, error) {
	parsedBrokers := parseBrokers(brokers)
	if len(parsedBrokers) == 0 {
		return nil, fmt.Errorf("kafka log: brokers are required")
	}

	if config == nil {
		config = DefaultKafkaConfig()
	}
	if config.Partitions <= 0 {
		config.Partitions = 1
	}
	if config.ReplicationFactor <= 0 {
		config.ReplicationFactor = 1
	}
	if config.BatchTimeout <= 0 {
		config.BatchTimeout = 10 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}

	dialer, transport, err := newKafkaDialer(config)
	if err != nil {
		return nil, err
	}

	l := &KafkaLog{
		brokers: parsedBrokers,
		dialer:  dialer,
		config:  config,
		logger:  logger.With("bus", "kafka"),
		topics:  make(map[string]struct{}),
	}

	l.writer = &kafka.Writer{
		Addr:                   kafka.TCP(parsedBrokers...),
		AllowAutoTopicCreation: true,
		RequiredAcks:           requiredAcks(config.RequiredAcks),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           config.BatchTimeout,
		// A synchronous publish must fail instead of retrying silently.
		MaxAttempts: 1,
		Completion:  l.onCompletion,
	}
	if transport != nil {
		l.writer.Transport = transport
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialer.Timeout)
	defer cancel()
	if err := l.ping(ctx); err != nil {
		_ = l.writer.Close()
		return nil, err
	}

	l.logger.Info("🚀 Kafka log initialized",
		"brokers", parsedBrokers,
		"partitions", config.Partitions,
		"required_acks", config.RequiredAcks,
		"tls_enabled", dialer.TLS != nil,
		"sasl_enabled", dialer.SASLMechanism != nil,
	)
	return l, nil
}

func requiredAcks(v string) kafka.RequiredAcks {
	if strings.EqualFold(strings.TrimSpace(v), "all") {
		return kafka.RequireAll
	}
	return kafka.RequireOne
}

// Publish writes one record and waits for the broker acknowledgement.
// The partition is picked by hashing the key.
func (l *KafkaLog) Publish(ctx context.Context, topic string, key, value []byte) (eventbus.Ack, error) {
	if l == nil || l.writer == nil {
		return eventbus.Ack{}, fmt.Errorf("kafka log: writer not initialized")
	}
	if err := l.ensureTopic(ctx, topic); err != nil {
		return eventbus.Ack{}, err
	}

	id := uuid.NewString()
	acked := make(chan kafka.Message, 1)
	l.inflight.Store(id, acked)
	defer l.inflight.Delete(id)

	msg := kafka.Message{
		Topic:   topic,
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: []kafka.Header{{Key: correlationHeader, Value: []byte(id)}},
	}
	if err := l.writer.WriteMessages(ctx, msg); err != nil {
		return eventbus.Ack{}, fmt.Errorf("kafka log: publish failed: %w", err)
	}

	// The write is acknowledged at this point. The completion callback
	// only carries partition and offset back.
	select {
	case m := <-acked:
		return eventbus.Ack{Topic: topic, Partition: m.Partition, Offset: m.Offset}, nil
	case <-time.After(ackMetadataGrace):
	case <-ctx.Done():
	}
	l.logger.Warn("kafka ack metadata not received", "topic", topic)
	return eventbus.Ack{Topic: topic, Partition: -1, Offset: -1}, nil
}

func (l *KafkaLog) onCompletion(messages []kafka.Message, err error) {
	if err != nil {
		return
	}
	for _, m := range messages {
		for _, h := range m.Headers {
			if h.Key != correlationHeader {
				continue
			}
			if ch, ok := l.inflight.Load(string(h.Value)); ok {
				select {
				case ch.(chan kafka.Message) <- m:
				default:
				}
			}
		}
	}
}

// Subscribe joins group as a new consumer group member on topic.
func (l *KafkaLog) Subscribe(topic, group string) (eventbus.Subscriber, error) {
	if topic == "" || group == "" {
		return nil, fmt.Errorf("kafka log: topic and group are required")
	}
	ctx, cancel := context.WithTimeout(context.Background(), l.dialer.Timeout)
	defer cancel()
	if err := l.ensureTopic(ctx, topic); err != nil {
		return nil, err
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     l.brokers,
		GroupID:     group,
		Topic:       topic,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     1 * time.Second,
		Dialer:      l.dialer,
	})
	return &kafkaSubscriber{reader: reader}, nil
}

// Close flushes and closes the writer.
func (l *KafkaLog) Close() error {
	if l == nil || l.writer == nil {
		return nil
	}
	return l.writer.Close()
}

func (l *KafkaLog) ping(ctx context.Context) error {
	conn, err := l.dialer.DialContext(ctx, "tcp", l.brokers[0])
	if err != nil {
		return fmt.Errorf("kafka log: connection failed: %w", err)
	}
	_ = conn.Close()
	return nil
}

func (l *KafkaLog) ensureTopic(ctx context.Context, topic string) error {
	if topic == "" {
		return fmt.Errorf("kafka log: topic is required")
	}

	l.topicsMtx.Lock()
	_, exists := l.topics[topic]
	l.topicsMtx.Unlock()
	if exists {
		return nil
	}

	conn, err := l.dialer.DialContext(ctx, "tcp", l.brokers[0])
	if err != nil {
		return fmt.Errorf("kafka log: dial failed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("kafka log: controller lookup failed: %w", err)
	}
	controllerConn, err := l.dialer.DialContext(ctx, "tcp",
		net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("kafka log: controller dial failed: %w", err)
	}
	defer func() { _ = controllerConn.Close() }()

	err = controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     l.config.Partitions,
		ReplicationFactor: l.config.ReplicationFactor,
	})
	if err != nil && !isTopicAlreadyExists(err) {
		return fmt.Errorf("kafka log: create topic failed: %w", err)
	}

	l.topicsMtx.Lock()
	l.topics[topic] = struct{}{}
	l.topicsMtx.Unlock()
	return nil
}

type kafkaSubscriber struct {
	reader *kafka.Reader
}

func (s *kafkaSubscriber) Fetch(ctx context.Context) (eventbus.Message, error) {
	m, err := s.reader.FetchMessage(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return eventbus.Message{}, eventbus.ErrClosed
		}
		return eventbus.Message{}, err
	}
	return eventbus.Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
		Time:      m.Time,
	}, nil
}

func (s *kafkaSubscriber) Commit(ctx context.Context, msg eventbus.Message) error {
	return s.reader.CommitMessages(ctx, kafka.Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
	})
}

func (s *kafkaSubscriber) Close() error {
	return s.reader.Close()
}

func newKafkaDialer(config *KafkaConfig) (*kafka.Dialer, *kafka.Transport, error) {
	tlsConfig, err := buildKafkaTLSConfig(config)
	if err != nil {
		return nil, nil, err
	}
	saslMechanism, err := buildKafkaSASLMechanism(config)
	if err != nil {
		return nil, nil, err
	}

	dialer := &kafka.Dialer{
		Timeout:       5 * time.Second,
		TLS:           tlsConfig,
		SASLMechanism: saslMechanism,
	}

	if tlsConfig == nil && saslMechanism == nil {
		return dialer, nil, nil
	}

	transport := &kafka.Transport{
		TLS:  tlsConfig,
		SASL: saslMechanism,
	}
	return dialer, transport, nil
}

func buildKafkaTLSConfig(config *KafkaConfig) (*tls.Config, error) {
	if !config.TLSEnabled {
		return nil, nil
	}

	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: config.TLSSkipVerify, //nolint:gosec
	}

	if caFile := strings.TrimSpace(config.TLSCAFile); caFile != "" {
		caBytes, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("kafka log: read tls ca file: %w", err)
		}
		caPool := x509.NewCertPool()
		if !caPool.AppendCertsFromPEM(caBytes) {
			return nil, fmt.Errorf("kafka log: invalid tls ca file")
		}
		tlsConfig.RootCAs = caPool
	}

	certFile := strings.TrimSpace(config.TLSCertFile)
	keyFile := strings.TrimSpace(config.TLSKeyFile)
	if certFile != "" || keyFile != "" {
		if certFile == "" || keyFile == "" {
			return nil, fmt.Errorf("kafka log: tls cert and key are required")
		}
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("kafka log: load tls key pair: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

func buildKafkaSASLMechanism(config *KafkaConfig) (sasl.Mechanism, error) {
	username := strings.TrimSpace(config.SASLUsername)
	password := strings.TrimSpace(config.SASLPassword)
	if username == "" && password == "" {
		return nil, nil
	}
	if username == "" || password == "" {
		return nil, fmt.Errorf("kafka log: sasl username and password are required")
	}
	return plain.Mechanism{
		Username: username,
		Password: password,
	}, nil
}

func isTopicAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, kafka.TopicAlreadyExists) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Topic with this name already exists") ||
		strings.Contains(msg, "TOPIC_ALREADY_EXISTS")
}

func parseBrokers(brokers string) []string {
	parts := strings.Split(brokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

var _ eventbus.Log = (*KafkaLog)(nil)
