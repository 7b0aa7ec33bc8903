package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/amirasaad/ebanking/pkg/eventbus"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrUnroutable is returned when a publish targets a topic no queue is
// bound to. The exchange would confirm and then drop such a record.
var ErrUnroutable = errors.New("rabbitmq log: no queue bound for topic")

// RabbitMQConfig holds configuration for the RabbitMQ log.
type RabbitMQConfig struct {
	// Exchange is the durable topic exchange every topic is routed through.
	Exchange string
	// Groups maps a topic to the groups whose queues are bound on the
	// first publish to it, so nothing published before a consumer starts
	// is lost.
	Groups   map[string][]string
	Prefetch int
}

// DefaultRabbitMQConfig returns default configuration for RabbitMQLog.
func DefaultRabbitMQConfig() *RabbitMQConfig {
	return &RabbitMQConfig{
		Exchange: "ebanking",
		Prefetch: 10,
	}
}

// RabbitMQLog implements eventbus.Log on RabbitMQ. A topic is a routing
// key on a topic exchange and each consumer group owns a durable queue
// bound to it. Publishes wait for publisher confirms.
type RabbitMQLog struct {
	conn   *amqp.Connection
	pubCh  *amqp.Channel
	pubMtx sync.Mutex
	config *RabbitMQConfig
	logger *slog.Logger

	boundMtx sync.Mutex
	bound    map[string]struct{}
	routed   map[string]struct{}
}

// NewWithRabbitMQ dials the broker, declares the exchange and puts the
// publishing channel into confirm mode.
func NewWithRabbitMQ(amqpURL string, logger *slog.Logger, config *RabbitMQConfig) (*RabbitMQLog, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq log: %w", err)
	}
	if config == nil {
		config = DefaultRabbitMQConfig()
	}
	if config.Exchange == "" {
		config.Exchange = "ebanking"
	}
	if config.Prefetch <= 0 {
		config.Prefetch = 10
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := amqp.Dial(cleanURL)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq log: connection failed: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq log: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(config.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq log: declare exchange: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq log: enable confirms: %w", err)
	}

	l := &RabbitMQLog{
		conn:   conn,
		pubCh:  ch,
		config: config,
		logger: logger.With("bus", "rabbitmq"),
		bound:  make(map[string]struct{}),
		routed: make(map[string]struct{}),
	}
	l.logger.Info("🚀 RabbitMQ log initialized", "exchange", config.Exchange, "groups", config.Groups)
	return l, nil
}

func queueName(topic, group string) string {
	return topic + "." + group
}

// bind declares the durable queue of group on topic and binds it.
func (l *RabbitMQLog) bind(ch *amqp.Channel, topic, group string) (string, error) {
	name := queueName(topic, group)
	l.boundMtx.Lock()
	defer l.boundMtx.Unlock()
	if _, ok := l.bound[name]; ok {
		return name, nil
	}
	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return "", fmt.Errorf("rabbitmq log: declare queue %s: %w", name, err)
	}
	if err := ch.QueueBind(name, topic, l.config.Exchange, false, nil); err != nil {
		return "", fmt.Errorf("rabbitmq log: bind queue %s: %w", name, err)
	}
	l.bound[name] = struct{}{}
	l.routed[topic] = struct{}{}
	return name, nil
}

// Publish routes the record to topic and waits for the broker confirm.
// Ack.Offset is the confirm delivery tag of the publishing channel.
func (l *RabbitMQLog) Publish(ctx context.Context, topic string, key, value []byte) (eventbus.Ack, error) {
	l.pubMtx.Lock()
	for _, group := range l.config.Groups[topic] {
		if _, err := l.bind(l.pubCh, topic, group); err != nil {
			l.pubMtx.Unlock()
			return eventbus.Ack{}, err
		}
	}
	l.boundMtx.Lock()
	_, routed := l.routed[topic]
	l.boundMtx.Unlock()
	if !routed {
		l.pubMtx.Unlock()
		return eventbus.Ack{}, fmt.Errorf("%w %s", ErrUnroutable, topic)
	}
	dc, err := l.pubCh.PublishWithDeferredConfirmWithContext(ctx,
		l.config.Exchange,
		topic,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    string(key),
			Timestamp:    time.Now().UTC(),
			Body:         value,
		})
	l.pubMtx.Unlock()
	if err != nil {
		return eventbus.Ack{}, fmt.Errorf("rabbitmq log: publish failed: %w", err)
	}

	ok, err := dc.WaitContext(ctx)
	if err != nil {
		return eventbus.Ack{}, fmt.Errorf("rabbitmq log: confirm failed: %w", err)
	}
	if !ok {
		return eventbus.Ack{}, fmt.Errorf("rabbitmq log: broker nacked message %s", key)
	}
	return eventbus.Ack{Topic: topic, Offset: int64(dc.DeliveryTag)}, nil
}

// Subscribe opens a dedicated channel and consumes the group queue with
// manual acknowledgement.
func (l *RabbitMQLog) Subscribe(topic, group string) (eventbus.Subscriber, error) {
	if topic == "" || group == "" {
		return nil, fmt.Errorf("rabbitmq log: topic and group are required")
	}
	ch, err := l.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq log: open channel: %w", err)
	}
	if err := ch.Qos(l.config.Prefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("rabbitmq log: set qos: %w", err)
	}
	name, err := l.bind(ch, topic, group)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}
	tag := fmt.Sprintf("%s-%s", group, uuid.NewString()[:8])
	deliveries, err := ch.Consume(name, tag, false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("rabbitmq log: consume %s: %w", name, err)
	}
	return &rabbitSubscriber{ch: ch, topic: topic, deliveries: deliveries}, nil
}

// Close closes the connection and every channel on it.
func (l *RabbitMQLog) Close() error {
	if l.conn == nil || l.conn.IsClosed() {
		return nil
	}
	return l.conn.Close()
}

type rabbitSubscriber struct {
	ch         *amqp.Channel
	topic      string
	deliveries <-chan amqp.Delivery
}

func (s *rabbitSubscriber) Fetch(ctx context.Context) (eventbus.Message, error) {
	select {
	case <-ctx.Done():
		return eventbus.Message{}, ctx.Err()
	case d, ok := <-s.deliveries:
		if !ok {
			return eventbus.Message{}, eventbus.ErrClosed
		}
		return eventbus.Message{
			Topic:  s.topic,
			Offset: int64(d.DeliveryTag),
			ID:     d.MessageId,
			Key:    []byte(d.MessageId),
			Value:  d.Body,
			Time:   d.Timestamp,
		}, nil
	}
}

func (s *rabbitSubscriber) Commit(_ context.Context, msg eventbus.Message) error {
	if err := s.ch.Ack(uint64(msg.Offset), false); err != nil {
		return fmt.Errorf("rabbitmq log: ack failed: %w", err)
	}
	return nil
}

// Close closes the channel. Unacknowledged deliveries return to the queue.
func (s *rabbitSubscriber) Close() error {
	if err := s.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	return nil
}

// sanitizeAMQPURL trims quotes and whitespace and defaults an empty path to
// the root vhost. An explicit vhost is kept as is.
func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	if u.Path == "" {
		clean += "/"
	}
	return clean, nil
}
