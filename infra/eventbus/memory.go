package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/amirasaad/ebanking/pkg/eventbus"
)

// MemoryLog is an in-process partitioned log with consumer-group offsets.
// Partitions are spread over the live members of a group and uncommitted
// records are redelivered when a member closes.
type MemoryLog struct {
	mu         sync.Mutex
	partitions int
	topics     map[string]*memoryTopic
	closed     bool
	logger     *slog.Logger
}

type memoryTopic struct {
	parts   [][]eventbus.Message
	groups  map[string]*memoryGroup
	changed chan struct{}
}

type memoryGroup struct {
	members   []*memorySubscriber
	next      []int64
	committed []int64
}

// NewWithMemory creates an in-memory log with the given partition count per topic.
func NewWithMemory(partitions int, logger *slog.Logger) *MemoryLog {
	if partitions <= 0 {
		partitions = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryLog{
		partitions: partitions,
		topics:     make(map[string]*memoryTopic),
		logger:     logger.With("bus", "memory"),
	}
}

func (l *MemoryLog) topic(name string) *memoryTopic {
	t, ok := l.topics[name]
	if !ok {
		t = &memoryTopic{
			parts:   make([][]eventbus.Message, l.partitions),
			groups:  make(map[string]*memoryGroup),
			changed: make(chan struct{}),
		}
		l.topics[name] = t
	}
	return t
}

func (t *memoryTopic) broadcast() {
	close(t.changed)
	t.changed = make(chan struct{})
}

// Publish appends the record to the partition chosen by its key.
func (l *MemoryLog) Publish(ctx context.Context, topic string, key, value []byte) (eventbus.Ack, error) {
	if err := ctx.Err(); err != nil {
		return eventbus.Ack{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return eventbus.Ack{}, eventbus.ErrClosed
	}

	t := l.topic(topic)
	p := eventbus.PartitionFor(key, l.partitions)
	msg := eventbus.Message{
		Topic:     topic,
		Partition: p,
		Offset:    int64(len(t.parts[p])),
		Key:       append([]byte(nil), key...),
		Value:     append([]byte(nil), value...),
		Time:      time.Now().UTC(),
	}
	t.parts[p] = append(t.parts[p], msg)
	t.broadcast()

	return eventbus.Ack{Topic: topic, Partition: p, Offset: msg.Offset}, nil
}

// Subscribe joins group on topic. Partitions are rebalanced over members.
func (l *MemoryLog) Subscribe(topic, group string) (eventbus.Subscriber, error) {
	if topic == "" || group == "" {
		return nil, fmt.Errorf("memory log: topic and group are required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, eventbus.ErrClosed
	}

	t := l.topic(topic)
	g, ok := t.groups[group]
	if !ok {
		g = &memoryGroup{
			next:      make([]int64, l.partitions),
			committed: make([]int64, l.partitions),
		}
		t.groups[group] = g
	}
	sub := &memorySubscriber{log: l, topic: topic, group: group}
	g.members = append(g.members, sub)
	t.broadcast()
	return sub, nil
}

// Published returns a copy of every record appended to topic, partition by partition.
func (l *MemoryLog) Published(topic string) []eventbus.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.topics[topic]
	if !ok {
		return nil
	}
	var out []eventbus.Message
	for _, part := range t.parts {
		out = append(out, part...)
	}
	return out
}

// Lag returns the number of records not yet committed by group on topic.
func (l *MemoryLog) Lag(topic, group string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.topics[topic]
	if !ok {
		return 0
	}
	g := t.groups[group]
	var lag int64
	for p, part := range t.parts {
		committed := int64(0)
		if g != nil {
			committed = g.committed[p]
		}
		lag += int64(len(part)) - committed
	}
	return lag
}

// Close wakes up every blocked subscriber and rejects further use.
func (l *MemoryLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	for _, t := range l.topics {
		t.broadcast()
	}
	return nil
}

type memorySubscriber struct {
	log    *MemoryLog
	topic  string
	group  string
	cursor int
	closed bool
}

// owns reports whether partition p belongs to s. Caller holds the log lock.
func (s *memorySubscriber) owns(g *memoryGroup, p int) bool {
	for i, m := range g.members {
		if m == s {
			return p%len(g.members) == i
		}
	}
	return false
}

func (s *memorySubscriber) Fetch(ctx context.Context) (eventbus.Message, error) {
	for {
		s.log.mu.Lock()
		if s.closed || s.log.closed {
			s.log.mu.Unlock()
			return eventbus.Message{}, eventbus.ErrClosed
		}
		t := s.log.topics[s.topic]
		g := t.groups[s.group]
		n := len(t.parts)
		for i := 0; i < n; i++ {
			p := (s.cursor + i) % n
			if !s.owns(g, p) || g.next[p] >= int64(len(t.parts[p])) {
				continue
			}
			msg := t.parts[p][g.next[p]]
			g.next[p]++
			s.cursor = p + 1
			s.log.mu.Unlock()
			return msg, nil
		}
		wait := t.changed
		s.log.mu.Unlock()

		select {
		case <-ctx.Done():
			return eventbus.Message{}, ctx.Err()
		case <-wait:
		}
	}
}

func (s *memorySubscriber) Commit(_ context.Context, msg eventbus.Message) error {
	s.log.mu.Lock()
	defer s.log.mu.Unlock()
	if s.closed {
		return eventbus.ErrClosed
	}
	g := s.log.topics[s.topic].groups[s.group]
	if msg.Partition < 0 || msg.Partition >= len(g.committed) {
		return fmt.Errorf("memory log: unknown partition %d", msg.Partition)
	}
	if msg.Offset+1 > g.committed[msg.Partition] {
		g.committed[msg.Partition] = msg.Offset + 1
	}
	return nil
}

// Close leaves the group. Partitions owned by s rewind to their committed
// offsets so the remaining members pick up anything left unacknowledged.
func (s *memorySubscriber) Close() error {
	s.log.mu.Lock()
	defer s.log.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	t := s.log.topics[s.topic]
	g := t.groups[s.group]
	for p := range g.next {
		if s.owns(g, p) {
			g.next[p] = g.committed[p]
		}
	}
	for i, m := range g.members {
		if m == s {
			g.members = append(g.members[:i], g.members[i+1:]...)
			break
		}
	}
	t.broadcast()
	return nil
}

var _ eventbus.Log = (*MemoryLog)(nil)
