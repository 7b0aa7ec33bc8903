package eventbus

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrPermanent marks a failure that will recur on every attempt, such as an
// undecodable or invalid payload. Dead letters caused by it are parked, not
// replayed.
var ErrPermanent = errors.New("permanent failure")

// DeadLetter wraps a record that could not be processed together with where
// it came from and why it failed.
type DeadLetter struct {
	Topic     string    `json:"topic"`
	Partition int       `json:"partition"`
	Offset    int64     `json:"offset"`
	ID        string    `json:"id,omitempty"`
	Key       []byte    `json:"key"`
	Payload   []byte    `json:"payload"`
	Reason    string    `json:"reason"`
	Retryable bool      `json:"retryable"`
	FailedAt  time.Time `json:"failedAt"`
}

// NewDeadLetter captures msg and the failure reason. The dead letter is
// retryable unless reason wraps ErrPermanent.
func NewDeadLetter(msg Message, reason error, now time.Time) DeadLetter {
	dl := DeadLetter{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		ID:        msg.ID,
		Key:       msg.Key,
		Payload:   msg.Value,
		FailedAt:  now.UTC(),
	}
	if reason != nil {
		dl.Reason = reason.Error()
		dl.Retryable = !errors.Is(reason, ErrPermanent)
	}
	return dl
}

// Encode serializes the dead letter for publishing.
func (d DeadLetter) Encode() ([]byte, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("eventbus: encode dead letter: %w", err)
	}
	return b, nil
}

// DecodeDeadLetter parses a dead letter read from a dead-letter topic.
func DecodeDeadLetter(raw []byte) (DeadLetter, error) {
	var d DeadLetter
	if err := json.Unmarshal(raw, &d); err != nil {
		return DeadLetter{}, fmt.Errorf("eventbus: decode dead letter: %w", err)
	}
	return d, nil
}
