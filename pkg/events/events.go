// Package events implements the optional graph-lifecycle event bus: an
// external-observability collaborator a Computer may be decorated with,
// per §3's "publishes TaskAdded, KeyComputed, QueueItemDiscarded."
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Kind enumerates the graph-lifecycle events a Computer publishes.
type Kind string

const (
	TaskAdded          Kind = "task_added"
	KeyComputed        Kind = "key_computed"
	QueueItemDiscarded Kind = "queue_item_discarded"
)

// Event is one lifecycle notification. ID is a fresh uuid per event so
// downstream consumers can dedupe at-least-once delivery.
type Event struct {
	ID     string    `json:"id"`
	Kind   Kind      `json:"kind"`
	Key    string    `json:"key"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

// Bus is the publish contract Computer.WithBus decorates a computation
// with. A nil Bus is valid and simply means no events are published.
type Bus interface {
	Publish(ctx context.Context, e Event) error
}

// NewEvent stamps a fresh ID and timestamp onto a lifecycle notification.
func NewEvent(kind Kind, key, detail string, at time.Time) Event {
	return Event{ID: uuid.NewString(), Kind: kind, Key: key, Detail: detail, At: at}
}

// KafkaBus publishes events to a topic via segmentio/kafka-go: an async,
// LeastBytes-balanced writer. Messages carry the event's Key, but the
// LeastBytes balancer picks partitions by load, so events with the same
// key are not pinned to one partition.
type KafkaBus struct {
	writer *kafka.Writer
}

// NewKafkaBus constructs a KafkaBus writing to topic on brokers.
func NewKafkaBus(brokers []string, topic string) *KafkaBus {
	return &KafkaBus{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
			Async:        true,
		},
	}
}

func (b *KafkaBus) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", e.ID, err)
	}
	msg := kafka.Message{
		Key:   []byte(e.Key),
		Value: payload,
		Time:  e.At,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(e.Kind)},
		},
	}
	if err := b.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish event %s: %w", e.ID, err)
	}
	return nil
}

func (b *KafkaBus) Close() error {
	return b.writer.Close()
}
