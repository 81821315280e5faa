// pkg/kafka/producer.go
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukens11-create/gud/shared/contracts"
	"github.com/google/uuid"
	skafka "github.com/segmentio/kafka-go"
)

// Writer defines the subset of segmentio kafka.Writer we need. This makes the producer testable.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...skafka.Message) error
	Close() error
}

// ChangePublisher emits load change events.
type ChangePublisher interface {
	PublishChange(ctx context.Context, event contracts.ChangeEvent) error
	Close() error
}

// ChangeProducer is a thin wrapper around a kafka writer implementing ChangePublisher.
type ChangeProducer struct {
	writer Writer
	now    func() time.Time
}

// NewChangeProducer creates a producer writing to the provided broker/topic.
// Hash balancing keeps every event of one load on one partition, in order.
func NewChangeProducer(brokerURL, topic string) *ChangeProducer {
	w := &skafka.Writer{
		Addr:     skafka.TCP(brokerURL),
		Topic:    topic,
		Balancer: &skafka.Hash{},
	}
	return NewChangeProducerWithWriter(w)
}

// NewChangeProducerWithWriter allows injecting a test writer.
func NewChangeProducerWithWriter(w Writer) *ChangeProducer {
	return &ChangeProducer{writer: w, now: time.Now}
}

// PublishChange fills in the event id and timestamp when missing, then writes
// the JSON encoded event keyed by entity id.
func (p *ChangeProducer) PublishChange(ctx context.Context, event contracts.ChangeEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = p.now().UTC()
	}
	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	msg := skafka.Message{Key: []byte(event.EntityID), Value: b}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (p *ChangeProducer) Close() error {
	return p.writer.Close()
}
