// shared/kafka/consumer.go
package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const maxRetryDelay = 30 * time.Second

// Reader is the subset of kafka.Reader the consumer needs. Tests inject a fake.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Handler processes one message. Returning an error leaves the offset
// uncommitted so the broker redelivers the message.
type Handler func(ctx context.Context, key []byte, value []byte) error

type Consumer struct {
	reader         Reader
	log            logrus.FieldLogger
	handlerTimeout time.Duration
	retryDelay     time.Duration
}

// NewConsumer creates a group consumer. groupID makes replicas split the
// partitions instead of each processing every message.
func NewConsumer(brokers []string, topic string, groupID string, log logrus.FieldLogger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return NewConsumerWithReader(r, log.WithFields(logrus.Fields{"topic": topic, "group": groupID}))
}

// NewConsumerWithReader allows injecting a test reader.
func NewConsumerWithReader(r Reader, log logrus.FieldLogger) *Consumer {
	return &Consumer{
		reader:         r,
		log:            log,
		handlerTimeout: 30 * time.Second,
		retryDelay:     time.Second,
	}
}

// Start blocks until ctx is cancelled. A message is committed only after
// the handler succeeds, which gives at-least-once delivery. Handlers should
// return nil for messages that can never succeed (bad payloads) or they
// will be retried forever.
func (c *Consumer) Start(ctx context.Context, handler Handler) {
	c.log.Info("kafka consumer started")

	for {
		if ctx.Err() != nil {
			return
		}

		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.WithError(err).Warn("error fetching message")
			c.sleep(ctx)
			continue
		}

		if !c.process(ctx, m, handler) {
			return
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			c.log.WithError(err).WithField("offset", m.Offset).Error("failed to commit offset")
		}
	}
}

// process runs the handler until it succeeds. kafka-go does not refetch an
// uncommitted message, so the retry has to happen here. It reports false
// only when ctx was cancelled first.
func (c *Consumer) process(ctx context.Context, m kafka.Message, handler Handler) bool {
	delay := c.retryDelay
	for attempt := 1; ; attempt++ {
		processCtx, cancel := context.WithTimeout(ctx, c.handlerTimeout)
		err := handler(processCtx, m.Key, m.Value)
		cancel()
		if err == nil {
			return true
		}

		c.log.WithError(err).WithFields(logrus.Fields{
			"offset":  m.Offset,
			"attempt": attempt,
		}).Error("processing failed, retrying")

		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}
		if delay < maxRetryDelay {
			delay *= 2
		}
	}
}

func (c *Consumer) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(c.retryDelay):
	}
}

// Close disconnects from the broker.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
