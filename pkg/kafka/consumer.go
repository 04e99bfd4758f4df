package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageHandler processes one consumed message. Returning an error does not
// stop the consumer; the offset is still committed and the error is
// discarded.
type MessageHandler func(ctx context.Context, message kafka.Message) error

// ConsumerConfig configures a Consumer.
type ConsumerConfig struct {
	Brokers        []string
	Topic          string
	GroupID        string
	MinBytes       int
	MaxBytes       int
	CommitInterval time.Duration
}

// Consumer wraps a kafka-go reader with an explicit Clock-free run loop.
type Consumer struct {
	reader *kafka.Reader
	topic  string
}

// NewConsumer creates a new Kafka consumer reading from a single topic.
func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka consumer: topic is required")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka consumer: at least one broker is required")
	}

	minBytes := cfg.MinBytes
	if minBytes <= 0 {
		minBytes = 1
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 10e6
	}
	commitInterval := cfg.CommitInterval
	if commitInterval <= 0 {
		commitInterval = time.Second
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       minBytes,
		MaxBytes:       maxBytes,
		CommitInterval: commitInterval,
		StartOffset:    kafka.LastOffset,
	})

	return &Consumer{reader: reader, topic: cfg.Topic}, nil
}

// Run reads messages until ctx is canceled, invoking handler for each one.
// A handler error is swallowed (the message is still considered processed)
// so a single malformed pool-update event cannot stall the discovery loop.
func (c *Consumer) Run(ctx context.Context, handler MessageHandler) error {
	for {
		message, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("kafka consumer %s: fetch: %w", c.topic, err)
		}

		_ = handler(ctx, message)

		if err := c.reader.CommitMessages(ctx, message); err != nil && ctx.Err() == nil {
			return fmt.Errorf("kafka consumer %s: commit: %w", c.topic, err)
		}
	}
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
