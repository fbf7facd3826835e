package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/sethvargo/go-retry"

	"tweetclassifier/internal/domain"
)

type Kafka struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafka(brokers []string, topic string) (*Kafka, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	return &Kafka{
		producer: producer,
		topic:    topic,
	}, nil
}

func (k *Kafka) Publish(ctx context.Context, t domain.Tweet) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}

	_, _, err = k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(t.ID),
		Value: sarama.ByteEncoder(data),
	})

	return err
}

func (k *Kafka) Close() error {
	return k.producer.Close()
}

type KafkaConsumer struct {
	group   sarama.ConsumerGroup
	topic   string
	handler Handler

	retries   uint64
	retryBase time.Duration
}

func NewKafkaConsumer(brokers []string, groupID, topic string) (*KafkaConsumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetNewest

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, err
	}

	return &KafkaConsumer{
		group:     group,
		topic:     topic,
		retries:   3,
		retryBase: 500 * time.Millisecond,
	}, nil
}

func (c *KafkaConsumer) Consume(ctx context.Context, h Handler) error {
	c.handler = h

	for {
		if err := c.group.Consume(ctx, []string{c.topic}, c); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *KafkaConsumer) Close() error {
	return c.group.Close()
}

func (c *KafkaConsumer) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (c *KafkaConsumer) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim marks a message only after the handler succeeds. When the
// handler keeps failing the claim ends without marking, so the group resumes
// from the last committed offset after it rejoins.
func (c *KafkaConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		var t domain.Tweet
		if err := json.Unmarshal(msg.Value, &t); err != nil {
			slog.Warn("dropping undecodable message", "offset", msg.Offset, "error", err)
			session.MarkMessage(msg, "")
			continue
		}

		if err := c.handle(session.Context(), t); err != nil {
			slog.Error("handler failed", "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "error", err)
			return fmt.Errorf("queue: offset %d: %w", msg.Offset, err)
		}

		session.MarkMessage(msg, "")
	}
	return nil
}

func (c *KafkaConsumer) handle(ctx context.Context, t domain.Tweet) error {
	b := retry.WithMaxRetries(c.retries, retry.NewFibonacci(c.retryBase))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		if err := c.handler(ctx, t); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}
