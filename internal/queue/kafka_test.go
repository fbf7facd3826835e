package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tweetclassifier/internal/domain"
)

type fakeSession struct {
	ctx    context.Context
	marked []int64
}

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.marked = append(s.marked, msg.Offset)
}

func (s *fakeSession) Claims() map[string][]int32               { return nil }
func (s *fakeSession) MemberID() string                         { return "member-1" }
func (s *fakeSession) GenerationID() int32                      { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string)  {}
func (s *fakeSession) Commit()                                  {}
func (s *fakeSession) ResetOffset(string, int32, int64, string) {}
func (s *fakeSession) Context() context.Context                 { return s.ctx }

type fakeClaim struct {
	msgs chan *sarama.ConsumerMessage
}

func newFakeClaim(t *testing.T, msgs ...*sarama.ConsumerMessage) *fakeClaim {
	t.Helper()
	c := &fakeClaim{msgs: make(chan *sarama.ConsumerMessage, len(msgs))}
	for _, m := range msgs {
		c.msgs <- m
	}
	close(c.msgs)
	return c
}

func (c *fakeClaim) Topic() string                            { return "tweets" }
func (c *fakeClaim) Partition() int32                         { return 0 }
func (c *fakeClaim) InitialOffset() int64                     { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64               { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

func tweetMessage(t *testing.T, offset int64, tw domain.Tweet) *sarama.ConsumerMessage {
	t.Helper()
	data, err := json.Marshal(tw)
	require.NoError(t, err)
	return &sarama.ConsumerMessage{Topic: "tweets", Offset: offset, Key: []byte(tw.ID), Value: data}
}

func newTestConsumer(h Handler) *KafkaConsumer {
	return &KafkaConsumer{topic: "tweets", handler: h, retries: 2, retryBase: time.Millisecond}
}

func TestConsumeClaimStopsAtFailingMessage(t *testing.T) {
	calls := map[string]int{}
	c := newTestConsumer(func(_ context.Context, tw domain.Tweet) error {
		calls[tw.ID]++
		if tw.ID == "fails" {
			return errors.New("database down")
		}
		return nil
	})

	session := &fakeSession{ctx: context.Background()}
	claim := newFakeClaim(t,
		tweetMessage(t, 10, domain.Tweet{ID: "fails"}),
		tweetMessage(t, 11, domain.Tweet{ID: "ok"}),
	)

	err := c.ConsumeClaim(session, claim)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offset 10")

	assert.Empty(t, session.marked)
	assert.Equal(t, 3, calls["fails"])
	assert.Zero(t, calls["ok"])
}

func TestConsumeClaimRetriesHandler(t *testing.T) {
	attempts := 0
	c := newTestConsumer(func(_ context.Context, tw domain.Tweet) error {
		if tw.ID == "flaky" {
			attempts++
			if attempts == 1 {
				return errors.New("temporary")
			}
		}
		return nil
	})

	session := &fakeSession{ctx: context.Background()}
	claim := newFakeClaim(t,
		tweetMessage(t, 10, domain.Tweet{ID: "flaky"}),
		tweetMessage(t, 11, domain.Tweet{ID: "ok"}),
	)

	require.NoError(t, c.ConsumeClaim(session, claim))
	assert.Equal(t, []int64{10, 11}, session.marked)
	assert.Equal(t, 2, attempts)
}

func TestConsumeClaimSkipsUndecodable(t *testing.T) {
	var got []string
	c := newTestConsumer(func(_ context.Context, tw domain.Tweet) error {
		got = append(got, tw.ID)
		return nil
	})

	session := &fakeSession{ctx: context.Background()}
	claim := newFakeClaim(t,
		&sarama.ConsumerMessage{Topic: "tweets", Offset: 5, Value: []byte("{not json")},
		tweetMessage(t, 6, domain.Tweet{ID: "a", Content: "climate"}),
	)

	require.NoError(t, c.ConsumeClaim(session, claim))
	assert.Equal(t, []int64{5, 6}, session.marked)
	assert.Equal(t, []string{"a"}, got)
}

func TestKafkaPublish(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "tweets" {
			return errors.New("wrong topic " + msg.Topic)
		}
		key, err := msg.Key.Encode()
		if err != nil || string(key) != "abc123" {
			return errors.New("wrong key")
		}
		return nil
	})
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var tw domain.Tweet
		if err := json.Unmarshal(val, &tw); err != nil {
			return err
		}
		if tw.Content != "second" {
			return errors.New("unexpected content " + tw.Content)
		}
		return nil
	})

	k := &Kafka{producer: producer, topic: "tweets"}
	ctx := context.Background()

	require.NoError(t, k.Publish(ctx, domain.Tweet{ID: "abc123", Content: "first"}))
	require.NoError(t, k.Publish(ctx, domain.Tweet{ID: "def456", Content: "second"}))
	require.NoError(t, k.Close())
}

func TestKafkaPublishFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	k := &Kafka{producer: producer, topic: "tweets"}

	err := k.Publish(context.Background(), domain.Tweet{ID: "x"})
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, k.Close())
}
