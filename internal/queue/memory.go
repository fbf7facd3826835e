package queue

import (
	"context"
	"errors"
	"sync"

	"tweetclassifier/internal/domain"
)

var ErrClosed = errors.New("queue: closed")

// Memory is an in-process queue used when no Kafka brokers are configured.
// It implements both Publisher and Consumer.
type Memory struct {
	ch chan domain.Tweet

	mu     sync.RWMutex
	closed bool
}

func NewMemory(size int) *Memory {
	return &Memory{ch: make(chan domain.Tweet, size)}
}

func (m *Memory) Publish(ctx context.Context, t domain.Tweet) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}

	select {
	case m.ch <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume delivers tweets to h until ctx is cancelled or the queue is
// closed. Handler errors are dropped; there is no redelivery.
func (m *Memory) Consume(ctx context.Context, h Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case t, ok := <-m.ch:
			if !ok {
				return nil
			}
			_ = h(ctx, t)
		}
	}
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.ch)
	}
	return nil
}
