package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Subscriber struct {
	client *redis.Client
}

func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe pattern-subscribes and calls handler for every message until ctx
// is cancelled. Cancellation returns nil.
func (s *Subscriber) Subscribe(ctx context.Context, patterns []string, handler func(channel string, payload []byte)) error {
	sub := s.client.PSubscribe(ctx, patterns...)
	defer sub.Close()

	// The first reply confirms the subscription or carries the dial error.
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil || errors.Is(err, redis.ErrClosed) {
			return nil
		}
		return fmt.Errorf("psubscribe %v: %w", patterns, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			handler(msg.Channel, []byte(msg.Payload))
		}
	}
}

// Backplane carries fanout frames between processes over Redis pub/sub.
type Backplane struct {
	*Publisher
	*Subscriber
}

func NewBackplane(client *redis.Client) *Backplane {
	return &Backplane{
		Publisher:  NewPublisher(client),
		Subscriber: NewSubscriber(client),
	}
}
