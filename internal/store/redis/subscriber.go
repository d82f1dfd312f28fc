package redis

import (
	"context"
	"log"

	goredis "github.com/go-redis/redis/v8"

	"marketcore/internal/model"
)

// Subscriber relays bars published by other instances into a local
// publisher (normally the in-process broadcaster), so a websocket client
// connected to any instance sees every refresh.
type Subscriber struct {
	client *goredis.Client
	self   string
}

// NewSubscriber creates a Subscriber that ignores messages tagged with self.
func NewSubscriber(client *goredis.Client, self string) *Subscriber {
	return &Subscriber{client: client, self: self}
}

// Run subscribes to pub:bar:* and forwards foreign bars to out.
// Blocks until ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context, out model.BarPublisher) error {
	pubsub := s.client.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	log.Printf("[redis-sub] subscribed to %s*", channelPrefix)
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.handle(ctx, msg.Payload, out)
		}
	}
}

func (s *Subscriber) handle(ctx context.Context, payload string, out model.BarPublisher) {
	env, err := decodeEnvelope(payload)
	if err != nil {
		log.Printf("[redis-sub] dropping malformed message: %v", err)
		return
	}
	if env.Origin == s.self {
		return
	}
	if err := out.Publish(ctx, env.Bar); err != nil {
		log.Printf("[redis-sub] relay %s failed: %v", env.Bar.Key(), err)
	}
}
