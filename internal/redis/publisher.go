package redis

import (
	"context"

	goredis "github.com/redis/go-redis/v9"
)

// Publisher fans committed outbox envelopes out over redis pub/sub.
type Publisher struct {
	client *goredis.Client
}

func NewPublisher(client *goredis.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.client.Publish(ctx, channel, payload).Err()
}
