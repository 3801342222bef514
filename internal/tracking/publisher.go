package tracking

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Publisher pushes tracking events onto the redis queue. Publishing is the
// only work a tracking request does besides answering.
type Publisher struct {
	rdb *redis.Client
	key string
}

// NewPublisher creates a publisher for the given queue key.
func NewPublisher(rdb *redis.Client, key string) *Publisher {
	return &Publisher{rdb: rdb, key: key}
}

func (p *Publisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal tracking event: %w", err)
	}
	if err := p.rdb.LPush(ctx, p.key, payload).Err(); err != nil {
		return fmt.Errorf("enqueue tracking event: %w", err)
	}
	return nil
}
