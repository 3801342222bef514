package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/campaign-engine/internal/domain"
	"github.com/ignite/campaign-engine/internal/pkg/logger"
)

// Consumer drains the tracking queue and applies status changes. A bad
// payload is logged and dropped; the queue must keep moving.
type Consumer struct {
	rdb         *redis.Client
	key         string
	sends       SendStore
	events      EventStore
	subscribers SubscriberStore

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConsumer creates a tracking queue consumer.
func NewConsumer(rdb *redis.Client, key string, sends SendStore, events EventStore, subscribers SubscriberStore) *Consumer {
	return &Consumer{
		rdb:         rdb,
		key:         key,
		sends:       sends,
		events:      events,
		subscribers: subscribers,
	}
}

// Start launches the consume loop. Call Stop to shut it down.
func (c *Consumer) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		logger.Info("tracking consumer started", "queue", c.key)
		for {
			if ctx.Err() != nil {
				logger.Info("tracking consumer stopped")
				return
			}
			res, err := c.rdb.BRPop(ctx, 5*time.Second, c.key).Result()
			if err == redis.Nil {
				continue
			}
			if err != nil {
				if ctx.Err() != nil {
					logger.Info("tracking consumer stopped")
					return
				}
				logger.Error("tracking queue pop failed", "error", err.Error())
				time.Sleep(time.Second)
				continue
			}
			// BRPop returns [key, value].
			if len(res) != 2 {
				continue
			}
			if err := c.handle(ctx, []byte(res[1])); err != nil {
				logger.Error("tracking event dropped", "error", err.Error())
			}
		}
	}()
}

// Stop shuts down the consume loop.
func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

// DrainOne pops and processes a single event without blocking, for tests and
// for graceful drain on shutdown. Returns redis.Nil when the queue is empty.
func (c *Consumer) DrainOne(ctx context.Context) error {
	payload, err := c.rdb.RPop(ctx, c.key).Bytes()
	if err != nil {
		return err
	}
	return c.handle(ctx, payload)
}

func (c *Consumer) handle(ctx context.Context, payload []byte) error {
	var e Event
	if err := json.Unmarshal(payload, &e); err != nil {
		return fmt.Errorf("malformed tracking payload: %w", err)
	}
	at := e.OccurredAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	switch e.Kind {
	case KindOpen:
		return c.sends.Advance(ctx, e.EmailSendID, domain.SendOpened, at)
	case KindClick:
		return c.sends.Advance(ctx, e.EmailSendID, domain.SendClicked, at)
	case KindUnsubscribe:
		return c.unsubscribe(ctx, e, at)
	default:
		return fmt.Errorf("unknown tracking event kind %q", e.Kind)
	}
}

func (c *Consumer) unsubscribe(ctx context.Context, e Event, at time.Time) error {
	send, err := c.sends.Get(ctx, e.EmailSendID)
	if err != nil {
		return fmt.Errorf("resolve send %s: %w", e.EmailSendID, err)
	}
	if err := c.subscribers.SetStatus(ctx, send.SubscriberID, domain.SubscriberUnsubscribed); err != nil {
		return fmt.Errorf("unsubscribe subscriber %s: %w", send.SubscriberID, err)
	}
	err = c.events.Insert(ctx, &domain.EmailEvent{
		Type:         domain.EventUnsubscribe,
		CampaignID:   &send.CampaignID,
		SubscriberID: &send.SubscriberID,
		EmailSendID:  &send.ID,
		OccurredAt:   at,
	})
	if err != nil {
		return fmt.Errorf("log unsubscribe event: %w", err)
	}
	logger.Info("subscriber unsubscribed", "subscriber_id", send.SubscriberID, "campaign_id", send.CampaignID)
	return nil
}
