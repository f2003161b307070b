package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/google/uuid"
)

// WebhookQueue is a durable delayed-delivery queue built on a Redis sorted
// set (delay schedule, score = ready-at unix seconds) feeding a Redis list
// (ready-to-consume), grounded on the poll-and-dispatch shape of
// CedrosPay-server's WebhookQueueWorker but made durable across restarts
// instead of living only in the worker's ticker goroutine.
type WebhookQueue struct {
	client     *goredis.Client
	delayedKey string
	readyKey   string
	popTimeout time.Duration
}

// NewWebhookQueue builds a WebhookQueue over client.
func NewWebhookQueue(client *goredis.Client) *WebhookQueue {
	return &WebhookQueue{
		client:     client,
		delayedKey: "webhook:queue:delayed",
		readyKey:   "webhook:queue:ready",
		popTimeout: 5 * time.Second,
	}
}

// Publish schedules webhookID for delivery after delay. A zero or negative
// delay makes it immediately consumable.
func (q *WebhookQueue) Publish(ctx context.Context, webhookID uuid.UUID, delay time.Duration) error {
	id := webhookID.String()

	if delay <= 0 {
		if err := q.client.LPush(ctx, q.readyKey, id).Err(); err != nil {
			return fmt.Errorf("redis webhook queue lpush: %w", err)
		}
		return nil
	}

	readyAt := float64(time.Now().Add(delay).Unix())
	if err := q.client.ZAdd(ctx, q.delayedKey, goredis.Z{Score: readyAt, Member: id}).Err(); err != nil {
		return fmt.Errorf("redis webhook queue zadd: %w", err)
	}
	return nil
}

// promoteDue moves every delayed member whose ready-at has arrived into
// the ready list.
func (q *WebhookQueue) promoteDue(ctx context.Context) error {
	now := float64(time.Now().Unix())
	due, err := q.client.ZRangeByScore(ctx, q.delayedKey, &goredis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%f", now),
	}).Result()
	if err != nil {
		return fmt.Errorf("redis webhook queue zrangebyscore: %w", err)
	}

	for _, id := range due {
		removed, err := q.client.ZRem(ctx, q.delayedKey, id).Result()
		if err != nil {
			return fmt.Errorf("redis webhook queue zrem: %w", err)
		}
		if removed == 0 {
			// another consumer already promoted this member
			continue
		}
		if err := q.client.LPush(ctx, q.readyKey, id).Err(); err != nil {
			return fmt.Errorf("redis webhook queue lpush: %w", err)
		}
	}
	return nil
}

// Consume blocks (up to popTimeout) for the next ready webhook id. The
// returned ack func: ack=true discards the message; ack=false with
// requeue=true republishes it immediately; ack=false with requeue=false
// drops it (the webhook row's own attempts/status tracks terminal state).
func (q *WebhookQueue) Consume(ctx context.Context) (uuid.UUID, func(ack bool, requeue bool), error) {
	if err := q.promoteDue(ctx); err != nil {
		return uuid.Nil, nil, err
	}

	result, err := q.client.BRPop(ctx, q.popTimeout, q.readyKey).Result()
	if err != nil {
		if err == goredis.Nil {
			return uuid.Nil, nil, nil
		}
		return uuid.Nil, nil, fmt.Errorf("redis webhook queue brpop: %w", err)
	}
	if len(result) < 2 {
		return uuid.Nil, nil, nil
	}

	id, err := uuid.Parse(result[1])
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("parsing queued webhook id: %w", err)
	}

	ackFunc := func(ack bool, requeue bool) {
		if ack || !requeue {
			return
		}
		_ = q.client.LPush(context.Background(), q.readyKey, id.String()).Err()
	}

	return id, ackFunc, nil
}
