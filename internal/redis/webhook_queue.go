package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sosnet/internal/domain"
	"sosnet/pkg/e"
)

const claimTTL = 24 * time.Hour

// WebhookQueue is a Redis list shared by all instances. Every instance's
// relay offers the same events, so each sequence is claimed once before it
// is pushed.
type WebhookQueue struct {
	client *redis.Client
	key    string
}

func NewWebhookQueue(client *redis.Client, key string) *WebhookQueue {
	if key == "" {
		key = "webhooks:incidents"
	}
	return &WebhookQueue{client: client, key: key}
}

func (q *WebhookQueue) Enqueue(ctx context.Context, payload domain.WebhookPayload) error {
	claimed, err := q.client.SetNX(ctx, fmt.Sprintf("%s:claimed:%d", q.key, payload.Sequence), 1, claimTTL).Result()
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, b).Err()
}

func (q *WebhookQueue) BRPop(ctx context.Context, timeout time.Duration) (domain.WebhookPayload, error) {
	var p domain.WebhookPayload

	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return p, e.ErrWebHookEmpty
		}
		return p, err
	}
	if len(res) < 2 {
		return p, e.ErrWebHookEmpty
	}
	if err := json.Unmarshal([]byte(res[1]), &p); err != nil {
		return p, err
	}
	return p, nil
}

func (q *WebhookQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}
