package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// ClusterIndex caches clusterKey -> incidentId for the dedup fast path. Keys
// expire with the dedup window; the incident store stays authoritative.
type ClusterIndex struct {
	client *goredis.Client
	prefix string
}

func NewClusterIndex(client *goredis.Client) *ClusterIndex {
	return &ClusterIndex{
		client: client,
		prefix: "dedup:cluster:",
	}
}

func (c *ClusterIndex) Lookup(ctx context.Context, clusterKey string) (uuid.UUID, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+clusterKey).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, err
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		// corrupt entry, drop it and fall back to the store
		_ = c.client.Del(ctx, c.prefix+clusterKey).Err()
		return uuid.Nil, false, nil
	}
	return id, true, nil
}

func (c *ClusterIndex) Remember(ctx context.Context, clusterKey string, id uuid.UUID, ttl time.Duration) error {
	return c.client.Set(ctx, c.prefix+clusterKey, id.String(), ttl).Err()
}

func (c *ClusterIndex) Forget(ctx context.Context, clusterKey string) error {
	return c.client.Del(ctx, c.prefix+clusterKey).Err()
}
