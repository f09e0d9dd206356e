package intake

import (
	"context"
	"fmt"
	"time"

	redisclient "github.com/gridpoint-energy/postoffice-backend/pkg/redis"
)

const seenMessageTTL = 24 * time.Hour

// SeenGuard short-circuits redelivered intake messages before they hit the
// database. It is advisory; the durable idempotency guard behind it is the
// source of truth.
type SeenGuard interface {
	FirstDelivery(ctx context.Context, messageID string) (bool, error)
}

type redisSeenGuard struct {
	client *redisclient.Client
	ttl    time.Duration
}

// NewRedisSeenGuard builds a SETNX-based delivery guard.
func NewRedisSeenGuard(client *redisclient.Client) (SeenGuard, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &redisSeenGuard{client: client, ttl: seenMessageTTL}, nil
}

func (g *redisSeenGuard) FirstDelivery(ctx context.Context, messageID string) (bool, error) {
	key := g.client.IdempotencyKey("intake", messageID)
	return g.client.SetNX(ctx, key, "1", g.ttl)
}
