package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// 確定済みsession: settled:{session_id} -> order_id
	keySettledSession = "settled:%s"

	TTLSettled = 48 * time.Hour
)

// 確定済みsessionの早見表。DBの状態が正で、ここはDB参照を省くためだけに使う
type SettlementCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
}

func NewSettlementCache(rdb *redis.Client) *SettlementCache {
	return &SettlementCache{rdb: rdb, ttl: TTLSettled}
}

func (c *SettlementCache) IsSettled(ctx context.Context, sessionID string) (bool, error) {
	n, err := c.rdb.Exists(ctx, fmt.Sprintf(keySettledSession, sessionID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *SettlementCache) MarkSettled(ctx context.Context, sessionID string, orderID int64) error {
	return c.rdb.SetNX(ctx, fmt.Sprintf(keySettledSession, sessionID), orderID, c.ttl).Err()
}
