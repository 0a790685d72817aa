package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tapcard/cardshop/internal/orders"
)

// TrackingCache stores the public tracking view. Entries expire after TTL and
// are dropped on every status change.
type TrackingCache struct {
	RDB *redis.Client
	TTL time.Duration
}

var _ orders.TrackingCache = (*TrackingCache)(nil)

func NewTrackingCache(rdb *redis.Client) *TrackingCache {
	return &TrackingCache{RDB: rdb, TTL: TTLTrackingCache}
}

func trackingKey(orderNumber string) string {
	return fmt.Sprintf(KeyOrderTracking, orderNumber)
}

func (c *TrackingCache) GetTracking(ctx context.Context, orderNumber string) (*orders.Tracking, error) {
	b, err := c.RDB.Get(ctx, trackingKey(orderNumber)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var t orders.Tracking
	if err := json.Unmarshal(b, &t); err != nil {
		// a bad entry is treated as a miss and overwritten on the next read
		return nil, nil
	}
	return &t, nil
}

func (c *TrackingCache) SetTracking(ctx context.Context, t orders.Tracking) error {
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return c.RDB.Set(ctx, trackingKey(t.OrderNumber), b, c.TTL).Err()
}

func (c *TrackingCache) InvalidateTracking(ctx context.Context, orderNumber string) error {
	return c.RDB.Del(ctx, trackingKey(orderNumber)).Err()
}
