package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// AlertDedup suppresses repeat delivery of the same alert within a window,
// using SET NX EX so duplicate suppression is correct even if two
// coordinator replicas raise the same alert at the same time.
type AlertDedup struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewAlertDedup creates an AlertDedup backed by the given Client, suppressing
// repeats of the same key for ttl.
func NewAlertDedup(c *Client, ttl time.Duration) *AlertDedup {
	return &AlertDedup{rdb: c.Underlying(), ttl: ttl}
}

func alertDedupKey(key string) string {
	return "alert_dedup:" + key
}

// ShouldSend reports whether an alert for key should be delivered now: true
// the first time it's called for key within ttl, false on every repeat
// until the window expires.
func (d *AlertDedup) ShouldSend(ctx context.Context, key string) (bool, error) {
	ok, err := d.rdb.SetNX(ctx, alertDedupKey(key), 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: alert dedup %s: %w", key, err)
	}
	return ok, nil
}
