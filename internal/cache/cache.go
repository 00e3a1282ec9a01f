// Package cache holds the tenant namespacing of cached responses in Redis
// and their invalidation after writes.
package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix is the namespace of every cached response of one parking.
func KeyPrefix(prefix string, parkingID uint64) string {
	return fmt.Sprintf("%s:p%d:", prefix, parkingID)
}

// Invalidator deletes the cached responses of a parking.
type Invalidator struct {
	rdb    *redis.Client
	prefix string
}

// NewInvalidator returns nil when rdb is nil so callers can pass the
// result straight to services that accept an optional invalidator.
func NewInvalidator(rdb *redis.Client, prefix string) *Invalidator {
	if rdb == nil {
		return nil
	}
	return &Invalidator{rdb: rdb, prefix: prefix}
}

// Invalidate removes every key under the parking's namespace.  SCAN is
// used rather than KEYS so a large keyspace does not block Redis.
func (i *Invalidator) Invalidate(ctx context.Context, parkingID uint64) error {
	if i == nil {
		return nil
	}
	match := KeyPrefix(i.prefix, parkingID) + "*"
	var cursor uint64
	for {
		keys, next, err := i.rdb.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := i.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
