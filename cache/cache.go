// Package cache stores serialized CMS query results for a short TTL so page
// renders do not hit the CMS API on every request.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-value TTL cache. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}
