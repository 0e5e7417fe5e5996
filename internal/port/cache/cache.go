// Package cache defines the port for the consultant read cache. Values are
// opaque bytes; JSON helpers live next to the interface.
package cache

import (
	"context"
	"strings"
	"time"
)

// Cache is a key-value store with per-entry TTL. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Key builds the cache key of an entity looked up by id or code. Codes are
// matched case-insensitively, so the key is lower-cased.
func Key(entity, idOrCode string) string {
	return entity + ":" + strings.ToLower(idOrCode)
}
