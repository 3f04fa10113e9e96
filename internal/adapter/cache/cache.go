// Package cache provides the key/value caches used by the provider
// decorators: an in-process LRU with optional expiry and a Redis-backed
// JSON cache shared between replicas.
package cache

import "context"

// Store is a typed cache. Misses and backend failures both report false;
// a cache is never the source of truth.
type Store[V any] interface {
	Get(ctx context.Context, key string) (V, bool)
	Put(ctx context.Context, key string, value V)
}
