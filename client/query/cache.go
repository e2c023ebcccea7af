package query

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// Store persists encoded query results. Get reports a miss with ok false
// and a nil error.
type Store interface {
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// Cache fronts query functions with a Store. Concurrent misses for the same
// key share a single call.
type Cache struct {
	store  Store
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewCache returns a Cache keeping results in store for ttl. A nil logger
// uses [slog.Default].
func NewCache(store Store, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}

	return &Cache{store: store, ttl: ttl, logger: logger}
}

// Cached wraps opts.Fn with a lookup in c keyed by the JSON form of
// opts.Key. Store failures are logged and fall through to the call; they
// never fail the query.
func Cached[T any](c *Cache, opts Options[T]) Options[T] {
	fn := opts.Fn

	return Options[T]{
		Key: opts.Key,
		Fn: func(ctx context.Context) (T, error) {
			var zero T

			rawKey, err := json.Marshal(opts.Key)
			if err != nil {
				return zero, fmt.Errorf("encoding query key: %w", err)
			}
			key := string(rawKey)

			if v, ok := lookup[T](ctx, c, key); ok {
				return v, nil
			}

			res, err, _ := c.group.Do(key, func() (any, error) {
				v, err := fn(ctx)
				if err != nil {
					return nil, err
				}
				c.save(ctx, key, v)
				return v, nil
			})
			if err != nil {
				return zero, err
			}

			// A nil interface result does not assert to an interface T.
			v, _ := res.(T)
			return v, nil
		},
	}
}

func lookup[T any](ctx context.Context, c *Cache, key string) (T, bool) {
	var v T

	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Error("query cache get", "key", key, "error", err)
		return v, false
	}
	if !ok {
		return v, false
	}

	if err := json.Unmarshal(raw, &v); err != nil {
		c.logger.Error("query cache decode", "key", key, "error", err)
		return v, false
	}

	return v, true
}

func (c *Cache) save(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("query cache encode", "key", key, "error", err)
		return
	}

	if err := c.store.Set(ctx, key, raw, c.ttl); err != nil {
		c.logger.Error("query cache set", "key", key, "error", err)
	}
}
