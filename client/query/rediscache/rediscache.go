// Package rediscache implements query.Store on Redis.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces keys written by a Store.
const DefaultPrefix = "routefetch:"

// Store keeps query results in Redis under a common key prefix.
type Store struct {
	rdb    redis.UniversalClient
	prefix string
}

// New returns a Store over rdb. An empty prefix uses [DefaultPrefix].
func New(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	return val, true, nil
}

// Set stores val for ttl. A ttl of zero keeps the key until evicted.
func (s *Store) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, s.prefix+key, val, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}
