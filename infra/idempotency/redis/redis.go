// Package redis implements idempotency.Store on Redis so that retried
// operations are recognised across dispatcher instances.
package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kilianp07/courierdispatch/core/idempotency"
)

// pending marks a key whose operation has not completed. Completed
// payloads are JSON and never start with a NUL byte.
const pending = "\x00pending"

// Store keeps idempotency keys in Redis.
type Store struct {
	client goredis.UniversalClient
	prefix string
}

var _ idempotency.Store = (*Store)(nil)

// New wraps an existing client. Keys are namespaced with prefix.
func New(client goredis.UniversalClient, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

// Open connects using cfg and verifies the connection.
func Open(ctx context.Context, cfg idempotency.Config) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return New(client, cfg.Prefix), nil
}

func (s *Store) key(k string) string { return s.prefix + k }

// Acquire implements idempotency.Store.
func (s *Store) Acquire(ctx context.Context, key string, ttl time.Duration) ([]byte, bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(key), pending, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if ok {
		return nil, true, nil
	}
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		// Expired between SETNX and GET; try once more.
		ok, err = s.client.SetNX(ctx, s.key(key), pending, ttl).Result()
		if err != nil {
			return nil, false, err
		}
		if ok {
			return nil, true, nil
		}
		return nil, false, idempotency.ErrInProgress
	}
	if err != nil {
		return nil, false, err
	}
	if string(val) == pending {
		return nil, false, idempotency.ErrInProgress
	}
	return val, false, nil
}

// Complete implements idempotency.Store.
func (s *Store) Complete(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(key), payload, ttl).Err()
}

var abandonScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0`)

// Abandon implements idempotency.Store. Completed keys are left untouched.
func (s *Store) Abandon(ctx context.Context, key string) error {
	return abandonScript.Run(ctx, s.client, []string{s.key(key)}, pending).Err()
}

// Get implements idempotency.Store.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, idempotency.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if string(val) == pending {
		return nil, idempotency.ErrNotFound
	}
	return val, nil
}

// Close closes the underlying client.
func (s *Store) Close() error { return s.client.Close() }
