// Package memory implements idempotency.Store in process memory.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/kilianp07/courierdispatch/core/idempotency"
)

type record struct {
	done    bool
	payload []byte
	expires time.Time
}

// Store keeps keys in a map guarded by a mutex.
type Store struct {
	mu   sync.Mutex
	keys map[string]record
	now  func() time.Time
}

var _ idempotency.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{keys: make(map[string]record), now: time.Now}
}

func (s *Store) lookup(key string) (record, bool) {
	r, ok := s.keys[key]
	if ok && !r.expires.IsZero() && s.now().After(r.expires) {
		delete(s.keys, key)
		return record{}, false
	}
	return r, ok
}

func (s *Store) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}

// Acquire implements idempotency.Store.
func (s *Store) Acquire(_ context.Context, key string, ttl time.Duration) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.lookup(key); ok {
		if !r.done {
			return nil, false, idempotency.ErrInProgress
		}
		return append([]byte(nil), r.payload...), false, nil
	}
	s.keys[key] = record{expires: s.expiry(ttl)}
	return nil, true, nil
}

// Complete implements idempotency.Store.
func (s *Store) Complete(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = record{done: true, payload: append([]byte(nil), payload...), expires: s.expiry(ttl)}
	return nil
}

// Abandon implements idempotency.Store.
func (s *Store) Abandon(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.keys[key]; ok && !r.done {
		delete(s.keys, key)
	}
	return nil
}

// Get implements idempotency.Store.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.lookup(key)
	if !ok || !r.done {
		return nil, idempotency.ErrNotFound
	}
	return append([]byte(nil), r.payload...), nil
}
