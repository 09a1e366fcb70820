package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/courierdispatch/core/idempotency"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, "test:"), mr
}

func TestAcquireCompleteReplay(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	_, ok, err := s.Acquire(ctx, "o1:crash:r1", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("test:o1:crash:r1"))

	_, _, err = s.Acquire(ctx, "o1:crash:r1", time.Hour)
	assert.ErrorIs(t, err, idempotency.ErrInProgress)

	require.NoError(t, s.Complete(ctx, "o1:crash:r1", []byte(`{"rider":"r2"}`), time.Hour))
	payload, ok, err := s.Acquire(ctx, "o1:crash:r1", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.JSONEq(t, `{"rider":"r2"}`, string(payload))

	got, err := s.Get(ctx, "o1:crash:r1")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestAbandonOnlyDropsPending(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, ok, err := s.Acquire(ctx, "a", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, s.Abandon(ctx, "a"))
	_, ok, err = s.Acquire(ctx, "a", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Complete(ctx, "b", []byte("{}"), time.Hour))
	require.NoError(t, s.Abandon(ctx, "b"))
	_, err = s.Get(ctx, "b")
	assert.NoError(t, err)
}

func TestKeysExpire(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)
	require.NoError(t, s.Complete(ctx, "k", []byte("{}"), time.Minute))
	mr.FastForward(2 * time.Minute)
	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, idempotency.ErrNotFound)
}
