package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/courierdispatch/core/idempotency"
)

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, ok, err := s.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	_, _, err = s.Acquire(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, idempotency.ErrInProgress)

	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, idempotency.ErrNotFound)

	require.NoError(t, s.Complete(ctx, "k", []byte(`{"ok":true}`), time.Minute))
	payload, ok, err := s.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.JSONEq(t, `{"ok":true}`, string(payload))

	require.NoError(t, s.Abandon(ctx, "k"))
	got, err := s.Get(ctx, "k")
	require.NoError(t, err, "completed keys survive Abandon")
	assert.JSONEq(t, `{"ok":true}`, string(got))
}

func TestStoreAbandonReleasesPending(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, ok, _ := s.Acquire(ctx, "k", time.Minute)
	require.True(t, ok)
	require.NoError(t, s.Abandon(ctx, "k"))
	_, ok, err := s.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Complete(ctx, "k", []byte("x"), time.Minute))
	now = now.Add(2 * time.Minute)
	_, ok, err := s.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
