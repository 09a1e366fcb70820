package plugins

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/courierdispatch/core/idempotency"
	"github.com/kilianp07/courierdispatch/core/store"
)

func TestBuiltinsRegistered(t *testing.T) {
	assert.Equal(t, []string{"memory", "postgres"}, names(RiderStores))
	assert.Equal(t, []string{"jsonl", "sqlite"}, names(LogStores))
	assert.Equal(t, []string{"memory", "redis"}, names(IdempotencyStores))
}

func TestNewStores(t *testing.T) {
	ctx := context.Background()
	rs, err := NewRiderStore(ctx, store.Config{Backend: store.BackendMemory})
	require.NoError(t, err)
	require.NotNil(t, rs)

	ls, err := NewLogStore("jsonl", filepath.Join(t.TempDir(), "d.jsonl"))
	require.NoError(t, err)
	require.NotNil(t, ls)

	ls, err = NewLogStore("none", "")
	require.NoError(t, err)
	assert.Nil(t, ls)

	is, err := NewIdempotencyStore(ctx, idempotency.Config{Backend: idempotency.BackendMemory})
	require.NoError(t, err)
	require.NotNil(t, is)
}

func TestUnknownBackends(t *testing.T) {
	ctx := context.Background()
	_, err := NewRiderStore(ctx, store.Config{Backend: "mongo"})
	assert.ErrorContains(t, err, "known: [memory postgres]")
	_, err = NewLogStore("kafka", "x")
	assert.Error(t, err)
	_, err = NewIdempotencyStore(ctx, idempotency.Config{Backend: "etcd"})
	assert.Error(t, err)
}
