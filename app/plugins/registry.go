// Package plugins maps configured backend names to constructors so the
// service can be assembled from configuration alone.
package plugins

import (
	"context"
	"fmt"
	"sort"

	"github.com/kilianp07/courierdispatch/core/dispatch/logging"
	"github.com/kilianp07/courierdispatch/core/idempotency"
	"github.com/kilianp07/courierdispatch/core/store"
)

// RiderStoreFactory builds a rider store from its configuration.
type RiderStoreFactory func(ctx context.Context, cfg store.Config) (store.RiderStore, error)

// LogStoreFactory builds a decision log store writing to path.
type LogStoreFactory func(path string) (logging.LogStore, error)

// IdempotencyFactory builds an idempotency store from its configuration.
type IdempotencyFactory func(ctx context.Context, cfg idempotency.Config) (idempotency.Store, error)

var (
	RiderStores       = map[string]RiderStoreFactory{}
	LogStores         = map[string]LogStoreFactory{}
	IdempotencyStores = map[string]IdempotencyFactory{}
)

func RegisterRiderStore(name string, f RiderStoreFactory)   { RiderStores[name] = f }
func RegisterLogStore(name string, f LogStoreFactory)       { LogStores[name] = f }
func RegisterIdempotency(name string, f IdempotencyFactory) { IdempotencyStores[name] = f }

// NewRiderStore builds the rider store selected by cfg.Backend.
func NewRiderStore(ctx context.Context, cfg store.Config) (store.RiderStore, error) {
	f, ok := RiderStores[cfg.Backend]
	if !ok {
		return nil, fmt.Errorf("unknown rider store %q (known: %v)", cfg.Backend, names(RiderStores))
	}
	return f(ctx, cfg)
}

// NewLogStore builds the decision log selected by backend. The "none"
// backend yields a nil store.
func NewLogStore(backend, path string) (logging.LogStore, error) {
	if backend == "none" {
		return nil, nil
	}
	f, ok := LogStores[backend]
	if !ok {
		return nil, fmt.Errorf("unknown log store %q (known: %v)", backend, names(LogStores))
	}
	return f(path)
}

// NewIdempotencyStore builds the idempotency store selected by cfg.Backend.
func NewIdempotencyStore(ctx context.Context, cfg idempotency.Config) (idempotency.Store, error) {
	f, ok := IdempotencyStores[cfg.Backend]
	if !ok {
		return nil, fmt.Errorf("unknown idempotency store %q (known: %v)", cfg.Backend, names(IdempotencyStores))
	}
	return f(ctx, cfg)
}

func names[F any](m map[string]F) []string {
	out := make([]string, 0, len(m))
	for n := range m {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
