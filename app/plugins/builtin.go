package plugins

import (
	"context"

	"github.com/kilianp07/courierdispatch/core/dispatch/logging"
	"github.com/kilianp07/courierdispatch/core/idempotency"
	"github.com/kilianp07/courierdispatch/core/store"
	idemmemory "github.com/kilianp07/courierdispatch/infra/idempotency/memory"
	idemredis "github.com/kilianp07/courierdispatch/infra/idempotency/redis"
	"github.com/kilianp07/courierdispatch/infra/store/memory"
	"github.com/kilianp07/courierdispatch/infra/store/postgres"
)

func init() {
	RegisterRiderStore(store.BackendMemory, func(context.Context, store.Config) (store.RiderStore, error) {
		return memory.New(), nil
	})
	RegisterRiderStore(store.BackendPostgres, func(ctx context.Context, cfg store.Config) (store.RiderStore, error) {
		return postgres.Open(ctx, cfg.DSN)
	})

	RegisterLogStore("jsonl", func(path string) (logging.LogStore, error) {
		return logging.NewJSONLStore(path)
	})
	RegisterLogStore("sqlite", func(path string) (logging.LogStore, error) {
		return logging.NewSQLiteStore(path)
	})

	RegisterIdempotency(idempotency.BackendMemory, func(context.Context, idempotency.Config) (idempotency.Store, error) {
		return idemmemory.New(), nil
	})
	RegisterIdempotency(idempotency.BackendRedis, func(ctx context.Context, cfg idempotency.Config) (idempotency.Store, error) {
		return idemredis.Open(ctx, cfg)
	})
}
