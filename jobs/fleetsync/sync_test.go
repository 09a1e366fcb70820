package fleetsync

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/courierdispatch/core/model"
	"github.com/kilianp07/courierdispatch/infra/logger"
	"github.com/kilianp07/courierdispatch/infra/store/memory"
)

type staticSource struct {
	riders []model.Candidate
	err    error
	calls  atomic.Int32
}

func (s *staticSource) Fetch(context.Context) ([]model.Candidate, error) {
	s.calls.Add(1)
	return s.riders, s.err
}

func TestSyncUpsertsRiders(t *testing.T) {
	src := &staticSource{riders: []model.Candidate{
		{Rider: model.Rider{ID: "r1", Active: true}},
		{Rider: model.Rider{ID: ""}},
		{Rider: model.Rider{ID: "r2", Active: true}},
	}}
	st := memory.New()

	n, err := Sync(context.Background(), src, st)
	assert.Equal(t, 2, n)
	require.Error(t, err)

	cs, _ := st.Candidates(context.Background())
	require.Len(t, cs, 2)
	assert.Equal(t, "r1", cs[0].Rider.ID)
}

func TestSyncFetchError(t *testing.T) {
	src := &staticSource{err: errors.New("upstream down")}
	_, err := Sync(context.Background(), src, memory.New())
	assert.ErrorContains(t, err, "upstream down")
}

func TestRunStopsOnCancel(t *testing.T) {
	src := &staticSource{riders: []model.Candidate{{Rider: model.Rider{ID: "r1"}}}}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Run(ctx, 5*time.Millisecond, src, memory.New(), logger.NopLogger{})
		close(done)
	}()
	require.Eventually(t, func() bool { return src.calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}
