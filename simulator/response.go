package main

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

var (
	rngMu sync.Mutex
	rng   = rand.New(rand.NewSource(time.Now().UnixNano()))
)

func chance(p float64) bool {
	rngMu.Lock()
	defer rngMu.Unlock()
	return rng.Float64() < p
}

// ResponseStrategy decides whether a rider accepts an assignment.
type ResponseStrategy interface {
	Accept(ctx context.Context, riderID, orderID string) bool
}

// AutoAccept accepts every assignment after an optional fixed delay.
type AutoAccept struct {
	Delay time.Duration
}

// Accept implements ResponseStrategy.
func (a AutoAccept) Accept(ctx context.Context, _, _ string) bool {
	return wait(ctx, a.Delay)
}

// RandomDecline declines assignments with the configured probability
// after waiting for Delay. A wait cut short by ctx counts as acceptance
// so nothing is published during shutdown.
type RandomDecline struct {
	Delay       time.Duration
	DeclineRate float64
}

// Accept implements ResponseStrategy.
func (r RandomDecline) Accept(ctx context.Context, _, _ string) bool {
	if !wait(ctx, r.Delay) {
		return true
	}
	return !(r.DeclineRate > 0 && chance(r.DeclineRate))
}

// wait returns false when ctx ends first.
func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
