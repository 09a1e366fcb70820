// Package memory provides an in-process rider store with optimistic
// version checks. It backs tests and single-node deployments.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/kilianp07/courierdispatch/core/model"
	"github.com/kilianp07/courierdispatch/core/store"
)

type entry struct {
	candidate model.Candidate
	base      int
	claimed   []string
	released  []string
}

// Store keeps candidates in memory.
type Store struct {
	mu     sync.RWMutex
	riders map[string]*entry
}

var _ store.RiderStore = (*Store)(nil)

// New returns a store seeded with candidates.
func New(seed ...model.Candidate) *Store {
	s := &Store{riders: make(map[string]*entry, len(seed))}
	for _, c := range seed {
		_ = s.Upsert(context.Background(), c)
	}
	return s
}

// Upsert inserts or replaces a candidate. The version is taken from the
// candidate on insert and bumped on replace. Claimed orders are kept.
func (s *Store) Upsert(_ context.Context, c model.Candidate) error {
	if c.Rider.ID == "" {
		return fmt.Errorf("memory store: rider id is required")
	}
	c = clone(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.riders[c.Rider.ID]
	if !ok {
		if c.Rider.Version == 0 {
			c.Rider.Version = 1
		}
		s.riders[c.Rider.ID] = &entry{candidate: c, base: c.ActiveOrders()}
		return nil
	}
	c.Rider.Version = e.candidate.Rider.Version + 1
	e.candidate = c
	e.base = c.ActiveOrders()
	return nil
}

// Candidates returns deep copies sorted by rider ID.
func (s *Store) Candidates(context.Context) ([]model.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Candidate, 0, len(s.riders))
	for _, e := range s.riders {
		out = append(out, e.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rider.ID < out[j].Rider.ID })
	return out, nil
}

// Get returns a copy of one candidate.
func (s *Store) Get(_ context.Context, riderID string) (model.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.riders[riderID]
	if !ok {
		return model.Candidate{}, store.ErrNotFound
	}
	return e.snapshot(), nil
}

// UpdateState implements store.RiderStore.
func (s *Store) UpdateState(_ context.Context, riderID string, u store.StateUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.riders[riderID]
	if !ok {
		return store.ErrNotFound
	}
	if !u.Apply(&e.candidate.Rider) {
		return store.ErrStaleUpdate
	}
	e.candidate.Rider.Version++
	return nil
}

// Claim implements store.Allocator.
func (s *Store) Claim(ctx context.Context, riderID string, expectedVersion int64, orderID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.riders[riderID]
	if !ok {
		return 0, store.ErrNotFound
	}
	if e.candidate.Rider.Version != expectedVersion {
		return 0, fmt.Errorf("%w: rider %s at version %d, expected %d", store.ErrVersionConflict, riderID, e.candidate.Rider.Version, expectedVersion)
	}
	e.claimed = append(e.claimed, orderID)
	e.released = slices.DeleteFunc(e.released, func(id string) bool { return id == orderID })
	e.candidate.Rider.Version++
	return e.candidate.Rider.Version, nil
}

// Release implements store.Allocator. Releasing an order the store did not
// claim decrements the externally loaded count instead. Released order IDs
// are remembered until the order is claimed again.
func (s *Store) Release(ctx context.Context, riderID, orderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.riders[riderID]
	if !ok {
		return store.ErrNotFound
	}
	if slices.Contains(e.released, orderID) {
		return store.ErrAlreadyReleased
	}
	if i := slices.Index(e.claimed, orderID); i >= 0 {
		e.claimed = slices.Delete(e.claimed, i, i+1)
	} else if e.base > 0 {
		e.base--
	} else {
		return nil
	}
	e.released = append(e.released, orderID)
	e.candidate.Rider.Version++
	return nil
}

// Close implements store.RiderStore.
func (s *Store) Close() error { return nil }

func (e *entry) snapshot() model.Candidate {
	c := clone(e.candidate)
	if c.Shift != nil {
		c.Shift.ActiveOrders = e.base + len(e.claimed)
	}
	return c
}

func clone(c model.Candidate) model.Candidate {
	out := c
	r := &out.Rider
	if r.Location != nil {
		l := *r.Location
		r.Location = &l
	}
	if r.Metrics != nil {
		m := *r.Metrics
		r.Metrics = &m
	}
	if r.Vehicle != nil {
		v := *r.Vehicle
		r.Vehicle = &v
	}
	if r.Preferences != nil {
		p := make(map[model.Category]model.Preference, len(r.Preferences))
		for k, v := range r.Preferences {
			p[k] = v
		}
		r.Preferences = p
	}
	r.Capabilities = slices.Clone(r.Capabilities)
	if c.Shift != nil {
		sh := *c.Shift
		out.Shift = &sh
	}
	return out
}
