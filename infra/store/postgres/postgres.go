// Package postgres stores rider snapshots in PostgreSQL. Claims are
// conditional updates on the version column so concurrent dispatchers
// cannot both take the same rider.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kilianp07/courierdispatch/core/model"
	"github.com/kilianp07/courierdispatch/core/store"
)

// Schema creates the riders table.
const Schema = `
CREATE TABLE IF NOT EXISTS dispatch_riders (
    id            TEXT PRIMARY KEY,
    snapshot      JSONB NOT NULL,
    shift         JSONB,
    base_orders   INTEGER NOT NULL DEFAULT 0,
    claimed       TEXT[] NOT NULL DEFAULT '{}',
    released      TEXT[] NOT NULL DEFAULT '{}',
    version       BIGINT NOT NULL DEFAULT 1,
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
ALTER TABLE dispatch_riders ADD COLUMN IF NOT EXISTS released TEXT[] NOT NULL DEFAULT '{}'`

// Store implements store.RiderStore on a pgx pool.
type Store struct {
	db *pgxpool.Pool
}

var _ store.RiderStore = (*Store)(nil)

// Open connects to dsn and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	s := NewStore(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an existing pool.
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Migrate applies Schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// Upsert inserts or replaces a rider snapshot. Replacing bumps the version
// and keeps orders claimed through this store.
func (s *Store) Upsert(ctx context.Context, c model.Candidate) error {
	if c.Rider.ID == "" {
		return errors.New("postgres: rider id is required")
	}
	snap, err := json.Marshal(c.Rider)
	if err != nil {
		return err
	}
	var shift []byte
	if c.Shift != nil {
		if shift, err = json.Marshal(c.Shift); err != nil {
			return err
		}
	}
	version := c.Rider.Version
	if version <= 0 {
		version = 1
	}
	_, err = s.db.Exec(ctx, `
        INSERT INTO dispatch_riders (id, snapshot, shift, base_orders, version)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (id) DO UPDATE
        SET snapshot = EXCLUDED.snapshot,
            shift = EXCLUDED.shift,
            base_orders = EXCLUDED.base_orders,
            version = dispatch_riders.version + 1,
            updated_at = NOW()`,
		c.Rider.ID, snap, shift, c.ActiveOrders(), version,
	)
	return err
}

const selectCandidate = `
        SELECT snapshot, shift, base_orders + cardinality(claimed), version
        FROM dispatch_riders`

// Candidates returns every rider ordered by ID.
func (s *Store) Candidates(ctx context.Context) ([]model.Candidate, error) {
	rows, err := s.db.Query(ctx, selectCandidate+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Get returns one rider.
func (s *Store) Get(ctx context.Context, riderID string) (model.Candidate, error) {
	c, err := scanCandidate(s.db.QueryRow(ctx, selectCandidate+` WHERE id = $1`, riderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Candidate{}, store.ErrNotFound
	}
	return c, err
}

func scanCandidate(row pgx.Row) (model.Candidate, error) {
	var snap, shift []byte
	var active int
	var version int64
	if err := row.Scan(&snap, &shift, &active, &version); err != nil {
		return model.Candidate{}, err
	}
	var c model.Candidate
	if err := json.Unmarshal(snap, &c.Rider); err != nil {
		return model.Candidate{}, fmt.Errorf("postgres: decode rider: %w", err)
	}
	c.Rider.Version = version
	if len(shift) > 0 {
		c.Shift = &model.Shift{}
		if err := json.Unmarshal(shift, c.Shift); err != nil {
			return model.Candidate{}, fmt.Errorf("postgres: decode shift: %w", err)
		}
		c.Shift.ActiveOrders = active
	}
	return c, nil
}

// UpdateState implements store.RiderStore. The snapshot is rewritten under
// a row lock.
func (s *Store) UpdateState(ctx context.Context, riderID string, u store.StateUpdate) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var snap []byte
	err = tx.QueryRow(ctx, `SELECT snapshot FROM dispatch_riders WHERE id = $1 FOR UPDATE`, riderID).Scan(&snap)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}
	var r model.Rider
	if err := json.Unmarshal(snap, &r); err != nil {
		return fmt.Errorf("postgres: decode rider: %w", err)
	}
	if !u.Apply(&r) {
		return store.ErrStaleUpdate
	}
	if snap, err = json.Marshal(r); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
        UPDATE dispatch_riders
        SET snapshot = $2, version = version + 1, updated_at = NOW()
        WHERE id = $1`, riderID, snap); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Claim implements store.Allocator.
func (s *Store) Claim(ctx context.Context, riderID string, expectedVersion int64, orderID string) (int64, error) {
	var version int64
	err := s.db.QueryRow(ctx, `
        UPDATE dispatch_riders
        SET claimed = array_append(claimed, $3),
            released = array_remove(released, $3),
            version = version + 1,
            updated_at = NOW()
        WHERE id = $1 AND version = $2
        RETURNING version`,
		riderID, expectedVersion, orderID,
	).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		if exists, eerr := s.exists(ctx, riderID); eerr != nil {
			return 0, eerr
		} else if !exists {
			return 0, store.ErrNotFound
		}
		return 0, fmt.Errorf("%w: rider %s expected version %d", store.ErrVersionConflict, riderID, expectedVersion)
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}

// Release implements store.Allocator. Released order IDs are kept in the
// released column until the order is claimed again.
func (s *Store) Release(ctx context.Context, riderID, orderID string) error {
	tag, err := s.db.Exec(ctx, `
        UPDATE dispatch_riders
        SET base_orders = CASE WHEN $2 = ANY(claimed) THEN base_orders ELSE GREATEST(base_orders - 1, 0) END,
            claimed = array_remove(claimed, $2),
            released = array_append(released, $2),
            version = version + 1,
            updated_at = NOW()
        WHERE id = $1
          AND NOT ($2 = ANY(released))
          AND ($2 = ANY(claimed) OR base_orders > 0)`,
		riderID, orderID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var already bool
	err = s.db.QueryRow(ctx, `SELECT $2 = ANY(released) FROM dispatch_riders WHERE id = $1`, riderID, orderID).Scan(&already)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return store.ErrNotFound
	case err != nil:
		return err
	case already:
		return store.ErrAlreadyReleased
	}
	return nil
}

func (s *Store) exists(ctx context.Context, riderID string) (bool, error) {
	var ok bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM dispatch_riders WHERE id = $1)`, riderID).Scan(&ok)
	return ok, err
}

// Close releases the pool.
func (s *Store) Close() error {
	s.db.Close()
	return nil
}
