package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS decisions (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	ts       INTEGER NOT NULL,
	kind     TEXT NOT NULL,
	order_id TEXT NOT NULL,
	success  INTEGER NOT NULL,
	record   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS decisions_order ON decisions (order_id, ts);
CREATE TABLE IF NOT EXISTS decision_riders (
	decision_id INTEGER NOT NULL REFERENCES decisions (id),
	rider_id    TEXT NOT NULL,
	PRIMARY KEY (decision_id, rider_id)
);
CREATE INDEX IF NOT EXISTS decision_riders_rider ON decision_riders (rider_id);`

// SQLiteStore keeps decisions in a SQLite file. Every rider a decision
// touched is indexed so rider queries stay in SQL.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens path, creating the file and schema when missing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// modernc sqlite serialises writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, errors.Join(fmt.Errorf("migrate %s: %w", path, err), db.Close())
	}
	return &SQLiteStore{db: db}, nil
}

// Append stores rec and its rider index rows in one transaction.
func (s *SQLiteStore) Append(ctx context.Context, rec LogRecord) (err error) {
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode decision %s: %w", rec.OrderID, err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO decisions (ts, kind, order_id, success, record) VALUES (?, ?, ?, ?, ?)`,
		rec.Timestamp.UnixNano(), rec.Kind, rec.OrderID, rec.Result.Success, string(doc))
	if err != nil {
		return fmt.Errorf("insert decision %s: %w", rec.OrderID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	for _, rider := range rec.riders() {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO decision_riders (decision_id, rider_id) VALUES (?, ?)`, id, rider); err != nil {
			return fmt.Errorf("index rider %s: %w", rider, err)
		}
	}
	return tx.Commit()
}

// Query returns the decisions matching q, oldest first.
func (s *SQLiteStore) Query(ctx context.Context, q LogQuery) ([]LogRecord, error) {
	var (
		where []string
		args  []any
	)
	if !q.Start.IsZero() {
		where, args = append(where, "ts >= ?"), append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		where, args = append(where, "ts <= ?"), append(args, q.End.UnixNano())
	}
	if q.Kind != "" {
		where, args = append(where, "kind = ?"), append(args, q.Kind)
	}
	if q.OrderID != "" {
		where, args = append(where, "order_id = ?"), append(args, q.OrderID)
	}
	if q.RiderID != "" {
		where = append(where, "id IN (SELECT decision_id FROM decision_riders WHERE rider_id = ?)")
		args = append(args, q.RiderID)
	}
	stmt := "SELECT record FROM decisions"
	if len(where) > 0 {
		stmt += " WHERE " + strings.Join(where, " AND ")
	}
	stmt += " ORDER BY ts, id"

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []LogRecord
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var rec LogRecord
		if err := json.Unmarshal(doc, &rec); err != nil {
			return nil, fmt.Errorf("decode decision: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
