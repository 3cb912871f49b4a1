package eventstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/agentrt/runtime/internal/ids"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore is the on-disk event store backend (§4.3's "SQLite-
// equivalent" persistence), backed by the pure-Go modernc.org/sqlite
// driver so the binary stays cgo-free.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if necessary) a SQLite-backed event
// store at the given DSN and applies embedded schema migrations.
func OpenSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc's driver serializes writers; one conn avoids SQLITE_BUSY churn

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate event store schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("sqlite migrate driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("embedded migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Append(ctx context.Context, session ids.SessionID, expectedSeq uint64, events ...Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var tip uint64
	row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM events WHERE session_id = ?`, session.String())
	if err := row.Scan(&tip); err != nil {
		return fmt.Errorf("read tip seq: %w", err)
	}
	if expectedSeq != 0 && expectedSeq != tip {
		return fmt.Errorf("%w: expected %d, log at %d", ErrSeqConflict, expectedSeq, tip)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO events (session_id, seq, timestamp, type, payload) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range events {
		tip++
		events[i].SessionID = session
		events[i].Seq = tip
		payload, err := json.Marshal(events[i])
		if err != nil {
			return fmt.Errorf("marshal event %d: %w", tip, err)
		}
		if _, err := stmt.ExecContext(ctx, session.String(), tip, events[i].Timestamp, string(events[i].Type), payload); err != nil {
			return fmt.Errorf("insert event %d: %w", tip, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) LoadSince(ctx context.Context, session ids.SessionID, sinceSeq uint64) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM events WHERE session_id = ? AND seq > ? ORDER BY seq ASC`,
		session.String(), sinceSeq)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var e Event
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("unmarshal event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Load(ctx context.Context, session ids.SessionID) ([]Event, error) {
	return s.LoadSince(ctx, session, 0)
}

func (s *SQLiteStore) LatestSeq(ctx context.Context, session ids.SessionID) (uint64, error) {
	var seq uint64
	row := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM events WHERE session_id = ?`, session.String())
	if err := row.Scan(&seq); err != nil {
		return 0, fmt.Errorf("read latest seq: %w", err)
	}
	return seq, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, session ids.SessionID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE session_id = ?`, session.String())
	if err != nil {
		return fmt.Errorf("delete session log: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context) ([]ids.SessionID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT session_id FROM events`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []ids.SessionID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		id, err := ids.ParseSessionID(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
