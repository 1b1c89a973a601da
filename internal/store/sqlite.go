package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // driver: sqlite

	"github.com/MikeSquared-Agency/Potency/internal/predictor"
)

const DefaultSQLiteDSN = "file:potency.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS potency_models (
	name       TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	document   TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

type SQLiteStore struct {
	db   *sql.DB
	name string
}

func NewSQLiteStore(ctx context.Context, dsn, name string) (*SQLiteStore, error) {
	if dsn == "" {
		dsn = DefaultSQLiteDSN
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &SQLiteStore{db: db, name: name}, nil
}

func (s *SQLiteStore) Location() string { return "sqlite:potency_models/" + s.name }

func (s *SQLiteStore) Save(ctx context.Context, m *predictor.LinearModel) (string, error) {
	now := time.Now()
	doc, err := encodeModel(m, now)
	if err != nil {
		return "", &PersistenceError{Op: WriteFailed, Location: s.Location(), Err: err}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO potency_models (name, kind, document, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			kind = excluded.kind, document = excluded.document, updated_at = excluded.updated_at`,
		s.name, string(predictor.KindLinear), string(doc), now.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", &PersistenceError{Op: WriteFailed, Location: s.Location(), Err: err}
	}
	return s.Location(), nil
}

func (s *SQLiteStore) Load(ctx context.Context) (*predictor.LinearModel, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM potency_models WHERE name = ?`, s.name).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrModelNotFound
	}
	if err != nil {
		return nil, &PersistenceError{Op: ReadFailed, Location: s.Location(), Err: err}
	}
	m, err := decodeModel([]byte(doc))
	if err != nil {
		return nil, &PersistenceError{Op: ReadFailed, Location: s.Location(), Err: err}
	}
	return m, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
