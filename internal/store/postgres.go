package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeSquared-Agency/Potency/internal/predictor"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS potency_models (
	name       TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	document   JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore keeps the model in a single row of potency_models keyed by
// name.
type PostgresStore struct {
	pool *pgxpool.Pool
	name string
}

func NewPostgresStore(ctx context.Context, databaseURL, name string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &PostgresStore{pool: pool, name: name}, nil
}

func (s *PostgresStore) Location() string { return "postgres:potency_models/" + s.name }

func (s *PostgresStore) Save(ctx context.Context, m *predictor.LinearModel) (string, error) {
	doc, err := encodeModel(m, time.Now())
	if err != nil {
		return "", &PersistenceError{Op: WriteFailed, Location: s.Location(), Err: err}
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO potency_models (name, kind, document, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (name) DO UPDATE SET
			kind = EXCLUDED.kind, document = EXCLUDED.document, updated_at = now()`,
		s.name, string(predictor.KindLinear), doc,
	)
	if err != nil {
		return "", &PersistenceError{Op: WriteFailed, Location: s.Location(), Err: err}
	}
	return s.Location(), nil
}

func (s *PostgresStore) Load(ctx context.Context) (*predictor.LinearModel, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT document FROM potency_models WHERE name = $1`, s.name).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrModelNotFound
	}
	if err != nil {
		return nil, &PersistenceError{Op: ReadFailed, Location: s.Location(), Err: err}
	}
	m, err := decodeModel(doc)
	if err != nil {
		return nil, &PersistenceError{Op: ReadFailed, Location: s.Location(), Err: err}
	}
	return m, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
